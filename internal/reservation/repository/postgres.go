package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campushub/library-circulation-service/internal/model"
	"github.com/campushub/library-circulation-service/internal/reservation"
	"github.com/campushub/library-circulation-service/internal/reservation/dto"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	err := r.DB.GetContext(ctx, &res, `SELECT * FROM reservations WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, err
	}
	return &res, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.ReservationFilters) ([]model.Reservation, int, error) {
	var items []model.Reservation
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.BookID != "" {
		conditions = append(conditions, "book_id = :book_id")
		args["book_id"] = f.BookID
	}
	if f.StudentID != "" {
		conditions = append(conditions, "student_id = :student_id")
		args["student_id"] = f.StudentID
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM reservations" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM reservations" + whereClause + " ORDER BY reservation_date ASC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &items, args)
	return items, count, err
}

func (r *PGRepository) ReserveTx(ctx context.Context, res *model.Reservation) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Lock the book row; all queue mutations for this book serialize here.
	var book struct {
		AvailableCopies int              `db:"available_copies"`
		Status          model.BookStatus `db:"status"`
	}
	err = tx.GetContext(ctx, &book,
		`SELECT available_copies, status FROM books WHERE id = $1 FOR UPDATE`, res.BookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reservation.ErrBookNotFound
		}
		return err
	}
	// A withdrawn or lost title will never produce a copy; queueing on it
	// strands the student.
	if book.Status == model.BookStatusWithdrawn || book.Status == model.BookStatusLost {
		return reservation.ErrBookNotReservable
	}
	if book.AvailableCopies > 0 {
		return reservation.ErrBookCurrentlyAvailable
	}

	var active int
	err = tx.GetContext(ctx, &active, `
        SELECT count(*) FROM reservations
        WHERE book_id = $1 AND student_id = $2 AND status IN ('pending', 'available')
    `, res.BookID, res.StudentID)
	if err != nil {
		return err
	}
	if active > 0 {
		return reservation.ErrDuplicateReservation
	}

	var pending int
	err = tx.GetContext(ctx, &pending,
		`SELECT count(*) FROM reservations WHERE book_id = $1 AND status = 'pending'`, res.BookID)
	if err != nil {
		return err
	}
	res.QueuePosition = pending + 1

	query := `
        INSERT INTO reservations (
            id, book_id, student_id, reservation_date, expiry_date, status,
            queue_position, available_date, fulfilled_date, cancelled_date,
            cancel_reason, created_at, updated_at
        )
        VALUES (
            :id, :book_id, :student_id, :reservation_date, :expiry_date, :status,
            :queue_position, :available_date, :fulfilled_date, :cancelled_date,
            :cancel_reason, :created_at, :updated_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, query, res); err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	return tx.Commit()
}

func (r *PGRepository) CancelTx(ctx context.Context, id string, reason *string, now time.Time) (*model.Reservation, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var bookID string
	err = tx.GetContext(ctx, &bookID, `SELECT book_id FROM reservations WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, err
	}

	// Book lock first, then the reservation row; same ordering as every
	// other queue mutation.
	if err := tx.GetContext(ctx, &bookID, `SELECT id FROM books WHERE id = $1 FOR UPDATE`, bookID); err != nil {
		return nil, fmt.Errorf("failed to lock book row: %w", err)
	}

	var res model.Reservation
	err = tx.GetContext(ctx, &res, `SELECT * FROM reservations WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, err
	}
	if !res.ActiveReservation() {
		return nil, reservation.ErrReservationNotActive
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE reservations
        SET status = 'cancelled', cancelled_date = $2, cancel_reason = $3,
            queue_position = 0, updated_at = $2
        WHERE id = $1
    `, id, now, reason)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel reservation: %w", err)
	}

	if err := RenumberPending(ctx, tx, res.BookID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	res.Status = model.ReservationStatusCancelled
	res.CancelledDate = &now
	res.CancelReason = reason
	res.QueuePosition = 0
	res.UpdatedAt = now
	return &res, nil
}

func (r *PGRepository) AdvanceTx(ctx context.Context, bookID string, now time.Time, collectionWindow time.Duration) (*model.Reservation, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var availableCopies int
	err = tx.GetContext(ctx, &availableCopies,
		`SELECT available_copies FROM books WHERE id = $1 FOR UPDATE`, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrBookNotFound
		}
		return nil, err
	}
	if availableCopies == 0 {
		return nil, nil
	}

	promoted, err := PromoteNext(ctx, tx, bookID, now, collectionWindow)
	if err != nil {
		return nil, err
	}
	if promoted == nil {
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return promoted, nil
}

func (r *PGRepository) FulfillTx(ctx context.Context, id string, now time.Time) (*model.Reservation, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var res model.Reservation
	err = tx.GetContext(ctx, &res, `SELECT * FROM reservations WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, err
	}
	if res.Status != model.ReservationStatusAvailable {
		return nil, reservation.ErrNotAwaitingPickup
	}
	if now.After(res.ExpiryDate) {
		return nil, reservation.ErrReservationExpired
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE reservations
        SET status = 'fulfilled', fulfilled_date = $2, updated_at = $2
        WHERE id = $1
    `, id, now)
	if err != nil {
		return nil, fmt.Errorf("failed to fulfill reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	res.Status = model.ReservationStatusFulfilled
	res.FulfilledDate = &now
	res.UpdatedAt = now
	return &res, nil
}

func (r *PGRepository) ListExpired(ctx context.Context, asOf time.Time) ([]model.Reservation, error) {
	var items []model.Reservation
	err := r.DB.SelectContext(ctx, &items, `
        SELECT * FROM reservations
        WHERE status IN ('pending', 'available') AND expiry_date < $1
        ORDER BY expiry_date ASC
    `, asOf)
	return items, err
}

func (r *PGRepository) ExpireTx(ctx context.Context, id string, now time.Time) (*model.Reservation, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var bookID string
	err = tx.GetContext(ctx, &bookID, `SELECT book_id FROM reservations WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, err
	}

	if err := tx.GetContext(ctx, &bookID, `SELECT id FROM books WHERE id = $1 FOR UPDATE`, bookID); err != nil {
		return nil, fmt.Errorf("failed to lock book row: %w", err)
	}

	var res model.Reservation
	err = tx.GetContext(ctx, &res, `SELECT * FROM reservations WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, err
	}
	// Re-check under lock; the sweep may race a fulfil or cancel.
	if !res.ActiveReservation() || !now.After(res.ExpiryDate) {
		return nil, nil
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE reservations
        SET status = 'expired', queue_position = 0, updated_at = $2
        WHERE id = $1
    `, id, now)
	if err != nil {
		return nil, fmt.Errorf("failed to expire reservation: %w", err)
	}

	if err := RenumberPending(ctx, tx, res.BookID, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	expired := res
	expired.Status = model.ReservationStatusExpired
	expired.QueuePosition = 0
	expired.UpdatedAt = now
	return &expired, nil
}

// PromoteNext promotes the lowest-position pending reservation of a book to
// awaiting-pickup and renumbers the rest. It runs against an open transaction
// so the circulation return path can include promotion in its own commit.
// Returns nil when no pending reservation exists. The copy itself stays
// available; the promoted student receives it through the normal issue path.
func PromoteNext(ctx context.Context, ex sqlx.ExtContext, bookID string, now time.Time, collectionWindow time.Duration) (*model.Reservation, error) {
	var res model.Reservation
	err := sqlx.GetContext(ctx, ex, &res, `
        SELECT * FROM reservations
        WHERE book_id = $1 AND status = 'pending'
        ORDER BY queue_position ASC
        LIMIT 1
        FOR UPDATE
    `, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	expiry := now.Add(collectionWindow)
	_, err = ex.ExecContext(ctx, `
        UPDATE reservations
        SET status = 'available', available_date = $2, expiry_date = $3,
            queue_position = 0, updated_at = $2
        WHERE id = $1
    `, res.ID, now, expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to promote reservation: %w", err)
	}

	if err := RenumberPending(ctx, ex, bookID, now); err != nil {
		return nil, err
	}

	res.Status = model.ReservationStatusAvailable
	res.AvailableDate = &now
	res.ExpiryDate = expiry
	res.QueuePosition = 0
	res.UpdatedAt = now
	return &res, nil
}

// RenumberPending reassigns dense 1-based positions among a book's pending
// reservations, preserving their relative order.
func RenumberPending(ctx context.Context, ex sqlx.ExtContext, bookID string, now time.Time) error {
	query := `
        UPDATE reservations r
        SET queue_position = ranked.rn, updated_at = $2
        FROM (
            SELECT id, ROW_NUMBER() OVER (ORDER BY queue_position ASC) AS rn
            FROM reservations
            WHERE book_id = $1 AND status = 'pending'
        ) ranked
        WHERE r.id = ranked.id
    `
	if _, err := ex.ExecContext(ctx, query, bookID, now); err != nil {
		return fmt.Errorf("failed to renumber reservation queue: %w", err)
	}
	return nil
}
