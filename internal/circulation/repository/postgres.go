package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/campushub/library-circulation-service/internal/circulation"
	"github.com/campushub/library-circulation-service/internal/circulation/dto"
	"github.com/campushub/library-circulation-service/internal/model"
	reservationrepo "github.com/campushub/library-circulation-service/internal/reservation/repository"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Circulation, error) {
	var circ model.Circulation
	err := r.DB.GetContext(ctx, &circ, `SELECT * FROM circulations WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, circulation.ErrCirculationNotFound
		}
		return nil, err
	}
	return &circ, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.CirculationFilters) ([]model.Circulation, int, error) {
	var items []model.Circulation
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

	countQuery := "SELECT count(*) FROM circulations" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM circulations" + whereClause + " ORDER BY issue_date DESC"
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

func (r *PGRepository) CountActiveByStudent(ctx context.Context, studentID string) (int, error) {
	var count int
	err := r.DB.GetContext(ctx, &count, `
        SELECT count(*) FROM circulations
        WHERE student_id = $1 AND status IN ('borrowed', 'renewed', 'overdue')
    `, studentID)
	return count, err
}

func (r *PGRepository) HasActiveForBook(ctx context.Context, studentID, bookID string) (bool, error) {
	var count int
	err := r.DB.GetContext(ctx, &count, `
        SELECT count(*) FROM circulations
        WHERE student_id = $1 AND book_id = $2 AND status IN ('borrowed', 'renewed', 'overdue')
    `, studentID, bookID)
	return count > 0, err
}

func (r *PGRepository) IssueTx(ctx context.Context, circ *model.Circulation) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// The availability guard lives in the WHERE clause; two concurrent
	// issues cannot both take the last copy.
	res, err := tx.ExecContext(ctx, `
        UPDATE books
        SET available_copies = available_copies - 1,
            status = CASE WHEN available_copies - 1 = 0 THEN 'borrowed' ELSE status END,
            updated_at = $2
        WHERE id = $1 AND available_copies > 0
    `, circ.BookID, circ.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to reserve copy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT count(*) FROM books WHERE id = $1`, circ.BookID); err != nil {
			return err
		}
		if exists == 0 {
			return circulation.ErrBookNotFound
		}
		return circulation.ErrBookUnavailable
	}

	query := `
        INSERT INTO circulations (
            id, book_id, student_id, issue_date, due_date, return_date, status,
            renewal_count, max_renewals, condition_on_issue, condition_on_return,
            fine, fine_paid, issued_by, returned_by, created_at, updated_at
        )
        VALUES (
            :id, :book_id, :student_id, :issue_date, :due_date, :return_date, :status,
            :renewal_count, :max_renewals, :condition_on_issue, :condition_on_return,
            :fine, :fine_paid, :issued_by, :returned_by, :created_at, :updated_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, query, circ); err != nil {
		return fmt.Errorf("failed to insert circulation: %w", err)
	}

	return tx.Commit()
}

func (r *PGRepository) Renew(ctx context.Context, circ *model.Circulation) error {
	res, err := r.DB.NamedExecContext(ctx, `
        UPDATE circulations
        SET renewal_count = :renewal_count, due_date = :due_date,
            status = 'renewed', updated_at = :updated_at
        WHERE id = :id AND status IN ('borrowed', 'renewed')
    `, circ)
	if err != nil {
		return fmt.Errorf("failed to renew circulation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return circulation.ErrNotBorrowed
	}
	return nil
}

func (r *PGRepository) ReturnTx(ctx context.Context, p *dto.CloseParams) (*dto.ReturnOutcome, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var circ model.Circulation
	err = tx.GetContext(ctx, &circ, `SELECT * FROM circulations WHERE id = $1 FOR UPDATE`, p.CirculationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, circulation.ErrCirculationNotFound
		}
		return nil, err
	}
	if !circ.Active() {
		return nil, circulation.ErrAlreadyReturned
	}

	// Serialize against concurrent issue/reserve/advance on this book.
	var bookID string
	if err := tx.GetContext(ctx, &bookID, `SELECT id FROM books WHERE id = $1 FOR UPDATE`, circ.BookID); err != nil {
		return nil, fmt.Errorf("failed to lock book row: %w", err)
	}

	daysOverdue := model.DaysOverdue(circ.DueDate, p.Now)
	fineAmount := decimal.Zero
	var fineRow *model.LibraryFine
	if daysOverdue > 0 {
		fineAmount = p.DailyRate.Mul(decimal.NewFromInt(int64(daysOverdue)))
		fineRow, err = upsertOverdueFine(ctx, tx, &circ, fineAmount, p.Now)
		if err != nil {
			return nil, err
		}
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE circulations
        SET status = 'returned', return_date = $2, returned_by = $3,
            condition_on_return = $4, fine = $5, updated_at = $2
        WHERE id = $1
    `, circ.ID, p.Now, p.ReturnedBy, p.Condition, fineAmount)
	if err != nil {
		return nil, fmt.Errorf("failed to close circulation: %w", err)
	}

	// Release the copy. Zero rows here means copy accounting is broken; the
	// whole transaction rolls back.
	res, err := tx.ExecContext(ctx, `
        UPDATE books
        SET available_copies = available_copies + 1,
            status = CASE WHEN status IN ('lost', 'withdrawn') THEN status ELSE 'available' END,
            updated_at = $2
        WHERE id = $1 AND available_copies < copies
    `, circ.BookID, p.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to release copy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("copy release for book %s would exceed total copies", circ.BookID)
	}

	promoted, err := reservationrepo.PromoteNext(ctx, tx, circ.BookID, p.Now, p.CollectionWindow)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	returned := circ
	returned.Status = model.CirculationStatusReturned
	returned.ReturnDate = &p.Now
	returned.ReturnedBy = &p.ReturnedBy
	returned.ConditionOnReturn = p.Condition
	returned.Fine = fineAmount
	returned.UpdatedAt = p.Now

	return &dto.ReturnOutcome{
		Circulation: &returned,
		Fine:        fineRow,
		Promoted:    promoted,
	}, nil
}

func (r *PGRepository) MarkLostTx(ctx context.Context, circulationID string, feeMultiplier int, now time.Time) (*model.LibraryFine, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var circ model.Circulation
	err = tx.GetContext(ctx, &circ, `SELECT * FROM circulations WHERE id = $1 FOR UPDATE`, circulationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, circulation.ErrCirculationNotFound
		}
		return nil, err
	}
	if !circ.Active() {
		return nil, circulation.ErrAlreadyReturned
	}

	var book model.Book
	if err := tx.GetContext(ctx, &book, `SELECT * FROM books WHERE id = $1 FOR UPDATE`, circ.BookID); err != nil {
		return nil, fmt.Errorf("failed to lock book row: %w", err)
	}

	replacementFee := book.Price.Mul(decimal.NewFromInt(int64(feeMultiplier)))

	_, err = tx.ExecContext(ctx, `
        UPDATE circulations
        SET status = 'lost', fine = $2, updated_at = $3
        WHERE id = $1
    `, circ.ID, replacementFee, now)
	if err != nil {
		return nil, fmt.Errorf("failed to mark circulation lost: %w", err)
	}

	// The lost copy is written off the total; the conservation identity
	// available + active == copies keeps holding.
	res, err := tx.ExecContext(ctx, `
        UPDATE books
        SET copies = copies - 1,
            status = CASE WHEN copies - 1 = 0 THEN 'lost' ELSE status END,
            updated_at = $2
        WHERE id = $1 AND copies - 1 >= available_copies
    `, circ.BookID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to write off lost copy: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("lost-copy write-off for book %s would drop below available copies", circ.BookID)
	}

	fine := &model.LibraryFine{
		ID:             uuid.New().String(),
		CirculationID:  &circ.ID,
		StudentID:      circ.StudentID,
		BookID:         circ.BookID,
		FineAmount:     replacementFee,
		PaidAmount:     decimal.Zero,
		WaivedAmount:   decimal.Zero,
		Balance:        replacementFee,
		FineReason:     model.FineReasonLost,
		Status:         model.FineStatusPending,
		LastReducingOp: model.ReducingOpNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := insertFine(ctx, tx, fine); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return fine, nil
}

func (r *PGRepository) MarkOverdue(ctx context.Context, circulationID string, now time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE circulations
        SET status = 'overdue', updated_at = $2
        WHERE id = $1 AND status IN ('borrowed', 'renewed') AND due_date < $2
    `, circulationID, now)
	if err != nil {
		return false, fmt.Errorf("failed to mark circulation overdue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *PGRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]model.Circulation, error) {
	var items []model.Circulation
	err := r.DB.SelectContext(ctx, &items, `
        SELECT * FROM circulations
        WHERE status IN ('borrowed', 'renewed', 'overdue') AND due_date < $1
        ORDER BY due_date ASC
    `, asOf)
	return items, err
}

// upsertOverdueFine creates or refreshes the overdue fine of a circulation
// inside the return transaction. Refreshing recomputes the amount from the
// current days overdue and reapplies the balance identity, so repeat calls
// with the same instant are idempotent.
func upsertOverdueFine(ctx context.Context, tx *sqlx.Tx, circ *model.Circulation, fineAmount decimal.Decimal, now time.Time) (*model.LibraryFine, error) {
	var existing model.LibraryFine
	err := tx.GetContext(ctx, &existing, `
        SELECT * FROM library_fines
        WHERE circulation_id = $1 AND fine_reason = 'overdue'
        FOR UPDATE
    `, circ.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		fine := &model.LibraryFine{
			ID:             uuid.New().String(),
			CirculationID:  &circ.ID,
			StudentID:      circ.StudentID,
			BookID:         circ.BookID,
			FineAmount:     fineAmount,
			PaidAmount:     decimal.Zero,
			WaivedAmount:   decimal.Zero,
			Balance:        fineAmount,
			FineReason:     model.FineReasonOverdue,
			Status:         model.FineStatusPending,
			LastReducingOp: model.ReducingOpNone,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := insertFine(ctx, tx, fine); err != nil {
			return nil, err
		}
		return fine, nil
	}

	existing.FineAmount = fineAmount
	existing.Recalculate()
	existing.UpdatedAt = now
	_, err = tx.ExecContext(ctx, `
        UPDATE library_fines
        SET fine_amount = $2, balance = $3, status = $4, updated_at = $5
        WHERE id = $1
    `, existing.ID, existing.FineAmount, existing.Balance, existing.Status, now)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh overdue fine: %w", err)
	}
	return &existing, nil
}

func insertFine(ctx context.Context, tx *sqlx.Tx, fine *model.LibraryFine) error {
	query := `
        INSERT INTO library_fines (
            id, circulation_id, student_id, book_id, fine_amount, paid_amount,
            waived_amount, balance, fine_reason, status, last_reducing_op,
            created_at, updated_at
        )
        VALUES (
            :id, :circulation_id, :student_id, :book_id, :fine_amount, :paid_amount,
            :waived_amount, :balance, :fine_reason, :status, :last_reducing_op,
            :created_at, :updated_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, query, fine); err != nil {
		return fmt.Errorf("failed to insert fine: %w", err)
	}
	return nil
}
