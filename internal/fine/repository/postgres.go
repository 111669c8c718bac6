package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/campushub/library-circulation-service/internal/fine"
	"github.com/campushub/library-circulation-service/internal/fine/dto"
	"github.com/campushub/library-circulation-service/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.LibraryFine, error) {
	var f model.LibraryFine
	err := r.DB.GetContext(ctx, &f, `SELECT * FROM library_fines WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fine.ErrFineNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *PGRepository) GetOverdueByCirculation(ctx context.Context, circulationID string) (*model.LibraryFine, error) {
	var f model.LibraryFine
	err := r.DB.GetContext(ctx, &f, `
        SELECT * FROM library_fines
        WHERE circulation_id = $1 AND fine_reason = 'overdue'
    `, circulationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.FineFilters) ([]model.LibraryFine, int, error) {
	var items []model.LibraryFine
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.StudentID != "" {
		conditions = append(conditions, "student_id = :student_id")
		args["student_id"] = f.StudentID
	}
	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}
	if f.Reason != "" {
		conditions = append(conditions, "fine_reason = :fine_reason")
		args["fine_reason"] = f.Reason
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM library_fines" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM library_fines" + whereClause + " ORDER BY created_at DESC"
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

func (r *PGRepository) Create(ctx context.Context, f *model.LibraryFine) error {
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
	if _, err := r.DB.NamedExecContext(ctx, query, f); err != nil {
		return fmt.Errorf("failed to insert fine: %w", err)
	}
	return nil
}

func (r *PGRepository) Update(ctx context.Context, f *model.LibraryFine) error {
	res, err := r.DB.NamedExecContext(ctx, `
        UPDATE library_fines
        SET fine_amount = :fine_amount, paid_amount = :paid_amount,
            waived_amount = :waived_amount, balance = :balance, status = :status,
            last_reducing_op = :last_reducing_op, updated_at = :updated_at
        WHERE id = :id
    `, f)
	if err != nil {
		return fmt.Errorf("failed to update fine: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fine.ErrFineNotFound
	}
	return nil
}

func (r *PGRepository) ApplyReductionTx(ctx context.Context, payment *model.FinePayment) (*model.LibraryFine, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var f model.LibraryFine
	err = tx.GetContext(ctx, &f, `SELECT * FROM library_fines WHERE id = $1 FOR UPDATE`, payment.FineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fine.ErrFineNotFound
		}
		return nil, err
	}

	// The locked row is authoritative: a return may have grown the amount
	// since the caller read the fine.
	if payment.Amount.GreaterThan(f.Balance) {
		return nil, fine.ErrExceedsBalance
	}

	payment.BalanceBefore = f.Balance
	switch payment.Type {
	case model.PaymentTypeWaiver:
		f.WaivedAmount = f.WaivedAmount.Add(payment.Amount)
		f.LastReducingOp = model.ReducingOpWaiver
	default:
		f.PaidAmount = f.PaidAmount.Add(payment.Amount)
		f.LastReducingOp = model.ReducingOpPayment
	}
	f.Recalculate()
	f.UpdatedAt = payment.CreatedAt
	payment.BalanceAfter = f.Balance

	_, err = tx.NamedExecContext(ctx, `
        UPDATE library_fines
        SET paid_amount = :paid_amount, waived_amount = :waived_amount,
            balance = :balance, status = :status,
            last_reducing_op = :last_reducing_op, updated_at = :updated_at
        WHERE id = :id
    `, &f)
	if err != nil {
		return nil, fmt.Errorf("failed to update fine: %w", err)
	}

	query := `
        INSERT INTO fine_payments (
            id, fine_id, type, amount, method, transaction_id,
            balance_before, balance_after, recorded_by, reason, created_at
        )
        VALUES (
            :id, :fine_id, :type, :amount, :method, :transaction_id,
            :balance_before, :balance_after, :recorded_by, :reason, :created_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, query, payment); err != nil {
		return nil, fmt.Errorf("failed to insert fine payment: %w", err)
	}

	// A settled overdue fine flips the paid flag on its circulation.
	if f.Balance.IsZero() && f.CirculationID != nil {
		_, err = tx.ExecContext(ctx, `
            UPDATE circulations SET fine_paid = true, updated_at = $2 WHERE id = $1
        `, *f.CirculationID, f.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to flag circulation fine as settled: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PGRepository) ListPayments(ctx context.Context, fineID string) ([]model.FinePayment, error) {
	var items []model.FinePayment
	err := r.DB.SelectContext(ctx, &items, `
        SELECT * FROM fine_payments WHERE fine_id = $1 ORDER BY created_at ASC
    `, fineID)
	return items, err
}

func (r *PGRepository) OutstandingByStudent(ctx context.Context, studentID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.DB.GetContext(ctx, &total, `
        SELECT COALESCE(SUM(balance), 0) FROM library_fines WHERE student_id = $1
    `, studentID)
	return total, err
}
