package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campushub/library-circulation-service/internal/inventory"
	"github.com/campushub/library-circulation-service/internal/inventory/dto"
	"github.com/campushub/library-circulation-service/internal/model"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, book *model.Book) error {
	query := `
        INSERT INTO books (
            id, accession_number, title, author, isbn, publisher, category,
            price, copies, available_copies, status, created_at, updated_at
        )
        VALUES (
            :id, :accession_number, :title, :author, :isbn, :publisher, :category,
            :price, :copies, :available_copies, :status, :created_at, :updated_at
        )
    `
	_, err := r.DB.NamedExecContext(ctx, query, book)
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Book, error) {
	var book model.Book
	err := r.DB.GetContext(ctx, &book, `SELECT * FROM books WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrBookNotFound
		}
		return nil, err
	}
	return &book, nil
}

func (r *PGRepository) GetByAccessionNumber(ctx context.Context, accessionNumber string) (*model.Book, error) {
	var book model.Book
	err := r.DB.GetContext(ctx, &book, `SELECT * FROM books WHERE accession_number = $1`, accessionNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, inventory.ErrBookNotFound
		}
		return nil, err
	}
	return &book, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.BookFilters) ([]model.Book, int, error) {
	var items []model.Book
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = f.Status
	}
	if f.Category != "" {
		conditions = append(conditions, "category = :category")
		args["category"] = f.Category
	}
	if f.Search != "" {
		conditions = append(conditions, "(title ILIKE :search OR author ILIKE :search)")
		args["search"] = "%" + f.Search + "%"
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM books" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM books" + whereClause + " ORDER BY title ASC"
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

// DecrementAvailable takes one copy. The availability guard lives in the
// WHERE clause so two concurrent issues can never both take the last copy.
func (r *PGRepository) DecrementAvailable(ctx context.Context, bookID string, now time.Time) error {
	query := `
        UPDATE books
        SET available_copies = available_copies - 1,
            status = CASE WHEN available_copies - 1 = 0 THEN 'borrowed' ELSE status END,
            updated_at = $2
        WHERE id = $1 AND available_copies > 0
    `
	res, err := r.DB.ExecContext(ctx, query, bookID, now)
	if err != nil {
		return fmt.Errorf("failed to decrement available copies: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, bookID); err != nil {
			return err
		}
		return inventory.ErrNotAvailable
	}
	return nil
}

// IncrementAvailable releases one copy. Lost and withdrawn flags take
// precedence over flipping the status back to available.
func (r *PGRepository) IncrementAvailable(ctx context.Context, bookID string, now time.Time) error {
	query := `
        UPDATE books
        SET available_copies = available_copies + 1,
            status = CASE WHEN status IN ('lost', 'withdrawn') THEN status ELSE 'available' END,
            updated_at = $2
        WHERE id = $1 AND available_copies < copies
    `
	res, err := r.DB.ExecContext(ctx, query, bookID, now)
	if err != nil {
		return fmt.Errorf("failed to increment available copies: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, bookID); err != nil {
			return err
		}
		return inventory.ErrOverCapacity
	}
	return nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, bookID string, status model.BookStatus, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE books SET status = $2, updated_at = $3 WHERE id = $1`,
		bookID, status, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update book status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return inventory.ErrBookNotFound
	}
	return nil
}
