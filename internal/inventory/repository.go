package inventory

import (
	"context"
	"time"

	"github.com/campushub/library-circulation-service/internal/inventory/dto"
	"github.com/campushub/library-circulation-service/internal/model"
)

type Repository interface {
	Create(ctx context.Context, book *model.Book) error
	GetByID(ctx context.Context, id string) (*model.Book, error)
	GetByAccessionNumber(ctx context.Context, accessionNumber string) (*model.Book, error)
	FindAll(ctx context.Context, filters *dto.BookFilters) ([]model.Book, int, error)

	// DecrementAvailable and IncrementAvailable are guarded single-statement
	// updates: two concurrent callers can never overdraw below zero or
	// overfill above the total copy count.
	DecrementAvailable(ctx context.Context, bookID string, now time.Time) error
	IncrementAvailable(ctx context.Context, bookID string, now time.Time) error

	UpdateStatus(ctx context.Context, bookID string, status model.BookStatus, now time.Time) error
}
