package inventory

import (
	"context"

	"github.com/campushub/library-circulation-service/internal/inventory/dto"
	"github.com/campushub/library-circulation-service/internal/model"
)

type UseCase interface {
	AddBook(ctx context.Context, input *dto.AddBookInput) (*model.Book, error)
	GetBook(ctx context.Context, id string) (*model.Book, error)
	ListBooks(ctx context.Context, filters *dto.BookFilters) ([]model.Book, int, error)

	// Copy accounting. These are the only paths that mutate AvailableCopies.
	DecrementAvailable(ctx context.Context, bookID string) error
	IncrementAvailable(ctx context.Context, bookID string) error
	IsAvailable(ctx context.Context, bookID string) (bool, error)

	// Status flags. Lost/withdrawn take precedence over availability.
	MarkLost(ctx context.Context, bookID string) error
	MarkDamaged(ctx context.Context, bookID string) error
	Withdraw(ctx context.Context, bookID string) error
}
