package reservation

import (
	"context"
	"time"

	"github.com/campushub/library-circulation-service/internal/model"
	"github.com/campushub/library-circulation-service/internal/reservation/dto"
)

// Repository runs every queue mutation inside a transaction that locks the
// book row, so queue positions for one book are assigned and renumbered
// serially. Operations on different books proceed in parallel.
type Repository interface {
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	FindAll(ctx context.Context, filters *dto.ReservationFilters) ([]model.Reservation, int, error)

	// ReserveTx validates availability and uniqueness, assigns the next dense
	// queue position, and inserts the row.
	ReserveTx(ctx context.Context, res *model.Reservation) error

	// CancelTx cancels a pending or promoted reservation and renumbers the
	// remaining pending rows. Returns the cancelled row.
	CancelTx(ctx context.Context, id string, reason *string, now time.Time) (*model.Reservation, error)

	// AdvanceTx promotes the head of the pending queue when the book has a
	// free copy. Returns nil without error when there is nothing to do.
	AdvanceTx(ctx context.Context, bookID string, now time.Time, collectionWindow time.Duration) (*model.Reservation, error)

	// FulfillTx closes a promoted reservation within its collection window.
	FulfillTx(ctx context.Context, id string, now time.Time) (*model.Reservation, error)

	ListExpired(ctx context.Context, asOf time.Time) ([]model.Reservation, error)

	// ExpireTx transitions one overdue reservation to expired and renumbers
	// the book's pending rows. A no-op when the row is no longer expirable.
	ExpireTx(ctx context.Context, id string, now time.Time) (*model.Reservation, error)
}
