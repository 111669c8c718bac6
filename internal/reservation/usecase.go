package reservation

import (
	"context"

	"github.com/campushub/library-circulation-service/internal/model"
	"github.com/campushub/library-circulation-service/internal/reservation/dto"
)

type UseCase interface {
	// Reserve joins the waiting queue of a book with no free copies.
	Reserve(ctx context.Context, input *dto.ReserveInput) (*model.Reservation, error)

	// Advance promotes the head of the queue to awaiting-pickup when a free
	// copy exists. Idempotent: a no-op without a pending row or a free copy.
	Advance(ctx context.Context, bookID string) (*model.Reservation, error)

	// Fulfill closes a promoted reservation when the student collects the copy.
	Fulfill(ctx context.Context, reservationID string) (*model.Reservation, error)

	// Cancel withdraws a pending or promoted reservation and renumbers the
	// remaining queue.
	Cancel(ctx context.Context, input *dto.CancelInput) (*model.Reservation, error)

	// ExpireSweep expires overdue pickups and stale pending requests, then
	// re-advances the affected books. Safe to re-run.
	ExpireSweep(ctx context.Context) (int, error)

	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	ListReservations(ctx context.Context, filters *dto.ReservationFilters) ([]model.Reservation, int, error)
}
