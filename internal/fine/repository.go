package fine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/campushub/library-circulation-service/internal/fine/dto"
	"github.com/campushub/library-circulation-service/internal/model"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*model.LibraryFine, error)

	// GetOverdueByCirculation returns nil without error when the circulation
	// has no overdue fine yet.
	GetOverdueByCirculation(ctx context.Context, circulationID string) (*model.LibraryFine, error)

	FindAll(ctx context.Context, filters *dto.FineFilters) ([]model.LibraryFine, int, error)
	Create(ctx context.Context, fine *model.LibraryFine) error
	Update(ctx context.Context, fine *model.LibraryFine) error

	// ApplyReductionTx persists a payment or waiver. The fine row is re-read
	// under a row lock and the reduction applied against its current amounts,
	// so a concurrently refreshed overdue amount is never overwritten with
	// stale values. The audit row insert commits with the update, and a
	// settled overdue fine also flips fine_paid on its circulation.
	ApplyReductionTx(ctx context.Context, payment *model.FinePayment) (*model.LibraryFine, error)

	ListPayments(ctx context.Context, fineID string) ([]model.FinePayment, error)
	OutstandingByStudent(ctx context.Context, studentID string) (decimal.Decimal, error)
}
