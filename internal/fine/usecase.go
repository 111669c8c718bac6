package fine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/campushub/library-circulation-service/internal/fine/dto"
	"github.com/campushub/library-circulation-service/internal/model"
)

type UseCase interface {
	// OpenOrUpdateOverdueFine creates the overdue fine of a circulation or
	// recomputes its amount from the current days overdue. Fines grow while
	// the book stays out; repeat calls with the same days are idempotent.
	OpenOrUpdateOverdueFine(ctx context.Context, input *dto.OverdueFineInput) (*model.LibraryFine, error)

	// One-shot fines. These never grow over time.
	CreateLostFine(ctx context.Context, input *dto.LostFineInput) (*model.LibraryFine, error)
	CreateDamagedFine(ctx context.Context, input *dto.DamagedFineInput) (*model.LibraryFine, error)

	RecordPayment(ctx context.Context, input *dto.PaymentInput) (*model.LibraryFine, error)
	Waive(ctx context.Context, input *dto.WaiverInput) (*model.LibraryFine, error)

	GetFine(ctx context.Context, id string) (*model.LibraryFine, error)
	ListFines(ctx context.Context, filters *dto.FineFilters) ([]model.LibraryFine, int, error)
	ListPayments(ctx context.Context, fineID string) ([]model.FinePayment, error)
	OutstandingBalance(ctx context.Context, studentID string) (decimal.Decimal, error)
}
