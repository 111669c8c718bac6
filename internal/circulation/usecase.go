package circulation

import (
	"context"

	"github.com/campushub/library-circulation-service/internal/circulation/dto"
	"github.com/campushub/library-circulation-service/internal/model"
)

type UseCase interface {
	// Issue lends a copy to a student. Fails when no copy is free, the
	// student is at the borrowing limit, or the student already has this
	// title out.
	Issue(ctx context.Context, input *dto.IssueBookInput) (*model.Circulation, error)

	// Renew extends the due date by one borrowing period from now.
	Renew(ctx context.Context, circulationID string) (*model.Circulation, error)

	// Return closes the circulation, materializes any overdue fine, releases
	// the copy, and promotes the next reservation — in one transaction.
	Return(ctx context.Context, input *dto.ReturnBookInput) (*dto.ReturnOutcome, error)

	// DaysOverdue is computed lazily from the due date; 0 for closed records.
	DaysOverdue(ctx context.Context, circulationID string) (int, error)

	// MarkLost closes the circulation as lost and opens a replacement fine.
	MarkLost(ctx context.Context, circulationID string) (*model.LibraryFine, error)

	GetCirculation(ctx context.Context, id string) (*model.Circulation, error)
	ListCirculations(ctx context.Context, filters *dto.CirculationFilters) ([]model.Circulation, int, error)

	// OverdueSweep materializes the overdue status and refreshes fines for
	// loans past due. At-least-once safe.
	OverdueSweep(ctx context.Context) (int, error)
}
