package circulation

import (
	"context"
	"time"

	"github.com/campushub/library-circulation-service/internal/circulation/dto"
	"github.com/campushub/library-circulation-service/internal/model"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*model.Circulation, error)
	FindAll(ctx context.Context, filters *dto.CirculationFilters) ([]model.Circulation, int, error)

	// CountActiveByStudent backs the borrowing-limit check; overdue loans
	// still count, the copies are out.
	CountActiveByStudent(ctx context.Context, studentID string) (int, error)
	HasActiveForBook(ctx context.Context, studentID, bookID string) (bool, error)

	// IssueTx takes a copy and opens the circulation row in one transaction.
	// The copy decrement is guarded, so concurrent issues cannot overdraw.
	IssueTx(ctx context.Context, circ *model.Circulation) error

	Renew(ctx context.Context, circ *model.Circulation) error

	// ReturnTx closes the circulation, upserts the overdue fine, releases the
	// copy, and promotes the next pending reservation atomically.
	ReturnTx(ctx context.Context, p *dto.CloseParams) (*dto.ReturnOutcome, error)

	// MarkLostTx closes the circulation as lost, writes the lost copy off the
	// book's total, and opens the replacement fine in one transaction.
	MarkLostTx(ctx context.Context, circulationID string, feeMultiplier int, now time.Time) (*model.LibraryFine, error)

	// MarkOverdue transitions borrowed/renewed past-due rows. Reports whether
	// the row actually transitioned, so repeat sweeps stay quiet.
	MarkOverdue(ctx context.Context, circulationID string, now time.Time) (bool, error)

	ListOverdue(ctx context.Context, asOf time.Time) ([]model.Circulation, error)
}
