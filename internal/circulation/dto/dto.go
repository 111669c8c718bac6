package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/campushub/library-circulation-service/internal/model"
)

type CirculationFilters struct {
	BookID    string
	StudentID string
	Status    model.CirculationStatus
	Page      int
	PageSize  int
}

// CloseParams carries everything the return transaction needs. Now is
// captured once by the usecase so the overdue computation and the fine use
// the same instant.
type CloseParams struct {
	CirculationID    string
	ReturnedBy       string
	Condition        *model.BookCondition
	Now              time.Time
	DailyRate        decimal.Decimal
	CollectionWindow time.Duration
}

// ReturnOutcome reports what the return transaction committed: the closed
// record, the overdue fine if one was materialized, and the reservation
// promoted to awaiting-pickup if the queue advanced.
type ReturnOutcome struct {
	Circulation *model.Circulation
	Fine        *model.LibraryFine
	Promoted    *model.Reservation
}
