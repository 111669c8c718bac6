package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CirculationStatus string

const (
	CirculationStatusBorrowed CirculationStatus = "borrowed"
	CirculationStatusRenewed  CirculationStatus = "renewed"
	CirculationStatusReturned CirculationStatus = "returned"
	CirculationStatusOverdue  CirculationStatus = "overdue"
	CirculationStatusLost     CirculationStatus = "lost"
)

// Circulation is one issue-to-return lifecycle of a single copy. Rows are
// append-only audit records; they are status-transitioned, never deleted.
type Circulation struct {
	ID                string            `db:"id"`
	BookID            string            `db:"book_id"`
	StudentID         string            `db:"student_id"`
	IssueDate         time.Time         `db:"issue_date"`
	DueDate           time.Time         `db:"due_date"`
	ReturnDate        *time.Time        `db:"return_date"`
	Status            CirculationStatus `db:"status"`
	RenewalCount      int               `db:"renewal_count"`
	MaxRenewals       int               `db:"max_renewals"`
	ConditionOnIssue  BookCondition     `db:"condition_on_issue"`
	ConditionOnReturn *BookCondition    `db:"condition_on_return"`
	Fine              decimal.Decimal   `db:"fine"`
	FinePaid          bool              `db:"fine_paid"`
	IssuedBy          string            `db:"issued_by"`
	ReturnedBy        *string           `db:"returned_by"`
	CreatedAt         time.Time         `db:"created_at"`
	UpdatedAt         time.Time         `db:"updated_at"`
}

// Active reports whether the copy is still out. An overdue circulation is
// still active; the copy has not come back.
func (c *Circulation) Active() bool {
	switch c.Status {
	case CirculationStatusBorrowed, CirculationStatusRenewed, CirculationStatusOverdue:
		return true
	}
	return false
}

// DaysOverdue is the whole number of days asOf is past dueDate, 0 if not
// overdue. Computed lazily; the overdue status column is never the source of
// truth for the amount.
func DaysOverdue(dueDate, asOf time.Time) int {
	if !asOf.After(dueDate) {
		return 0
	}
	return int(asOf.Sub(dueDate).Hours() / 24)
}
