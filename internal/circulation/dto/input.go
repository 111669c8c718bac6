package dto

import (
	"time"

	"github.com/campushub/library-circulation-service/internal/model"
)

type IssueBookInput struct {
	BookID           string
	StudentID        string
	IssuedBy         string
	DueDate          *time.Time // defaults to issue date + borrowing period
	ConditionOnIssue model.BookCondition
}

type ReturnBookInput struct {
	CirculationID string
	ReturnedBy    string
	Condition     *model.BookCondition
}
