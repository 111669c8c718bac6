package circulation

import "errors"

var (
	ErrCirculationNotFound    = errors.New("circulation record not found")
	ErrBookNotFound           = errors.New("book not found")
	ErrBookUnavailable        = errors.New("no available copy to issue")
	ErrBorrowingLimitExceeded = errors.New("student has reached the borrowing limit")
	ErrDuplicateIssue         = errors.New("student already has an active circulation for this book")
	ErrRenewalLimitExceeded   = errors.New("renewal limit reached")
	ErrNotBorrowed            = errors.New("circulation is not in a renewable state")
	ErrAlreadyReturned        = errors.New("circulation is already closed")
	ErrInvalidDueDate         = errors.New("due date must be after the issue date")
	ErrInvalidCondition       = errors.New("unknown book condition")
)
