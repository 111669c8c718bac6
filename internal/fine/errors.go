package fine

import "errors"

var (
	ErrFineNotFound   = errors.New("fine not found")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrExceedsBalance = errors.New("amount exceeds outstanding balance")
	ErrReasonRequired = errors.New("waiver reason is required")
)
