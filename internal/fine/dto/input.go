package dto

import (
	"github.com/shopspring/decimal"

	"github.com/campushub/library-circulation-service/internal/model"
)

type OverdueFineInput struct {
	CirculationID string
	StudentID     string
	BookID        string
	DaysOverdue   int
}

type LostFineInput struct {
	CirculationID *string // nil for a copy lost outside a circulation
	StudentID     string
	BookID        string
	BookPrice     decimal.Decimal
}

type DamagedFineInput struct {
	CirculationID *string
	StudentID     string
	BookID        string
}

type PaymentInput struct {
	FineID        string
	Amount        decimal.Decimal
	Method        model.PaymentMethod
	TransactionID *string
	RecordedBy    string
}

type WaiverInput struct {
	FineID   string
	Amount   decimal.Decimal
	WaivedBy string
	Reason   string
}
