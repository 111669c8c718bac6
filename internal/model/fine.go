package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type FineStatus string

const (
	FineStatusPending FineStatus = "pending"
	FineStatusPartial FineStatus = "partial"
	FineStatusPaid    FineStatus = "paid"
	FineStatusWaived  FineStatus = "waived"
)

type FineReason string

const (
	FineReasonOverdue FineReason = "overdue"
	FineReasonLost    FineReason = "lost"
	FineReasonDamaged FineReason = "damaged"
)

// ReducingOp records which kind of operation last reduced a fine's balance.
// It breaks the tie when a mix of payments and waivers drives the balance to
// zero: the final status follows the last reducing operation.
type ReducingOp string

const (
	ReducingOpNone    ReducingOp = ""
	ReducingOpPayment ReducingOp = "payment"
	ReducingOpWaiver  ReducingOp = "waiver"
)

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodOnline PaymentMethod = "online"
)

// LibraryFine is a monetary penalty record. Overdue fines are recomputed from
// days-overdue while the book stays out; lost and damaged fines are one-shot.
// Rows are never deleted.
type LibraryFine struct {
	ID             string          `db:"id"`
	CirculationID  *string         `db:"circulation_id"`
	StudentID      string          `db:"student_id"`
	BookID         string          `db:"book_id"`
	FineAmount     decimal.Decimal `db:"fine_amount"`
	PaidAmount     decimal.Decimal `db:"paid_amount"`
	WaivedAmount   decimal.Decimal `db:"waived_amount"`
	Balance        decimal.Decimal `db:"balance"`
	FineReason     FineReason      `db:"fine_reason"`
	Status         FineStatus      `db:"status"`
	LastReducingOp ReducingOp      `db:"last_reducing_op"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// FineBalance is the balance identity: balance = fineAmount - paid - waived.
func FineBalance(fineAmount, paidAmount, waivedAmount decimal.Decimal) decimal.Decimal {
	return fineAmount.Sub(paidAmount).Sub(waivedAmount)
}

// ResolveFineStatus derives the status from the amounts. It is a pure
// function applied at every mutation site; the status column is never
// maintained by a persistence hook.
func ResolveFineStatus(fineAmount, paidAmount, waivedAmount decimal.Decimal, lastOp ReducingOp) FineStatus {
	balance := FineBalance(fineAmount, paidAmount, waivedAmount)
	switch {
	case balance.IsZero() && fineAmount.IsPositive():
		if lastOp == ReducingOpWaiver {
			return FineStatusWaived
		}
		return FineStatusPaid
	case paidAmount.IsPositive() || waivedAmount.IsPositive():
		return FineStatusPartial
	default:
		return FineStatusPending
	}
}

// Recalculate reapplies the balance identity and status function after any
// amount change.
func (f *LibraryFine) Recalculate() {
	f.Balance = FineBalance(f.FineAmount, f.PaidAmount, f.WaivedAmount)
	f.Status = ResolveFineStatus(f.FineAmount, f.PaidAmount, f.WaivedAmount, f.LastReducingOp)
}

type PaymentType string

const (
	PaymentTypePayment PaymentType = "payment"
	PaymentTypeWaiver  PaymentType = "waiver"
)

// FinePayment is the audit row written alongside every payment or waiver,
// with the balance before and after the reduction.
type FinePayment struct {
	ID            string          `db:"id"`
	FineID        string          `db:"fine_id"`
	Type          PaymentType     `db:"type"`
	Amount        decimal.Decimal `db:"amount"`
	Method        *PaymentMethod  `db:"method"`
	TransactionID *string         `db:"transaction_id"`
	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`
	RecordedBy    string          `db:"recorded_by"`
	Reason        *string         `db:"reason"`
	CreatedAt     time.Time       `db:"created_at"`
}
