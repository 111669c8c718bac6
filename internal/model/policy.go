package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy carries the circulation business constants. All values are loaded
// from configuration; nothing in the engine hard-codes them.
type Policy struct {
	BorrowingPeriodDays       int
	MaxRenewals               int
	BorrowingLimit            int
	DailyFineRate             decimal.Decimal
	LostFeeMultiplier         int
	DamagedFee                decimal.Decimal
	ReservationPendingDays    int
	ReservationCollectionDays int
}

func DefaultPolicy() Policy {
	return Policy{
		BorrowingPeriodDays:       14,
		MaxRenewals:               2,
		BorrowingLimit:            3,
		DailyFineRate:             decimal.NewFromInt(5),
		LostFeeMultiplier:         2,
		DamagedFee:                decimal.NewFromInt(25),
		ReservationPendingDays:    30,
		ReservationCollectionDays: 3,
	}
}

func (p Policy) BorrowingPeriod() time.Duration {
	return time.Duration(p.BorrowingPeriodDays) * 24 * time.Hour
}

// PendingWindow is how long an uncollected pending reservation stays open.
func (p Policy) PendingWindow() time.Duration {
	return time.Duration(p.ReservationPendingDays) * 24 * time.Hour
}

// CollectionWindow is how long a promoted reservation waits for pickup.
func (p Policy) CollectionWindow() time.Duration {
	return time.Duration(p.ReservationCollectionDays) * 24 * time.Hour
}
