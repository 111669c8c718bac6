package model_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/campushub/library-circulation-service/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFineBalance(t *testing.T) {
	assert.True(t, d("100").Equal(model.FineBalance(d("100"), d("0"), d("0"))))
	assert.True(t, d("40").Equal(model.FineBalance(d("100"), d("60"), d("0"))))
	assert.True(t, d("0").Equal(model.FineBalance(d("100"), d("60"), d("40"))))
}

func TestResolveFineStatus(t *testing.T) {
	tests := []struct {
		name   string
		fine   string
		paid   string
		waived string
		lastOp model.ReducingOp
		want   model.FineStatus
	}{
		{"untouched fine is pending", "100", "0", "0", model.ReducingOpNone, model.FineStatusPending},
		{"partial payment", "100", "60", "0", model.ReducingOpPayment, model.FineStatusPartial},
		{"partial waiver", "100", "0", "30", model.ReducingOpWaiver, model.FineStatusPartial},
		{"fully paid", "100", "100", "0", model.ReducingOpPayment, model.FineStatusPaid},
		{"fully waived", "100", "0", "100", model.ReducingOpWaiver, model.FineStatusWaived},
		{"mixed, waiver settled it", "100", "60", "40", model.ReducingOpWaiver, model.FineStatusWaived},
		{"mixed, payment settled it", "100", "40", "60", model.ReducingOpPayment, model.FineStatusPaid},
		{"zero fine stays pending", "0", "0", "0", model.ReducingOpNone, model.FineStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := model.ResolveFineStatus(d(tt.fine), d(tt.paid), d(tt.waived), tt.lastOp)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecalculate(t *testing.T) {
	f := &model.LibraryFine{
		FineAmount:     d("75"),
		PaidAmount:     d("25"),
		WaivedAmount:   d("0"),
		LastReducingOp: model.ReducingOpPayment,
	}
	f.Recalculate()
	assert.True(t, d("50").Equal(f.Balance))
	assert.Equal(t, model.FineStatusPartial, f.Status)

	// A grown overdue amount reopens a settled fine.
	f.PaidAmount = d("75")
	f.Recalculate()
	assert.Equal(t, model.FineStatusPaid, f.Status)

	f.FineAmount = d("90")
	f.Recalculate()
	assert.True(t, d("15").Equal(f.Balance))
	assert.Equal(t, model.FineStatusPartial, f.Status)
}
