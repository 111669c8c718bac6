package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/campushub/library-circulation-service/internal/model"
)

func TestDaysOverdue(t *testing.T) {
	due := time.Date(2026, time.March, 10, 17, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, model.DaysOverdue(due, due.Add(-time.Hour)))
	assert.Equal(t, 0, model.DaysOverdue(due, due))
	// Partial days do not count until a full 24h has elapsed.
	assert.Equal(t, 0, model.DaysOverdue(due, due.Add(23*time.Hour)))
	assert.Equal(t, 1, model.DaysOverdue(due, due.Add(24*time.Hour)))
	assert.Equal(t, 3, model.DaysOverdue(due, due.Add(3*24*time.Hour+5*time.Hour)))
}

func TestCirculationActive(t *testing.T) {
	for _, s := range []model.CirculationStatus{
		model.CirculationStatusBorrowed,
		model.CirculationStatusRenewed,
		model.CirculationStatusOverdue,
	} {
		c := &model.Circulation{Status: s}
		assert.True(t, c.Active(), string(s))
	}
	for _, s := range []model.CirculationStatus{
		model.CirculationStatusReturned,
		model.CirculationStatusLost,
	} {
		c := &model.Circulation{Status: s}
		assert.False(t, c.Active(), string(s))
	}
}
