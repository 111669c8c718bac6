package sweep

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/campushub/library-circulation-service/internal/circulation"
	"github.com/campushub/library-circulation-service/internal/reservation"
	"github.com/campushub/library-circulation-service/pkg/logger"
)

// Sweeper periodically materializes overdue circulations and expires stale
// reservations. Both sweeps are idempotent, so an interrupted run is simply
// redone on the next tick.
type Sweeper struct {
	circulations circulation.UseCase
	reservations reservation.UseCase
	interval     time.Duration
	logger       logger.Logger
}

func NewSweeper(
	circulations circulation.UseCase,
	reservations reservation.UseCase,
	interval time.Duration,
	log logger.Logger,
) *Sweeper {
	return &Sweeper{
		circulations: circulations,
		reservations: reservations,
		interval:     interval,
		logger:       log,
	}
}

// Start runs one sweep immediately, then on every tick until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("sweeper started", zap.Duration("interval", s.interval))

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) {
	start := time.Now()

	overdue, err := s.circulations.OverdueSweep(ctx)
	if err != nil {
		s.logger.Error("overdue sweep failed", zap.Error(err))
	}

	expired, err := s.reservations.ExpireSweep(ctx)
	if err != nil {
		s.logger.Error("reservation expiry sweep failed", zap.Error(err))
	}

	s.logger.Info("sweep completed",
		zap.Int("overdue_marked", overdue),
		zap.Int("reservations_expired", expired),
		zap.Duration("took", time.Since(start)),
	)
}
