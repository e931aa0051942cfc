package service

import (
	"context"
	"time"

	"github.com/diagnosis/seat-reservations/pkg/events"
	"github.com/diagnosis/seat-reservations/pkg/logger"
	"github.com/diagnosis/seat-reservations/services/reservations/internal/repository"
)

// Sweeper deletes pending reservations whose hold has lapsed. Every read
// path already ignores expired rows, so a missed sweep only costs storage.
type Sweeper struct {
	pending  repository.PendingRepository
	bus      events.Publisher
	interval time.Duration
	now      func() time.Time
}

func NewSweeper(pending repository.PendingRepository, bus events.Publisher, interval time.Duration) *Sweeper {
	return &Sweeper{pending: pending, bus: bus, interval: interval, now: time.Now}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info("Pending sweep started", "interval", s.interval.String())
	for {
		if _, err := s.SweepOnce(ctx); err != nil {
			logger.Error("Pending sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			logger.Info("Pending sweep stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.pending.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	logger.Info("Expired pending reservations removed", "deleted", n)
	if err := s.bus.Publish(ctx, events.PendingSweptBatch, events.PendingSweptEvent{Deleted: n, SweptAt: now.UTC()}); err != nil {
		logger.Warn("Failed to publish sweep event", "error", err)
	}
	return n, nil
}
