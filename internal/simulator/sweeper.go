package simulator

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically runs the idle/retention sweep.
type Sweeper struct {
	sim      *Simulator
	interval time.Duration
	log      *slog.Logger
}

// NewSweeper constructs a sweeper. A non-positive interval falls back to
// one minute.
func NewSweeper(sim *Simulator, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{sim: sim, interval: interval, log: log}
}

// Start runs the sweep periodically until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.sim.RunSweep(ctx); err != nil {
				s.log.ErrorContext(ctx, "presence sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
