package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hubfolio/hubfolio/internal/ratelimit"
)

// Sweeper periodically drops limiter records whose window closed long
// ago, keeping the per-caller map bounded under churning client IPs.
type Sweeper struct {
	limiter  *ratelimit.Limiter
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

// NewSweeper creates a Sweeper that runs every interval and evicts
// records idle for longer than maxAge.
func NewSweeper(limiter *ratelimit.Limiter, interval, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		limiter:  limiter,
		interval: interval,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Run sweeps on a ticker until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.sweep(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Sweeper) sweep(ctx context.Context) {
	evicted := w.limiter.EvictStale(w.now().Add(-w.maxAge))
	if evicted > 0 {
		slog.LogAttrs(ctx, slog.LevelDebug, "limiter records evicted",
			slog.Int("count", evicted),
			slog.Int("remaining", w.limiter.Size()),
		)
	}
}
