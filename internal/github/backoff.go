package github

import (
	"context"
	"time"
)

// backoffPolicy computes exponential retry delays: base * 2^attempt,
// capped at max. Attempt 0 is the first retry's delay; no delay is
// applied before the first attempt.
type backoffPolicy struct {
	base time.Duration
	max  time.Duration
}

func (p backoffPolicy) delay(attempt int) time.Duration {
	d := p.base << attempt
	if d <= 0 || d > p.max {
		return p.max
	}
	return d
}

// sleepCtx blocks for d or until ctx is cancelled, whichever comes
// first. Cancellation returns the context's error so an in-flight retry
// sequence can be abandoned deterministically.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
