// Package ratelimit implements a per-caller fixed-window mutation limiter.
//
// This is a courtesy limiter protecting the proxy's own capacity. It is
// independent of, and stacked in front of, any rate limit the upstream
// API imposes; idempotent reads pass through uncounted.
package ratelimit

import (
	"sync"
	"time"
)

// Defaults for the mutation window.
const (
	DefaultWindow       = 60 * time.Second
	DefaultMaxMutations = 10
)

// record tracks mutation counts for one caller identity within the
// current window. count never decreases except via a window reset.
type record struct {
	count         int
	windowResetAt time.Time
}

// Limiter throttles non-idempotent requests per caller identity
// (typically the source address). Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	records map[string]*record

	now func() time.Time // injectable for tests
}

// New creates a Limiter with the given window length and mutation ceiling.
// Non-positive arguments fall back to the defaults.
func New(window time.Duration, maxMutations int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxMutations <= 0 {
		maxMutations = DefaultMaxMutations
	}
	return &Limiter{
		window:  window,
		max:     maxMutations,
		records: make(map[string]*record),
		now:     time.Now,
	}
}

// Allow checks and records one request from callerID. GET and HEAD are
// always allowed and never recorded. For all other methods the caller's
// record is created lazily, reset when its window has elapsed, and
// incremented only when the ceiling has not been reached.
func (l *Limiter) Allow(callerID, method string) bool {
	if method == "GET" || method == "HEAD" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	r, ok := l.records[callerID]
	if !ok {
		r = &record{windowResetAt: now.Add(l.window)}
		l.records[callerID] = r
	}
	if now.After(r.windowResetAt) {
		r.count = 0
		r.windowResetAt = now.Add(l.window)
	}
	if r.count >= l.max {
		return false
	}
	r.count++
	return true
}

// Size returns the number of tracked caller identities.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// EvictStale removes records whose window expired before cutoff and
// returns the eviction count. Without sweeping, the map grows by one
// record per distinct caller forever.
func (l *Limiter) EvictStale(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for id, r := range l.records {
		if r.windowResetAt.Before(cutoff) {
			delete(l.records, id)
			evicted++
		}
	}
	return evicted
}
