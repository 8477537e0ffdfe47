package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestLimiter_CeilingWithinWindow(t *testing.T) {
	t.Parallel()
	l := New(time.Minute, 10)

	for i := range 10 {
		if !l.Allow("1.2.3.4", "POST") {
			t.Fatalf("mutation %d should be allowed", i+1)
		}
	}
	if l.Allow("1.2.3.4", "POST") {
		t.Error("11th mutation within the window should be denied")
	}
	// Denial must not increment: a later window reset still yields a full budget.
	if l.Allow("1.2.3.4", "DELETE") {
		t.Error("further mutations should stay denied within the window")
	}
}

func TestLimiter_WindowReset(t *testing.T) {
	t.Parallel()
	l := New(time.Minute, 10)
	current := time.Now()
	l.now = func() time.Time { return current }

	for range 10 {
		l.Allow("caller", "POST")
	}
	if l.Allow("caller", "POST") {
		t.Fatal("should be throttled")
	}

	// Advance past windowResetAt: next mutation is allowed with count 1.
	current = current.Add(61 * time.Second)
	if !l.Allow("caller", "POST") {
		t.Fatal("should be allowed after window reset")
	}
	if got := l.records["caller"].count; got != 1 {
		t.Errorf("count after reset = %d, want 1", got)
	}
}

func TestLimiter_IdempotentExemption(t *testing.T) {
	t.Parallel()
	l := New(time.Minute, 1)

	for i := range 100 {
		if !l.Allow("caller", "GET") {
			t.Fatalf("GET %d should never be throttled", i)
		}
		if !l.Allow("caller", "HEAD") {
			t.Fatalf("HEAD %d should never be throttled", i)
		}
	}
	if l.Size() != 0 {
		t.Errorf("idempotent requests must not create records, size = %d", l.Size())
	}

	// The full mutation budget is still available.
	if !l.Allow("caller", "POST") {
		t.Error("POST should be allowed, reads consumed nothing")
	}
}

func TestLimiter_PerCallerIsolation(t *testing.T) {
	t.Parallel()
	l := New(time.Minute, 2)

	l.Allow("a", "POST")
	l.Allow("a", "POST")
	if l.Allow("a", "POST") {
		t.Error("caller a should be throttled")
	}
	if !l.Allow("b", "POST") {
		t.Error("caller b has an independent budget")
	}
}

func TestLimiter_EvictStale(t *testing.T) {
	t.Parallel()
	l := New(time.Minute, 10)
	current := time.Now()
	l.now = func() time.Time { return current }

	for i := range 5 {
		l.Allow(fmt.Sprintf("caller-%d", i), "POST")
	}
	if l.Size() != 5 {
		t.Fatalf("size = %d, want 5", l.Size())
	}

	// All windows reset at current+60s; sweep with a later cutoff.
	evicted := l.EvictStale(current.Add(10 * time.Minute))
	if evicted != 5 {
		t.Errorf("evicted = %d, want 5", evicted)
	}
	if l.Size() != 0 {
		t.Errorf("size after sweep = %d, want 0", l.Size())
	}

	// A swept caller starts over with a fresh record.
	if !l.Allow("caller-0", "POST") {
		t.Error("swept caller should be allowed again")
	}
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	l := New(time.Minute, 1000)

	var wg sync.WaitGroup
	allowed := make([]int, 8)
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if l.Allow("shared", "POST") {
					allowed[g]++
				}
			}
		}()
	}
	wg.Wait()

	total := 0
	for _, n := range allowed {
		total += n
	}
	if total != 800 {
		t.Errorf("allowed = %d, want 800 (ceiling not reached)", total)
	}
	if got := l.records["shared"].count; got != 800 {
		t.Errorf("count = %d, want 800", got)
	}
}
