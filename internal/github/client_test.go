package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	hubfolio "github.com/hubfolio/hubfolio/internal"
)

// newTestClient returns a client pointed at url with sleeps recorded
// instead of slept, so retry sequences run instantly.
func newTestClient(t *testing.T, url string) (*Client, *[]time.Duration) {
	t.Helper()
	c, err := New(url, nil, Options{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestFetch_RetriesTransientFailures(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv.URL)
	data, err := c.fetch(context.Background(), http.MethodGet, "/api/thing", nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("data = %s", data)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	// Two backoff delays, exponentially increasing.
	if len(*slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(*slept))
	}
	if (*slept)[1] < (*slept)[0] {
		t.Errorf("delays %v must be non-decreasing", *slept)
	}
}

func TestFetch_ExhaustsAttemptBudget(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	if _, err := c.fetch(context.Background(), http.MethodGet, "/api/thing", nil); err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want exactly the 3-attempt budget", calls.Load())
	}
}

func TestFetch_NotFoundIsTerminal(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv.URL)
	_, err := c.fetch(context.Background(), http.MethodGet, "/api/missing", nil)
	if !errors.Is(err, hubfolio.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, 404 must not be retried", calls.Load())
	}
	if len(*slept) != 0 {
		t.Errorf("slept = %v, 404 must not back off", *slept)
	}
}

func TestFetch_RateLimitWaitUsesResetHint(t *testing.T) {
	t.Parallel()
	now := time.Now()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set(hubfolio.HeaderRateLimitRemaining, "0")
			w.Header().Set(hubfolio.HeaderRateLimitReset, strconv.FormatInt(now.Add(5*time.Second).Unix(), 10))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv.URL)
	c.now = func() time.Time { return now }

	if _, err := c.fetch(context.Background(), http.MethodGet, "/api/thing", nil); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(*slept) != 1 {
		t.Fatalf("slept %d times, want 1", len(*slept))
	}
	// Wait ≈5s from the reset hint, not the 60s fallback, not normal backoff.
	if wait := (*slept)[0]; wait < 4*time.Second || wait > 6*time.Second {
		t.Errorf("wait = %v, want about 5s from reset hint", wait)
	}
}

func TestFetch_RateLimitWaitClampedToMaxDelay(t *testing.T) {
	t.Parallel()
	now := time.Now()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set(hubfolio.HeaderRateLimitRemaining, "0")
			w.Header().Set(hubfolio.HeaderRateLimitReset, strconv.FormatInt(now.Add(time.Hour).Unix(), 10))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c, slept := newTestClient(t, srv.URL)
	c.now = func() time.Time { return now }

	if _, err := c.fetch(context.Background(), http.MethodGet, "/api/thing", nil); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if wait := (*slept)[0]; wait != c.opts.MaxDelay {
		t.Errorf("wait = %v, want clamp to max delay %v", wait, c.opts.MaxDelay)
	}
}

func TestFetch_TimeoutCountsAsAttempt(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, nil, Options{Timeout: 30 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	c.sleep = func(context.Context, time.Duration) error { return nil }

	if _, err := c.fetch(context.Background(), http.MethodGet, "/api/slow", nil); err == nil {
		t.Fatal("expected exhaustion error")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, each timeout should consume one attempt", calls.Load())
	}
}

func TestRepos_FallbackOnFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	repos := c.Repos(context.Background(), "ghost")
	if repos == nil {
		t.Fatal("fallback must be a non-nil slice")
	}
	if len(repos) != 0 {
		t.Errorf("repos = %v, want empty fallback", repos)
	}
}

func TestRepos_ParsesAndMemoizes(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `[{"id":1,"name":"widget","stargazers_count":7}]`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	repos := c.Repos(context.Background(), "acme")
	if len(repos) != 1 || repos[0].Name != "widget" || repos[0].Stars != 7 {
		t.Fatalf("repos = %+v", repos)
	}

	// otter processes Set asynchronously; wait briefly.
	time.Sleep(50 * time.Millisecond)
	c.Repos(context.Background(), "acme")
	if calls.Load() != 1 {
		t.Errorf("calls = %d, second read should come from the memo", calls.Load())
	}
}

func TestRateLimit_ParsesCoreResource(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"resources":{"core":{"limit":5000,"used":12,"remaining":4988,"reset":1735689600}}}`)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	rl := c.RateLimit(context.Background())
	if rl == nil {
		t.Fatal("want snapshot")
	}
	if rl.Limit != 5000 || rl.Remaining != 4988 || rl.Used != 12 {
		t.Errorf("snapshot = %+v", rl)
	}
}

func TestSaveCollection_MergeBeforeWrite(t *testing.T) {
	t.Parallel()
	var persisted []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			fmt.Fprint(w, `[{"id":1,"title":"A"},{"id":2,"title":"B"}]`)
		case http.MethodPut:
			persisted, _ = io.ReadAll(r.Body)
			fmt.Fprint(w, `{}`)
		}
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)
	merged, err := c.SaveCollection(context.Background(), "todos",
		[]json.RawMessage{json.RawMessage(`{"id":1,"title":"A"}`)})
	if err != nil {
		t.Fatalf("SaveCollection: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("merged = %s, remote item 2 must survive the write", merged)
	}

	var got []json.RawMessage
	if err := json.Unmarshal(persisted, &got); err != nil {
		t.Fatalf("persisted body malformed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("persisted = %s, want both items", persisted)
	}
}
