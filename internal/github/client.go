// Package github implements the resilient client half of the proxy
// pairing: timeout-bounded requests with exponential backoff, upstream
// rate-limit aware waits, and well-formed fallback results. Callers
// point it at the hubfolio proxy, never at the upstream API directly.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/tidwall/gjson"

	hubfolio "github.com/hubfolio/hubfolio/internal"
	"github.com/hubfolio/hubfolio/internal/collection"
)

const (
	// defaultRateLimitWait applies when a 403 carries no usable reset hint.
	defaultRateLimitWait = 60 * time.Second

	// memoTTL absorbs fetch storms from UI re-renders without a network hop.
	memoTTL     = 30 * time.Second
	memoMaxSize = 256

	maxResponseBody = 8 << 20
)

// Options configures the client's retry behavior.
type Options struct {
	MaxAttempts int           // total attempt budget, default 3
	BaseDelay   time.Duration // first backoff delay, default 500ms
	MaxDelay    time.Duration // cap for backoff and rate-limit waits, default 10s
	Timeout     time.Duration // per-attempt bound, default 10s
}

func (o *Options) applyDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 500 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 10 * time.Second
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
}

// Client issues requests through the hubfolio proxy with retries.
// Exported accessors never propagate raw errors: on 404 or attempt
// exhaustion they return a defined fallback so the UI always receives a
// well-formed (possibly degraded) result.
type Client struct {
	baseURL string
	http    *http.Client
	opts    Options
	policy  backoffPolicy
	memo    *otter.Cache[string, []byte]

	now   func() time.Time
	sleep func(context.Context, time.Duration) error // injectable for tests
}

// New creates a Client for the proxy at baseURL. A nil httpClient gets
// a pooled transport.
func New(baseURL string, httpClient *http.Client, opts Options) (*Client, error) {
	opts.applyDefaults()
	if httpClient == nil {
		httpClient = &http.Client{Transport: NewTransport(nil)}
	}
	memo, err := otter.New(&otter.Options[string, []byte]{
		MaximumSize:      memoMaxSize,
		ExpiryCalculator: otter.ExpiryWriting[string, []byte](memoTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create memo cache: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		opts:    opts,
		policy:  backoffPolicy{base: opts.BaseDelay, max: opts.MaxDelay},
		memo:    memo,
		now:     time.Now,
		sleep:   sleepCtx,
	}, nil
}

// fetch runs one logical request with the full retry budget.
// 404 is terminal (hubfolio.ErrNotFound); a 403 carrying a
// zero-remaining rate-limit signal waits out the upstream reset instead
// of taking the normal backoff delay but still consumes an attempt;
// transport errors and other failure statuses back off exponentially.
func (c *Client) fetch(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := range c.opts.MaxAttempts {
		if attempt > 0 {
			// Delay was already applied at the end of the previous attempt.
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		data, retryIn, err := c.attempt(ctx, method, path, body)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, hubfolio.ErrNotFound) {
			return nil, err
		}
		lastErr = err

		if attempt == c.opts.MaxAttempts-1 {
			break
		}
		if retryIn < 0 {
			retryIn = c.policy.delay(attempt)
		}
		slog.LogAttrs(ctx, slog.LevelWarn, "request failed, retrying",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempt", attempt),
			slog.Int64("retry_in_ms", retryIn.Milliseconds()),
			slog.String("error", err.Error()),
		)
		if serr := c.sleep(ctx, retryIn); serr != nil {
			return nil, serr
		}
	}
	return nil, fmt.Errorf("attempts exhausted: %w", lastErr)
}

// attempt performs a single timeout-bounded request. retryIn < 0 means
// the caller should use its normal backoff delay.
func (c *Client) attempt(ctx context.Context, method, path string, body []byte) (data []byte, retryIn time.Duration, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, -1, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Includes per-attempt timeouts; both are retryable.
		return nil, -1, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, 0, hubfolio.ErrNotFound

	case resp.StatusCode == http.StatusForbidden && rateLimitExhausted(resp.Header):
		io.Copy(io.Discard, resp.Body)
		return nil, c.rateLimitWait(resp.Header), fmt.Errorf("upstream rate limited: %w", hubfolio.ErrRateLimited)

	case resp.StatusCode >= 400:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, -1, fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet)
	}

	data, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, -1, fmt.Errorf("read response: %w", err)
	}
	return data, 0, nil
}

// rateLimitExhausted reports whether the response signals a depleted
// upstream quota (403 with zero remaining).
func rateLimitExhausted(h http.Header) bool {
	return h.Get(hubfolio.HeaderRateLimitRemaining) == "0"
}

// rateLimitWait computes how long to wait for the upstream window to
// reset, clamped to the backoff cap, falling back to a fixed default
// when the reset hint is absent or in the past.
func (c *Client) rateLimitWait(h http.Header) time.Duration {
	wait := defaultRateLimitWait
	if raw := h.Get(hubfolio.HeaderRateLimitReset); raw != "" {
		if reset, err := strconv.ParseInt(raw, 10, 64); err == nil {
			if until := time.Unix(reset, 0).Sub(c.now()); until > 0 {
				wait = until
			}
		}
	}
	return min(wait, c.opts.MaxDelay)
}

// --- Typed accessors ---

// Repos returns public repository metadata for user via the proxy's
// read path. The fallback result is an empty, non-nil slice.
func (c *Client) Repos(ctx context.Context, user string) []hubfolio.Repo {
	path := "/api/users/" + user + "/repos?sort=pushed&per_page=100"

	data, ok := c.memo.GetIfPresent(path)
	if !ok {
		var err error
		data, err = c.fetch(ctx, http.MethodGet, path, nil)
		if err != nil {
			slog.LogAttrs(ctx, slog.LevelWarn, "repos fetch failed, returning fallback",
				slog.String("user", user),
				slog.String("error", err.Error()),
			)
			return []hubfolio.Repo{}
		}
		c.memo.Set(path, data)
	}

	var repos []hubfolio.Repo
	if err := json.Unmarshal(data, &repos); err != nil {
		slog.Warn("repos response malformed", "user", user, "error", err)
		return []hubfolio.Repo{}
	}
	return repos
}

// RateLimit returns the upstream core rate-limit snapshot, or nil when
// it cannot be fetched.
func (c *Client) RateLimit(ctx context.Context) *hubfolio.RateLimitInfo {
	data, err := c.fetch(ctx, http.MethodGet, "/api/rate_limit", nil)
	if err != nil {
		return nil
	}
	core := gjson.GetBytes(data, "resources.core")
	if !core.Exists() {
		return nil
	}
	return &hubfolio.RateLimitInfo{
		Used:      core.Get("used").Int(),
		Remaining: core.Get("remaining").Int(),
		Limit:     core.Get("limit").Int(),
		Reset:     core.Get("reset").Int(),
	}
}

// Collection returns the named remote collection. The fallback result
// is an empty, non-nil slice.
func (c *Client) Collection(ctx context.Context, name string) []json.RawMessage {
	data, err := c.fetch(ctx, http.MethodGet, "/collections/"+name, nil)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "collection fetch failed, returning fallback",
			slog.String("collection", name),
			slog.String("error", err.Error()),
		)
		return []json.RawMessage{}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return []json.RawMessage{}
	}
	return items
}

// SaveCollection persists items using merge-before-write: the current
// remote collection is fetched and unioned with the local one so the
// write cannot silently delete concurrently-added remote items. The
// merged, deduplicated, deterministically sorted result is what gets
// persisted and returned.
func (c *Client) SaveCollection(ctx context.Context, name string, items []json.RawMessage) ([]json.RawMessage, error) {
	remote := c.Collection(ctx, name)
	merged := collection.Merge(items, remote)

	body, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal collection %q: %w", name, err)
	}
	if _, err := c.fetch(ctx, http.MethodPut, "/collections/"+name, body); err != nil {
		return nil, fmt.Errorf("save collection %q: %w", name, err)
	}
	return merged, nil
}
