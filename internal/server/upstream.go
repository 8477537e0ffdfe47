package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	hubfolio "github.com/hubfolio/hubfolio/internal"
	"github.com/hubfolio/hubfolio/internal/auth"
	"github.com/hubfolio/hubfolio/internal/circuitbreaker"
)

// Upstream API header values. The version pin keeps response shapes
// stable across upstream rollouts.
const (
	acceptMediaType  = "application/vnd.github+json"
	apiVersion       = "2022-11-28"
	apiVersionHeader = "X-GitHub-Api-Version"
)

// Upstream performs the proxy's outbound calls to the GitHub REST API.
type Upstream struct {
	BaseURL string
	Cred    *auth.Credential // nil = unauthenticated (reduced upstream quota)
	HTTP    *http.Client
	Timeout time.Duration           // bound on each upstream call
	Breaker *circuitbreaker.Breaker // nil = no short-circuiting
}

// do issues one upstream request. The ctx should already carry the
// upstream timeout; callers own resp.Body.
func (u *Upstream) do(ctx context.Context, method, target string, body []byte, contentType, etag string) (*http.Response, error) {
	if u.Breaker != nil && !u.Breaker.Allow() {
		return nil, fmt.Errorf("upstream circuit open: %w", hubfolio.ErrUpstream)
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}

	req.Header.Set("Accept", acceptMediaType)
	req.Header.Set(apiVersionHeader, apiVersion)
	if u.Cred != nil {
		req.Header.Set("Authorization", u.Cred.Header())
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := u.HTTP.Do(req)
	if u.Breaker != nil {
		if err != nil {
			u.Breaker.RecordError(circuitbreaker.Weigh(0, err))
		} else {
			u.Breaker.RecordError(circuitbreaker.Weigh(resp.StatusCode, nil))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("upstream %s %s: %w", method, target, err)
	}
	return resp, nil
}

// RateLimitSnapshot fetches the current upstream core rate limit.
// Always a live call: the health endpoint reports quota as the upstream
// sees it now, not as the cache remembers it.
func (u *Upstream) RateLimitSnapshot(ctx context.Context) (*hubfolio.RateLimitInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, u.Timeout)
	defer cancel()

	resp, err := u.do(ctx, http.MethodGet, u.BaseURL+"/rate_limit", nil, "", "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate_limit returned HTTP %d: %w", resp.StatusCode, hubfolio.ErrUpstream)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read rate_limit response: %w", err)
	}

	core := gjson.GetBytes(data, "resources.core")
	if !core.Exists() {
		return nil, fmt.Errorf("rate_limit response missing resources.core: %w", hubfolio.ErrUpstream)
	}
	return &hubfolio.RateLimitInfo{
		Used:      core.Get("used").Int(),
		Remaining: core.Get("remaining").Int(),
		Limit:     core.Get("limit").Int(),
		Reset:     core.Get("reset").Int(),
	}, nil
}
