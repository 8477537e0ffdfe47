// Package hubfolio defines domain types shared across the proxy and client.
// This package has no project imports -- it is the dependency root.
package hubfolio

import (
	"context"
	"time"
)

// --- Upstream rate-limit telemetry ---

// RateLimitInfo is a snapshot of the upstream API's core rate limit,
// as reported by GET /rate_limit or by per-response headers.
type RateLimitInfo struct {
	Used      int64 `json:"used"`
	Remaining int64 `json:"remaining"`
	Limit     int64 `json:"limit"`
	Reset     int64 `json:"reset"` // unix seconds
}

// ResetTime returns the reset instant as a time.Time.
func (r *RateLimitInfo) ResetTime() time.Time {
	return time.Unix(r.Reset, 0)
}

// Standard upstream telemetry header names, echoed on every proxied response.
const (
	HeaderRateLimitRemaining = "X-Ratelimit-Remaining"
	HeaderRateLimitLimit     = "X-Ratelimit-Limit"
	HeaderRateLimitReset     = "X-Ratelimit-Reset"
)

// --- Repository metadata ---

// Repo is the subset of upstream repository metadata the portfolio UI renders.
type Repo struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	HTMLURL     string   `json:"html_url"`
	Language    string   `json:"language"`
	Stars       int64    `json:"stargazers_count"`
	Forks       int64    `json:"forks_count"`
	Topics      []string `json:"topics"`
	PushedAt    string   `json:"pushed_at"`
}

// --- Context keys ---

type contextKey int

const ctxKeyRequestID contextKey = 0

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
