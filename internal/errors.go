package hubfolio

import "errors"

// Sentinel errors for the proxy domain.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrUpstream    = errors.New("upstream error")
)
