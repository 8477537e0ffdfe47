// Package cache provides bounded response caching for the proxy.
package cache

import (
	"net/http"
	"time"
)

// Entry is one cached upstream response. Entries are created on a 2xx
// read response and refreshed in place on a 304 revalidation. Ownership
// is exclusively the LRU; no other component mutates entries directly.
type Entry struct {
	Body      []byte
	Header    http.Header // selected pass-through headers only
	ETag      string      // opaque validator for conditional re-fetch, may be empty
	ExpiresAt time.Time
}

// Fresh reports whether the entry is still within its TTL at now.
// An expired entry is not discarded: its ETag remains usable for a
// conditional re-fetch, and eviction is strictly capacity-driven.
func (e *Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}
