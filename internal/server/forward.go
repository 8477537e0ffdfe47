package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	hubfolio "github.com/hubfolio/hubfolio/internal"
	"github.com/hubfolio/hubfolio/internal/cache"
)

// cacheHeader carries the read-path diagnostic outcome.
const cacheHeader = "X-Cache"

// Diagnostic outcomes for the read path.
const (
	cacheHit         = "hit"         // served from fresh cache, no upstream call
	cacheRevalidated = "revalidated" // upstream confirmed 304, cached body reused
	cacheStale       = "stale"       // a cached entry existed but could not be revalidated
	cacheMiss        = "miss"        // no prior entry
)

const (
	maxRequestBody  = 4 << 20
	maxResponseBody = 32 << 20
)

// handleProxy forwards one /api/* request to the upstream API, applying
// the mutation gate, the cache fast path, and conditional revalidation.
// The upstream response status and body are always what the caller
// receives; the cache is a side effect of the read path, never a
// transformation of it.
func (s *server) handleProxy(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Limiter.Allow(callerID(r), r.Method) {
		if m := s.deps.Metrics; m != nil {
			m.RateLimitRejects.Inc()
		}
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate_limit_exceeded"})
		return
	}

	// Signature: method + fully-qualified target URL with the /api
	// prefix stripped and the original query preserved verbatim.
	target := s.deps.Upstream.BaseURL + strings.TrimPrefix(r.URL.Path, "/api")
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	sig := r.Method + ":" + target

	var cached *cache.Entry
	if r.Method == http.MethodGet {
		if e, ok := s.deps.Cache.Get(sig); ok {
			cached = e
			if e.Fresh(s.now()) {
				s.cacheEvent(cacheHit)
				s.writeCached(w, e, cacheHit)
				return
			}
		}
	}

	// Mutations forward a fully buffered body, not a stream: the
	// surrounding client needs the bytes intact for its own retries.
	var body []byte
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Body != nil {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request"})
			return
		}
	}

	var etag string
	if cached != nil {
		etag = cached.ETag
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.deps.Upstream.Timeout)
	defer cancel()

	start := s.now()
	resp, err := s.deps.Upstream.do(ctx, r.Method, target, body, r.Header.Get("Content-Type"), etag)
	if m := s.deps.Metrics; m != nil {
		m.UpstreamDuration.Observe(s.now().Sub(start).Seconds())
	}
	if err != nil {
		slog.LogAttrs(r.Context(), slog.LevelWarn, "upstream request failed",
			slog.String("target", target),
			slog.String("error", err.Error()),
		)
		if m := s.deps.Metrics; m != nil {
			m.UpstreamErrors.WithLabelValues("transport").Inc()
		}
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "upstream_error"})
		return
	}
	defer resp.Body.Close()

	// Revalidation success: the cached body is still current. Extend
	// its freshness window and pick up the latest quota telemetry.
	if resp.StatusCode == http.StatusNotModified && cached != nil && r.Method == http.MethodGet {
		refreshed := &cache.Entry{
			Body:      cached.Body,
			Header:    refreshTelemetry(cached.Header, resp.Header),
			ETag:      cached.ETag,
			ExpiresAt: s.now().Add(s.deps.TTL),
		}
		s.deps.Cache.Put(sig, refreshed)
		s.cacheEvent(cacheRevalidated)
		s.writeCached(w, refreshed, cacheRevalidated)
		return
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		if m := s.deps.Metrics; m != nil {
			m.UpstreamErrors.WithLabelValues("transport").Inc()
		}
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "upstream_error"})
		return
	}

	outcome := cacheMiss
	if r.Method == http.MethodGet {
		if cached != nil {
			outcome = cacheStale
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			s.deps.Cache.Put(sig, &cache.Entry{
				Body:      respBody,
				Header:    selectHeaders(resp.Header),
				ETag:      resp.Header.Get("Etag"),
				ExpiresAt: s.now().Add(s.deps.TTL),
			})
		}
	}
	s.cacheEvent(outcome)
	if resp.StatusCode >= 500 {
		if m := s.deps.Metrics; m != nil {
			m.UpstreamErrors.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
		}
	}

	h := w.Header()
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		h.Set("Content-Type", ct)
	}
	copyTelemetry(h, resp.Header)
	h.Set(cacheHeader, outcome)
	w.WriteHeader(resp.StatusCode)
	w.Write(respBody)
}

// writeCached serves a cached entry with its selected headers.
func (s *server) writeCached(w http.ResponseWriter, e *cache.Entry, outcome string) {
	h := w.Header()
	for key, vals := range e.Header {
		h[key] = vals
	}
	h.Set(cacheHeader, outcome)
	w.WriteHeader(http.StatusOK)
	w.Write(e.Body)
}

func (s *server) cacheEvent(outcome string) {
	if m := s.deps.Metrics; m != nil {
		m.CacheEvents.WithLabelValues(outcome).Inc()
		m.CacheEntries.Set(float64(s.deps.Cache.Len()))
	}
}

// telemetryHeaders are the upstream quota headers echoed on every
// proxied response so the client controller can plan its backoff.
var telemetryHeaders = []string{
	hubfolio.HeaderRateLimitRemaining,
	hubfolio.HeaderRateLimitLimit,
	hubfolio.HeaderRateLimitReset,
}

// selectHeaders keeps only the pass-through headers a cached entry carries.
func selectHeaders(src http.Header) http.Header {
	out := make(http.Header, len(telemetryHeaders)+1)
	if ct := src.Get("Content-Type"); ct != "" {
		out.Set("Content-Type", ct)
	}
	copyTelemetry(out, src)
	return out
}

func copyTelemetry(dst, src http.Header) {
	for _, key := range telemetryHeaders {
		if vals, ok := src[key]; ok {
			dst[key] = vals
		}
	}
}

// refreshTelemetry returns the cached entry's headers with quota
// telemetry replaced by the 304 response's fresher values.
func refreshTelemetry(cachedHeader, latest http.Header) http.Header {
	out := make(http.Header, len(cachedHeader))
	for key, vals := range cachedHeader {
		out[key] = vals
	}
	copyTelemetry(out, latest)
	return out
}
