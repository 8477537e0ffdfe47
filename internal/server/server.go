// Package server implements the HTTP transport layer for the hubfolio proxy.
package server

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hubfolio/hubfolio/internal/cache"
	"github.com/hubfolio/hubfolio/internal/ratelimit"
	"github.com/hubfolio/hubfolio/internal/storage"
	"github.com/hubfolio/hubfolio/internal/telemetry"
)

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Upstream *Upstream          // required: outbound API calls
	Cache    *cache.LRU         // required: response cache
	Limiter  *ratelimit.Limiter // required: local mutation limiter
	TTL      time.Duration      // freshness window for cached responses
	Store    storage.ItemStore  // nil = collection endpoints unmounted
	Metrics  *telemetry.Metrics // nil = no metrics
	// MetricsHandler serves the Prometheus exposition endpoint.
	// nil = /metrics unmounted.
	MetricsHandler http.Handler
	Version        string
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	if deps.TTL <= 0 {
		deps.TTL = 5 * time.Minute
	}
	s := &server{deps: deps, now: time.Now}

	r := chi.NewRouter()

	// Global middleware. CORS runs first so preflights short-circuit
	// before route matching can 404 them.
	r.Use(s.cors)
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// System endpoints
	r.Get("/health", s.handleHealthz)
	r.Get("/healthz", s.handleHealthz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// Proxy surface
	r.Get("/api/health", s.handleAPIHealth)
	r.Handle("/api/*", http.HandlerFunc(s.handleProxy))

	// Collection backend (the remote side of merge-before-write saves)
	if deps.Store != nil {
		r.Get("/collections", s.handleListCollections)
		r.Get("/collections/{name}", s.handleGetCollection)
		r.Put("/collections/{name}", s.handlePutCollection)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method_not_allowed"})
	})

	return r
}

type server struct {
	deps Deps
	now  func() time.Time // injectable for tests
}

// errorBody is the structured error response shape.
type errorBody struct {
	Error string `json:"error"`
}

// jsonCT is a pre-allocated header value slice. Direct map assignment
// avoids the []string{v} alloc that Header.Set creates on every call.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// callerID identifies the caller for rate limiting by source address.
func callerID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
