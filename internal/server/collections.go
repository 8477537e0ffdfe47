package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListCollections returns the names of all non-empty collections.
func (s *server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.deps.Store.ListCollections(r.Context())
	if err != nil {
		slog.Error("list collections failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "storage_error"})
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// handleGetCollection returns the named collection as a JSON array.
// Unknown collections are empty, not 404: the UI treats a first read
// of a new collection as a blank slate.
func (s *server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	items, err := s.deps.Store.Collection(r.Context(), name)
	if err != nil {
		slog.Error("get collection failed", "collection", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "storage_error"})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// handlePutCollection replaces the named collection's contents.
// Writes count against the caller's mutation budget like any other
// non-idempotent request.
func (s *server) handlePutCollection(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Limiter.Allow(callerID(r), r.Method) {
		if m := s.deps.Metrics; m != nil {
			m.RateLimitRejects.Inc()
		}
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate_limit_exceeded"})
		return
	}

	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request"})
		return
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request"})
		return
	}

	if err := s.deps.Store.ReplaceCollection(r.Context(), name, items); err != nil {
		slog.Error("replace collection failed", "collection", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "storage_error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": len(items)})
}
