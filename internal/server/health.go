package server

import (
	"log/slog"
	"net/http"
	"time"

	hubfolio "github.com/hubfolio/hubfolio/internal"
)

type healthResponse struct {
	OK   bool   `json:"ok"`
	Time string `json:"time"`
}

type cacheStatus struct {
	Size        int     `json:"size"`
	MaxSize     int     `json:"maxSize"`
	Utilization float64 `json:"utilization"`
}

type apiHealthResponse struct {
	OK        bool                    `json:"ok"`
	Time      string                  `json:"time"`
	HasToken  bool                    `json:"hasToken"`
	Cache     cacheStatus             `json:"cache"`
	RateLimit *hubfolio.RateLimitInfo `json:"rateLimit"` // null when upstream is unreachable
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{OK: true, Time: s.now().UTC().Format(time.RFC3339)})
}

// handleAPIHealth reports proxy status plus a best-effort live upstream
// quota snapshot. Failure to reach upstream degrades to rateLimit: null
// rather than failing the health check.
func (s *server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.deps.Upstream.RateLimitSnapshot(r.Context())
	if err != nil {
		slog.LogAttrs(r.Context(), slog.LevelWarn, "rate limit snapshot unavailable",
			slog.String("error", err.Error()),
		)
		snapshot = nil
	}

	size := s.deps.Cache.Len()
	capacity := s.deps.Cache.Capacity()
	writeJSON(w, http.StatusOK, apiHealthResponse{
		OK:       true,
		Time:     s.now().UTC().Format(time.RFC3339),
		HasToken: s.deps.Upstream.Cred != nil,
		Cache: cacheStatus{
			Size:        size,
			MaxSize:     capacity,
			Utilization: float64(size) / float64(capacity),
		},
		RateLimit: snapshot,
	})
}
