package api

import (
	"net/http"
	"strconv"
)

// handleAnalyticsExecutions returns per-day execution counts for the
// caller. The window defaults to 7 days via the ?days query parameter.
func (s *Server) handleAnalyticsExecutions(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "days must be a non-negative integer")
			return
		}
		days = parsed
	}

	stats, err := s.analytics.ExecutionsPerDay(r.Context(), userIDFrom(r.Context()), days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"days": stats,
	})
}

// handleAnalyticsSuccessRate returns the caller's terminal execution ratio.
func (s *Server) handleAnalyticsSuccessRate(w http.ResponseWriter, r *http.Request) {
	sr, err := s.analytics.SuccessRate(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sr)
}

// handleAnalyticsOverview returns summary counters for the caller's tasks
// and executions.
func (s *Server) handleAnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.analytics.Overview(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}
