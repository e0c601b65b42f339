package api

import "net/http"

// handleSystemStats returns gateway-wide counters: device totals by status,
// app count and 24-hour command figures.
func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.history.SystemStats(r.Context())
	if err != nil {
		s.logger.Error("failed to compute system stats", "error", err)
		writeInternalError(w, "failed to compute statistics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"stats":   stats,
	})
}

// handleDeviceStats returns per-device activity summaries.
func (s *Server) handleDeviceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.history.DeviceStats(r.Context())
	if err != nil {
		s.logger.Error("failed to compute device stats", "error", err)
		writeInternalError(w, "failed to compute statistics")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(stats),
		"devices": stats,
	})
}
