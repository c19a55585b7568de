package api

import (
	"net/http"
	"time"
)

// handleEnergyReport aggregates consumption over ?period=day|week|month
// (default day). With ?device_id the sealed hourly samples for that
// device are included.
func (s *Server) handleEnergyReport(w http.ResponseWriter, r *http.Request) {
	if s.energy == nil {
		writeNotFound(w, "energy tracking not enabled")
		return
	}

	report := s.energy.Summarize(r.URL.Query().Get("period"), time.Now())

	resp := map[string]any{"report": report}
	if deviceID := r.URL.Query().Get("device_id"); deviceID != "" {
		resp["samples"] = s.energy.Samples(deviceID)
	}
	writeJSON(w, http.StatusOK, resp)
}
