package api

import (
	"errors"
	"net/http"

	"github.com/voltguard/voltguard-core/internal/forecast"
)

// handleForecast serves the hourly consumption prediction for one device
// (?device_id=). The forecast service answers over its own socket; this
// handler only relays.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if s.forecaster == nil {
		writeNotFound(w, "forecasting not enabled")
		return
	}

	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		writeBadRequest(w, "device_id query parameter is required")
		return
	}

	ctx, cancel := upstreamContext(r)
	defer cancel()

	pred, err := s.forecaster.Predict(ctx, deviceID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, pred)
	case errors.Is(err, forecast.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUpstream, "forecast service unavailable")
	default:
		s.logger.Error("forecast request failed", "device_id", deviceID, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, "forecast request failed")
	}
}
