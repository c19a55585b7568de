package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/voltguard/voltguard-core/internal/device"
	"github.com/voltguard/voltguard-core/internal/platform"
)

// controlRequest is the body of a device or group control call.
type controlRequest struct {
	Action string `json:"action"`
}

// groupControlResponse summarises a group dispatch.
type groupControlResponse struct {
	Status    string            `json:"status"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []platform.Result `json:"results"`
}

// handleListDevices returns a snapshot of every known device.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	records := s.store.AllSnapshots()
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": records,
		"count":   len(records),
	})
}

// handleGetDevice returns one device's snapshot. A device the stream has
// not touched yet is pulled from the platform REST API on demand.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, ok := s.store.Snapshot(id)
	if !ok && s.fetcher != nil {
		var err error
		rec, err = s.fetchDetail(r, id)
		if err != nil {
			writeNotFound(w, "device not found")
			return
		}
		ok = true
	}
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// fetchDetail pulls the device's latest state from the platform and
// seeds the store with it.
func (s *Server) fetchDetail(r *http.Request, id string) (device.Record, error) {
	ctx, cancel := upstreamContext(r)
	defer cancel()

	values, err := s.fetcher.FetchTelemetry(ctx, id, s.keys)
	if err != nil {
		return device.Record{}, err
	}
	rec := s.store.UpsertTelemetry(id, values)
	if power, err := s.fetcher.FetchPowerAttribute(ctx, id); err == nil && power != "" {
		rec, _ = s.store.UpsertAttribute(id, device.AttrPower, power)
	}
	return rec, nil
}

// handleControlDevice dispatches a power command to one device.
func (s *Server) handleControlDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	action, err := platform.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "action must be \"on\" or \"off\"")
		return
	}

	result, err := s.dispatcher.Send(r.Context(), id, action)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, platform.ErrUnauthorized):
		writeUnauthorized(w, "platform credential rejected")
	case errors.Is(err, platform.ErrDeviceNotResponding):
		writeJSON(w, http.StatusGatewayTimeout, result)
	default:
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, result.Error)
	}
}

// handleGroupControl dispatches a power command to every managed device.
//
// The response distinguishes full success (200), partial failure (207)
// and total failure (502); per-device outcomes are always included.
func (s *Server) handleGroupControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	action, err := platform.ParseAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "action must be \"on\" or \"off\"")
		return
	}
	if s.enumerate == nil {
		writeInternalError(w, "device enumeration not configured")
		return
	}

	ids, err := s.enumerate(r.Context())
	if err != nil {
		if errors.Is(err, platform.ErrUnauthorized) {
			writeUnauthorized(w, "platform credential rejected")
			return
		}
		writeError(w, http.StatusBadGateway, ErrCodeUpstream, err.Error())
		return
	}

	resp := groupControlResponse{Results: make([]platform.Result, 0, len(ids))}
	for _, id := range ids {
		result, err := s.dispatcher.Send(r.Context(), id, action)
		resp.Results = append(resp.Results, result)
		if err != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}

	switch {
	case resp.Failed == 0:
		resp.Status = "ok"
		writeJSON(w, http.StatusOK, resp)
	case resp.Succeeded == 0:
		resp.Status = "failed"
		writeJSON(w, http.StatusBadGateway, resp)
	default:
		resp.Status = "partial_failure"
		writeJSON(w, http.StatusMultiStatus, resp)
	}
}

// upstreamContext derives a bounded context for platform calls made on
// behalf of a request.
func upstreamContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 10*time.Second)
}
