package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltguard/voltguard-core/internal/schedule"
)

// scheduleRequest is the body of create/update calls.
type scheduleRequest struct {
	Name     string   `json:"name"`
	TargetID string   `json:"target_id"`
	Action   string   `json:"action"`
	Time     string   `json:"time"`
	Days     []string `json:"days"`
	Enabled  *bool    `json:"enabled"`
}

// handleListSchedules returns all automation rules.
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.rules.List(r.Context())
	if err != nil {
		s.logger.Error("listing schedules failed", "error", err)
		writeInternalError(w, "listing schedules failed")
		return
	}
	if rules == nil {
		rules = []schedule.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"schedules": rules,
		"count":     len(rules),
	})
}

// handleCreateSchedule creates a new automation rule.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	rule := schedule.Rule{
		Name:     req.Name,
		TargetID: req.TargetID,
		Action:   req.Action,
		Time:     req.Time,
		Days:     req.Days,
		Enabled:  req.Enabled == nil || *req.Enabled,
	}
	if err := s.rules.Create(r.Context(), &rule); err != nil {
		s.writeScheduleError(w, err)
		return
	}

	s.Hub().Broadcast("schedule.created", rule)
	writeJSON(w, http.StatusCreated, rule)
}

// handleGetSchedule returns one rule by ID.
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.rules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeScheduleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

// handleUpdateSchedule replaces a rule's user-supplied fields.
func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.rules.Get(r.Context(), id)
	if err != nil {
		s.writeScheduleError(w, err)
		return
	}

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	rule := schedule.Rule{
		ID:        id,
		Name:      req.Name,
		TargetID:  req.TargetID,
		Action:    req.Action,
		Time:      req.Time,
		Days:      req.Days,
		Enabled:   existing.Enabled,
		CreatedAt: existing.CreatedAt,
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if err := s.rules.Update(r.Context(), &rule); err != nil {
		s.writeScheduleError(w, err)
		return
	}

	s.Hub().Broadcast("schedule.updated", rule)
	writeJSON(w, http.StatusOK, rule)
}

// handleDeleteSchedule removes a rule.
func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.rules.Delete(r.Context(), id); err != nil {
		s.writeScheduleError(w, err)
		return
	}

	s.Hub().Broadcast("schedule.deleted", map[string]string{"id": id})
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleSchedule flips a rule's enabled flag.
func (s *Server) handleToggleSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	existing, err := s.rules.Get(r.Context(), id)
	if err != nil {
		s.writeScheduleError(w, err)
		return
	}

	rule, err := s.rules.SetEnabled(r.Context(), id, !existing.Enabled)
	if err != nil {
		s.writeScheduleError(w, err)
		return
	}

	s.Hub().Broadcast("schedule.updated", rule)
	writeJSON(w, http.StatusOK, rule)
}

// writeScheduleError maps schedule domain errors onto HTTP responses.
func (s *Server) writeScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrNotFound):
		writeNotFound(w, "schedule not found")
	case errors.Is(err, schedule.ErrInvalidRule),
		errors.Is(err, schedule.ErrInvalidAction),
		errors.Is(err, schedule.ErrInvalidTime),
		errors.Is(err, schedule.ErrInvalidDays):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		s.logger.Error("schedule operation failed", "error", err)
		writeInternalError(w, "schedule operation failed")
	}
}
