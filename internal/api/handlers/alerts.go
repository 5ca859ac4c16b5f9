package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kaizumaki/kabuscan/internal/alert"
	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/pkg/logger"
)

// AlertHandler handles alert lifecycle endpoints.
type AlertHandler struct {
	engine *alert.Engine
	logger *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(engine *alert.Engine, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		engine: engine,
		logger: log,
	}
}

// CreateAlertRequest is the alert creation payload.
type CreateAlertRequest struct {
	InstrumentCode string                   `json:"instrument_code"`
	Kind           contracts.AlertKind      `json:"kind"`
	Condition      contracts.AlertCondition `json:"condition"`
}

// List returns all alerts.
// GET /api/alerts
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"alerts":  h.engine.List(r.Context()),
	})
}

// Create registers a new alert in active state.
// POST /api/alerts
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	created, err := h.engine.Create(r.Context(), req.Kind, req.InstrumentCode, req.Condition)
	if err != nil {
		if errors.Is(err, contracts.ErrValidation) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to create alert")
		respondError(w, http.StatusInternalServerError, "Failed to create alert")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"alert":   created,
	})
}

// Get returns one alert.
// GET /api/alerts/{id}
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, err := h.engine.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"alert":   found,
	})
}

// Delete removes one alert.
// DELETE /api/alerts/{id}
func (h *AlertHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.WithError(err).Error("Failed to delete alert")
		respondError(w, http.StatusInternalServerError, "Failed to delete alert")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Toggle flips an alert between active and disabled.
// POST /api/alerts/{id}/toggle
func (h *AlertHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	toggled, err := h.engine.Toggle(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"alert":   toggled,
	})
}

// SetStatusRequest is the explicit status transition payload.
type SetStatusRequest struct {
	Status contracts.AlertStatus `json:"status"`
}

// SetStatus applies an explicit lifecycle transition, e.g. resetting a
// triggered alert back to active.
// PUT /api/alerts/{id}/status
func (h *AlertHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	updated, err := h.engine.SetStatus(r.Context(), mux.Vars(r)["id"], req.Status)
	if err != nil {
		switch {
		case errors.Is(err, contracts.ErrNotFound):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, contracts.ErrInvalidTransition):
			respondError(w, http.StatusConflict, err.Error())
		default:
			h.logger.WithError(err).Error("Failed to set alert status")
			respondError(w, http.StatusInternalServerError, "Failed to set alert status")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"alert":   updated,
	})
}
