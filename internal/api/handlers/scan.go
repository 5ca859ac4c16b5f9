package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kaizumaki/kabuscan/internal/contracts"
	"github.com/kaizumaki/kabuscan/internal/scan"
	"github.com/kaizumaki/kabuscan/internal/selection"
	"github.com/kaizumaki/kabuscan/pkg/logger"
)

// ScanHandler handles batch scan endpoints.
type ScanHandler struct {
	orch   *scan.Orchestrator
	repo   *selection.Repository // nil when persistence is disabled
	logger *logger.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(orch *scan.Orchestrator, repo *selection.Repository, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		orch:   orch,
		repo:   repo,
		logger: log,
	}
}

// ListBatches returns the batch layout over the current universe.
// GET /api/scan/batches
func (h *ScanHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"universe_size": h.orch.UniverseSize(),
		"total_batches": h.orch.TotalBatches(),
	})
}

// DescribeBatch returns the static metadata of one batch.
// GET /api/scan/batches/{n}
func (h *ScanHandler) DescribeBatch(w http.ResponseWriter, r *http.Request) {
	n, ok := batchNumber(w, r)
	if !ok {
		return
	}

	job, err := h.orch.DescribeBatch(n)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"batch":   job,
	})
}

// RunBatch runs one batch synchronously and returns the finished job.
// POST /api/scan/batches/{n}/run?concurrency=8
func (h *ScanHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	n, ok := batchNumber(w, r)
	if !ok {
		return
	}

	concurrency := 0
	if raw := r.URL.Query().Get("concurrency"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "concurrency must be a positive integer")
			return
		}
		concurrency = parsed
	}

	job, err := h.orch.RunBatch(r.Context(), n, concurrency)
	if err != nil {
		switch {
		case errors.Is(err, contracts.ErrOutOfRange):
			respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, contracts.ErrBatchInFlight):
			respondError(w, http.StatusConflict, err.Error())
		default:
			h.logger.WithError(err).Error("Batch run failed")
			respondError(w, http.StatusInternalServerError, "Batch run failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"batch":   job,
	})
}

// BatchProgress returns the live progress of one batch.
// GET /api/scan/batches/{n}/progress
func (h *ScanHandler) BatchProgress(w http.ResponseWriter, r *http.Request) {
	n, ok := batchNumber(w, r)
	if !ok {
		return
	}

	progress, err := h.orch.BatchProgress(n)
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"progress": progress,
	})
}

// GetCandidates returns the ranked candidates of the latest persisted
// scan.
// GET /api/candidates?limit=20
func (h *ScanHandler) GetCandidates(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		respondError(w, http.StatusServiceUnavailable, "Result persistence is disabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	results, err := h.repo.GetLatestResults(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load candidates")
		respondError(w, http.StatusInternalServerError, "Failed to load candidates")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"candidates": results,
	})
}

func batchNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(mux.Vars(r)["n"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid batch number")
		return 0, false
	}
	return n, true
}
