package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maraichr/trigconv/pkg/apierr"
)

const maxRunListLimit = 100

type RunHandler struct {
	logger *slog.Logger
	runs   RunStore
}

func NewRunHandler(logger *slog.Logger, runs RunStore) *RunHandler {
	return &RunHandler{logger: logger, runs: runs}
}

func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRunListLimit {
			writeAPIError(w, h.logger, apierr.InvalidLimit(maxRunListLimit))
			return
		}
		limit = n
	}

	runs, err := h.runs.ListAnalysisRuns(r.Context(), int32(limit))
	if err != nil {
		writeAPIError(w, h.logger, apierr.RunListFailed(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"total": len(runs),
	})
}

func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidRunID())
		return
	}

	run, err := h.runs.GetAnalysisRun(r.Context(), runID)
	if err != nil {
		if apierr.IsNotFound(err) {
			writeAPIError(w, h.logger, apierr.RunNotFound())
		} else {
			writeAPIError(w, h.logger, apierr.InternalError(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, run)
}
