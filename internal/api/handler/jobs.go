package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/maraichr/trigconv/internal/ingestion"
	"github.com/maraichr/trigconv/internal/render"
	"github.com/maraichr/trigconv/pkg/apierr"
)

// JobQueue is satisfied by *ingestion.Producer.
type JobQueue interface {
	Enqueue(ctx context.Context, msg ingestion.JobMessage) (string, error)
}

type JobHandler struct {
	logger   *slog.Logger
	queue    JobQueue
	statuses ingestion.StatusStore
}

func NewJobHandler(logger *slog.Logger, queue JobQueue, statuses ingestion.StatusStore) *JobHandler {
	return &JobHandler{logger: logger, queue: queue, statuses: statuses}
}

type createJobRequest struct {
	Prefix  string `json:"prefix"`
	Dialect string `json:"dialect"`
	Render  *bool  `json:"render"`
}

// Create enqueues a batch job over every trigger under an S3 prefix.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if e := decodeBody(w, r, &req); e != nil {
		writeAPIError(w, h.logger, e)
		return
	}
	req.Prefix = strings.TrimSpace(req.Prefix)
	if req.Prefix == "" {
		writeAPIError(w, h.logger, apierr.PrefixRequired())
		return
	}
	if req.Dialect != "" && !render.ValidDialect(req.Dialect) {
		writeAPIError(w, h.logger, apierr.InvalidDialect(render.Dialects()))
		return
	}

	msg := ingestion.JobMessage{
		JobID:       uuid.New(),
		Prefix:      req.Prefix,
		Dialect:     req.Dialect,
		Render:      req.Render == nil || *req.Render,
		Trigger:     "api",
		RequestedAt: time.Now().UTC(),
	}

	if err := h.statuses.SetJobStatus(r.Context(), ingestion.JobStatus{
		JobID:     msg.JobID,
		Status:    ingestion.JobQueued,
		Prefix:    msg.Prefix,
		UpdatedAt: msg.RequestedAt,
	}); err != nil {
		writeAPIError(w, h.logger, apierr.JobEnqueueFailed(err))
		return
	}

	streamID, err := h.queue.Enqueue(r.Context(), msg)
	if err != nil {
		writeAPIError(w, h.logger, apierr.JobEnqueueFailed(err))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":    msg.JobID,
		"stream_id": streamID,
		"status":    ingestion.JobQueued,
	})
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeAPIError(w, h.logger, apierr.InvalidJobID())
		return
	}

	st, ok, err := h.statuses.GetJobStatus(r.Context(), jobID)
	if err != nil {
		writeAPIError(w, h.logger, apierr.JobStatusFailed(err))
		return
	}
	if !ok {
		writeAPIError(w, h.logger, apierr.JobNotFound())
		return
	}
	writeJSON(w, http.StatusOK, st)
}
