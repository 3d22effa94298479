package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/google/uuid"

	"github.com/maraichr/trigconv/internal/parser/plsql"
	"github.com/maraichr/trigconv/pkg/apierr"
)

// Archiver stores an uploaded source with its analysis document.
type Archiver interface {
	ArchiveAnalysis(ctx context.Context, runID uuid.UUID, fileName string, source, doc []byte) ([]string, error)
}

type UploadHandler struct {
	logger   *slog.Logger
	analyzer *plsql.Analyzer
	archiver Archiver
	runs     RunStore
}

func NewUploadHandler(logger *slog.Logger, analyzer *plsql.Analyzer, archiver Archiver, runs RunStore) *UploadHandler {
	return &UploadHandler{logger: logger, analyzer: analyzer, archiver: archiver, runs: runs}
}

// Upload analyzes a multipart trigger file and archives source and result.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxSourceBytes+64*1024)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeAPIError(w, h.logger, apierr.FileRequired())
		return
	}
	defer file.Close()

	source, err := io.ReadAll(io.LimitReader(file, MaxSourceBytes+1))
	if err != nil {
		writeAPIError(w, h.logger, apierr.UploadFailed(err))
		return
	}
	if len(source) > MaxSourceBytes {
		writeAPIError(w, h.logger, apierr.SourceTooLarge(MaxSourceBytes))
		return
	}

	name := path.Base(header.Filename)
	if name == "." || name == "/" || name == "" {
		name = "upload.sql"
	}

	doc, err := analyzeDocument(h.analyzer, name, source)
	if err != nil {
		writeAPIError(w, h.logger, apierr.AnalysisFailed(err))
		return
	}
	sum, err := summarize(doc)
	if err != nil {
		writeAPIError(w, h.logger, apierr.InternalError(err))
		return
	}

	runID := uuid.New()
	objects, err := h.archiver.ArchiveAnalysis(r.Context(), runID, name, source, doc)
	if err != nil {
		writeAPIError(w, h.logger, apierr.UploadFailed(err))
		return
	}

	if h.runs != nil {
		if _, err := h.runs.CreateAnalysisRun(r.Context(), runParams(runID, name, source, sum, objects)); err != nil {
			h.logger.Warn("record upload run", slog.String("error", err.Error()))
		}
	}

	status := "ok"
	if sum.failed() {
		status = "violations"
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"run_id":  runID,
		"status":  status,
		"objects": objects,
		"result":  json.RawMessage(doc),
	})
}
