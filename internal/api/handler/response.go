package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/maraichr/trigconv/internal/store/postgres"
	"github.com/maraichr/trigconv/pkg/apierr"
)

// MaxSourceBytes bounds request bodies and uploaded files.
const MaxSourceBytes = 1 << 20

// RunStore is the run history used by the handlers; *store.Store satisfies it.
type RunStore interface {
	CreateAnalysisRun(ctx context.Context, arg postgres.CreateAnalysisRunParams) (postgres.AnalysisRun, error)
	GetAnalysisRun(ctx context.Context, id uuid.UUID) (postgres.AnalysisRun, error)
	ListAnalysisRuns(ctx context.Context, limit int32) ([]postgres.AnalysisRun, error)
}

// Cache holds serialized analysis documents keyed by source.
type Cache interface {
	Get(ctx context.Context, source []byte) ([]byte, bool, error)
	Set(ctx context.Context, source, doc []byte) error
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, status int, doc []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(doc)
}

// writeAPIError writes a structured error response and logs 5xx errors.
func writeAPIError(w http.ResponseWriter, logger *slog.Logger, e *apierr.Error) {
	if e.Status() >= 500 && logger != nil {
		logger.Error(e.Message(), slog.String("code", string(e.Code())), slog.String("error", e.Error()))
	}
	writeJSON(w, e.Status(), e.Response())
}

// decodeBody decodes a bounded JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) *apierr.Error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxSourceBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return apierr.SourceTooLarge(MaxSourceBytes)
		}
		return apierr.InvalidRequestBody()
	}
	return nil
}
