package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/trigconv/internal/parser"
	"github.com/maraichr/trigconv/internal/parser/plsql"
	"github.com/maraichr/trigconv/internal/render"
	"github.com/maraichr/trigconv/pkg/apierr"
)

type AnalyzeHandler struct {
	logger   *slog.Logger
	analyzer *plsql.Analyzer
	renderer *render.Renderer
	runs     RunStore
	cache    Cache
}

func NewAnalyzeHandler(logger *slog.Logger, analyzer *plsql.Analyzer, renderer *render.Renderer, runs RunStore, cache Cache) *AnalyzeHandler {
	return &AnalyzeHandler{logger: logger, analyzer: analyzer, renderer: renderer, runs: runs, cache: cache}
}

type analyzeRequest struct {
	Source   string `json:"source"`
	FileName string `json:"file_name"`
}

// Analyze returns the analysis document, or the violation document with 422.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if e := decodeBody(w, r, &req); e != nil {
		writeAPIError(w, h.logger, e)
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		writeAPIError(w, h.logger, apierr.SourceRequired())
		return
	}
	if req.FileName == "" {
		req.FileName = "inline.sql"
	}
	source := []byte(req.Source)

	doc, ok := h.cached(r, source, req.FileName)
	if !ok {
		var err error
		doc, err = analyzeDocument(h.analyzer, req.FileName, source)
		if err != nil {
			writeAPIError(w, h.logger, apierr.AnalysisFailed(err))
			return
		}
		if h.cache != nil {
			if err := h.cache.Set(r.Context(), source, doc); err != nil {
				h.logger.Warn("cache set", slog.String("error", err.Error()))
			}
		}
	}

	sum, err := summarize(doc)
	if err != nil {
		writeAPIError(w, h.logger, apierr.InternalError(err))
		return
	}

	if h.runs != nil {
		run, err := h.runs.CreateAnalysisRun(r.Context(), runParams(uuid.New(), req.FileName, source, sum, nil))
		if err != nil {
			h.logger.Warn("record analysis run", slog.String("error", err.Error()))
		} else {
			w.Header().Set("X-Run-ID", run.ID.String())
		}
	}

	status := http.StatusOK
	if sum.failed() {
		status = http.StatusUnprocessableEntity
	}
	writeRawJSON(w, status, doc)
}

// cached returns the stored document for source, restamped for fileName.
func (h *AnalyzeHandler) cached(r *http.Request, source []byte, fileName string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	doc, ok, err := h.cache.Get(r.Context(), source)
	if err != nil {
		h.logger.Warn("cache get", slog.String("error", err.Error()))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	doc, err = parser.Restamp(doc, fileName, time.Now())
	if err != nil {
		h.logger.Warn("restamp cached analysis", slog.String("error", err.Error()))
		return nil, false
	}
	return doc, true
}

type renderRequest struct {
	Source       string `json:"source"`
	Dialect      string `json:"dialect"`
	Validate     bool   `json:"validate"`
	FunctionName string `json:"function_name"`
}

type renderResponse struct {
	Dialect         string         `json:"dialect"`
	SQL             string         `json:"sql"`
	Counts          map[string]int `json:"counts"`
	Valid           *bool          `json:"valid,omitempty"`
	ValidationError string         `json:"validation_error,omitempty"`
}

// Render analyzes the source and renders it in the requested dialect.
func (h *AnalyzeHandler) Render(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if e := decodeBody(w, r, &req); e != nil {
		writeAPIError(w, h.logger, e)
		return
	}
	if strings.TrimSpace(req.Source) == "" {
		writeAPIError(w, h.logger, apierr.SourceRequired())
		return
	}
	if req.Dialect == "" {
		req.Dialect = render.DialectPostgreSQL
	}
	if !render.ValidDialect(req.Dialect) {
		writeAPIError(w, h.logger, apierr.InvalidDialect(render.Dialects()))
		return
	}

	res := h.analyzer.Analyze(req.Source)
	if res.Failed() {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}

	out, err := h.renderer.Render(res, req.Dialect)
	if err != nil {
		writeAPIError(w, h.logger, apierr.RenderFailed(err))
		return
	}

	resp := renderResponse{Dialect: req.Dialect, SQL: out.SQL, Counts: out.Counts}
	if req.Validate && req.Dialect == render.DialectPostgreSQL {
		name := req.FunctionName
		if name == "" {
			name = "trigger_fn"
		}
		valid := true
		if err := render.ValidatePLpgSQL(render.WrapTriggerFunction(name, out.SQL)); err != nil {
			valid = false
			resp.ValidationError = err.Error()
		}
		resp.Valid = &valid
	}
	writeJSON(w, http.StatusOK, resp)
}

// Rules lists the formatting rules a body must satisfy.
func (h *AnalyzeHandler) Rules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rules":          plsql.Rules(),
		"parser_version": plsql.Version,
		"dialects":       render.Dialects(),
	})
}
