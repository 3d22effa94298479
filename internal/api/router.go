package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apihandler "github.com/maraichr/trigconv/internal/api/handler"
	apimw "github.com/maraichr/trigconv/internal/api/middleware"
	"github.com/maraichr/trigconv/internal/ingestion"
	"github.com/maraichr/trigconv/internal/parser/plsql"
	"github.com/maraichr/trigconv/internal/render"
)

// RouterDeps holds optional dependencies for the router. A nil field
// disables the routes that need it.
type RouterDeps struct {
	DB       apihandler.Pinger
	Runs     apihandler.RunStore
	Cache    apihandler.Cache
	Archiver apihandler.Archiver
	Queue    apihandler.JobQueue
	Jobs     ingestion.StatusStore
}

func NewRouter(logger *slog.Logger, analyzer *plsql.Analyzer, renderer *render.Renderer, deps *RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(apimw.Logger(logger))
	r.Use(chimw.Recoverer)

	if deps == nil {
		deps = &RouterDeps{}
	}

	// Health checks
	health := apihandler.NewHealthHandler(deps.DB)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		analyze := apihandler.NewAnalyzeHandler(logger, analyzer, renderer, deps.Runs, deps.Cache)
		r.Post("/analyze", analyze.Analyze)
		r.Post("/render", analyze.Render)
		r.Get("/rules", analyze.Rules)

		// Upload (requires MinIO)
		if deps.Archiver != nil {
			upload := apihandler.NewUploadHandler(logger, analyzer, deps.Archiver, deps.Runs)
			r.Post("/upload", upload.Upload)
		}

		// Run history (requires PostgreSQL)
		if deps.Runs != nil {
			runs := apihandler.NewRunHandler(logger, deps.Runs)
			r.Route("/runs", func(r chi.Router) {
				r.Get("/", runs.List)
				r.Get("/{runID}", runs.Get)
			})
		}

		// Batch jobs (requires Valkey)
		if deps.Queue != nil && deps.Jobs != nil {
			jobs := apihandler.NewJobHandler(logger, deps.Queue, deps.Jobs)
			r.Route("/jobs", func(r chi.Router) {
				r.Post("/", jobs.Create)
				r.Get("/{jobID}", jobs.Get)
			})
		}
	})

	return r
}
