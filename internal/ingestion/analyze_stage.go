package ingestion

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/maraichr/trigconv/internal/batch"
	"github.com/maraichr/trigconv/internal/parser/plsql"
	"github.com/maraichr/trigconv/internal/render"
)

// AnalyzeStage runs the batch runner over the synced files.
type AnalyzeStage struct {
	analyzer *plsql.Analyzer
	renderer *render.Renderer
	base     batch.Options
	ropts    []batch.RunnerOption
	cacheFor func(namespace string) batch.Cache
	logger   *slog.Logger
}

func NewAnalyzeStage(analyzer *plsql.Analyzer, renderer *render.Renderer, base batch.Options, logger *slog.Logger, ropts ...batch.RunnerOption) *AnalyzeStage {
	return &AnalyzeStage{analyzer: analyzer, renderer: renderer, base: base, ropts: ropts, logger: logger}
}

// WithCacheFor picks a result cache per job. Jobs differ in dialect and
// render settings, so fn receives the job's batch.CacheNamespace.
func (s *AnalyzeStage) WithCacheFor(fn func(namespace string) batch.Cache) *AnalyzeStage {
	s.cacheFor = fn
	return s
}

func (s *AnalyzeStage) Name() string { return "analyze" }

func (s *AnalyzeStage) Execute(ctx context.Context, jc *JobContext) error {
	opts := s.base
	opts.InputDir = jc.InputDir
	opts.OutputDir = filepath.Join(jc.WorkDir, "out")
	opts.Render = jc.Render
	if jc.Dialect != "" {
		opts.Dialect = jc.Dialect
	}

	ropts := s.ropts
	if s.cacheFor != nil {
		ropts = append(ropts[:len(ropts):len(ropts)], batch.WithCache(s.cacheFor(batch.CacheNamespace(s.analyzer, s.renderer, opts))))
	}
	runner, err := batch.NewRunner(s.analyzer, s.renderer, opts,
		s.logger.With(slog.String("job_id", jc.JobID.String())), ropts...)
	if err != nil {
		return err
	}
	sum, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	jc.OutputDir = opts.OutputDir
	jc.Summary = sum
	return nil
}
