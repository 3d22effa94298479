// Package batch analyzes every trigger file in a directory and writes one
// analysis document (and optionally rendered SQL) per file.
package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/maraichr/trigconv/internal/parser"
	"github.com/maraichr/trigconv/internal/parser/plsql"
	"github.com/maraichr/trigconv/internal/render"
	"github.com/maraichr/trigconv/internal/store/postgres"
)

// File status values reported in FileReport.Status.
const (
	StatusOK         = "ok"
	StatusViolations = "violations"
	StatusFailed     = "failed"
)

// Cache stores encoded per-file outcomes keyed by source content.
type Cache interface {
	Get(ctx context.Context, source []byte) ([]byte, bool, error)
	Set(ctx context.Context, source, doc []byte) error
}

// Recorder persists the outcome of a batch.
type Recorder interface {
	RecordRuns(ctx context.Context, runs []postgres.CreateAnalysisRunParams) error
}

type Options struct {
	InputDir  string
	OutputDir string
	Workers   int
	Pattern   string
	Render    bool
	Dialect   string
}

type Runner struct {
	registry *parser.Registry
	renderer *render.Renderer
	cache    Cache
	recorder Recorder
	logger   *slog.Logger
	opts     Options
	pattern  *regexp.Regexp
	now      func() time.Time
}

type RunnerOption func(*Runner)

func WithCache(c Cache) RunnerOption {
	return func(r *Runner) { r.cache = c }
}

func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

func NewRunner(analyzer *plsql.Analyzer, renderer *render.Renderer, opts Options, logger *slog.Logger, ropts ...RunnerOption) (*Runner, error) {
	if opts.Pattern == "" {
		opts.Pattern = `^trigger(\d+)\.sql$`
	}
	pattern, err := regexp.Compile(opts.Pattern)
	if err != nil {
		return nil, fmt.Errorf("compile file pattern: %w", err)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Dialect == "" {
		opts.Dialect = render.DialectPostgreSQL
	}
	if !render.ValidDialect(opts.Dialect) {
		return nil, fmt.Errorf("unknown dialect %q", opts.Dialect)
	}

	registry := parser.NewRegistry()
	registry.Register(analyzer, ".sql", ".trg", ".pls")

	r := &Runner{
		registry: registry,
		renderer: renderer,
		logger:   logger,
		opts:     opts,
		pattern:  pattern,
		now:      time.Now,
	}
	for _, o := range ropts {
		o(r)
	}
	return r, nil
}

// FileReport is the outcome for one input file.
type FileReport struct {
	File        string   `json:"file"`
	Number      int      `json:"number"`
	Status      string   `json:"status"`
	Outputs     []string `json:"outputs,omitempty"`
	Violations  int      `json:"violations,omitempty"`
	RestStrings int      `json:"rest_strings,omitempty"`
	Warnings    int      `json:"warnings,omitempty"`
	Cached      bool     `json:"cached,omitempty"`
	Error       string   `json:"error,omitempty"`
}

type Summary struct {
	Files      []FileReport `json:"files"`
	Processed  int          `json:"processed"`
	Clean      int          `json:"clean"`
	Violations int          `json:"violations"`
	Failed     int          `json:"failed"`
	Cached     int          `json:"cached"`
}

// Run processes every matching file in the input directory. Per-file I/O
// errors are reported in the summary; only setup errors are returned.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	inputs, err := r.collect()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	r.logger.Info("batch started",
		slog.String("input_dir", r.opts.InputDir),
		slog.Int("files", len(inputs)),
		slog.Int("workers", r.opts.Workers))

	reports := make([]FileReport, len(inputs))
	var (
		mu   sync.Mutex
		runs []postgres.CreateAnalysisRunParams
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.opts.Workers)
	for i, in := range inputs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			report, run := r.processFile(egCtx, in)
			reports[i] = report
			if run != nil {
				mu.Lock()
				runs = append(runs, *run)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sum := &Summary{Files: reports}
	for _, rep := range reports {
		sum.Processed++
		switch rep.Status {
		case StatusOK:
			sum.Clean++
		case StatusViolations:
			sum.Violations++
		case StatusFailed:
			sum.Failed++
		}
		if rep.Cached {
			sum.Cached++
		}
	}

	if r.recorder != nil && len(runs) > 0 {
		if err := r.recorder.RecordRuns(ctx, runs); err != nil {
			r.logger.Error("record runs", slog.String("error", err.Error()))
		}
	}

	r.logger.Info("batch complete",
		slog.Int("processed", sum.Processed),
		slog.Int("clean", sum.Clean),
		slog.Int("violations", sum.Violations),
		slog.Int("failed", sum.Failed),
		slog.Int("cached", sum.Cached))
	return sum, nil
}

type input struct {
	name   string
	number int
}

// collect lists matching files ordered by trigger number.
func (r *Runner) collect() ([]input, error) {
	entries, err := os.ReadDir(r.opts.InputDir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	var inputs []input
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := r.pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n := -1
		if len(m) > 1 {
			if v, err := strconv.Atoi(m[1]); err == nil {
				n = v
			}
		}
		inputs = append(inputs, input{name: e.Name(), number: n})
	}
	sort.Slice(inputs, func(i, j int) bool {
		if inputs[i].number != inputs[j].number {
			return inputs[i].number < inputs[j].number
		}
		return inputs[i].name < inputs[j].name
	})
	return inputs, nil
}

// entry is what the cache holds for one source. Only content-derived data
// is kept: the analysis is restamped and the SQL wrapped per file.
type entry struct {
	Analysis    json.RawMessage `json:"analysis"`
	SQL         string          `json:"sql,omitempty"`
	Violations  int             `json:"violations"`
	RestStrings int             `json:"rest_strings"`
	Warnings    int             `json:"warnings"`
	Trigger     string          `json:"trigger,omitempty"`
}

func (r *Runner) processFile(ctx context.Context, in input) (FileReport, *postgres.CreateAnalysisRunParams) {
	report := FileReport{File: in.name, Number: in.number}
	fail := func(err error) (FileReport, *postgres.CreateAnalysisRunParams) {
		r.logger.Error("batch file failed", slog.String("file", in.name), slog.String("error", err.Error()))
		report.Status = StatusFailed
		report.Error = err.Error()
		return report, nil
	}

	source, err := os.ReadFile(filepath.Join(r.opts.InputDir, in.name))
	if err != nil {
		return fail(fmt.Errorf("read source: %w", err))
	}
	if parser.DetectDialect(source) == parser.DialectPgSQL {
		r.logger.Warn("source already looks like PL/pgSQL", slog.String("file", in.name))
	}

	e, cached := r.lookup(ctx, source)
	if !cached {
		e, err = r.analyze(in.name, source)
		if err != nil {
			return fail(err)
		}
		r.store(ctx, source, e)
	}
	report.Cached = cached
	report.Violations = e.Violations
	report.RestStrings = e.RestStrings
	report.Warnings = e.Warnings

	doc := []byte(e.Analysis)
	if cached {
		if doc, err = parser.Restamp(doc, in.name, r.now()); err != nil {
			return fail(err)
		}
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, doc, "", "  "); err != nil {
		return fail(fmt.Errorf("encode analysis: %w", err))
	}

	base := outputBase(in)
	docPath := filepath.Join(r.opts.OutputDir, base+"_analysis.json")
	if err := os.WriteFile(docPath, pretty.Bytes(), 0o644); err != nil {
		return fail(fmt.Errorf("write analysis: %w", err))
	}
	report.Outputs = append(report.Outputs, docPath)

	status := postgres.RunStatusOK
	report.Status = StatusOK
	if e.Violations > 0 {
		status = postgres.RunStatusViolations
		report.Status = StatusViolations
	} else if r.opts.Render {
		sql := e.SQL
		if r.opts.Dialect == render.DialectPostgreSQL {
			sql = render.WrapTriggerFunction(functionName(e.Trigger, in.name), e.SQL)
		}
		sqlPath := filepath.Join(r.opts.OutputDir, base+sqlSuffix(r.opts.Dialect))
		if err := os.WriteFile(sqlPath, []byte(sql), 0o644); err != nil {
			return fail(fmt.Errorf("write rendered sql: %w", err))
		}
		report.Outputs = append(report.Outputs, sqlPath)
	}

	run := &postgres.CreateAnalysisRunParams{
		ID:            uuid.New(),
		FileName:      in.name,
		SourceHash:    parser.ContentHash(source),
		Status:        status,
		ParserVersion: plsql.Version,
		Violations:    int32(e.Violations),
		RestStrings:   int32(e.RestStrings),
		Warnings:      int32(e.Warnings),
		Objects:       report.Outputs,
	}
	return report, run
}

func (r *Runner) analyze(name string, source []byte) (entry, error) {
	res, err := r.registry.ParseFile(parser.FileInput{Path: name, Content: source})
	if err != nil {
		return entry{}, fmt.Errorf("analyze: %w", err)
	}
	doc, err := json.Marshal(res)
	if err != nil {
		return entry{}, fmt.Errorf("encode analysis: %w", err)
	}
	e := entry{
		Analysis:    doc,
		Violations:  len(res.Violations),
		RestStrings: len(res.RestStrings),
		Warnings:    len(res.Warnings),
	}
	if res.Metadata.Trigger != nil {
		e.Trigger = res.Metadata.Trigger.Name
	}
	if res.Failed() || !r.opts.Render {
		return e, nil
	}

	out, err := r.renderer.Render(res, r.opts.Dialect)
	if err != nil {
		return entry{}, fmt.Errorf("render: %w", err)
	}
	e.SQL = out.SQL
	return e, nil
}

func (r *Runner) lookup(ctx context.Context, source []byte) (entry, bool) {
	if r.cache == nil {
		return entry{}, false
	}
	data, ok, err := r.cache.Get(ctx, source)
	if err != nil {
		r.logger.Warn("cache get", slog.String("error", err.Error()))
		return entry{}, false
	}
	if !ok {
		return entry{}, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		r.logger.Warn("decode cached entry", slog.String("error", err.Error()))
		return entry{}, false
	}
	return e, true
}

func (r *Runner) store(ctx context.Context, source []byte, e entry) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, source, data); err != nil {
		r.logger.Warn("cache set", slog.String("error", err.Error()))
	}
}

// CacheNamespace identifies the settings that change cached entries: the
// analyzer options, the renderer's mapping and layout, and the output mode.
func CacheNamespace(analyzer *plsql.Analyzer, renderer *render.Renderer, opts Options) string {
	return fmt.Sprintf("batch:%s:%s:%s:%t", analyzer.Fingerprint(), renderer.Fingerprint(), opts.Dialect, opts.Render)
}

func outputBase(in input) string {
	if in.number >= 0 {
		return "trigger" + strconv.Itoa(in.number)
	}
	return trimExt(in.name)
}

func trimExt(name string) string {
	return name[:len(name)-len(filepath.Ext(name))]
}

func sqlSuffix(dialect string) string {
	if dialect == render.DialectOracle {
		return ".oracle.sql"
	}
	return ".pg.sql"
}

var reIdent = regexp.MustCompile(`[^A-Za-z0-9_]+`)

func functionName(trigger, file string) string {
	name := trigger
	if name == "" {
		name = trimExt(file)
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.Trim(reIdent.ReplaceAllString(name, "_"), "_")
	if name == "" {
		name = "trigger"
	}
	return name + "_fn"
}
