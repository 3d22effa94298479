package ingestion

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/maraichr/trigconv/internal/batch"
	"github.com/maraichr/trigconv/internal/mapping"
	"github.com/maraichr/trigconv/internal/parser/plsql"
	"github.com/maraichr/trigconv/internal/render"
)

type dirSyncer struct {
	files map[string]string
	err   error
}

func (s *dirSyncer) Sync(_ context.Context, _ string, destDir string, match func(string) bool) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, err
	}
	var out []string
	for name, content := range s.files {
		if match != nil && !match(name) {
			continue
		}
		if err := os.WriteFile(filepath.Join(destDir, name), []byte(content), 0o644); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

type memUploader struct {
	mu      sync.Mutex
	objects map[string]string
}

func (u *memUploader) UploadFile(_ context.Context, name string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[name] = string(data)
	return nil
}

type memStatus struct {
	mu      sync.Mutex
	history []JobStatus
}

func (m *memStatus) SetJobStatus(_ context.Context, st JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, st)
	return nil
}

func (m *memStatus) GetJobStatus(_ context.Context, id uuid.UUID) (JobStatus, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].JobID == id {
			return m.history[i], true, nil
		}
	}
	return JobStatus{}, false, nil
}

func newTestPipeline(syncer Syncer, uploader Uploader, status StatusStore) *Pipeline {
	logger := slog.New(slog.DiscardHandler)
	pattern := regexp.MustCompile(`^trigger(\d+)\.sql$`)
	stages := []Stage{
		NewSyncStage(syncer, pattern.MatchString),
		NewAnalyzeStage(plsql.New(), render.New(mapping.Default()), batch.Options{Workers: 2}, logger),
		NewArchiveStage(uploader),
	}
	return NewPipeline(stages, status, "", logger)
}

func TestPipelineRun(t *testing.T) {
	syncer := &dirSyncer{files: map[string]string{
		"trigger1.sql": "BEGIN\n  :NEW.updated := SYSDATE;\nEND;",
		"trigger2.sql": "BEGIN\n  IF a = 1\n  THEN NULL;\n  END IF;\nEND;",
		"README.md":    "ignored",
	}}
	uploader := &memUploader{objects: map[string]string{}}
	status := &memStatus{}
	p := newTestPipeline(syncer, uploader, status)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	job := JobMessage{JobID: uuid.New(), Prefix: "prod/", Render: true, Trigger: "api"}
	if err := p.Run(context.Background(), job); err != nil {
		t.Fatal(err)
	}

	prefix := "jobs/" + job.JobID.String() + "/"
	for _, name := range []string{"trigger1_analysis.json", "trigger1.pg.sql", "trigger2_analysis.json", "summary.json"} {
		if _, ok := uploader.objects[prefix+name]; !ok {
			t.Errorf("expected object %s", prefix+name)
		}
	}
	if _, ok := uploader.objects[prefix+"trigger2.pg.sql"]; ok {
		t.Error("violating trigger must not be rendered")
	}
	if !strings.Contains(uploader.objects[prefix+"trigger1.pg.sql"], "NEW.updated := CURRENT_TIMESTAMP;") {
		t.Errorf("unexpected rendered sql:\n%s", uploader.objects[prefix+"trigger1.pg.sql"])
	}

	final, ok, _ := status.GetJobStatus(context.Background(), job.JobID)
	if !ok {
		t.Fatal("expected job status")
	}
	if final.Status != JobCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}
	if final.Summary == nil || final.Summary.Clean != 1 || final.Summary.Violations != 1 {
		t.Errorf("unexpected summary %+v", final.Summary)
	}
	if len(final.Objects) != 4 {
		t.Errorf("expected 4 objects, got %v", final.Objects)
	}
	if !final.UpdatedAt.Equal(fixed) {
		t.Errorf("unexpected timestamp %s", final.UpdatedAt)
	}

	stages := []string{}
	for _, st := range status.history[:len(status.history)-1] {
		stages = append(stages, st.Stage)
	}
	if strings.Join(stages, ",") != "sync,analyze,archive" {
		t.Errorf("unexpected stage sequence %v", stages)
	}
}

func TestPipelineStageFailure(t *testing.T) {
	status := &memStatus{}
	p := newTestPipeline(&dirSyncer{err: errors.New("access denied")}, &memUploader{objects: map[string]string{}}, status)

	job := JobMessage{JobID: uuid.New(), Prefix: "prod/"}
	err := p.Run(context.Background(), job)
	if err == nil || !strings.Contains(err.Error(), "stage sync failed") {
		t.Fatalf("expected sync failure, got %v", err)
	}

	final, _, _ := status.GetJobStatus(context.Background(), job.JobID)
	if final.Status != JobFailed || final.Stage != "sync" {
		t.Errorf("unexpected status %+v", final)
	}
	if !strings.Contains(final.Error, "access denied") {
		t.Errorf("unexpected error %q", final.Error)
	}
}

func TestSyncStageRequiresFiles(t *testing.T) {
	s := NewSyncStage(&dirSyncer{files: map[string]string{"notes.txt": "x"}}, regexp.MustCompile(`\.sql$`).MatchString)
	jc := &JobContext{WorkDir: t.TempDir(), Prefix: "empty/"}
	if err := s.Execute(context.Background(), jc); err == nil {
		t.Error("expected error when nothing was synced")
	}
}

func TestDecodeJob(t *testing.T) {
	id := uuid.New()
	job, err := decodeJob(map[string]string{"data": `{"job_id":"` + id.String() + `","prefix":"p/","render":true}`})
	if err != nil {
		t.Fatal(err)
	}
	if job.JobID != id || job.Prefix != "p/" || !job.Render {
		t.Errorf("unexpected job %+v", job)
	}

	if _, err := decodeJob(map[string]string{}); !errors.Is(err, errMissingData) {
		t.Errorf("expected missing data error, got %v", err)
	}
	if _, err := decodeJob(map[string]string{"data": "{"}); err == nil {
		t.Error("expected unmarshal error")
	}
	if _, err := decodeJob(map[string]string{"data": `{"prefix":"p/"}`}); err == nil {
		t.Error("expected error for missing job id")
	}
}

type nsCache struct {
	namespaces []string
	entries    map[string][]byte
}

func (c *nsCache) Get(_ context.Context, source []byte) ([]byte, bool, error) {
	data, ok := c.entries[string(source)]
	return data, ok, nil
}

func (c *nsCache) Set(_ context.Context, source, doc []byte) error {
	c.entries[string(source)] = doc
	return nil
}

func TestAnalyzeStageCachePerJob(t *testing.T) {
	cache := &nsCache{entries: map[string][]byte{}}
	analyzer, renderer := plsql.New(), render.New(nil)
	stage := NewAnalyzeStage(analyzer, renderer, batch.Options{Workers: 1, Dialect: render.DialectPostgreSQL}, slog.New(slog.DiscardHandler)).
		WithCacheFor(func(ns string) batch.Cache {
			cache.namespaces = append(cache.namespaces, ns)
			return cache
		})

	work := t.TempDir()
	in := filepath.Join(work, "in")
	if err := os.MkdirAll(in, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(in, "trigger1.sql"), []byte("BEGIN\n  NULL;\nEND;"), 0o644); err != nil {
		t.Fatal(err)
	}

	jc := &JobContext{JobID: uuid.New(), WorkDir: work, InputDir: in, Dialect: render.DialectOracle, Render: true}
	if err := stage.Execute(context.Background(), jc); err != nil {
		t.Fatal(err)
	}
	if jc.Summary == nil || jc.Summary.Clean != 1 {
		t.Fatalf("unexpected summary %+v", jc.Summary)
	}
	if _, err := os.Stat(filepath.Join(jc.OutputDir, "trigger1.oracle.sql")); err != nil {
		t.Errorf("expected oracle output: %v", err)
	}
	want := batch.CacheNamespace(analyzer, renderer, batch.Options{Dialect: render.DialectOracle, Render: true})
	if len(cache.namespaces) != 1 || cache.namespaces[0] != want {
		t.Errorf("expected namespace %s, got %v", want, cache.namespaces)
	}
	if len(cache.entries) != 1 {
		t.Errorf("expected one cached entry, got %d", len(cache.entries))
	}
}
