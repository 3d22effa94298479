package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maraichr/trigconv/internal/ingestion"
	"github.com/maraichr/trigconv/internal/mapping"
	"github.com/maraichr/trigconv/internal/parser/plsql"
	"github.com/maraichr/trigconv/internal/render"
	"github.com/maraichr/trigconv/internal/store/postgres"
	"github.com/maraichr/trigconv/pkg/apierr"
)

const cleanSource = "BEGIN\n  :NEW.total := NVL(:NEW.amount, 0);\nEND;"

const violatingSource = "BEGIN\n  IF a = 1\n  THEN NULL;\n  END IF;\nEND;"

var discard = slog.New(slog.DiscardHandler)

type fakeRuns struct {
	mu   sync.Mutex
	runs []postgres.AnalysisRun
	err  error
}

func (f *fakeRuns) CreateAnalysisRun(_ context.Context, arg postgres.CreateAnalysisRunParams) (postgres.AnalysisRun, error) {
	if f.err != nil {
		return postgres.AnalysisRun{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	run := postgres.AnalysisRun{
		ID:            arg.ID,
		FileName:      arg.FileName,
		SourceHash:    arg.SourceHash,
		Status:        arg.Status,
		ParserVersion: arg.ParserVersion,
		Violations:    arg.Violations,
		RestStrings:   arg.RestStrings,
		Warnings:      arg.Warnings,
		Stats:         arg.Stats,
		Objects:       arg.Objects,
	}
	f.runs = append(f.runs, run)
	return run, nil
}

func (f *fakeRuns) GetAnalysisRun(_ context.Context, id uuid.UUID) (postgres.AnalysisRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return postgres.AnalysisRun{}, pgx.ErrNoRows
}

func (f *fakeRuns) ListAnalysisRuns(_ context.Context, limit int32) ([]postgres.AnalysisRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(limit) < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

type memCache struct {
	data map[string][]byte
	hits int
}

func (c *memCache) Get(_ context.Context, source []byte) ([]byte, bool, error) {
	d, ok := c.data[string(source)]
	if ok {
		c.hits++
	}
	return d, ok, nil
}

func (c *memCache) Set(_ context.Context, source, doc []byte) error {
	c.data[string(source)] = doc
	return nil
}

type fakeArchiver struct {
	runID  uuid.UUID
	source []byte
}

func (a *fakeArchiver) ArchiveAnalysis(_ context.Context, runID uuid.UUID, fileName string, source, _ []byte) ([]string, error) {
	a.runID = runID
	a.source = source
	prefix := "runs/" + runID.String() + "/"
	return []string{prefix + fileName, prefix + "analysis.json"}, nil
}

func newAnalyzeHandler(runs RunStore, cache Cache) *AnalyzeHandler {
	return NewAnalyzeHandler(discard, plsql.New(), render.New(mapping.Default()), runs, cache)
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data)))
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apierr.Code {
	t.Helper()
	var resp apierr.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp.Error.Code
}

func TestAnalyzeHandler_Analyze(t *testing.T) {
	runs := &fakeRuns{}
	h := newAnalyzeHandler(runs, nil)

	w := postJSON(t, h.Analyze, "/api/v1/analyze", map[string]string{"source": cleanSource, "file_name": "trigger1.sql"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var doc map[string]any
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"declarations", "main", "sql_comments", "conversion_stats", "metadata"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("expected key %s in document", key)
		}
	}

	if len(runs.runs) != 1 {
		t.Fatalf("expected one recorded run, got %d", len(runs.runs))
	}
	run := runs.runs[0]
	if w.Header().Get("X-Run-ID") != run.ID.String() {
		t.Errorf("expected X-Run-ID %s, got %q", run.ID, w.Header().Get("X-Run-ID"))
	}
	if run.Status != postgres.RunStatusOK || run.FileName != "trigger1.sql" || run.ParserVersion != plsql.Version {
		t.Errorf("unexpected run %+v", run)
	}
}

func TestAnalyzeHandler_Violations(t *testing.T) {
	runs := &fakeRuns{}
	h := newAnalyzeHandler(runs, nil)

	w := postJSON(t, h.Analyze, "/api/v1/analyze", map[string]string{"source": violatingSource})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	var doc struct {
		Error []map[string]any `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Error) != 1 || doc.Error[0]["line_no"] != float64(2) {
		t.Errorf("unexpected violations %v", doc.Error)
	}
	if runs.runs[0].Status != postgres.RunStatusViolations || runs.runs[0].Violations != 1 {
		t.Errorf("unexpected run %+v", runs.runs[0])
	}
	if runs.runs[0].FileName != "inline.sql" {
		t.Errorf("expected default file name, got %q", runs.runs[0].FileName)
	}
}

func TestAnalyzeHandler_RunStoreFailureIsNotFatal(t *testing.T) {
	h := newAnalyzeHandler(&fakeRuns{err: errors.New("db down")}, nil)
	w := postJSON(t, h.Analyze, "/api/v1/analyze", map[string]string{"source": cleanSource})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Run-ID") != "" {
		t.Error("expected no run id header")
	}
}

func TestAnalyzeHandler_Cache(t *testing.T) {
	cache := &memCache{data: map[string][]byte{}}
	h := newAnalyzeHandler(nil, cache)

	first := postJSON(t, h.Analyze, "/api/v1/analyze", map[string]string{"source": violatingSource})
	second := postJSON(t, h.Analyze, "/api/v1/analyze", map[string]string{"source": violatingSource})

	if cache.hits != 1 {
		t.Errorf("expected one cache hit, got %d", cache.hits)
	}
	if second.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected cached violations to keep 422, got %d", second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Error("expected cached document to match")
	}
}

func TestAnalyzeHandler_CacheHitUsesRequestFileName(t *testing.T) {
	cache := &memCache{data: map[string][]byte{}}
	h := newAnalyzeHandler(nil, cache)

	postJSON(t, h.Analyze, "/api/v1/analyze", map[string]string{"source": cleanSource, "file_name": "trigger1.sql"})
	w := postJSON(t, h.Analyze, "/api/v1/analyze", map[string]string{"source": cleanSource, "file_name": "trigger2.sql"})

	if cache.hits != 1 {
		t.Fatalf("expected one cache hit, got %d", cache.hits)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var doc struct {
		Metadata struct {
			SourcePath string `json:"source_path"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Metadata.SourcePath != "trigger2.sql" {
		t.Errorf("expected source path trigger2.sql, got %q", doc.Metadata.SourcePath)
	}
}

func TestAnalyzeHandler_BadRequests(t *testing.T) {
	h := newAnalyzeHandler(nil, nil)

	w := httptest.NewRecorder()
	h.Analyze(w, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader("not json")))
	if w.Code != http.StatusBadRequest || decodeError(t, w) != apierr.CodeInvalidRequestBody {
		t.Errorf("expected INVALID_REQUEST_BODY, got %d", w.Code)
	}

	w = postJSON(t, h.Analyze, "/api/v1/analyze", map[string]string{"source": "  \n"})
	if w.Code != http.StatusBadRequest || decodeError(t, w) != apierr.CodeSourceRequired {
		t.Errorf("expected SOURCE_REQUIRED, got %d", w.Code)
	}

	big := strings.Repeat("x", MaxSourceBytes+10)
	w = postJSON(t, h.Analyze, "/api/v1/analyze", map[string]string{"source": big})
	if w.Code != http.StatusRequestEntityTooLarge || decodeError(t, w) != apierr.CodeSourceTooLarge {
		t.Errorf("expected SOURCE_TOO_LARGE, got %d", w.Code)
	}
}

func TestAnalyzeHandler_Render(t *testing.T) {
	h := newAnalyzeHandler(nil, nil)

	w := postJSON(t, h.Render, "/api/v1/render", map[string]any{"source": cleanSource, "validate": true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp renderResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Dialect != render.DialectPostgreSQL {
		t.Errorf("expected default dialect, got %s", resp.Dialect)
	}
	if !strings.Contains(resp.SQL, "NEW.total := COALESCE(NEW.amount, 0);") {
		t.Errorf("unexpected sql:\n%s", resp.SQL)
	}
	if resp.Valid == nil || !*resp.Valid {
		t.Errorf("expected valid PL/pgSQL, got %v %s", resp.Valid, resp.ValidationError)
	}
	if resp.Counts[render.CountFunctions] != 1 {
		t.Errorf("expected one function substitution, got %v", resp.Counts)
	}

	w = postJSON(t, h.Render, "/api/v1/render", map[string]any{"source": cleanSource, "dialect": "oracle", "validate": true})
	resp = renderResponse{}
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Valid != nil {
		t.Error("oracle output must not be validated")
	}
	if !strings.Contains(resp.SQL, ":NEW.total := NVL(:NEW.amount, 0);") {
		t.Errorf("unexpected oracle sql:\n%s", resp.SQL)
	}

	w = postJSON(t, h.Render, "/api/v1/render", map[string]any{"source": cleanSource, "dialect": "tsql"})
	if w.Code != http.StatusBadRequest || decodeError(t, w) != apierr.CodeInvalidDialect {
		t.Errorf("expected INVALID_DIALECT, got %d", w.Code)
	}

	w = postJSON(t, h.Render, "/api/v1/render", map[string]any{"source": violatingSource})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
}

func TestAnalyzeHandler_Rules(t *testing.T) {
	w := httptest.NewRecorder()
	newAnalyzeHandler(nil, nil).Rules(w, httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil))

	var resp struct {
		Rules []plsql.RuleDefinition `json:"rules"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Rules) != len(plsql.Rules()) {
		t.Errorf("expected %d rules, got %d", len(plsql.Rules()), len(resp.Rules))
	}
}

func multipartBody(t *testing.T, field, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadHandler_Upload(t *testing.T) {
	runs := &fakeRuns{}
	archiver := &fakeArchiver{}
	h := NewUploadHandler(discard, plsql.New(), archiver, runs)

	body, ct := multipartBody(t, "file", "dir/trigger7.sql", []byte(cleanSource))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	h.Upload(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		RunID   uuid.UUID       `json:"run_id"`
		Status  string          `json:"status"`
		Objects []string        `json:"objects"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.RunID != archiver.runID {
		t.Errorf("expected archived run id %s, got %s", archiver.runID, resp.RunID)
	}
	if resp.Status != "ok" || len(resp.Objects) != 2 || resp.Objects[0] != "runs/"+resp.RunID.String()+"/trigger7.sql" {
		t.Errorf("unexpected response %+v", resp)
	}
	if string(archiver.source) != cleanSource {
		t.Error("expected source to be archived unchanged")
	}
	if len(runs.runs) != 1 || len(runs.runs[0].Objects) != 2 {
		t.Errorf("expected run with objects, got %+v", runs.runs)
	}
}

func TestUploadHandler_Errors(t *testing.T) {
	h := NewUploadHandler(discard, plsql.New(), &fakeArchiver{}, nil)

	body, ct := multipartBody(t, "other", "trigger1.sql", []byte(cleanSource))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	h.Upload(w, req)
	if w.Code != http.StatusBadRequest || decodeError(t, w) != apierr.CodeFileRequired {
		t.Errorf("expected FILE_REQUIRED, got %d", w.Code)
	}

	body, ct = multipartBody(t, "file", "trigger1.sql", []byte("BEGIN\n  v := '\xff';\nEND;"))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/upload", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	h.Upload(w, req)
	if w.Code != http.StatusBadRequest || decodeError(t, w) != apierr.CodeAnalysisFailed {
		t.Errorf("expected ANALYSIS_FAILED, got %d", w.Code)
	}
}

func TestRunHandler(t *testing.T) {
	runs := &fakeRuns{}
	id := uuid.New()
	runs.CreateAnalysisRun(context.Background(), postgres.CreateAnalysisRunParams{ID: id, FileName: "trigger1.sql", Status: postgres.RunStatusOK})
	runs.CreateAnalysisRun(context.Background(), postgres.CreateAnalysisRunParams{ID: uuid.New(), FileName: "trigger2.sql", Status: postgres.RunStatusOK})

	h := NewRunHandler(discard, runs)
	r := chi.NewRouter()
	r.Get("/runs", h.List)
	r.Get("/runs/{runID}", h.Get)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := get("/runs?limit=1")
	var list struct {
		Runs  []postgres.AnalysisRun `json:"runs"`
		Total int                    `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 {
		t.Errorf("expected 1 run, got %d", list.Total)
	}

	if w := get("/runs?limit=500"); w.Code != http.StatusBadRequest || decodeError(t, w) != apierr.CodeInvalidLimit {
		t.Errorf("expected INVALID_LIMIT, got %d", w.Code)
	}
	if w := get("/runs/" + id.String()); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if w := get("/runs/not-a-uuid"); w.Code != http.StatusBadRequest || decodeError(t, w) != apierr.CodeInvalidRunID {
		t.Errorf("expected INVALID_RUN_ID, got %d", w.Code)
	}
	if w := get("/runs/" + uuid.New().String()); w.Code != http.StatusNotFound || decodeError(t, w) != apierr.CodeRunNotFound {
		t.Errorf("expected RUN_NOT_FOUND, got %d", w.Code)
	}

	failing := NewRunHandler(discard, &fakeRuns{err: errors.New("db down")})
	w = httptest.NewRecorder()
	failing.List(w, httptest.NewRequest(http.MethodGet, "/runs", nil))
	if w.Code != http.StatusInternalServerError || decodeError(t, w) != apierr.CodeRunListFailed {
		t.Errorf("expected RUN_LIST_FAILED, got %d", w.Code)
	}
}

type fakeQueue struct {
	msgs []ingestion.JobMessage
}

func (q *fakeQueue) Enqueue(_ context.Context, msg ingestion.JobMessage) (string, error) {
	q.msgs = append(q.msgs, msg)
	return "1-0", nil
}

type memStatuses struct {
	byID map[uuid.UUID]ingestion.JobStatus
}

func (m *memStatuses) SetJobStatus(_ context.Context, st ingestion.JobStatus) error {
	m.byID[st.JobID] = st
	return nil
}

func (m *memStatuses) GetJobStatus(_ context.Context, id uuid.UUID) (ingestion.JobStatus, bool, error) {
	st, ok := m.byID[id]
	return st, ok, nil
}

func TestJobHandler(t *testing.T) {
	queue := &fakeQueue{}
	statuses := &memStatuses{byID: map[uuid.UUID]ingestion.JobStatus{}}
	h := NewJobHandler(discard, queue, statuses)
	r := chi.NewRouter()
	r.Post("/jobs", h.Create)
	r.Get("/jobs/{jobID}", h.Get)

	w := postJSON(t, r.ServeHTTP, "/jobs", map[string]any{"prefix": "prod/triggers/", "render": false})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		JobID    uuid.UUID `json:"job_id"`
		StreamID string    `json:"stream_id"`
	}
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if len(queue.msgs) != 1 || queue.msgs[0].JobID != created.JobID || queue.msgs[0].Render {
		t.Errorf("unexpected queued messages %+v", queue.msgs)
	}
	if created.StreamID != "1-0" {
		t.Errorf("unexpected stream id %q", created.StreamID)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/"+created.JobID.String(), nil))
	var st ingestion.JobStatus
	json.NewDecoder(w.Body).Decode(&st)
	if st.Status != ingestion.JobQueued || st.Prefix != "prod/triggers/" {
		t.Errorf("unexpected status %+v", st)
	}

	w = postJSON(t, r.ServeHTTP, "/jobs", map[string]any{"prefix": " "})
	if w.Code != http.StatusBadRequest || decodeError(t, w) != apierr.CodePrefixRequired {
		t.Errorf("expected PREFIX_REQUIRED, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/jobs/"+uuid.New().String(), nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return io.ErrUnexpectedEOF }

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler(nil).Readyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 without a database, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	NewHealthHandler(failingPinger{}).Readyz(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable || decodeError(t, w) != apierr.CodeDatabaseNotReady {
		t.Errorf("expected DATABASE_NOT_READY, got %d", w.Code)
	}
}
