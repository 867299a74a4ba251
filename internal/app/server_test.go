package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docstream/internal/config"
	"docstream/internal/core/blobstore"
	"docstream/internal/core/jobstore"
	"docstream/internal/core/parser"
	"docstream/internal/core/queue"
	"docstream/internal/models"
	"docstream/internal/services"
	"docstream/internal/worker"
)

type stubStrategy struct {
	pages []models.Page
	err   error
}

func (s stubStrategy) Parse(context.Context, []byte) ([]models.Page, error) {
	return s.pages, s.err
}

type stubSummarizer struct {
	out string
	err error
}

func (s stubSummarizer) Summarize(context.Context, []models.Page) (string, error) {
	return s.out, s.err
}

func validPDF() []byte { return []byte("%PDF-1.4 hello world") }

type apiEnv struct {
	router http.Handler
	store  *jobstore.Store
	deps   worker.Deps
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{
		StreamName:          "doc_jobs",
		StreamGroup:         "doc_workers",
		MaxUploadMB:         1,
		JobTTL:              time.Hour,
		WorkerTimeout:       5 * time.Second,
		ClaimBlock:          20 * time.Millisecond,
		VisibilityTimeout:   time.Second,
		MaxDeliveryAttempts: 3,
		ComparePollInterval: 20 * time.Millisecond,
		ComparePollAttempts: 250,
		Port:                "0",
	}

	q := queue.New(rdb, cfg.StreamName, cfg.StreamGroup)
	if err := q.EnsureGroup(context.Background()); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}
	blobs, err := blobstore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	reg := parser.NewRegistry()
	reg.Register("simple", stubStrategy{pages: []models.Page{
		{Page: 1, ContentMD: "# Page 1\n\none"},
		{Page: 2, ContentMD: "# Page 2\n\ntwo"},
		{Page: 3, ContentMD: "# Page 3\n\nthree"},
	}})
	reg.Register("gemini", stubStrategy{err: errors.New("gemini parsing failed: boom")})
	reg.Register("placeholder", parser.Placeholder{Tag: "placeholder"})

	log := zap.NewNop()
	store := jobstore.New(rdb, cfg.JobTTL)
	ingest := services.NewIngestService(q, store, blobs, reg, cfg.MaxUploadBytes(), log)
	orch := services.NewOrchestrateService(ingest, cfg.ComparePollInterval, cfg.ComparePollAttempts, log)

	return &apiEnv{
		router: NewRouter(cfg, rdb, q, store, ingest, orch, log),
		store:  store,
		deps: worker.Deps{
			Queue:      q,
			Store:      store,
			Blobs:      blobs,
			Registry:   reg,
			Summarizer: stubSummarizer{out: "stub summary"},
			Config:     cfg,
			Log:        log,
		},
	}
}

func (e *apiEnv) startWorker(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w := worker.New(e.deps)
	go func() { _ = w.Run(ctx) }()
}

func (e *apiEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type filePart struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, fields [][2]string, files []filePart) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := fw.Write(f.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestUploadAndFetchResult(t *testing.T) {
	env := newAPIEnv(t)
	env.startWorker(t)

	body, ct := multipartBody(t,
		[][2]string{{"parser", "simple"}},
		[]filePart{{"file", "doc.pdf", validPDF()}},
	)
	rec := env.do(t, http.MethodPost, "/api/v1/upload", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	var up models.UploadResponse
	decodeJSON(t, rec, &up)
	if up.JobID == "" || !strings.Contains(up.Message, up.JobID) {
		t.Fatalf("unexpected upload response: %+v", up)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		rec := env.do(t, http.MethodGet, "/api/v1/status/"+up.JobID, nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
		}
		var snap models.StatusResponse
		decodeJSON(t, rec, &snap)
		if snap.Status == models.StatusDone {
			break
		}
		if snap.Status == models.StatusError {
			t.Fatalf("job failed: %s", snap.ErrorMessage)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %q", snap.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/result/"+up.JobID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("result status = %d, body %s", rec.Code, rec.Body.String())
	}
	var res models.ResultResponse
	decodeJSON(t, rec, &res)
	if res.Parser != "simple" || res.PageCount != 3 || len(res.PerPageMarkdown) != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	for i, p := range res.PerPageMarkdown {
		if p.Page != i+1 {
			t.Fatalf("page order broken: %+v", res.PerPageMarkdown)
		}
	}
	if res.SummaryMD != "stub summary" {
		t.Fatalf("summary = %q", res.SummaryMD)
	}
}

func TestUploadValidationFailures(t *testing.T) {
	env := newAPIEnv(t)

	big := append(validPDF(), bytes.Repeat([]byte("x"), 2<<20)...)

	cases := []struct {
		name     string
		fields   [][2]string
		files    []filePart
		wantCode int
	}{
		{"missing file", [][2]string{{"parser", "simple"}}, nil, http.StatusBadRequest},
		{"wrong extension", nil, []filePart{{"file", "notes.txt", validPDF()}}, http.StatusUnsupportedMediaType},
		{"oversized", nil, []filePart{{"file", "big.pdf", big}}, http.StatusRequestEntityTooLarge},
		{"bad magic", nil, []filePart{{"file", "fake.pdf", []byte("not a pdf, honest")}}, http.StatusBadRequest},
		{"unknown parser", [][2]string{{"parser", "mystery"}}, []filePart{{"file", "doc.pdf", validPDF()}}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		body, ct := multipartBody(t, tc.fields, tc.files)
		rec := env.do(t, http.MethodPost, "/api/v1/upload", body, ct)
		if rec.Code != tc.wantCode {
			t.Fatalf("%s: status = %d, want %d (body %s)", tc.name, rec.Code, tc.wantCode, rec.Body.String())
		}
	}

	// None of the rejected uploads created a job.
	total, _, err := env.store.CountByStatus(context.Background())
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if total != 0 {
		t.Fatalf("rejected uploads created %d jobs", total)
	}
}

func TestStatusNotFound(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/status/ghost-job", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp models.ErrorResponse
	decodeJSON(t, rec, &resp)
	if !strings.Contains(resp.Message, "ghost-job") {
		t.Fatalf("message = %q", resp.Message)
	}
}

func TestResultLifecycleOverHTTP(t *testing.T) {
	env := newAPIEnv(t)

	body, ct := multipartBody(t, nil, []filePart{{"file", "doc.pdf", validPDF()}})
	rec := env.do(t, http.MethodPost, "/api/v1/upload", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rec.Code)
	}
	var up models.UploadResponse
	decodeJSON(t, rec, &up)

	// No worker is running, so the job is still pending: 202 + snapshot.
	rec = env.do(t, http.MethodGet, "/api/v1/result/"+up.JobID, nil, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("result status = %d, want 202 (body %s)", rec.Code, rec.Body.String())
	}
	var snap models.StatusResponse
	decodeJSON(t, rec, &snap)
	if snap.Status != models.StatusPending {
		t.Fatalf("snapshot status = %q, want pending", snap.Status)
	}

	if won, err := env.store.FinalizeError(context.Background(), up.JobID, "pdf parsing failed: torn page"); err != nil || !won {
		t.Fatalf("FinalizeError: %v %v", won, err)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/result/"+up.JobID, nil, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("result status = %d, want 422 (body %s)", rec.Code, rec.Body.String())
	}
	var fail models.ErrorResponse
	decodeJSON(t, rec, &fail)
	if fail.JobID != up.JobID || !strings.Contains(fail.Message, "torn page") {
		t.Fatalf("unexpected error payload: %+v", fail)
	}
}

func TestBatchUploadEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	body, ct := multipartBody(t,
		[][2]string{{"parser", "simple"}},
		[]filePart{
			{"files", "good.pdf", validPDF()},
			{"files", "bad.pdf", []byte("garbage")},
		},
	)
	rec := env.do(t, http.MethodPost, "/api/v1/upload/batch", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("batch status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp models.BatchUploadResponse
	decodeJSON(t, rec, &resp)
	if resp.TotalFiles != 2 || len(resp.Results) != 2 {
		t.Fatalf("unexpected batch response: %+v", resp)
	}
	if resp.Results[0].JobID == "" || resp.Results[0].Error != "" {
		t.Fatalf("good file outcome: %+v", resp.Results[0])
	}
	if resp.Results[1].JobID != "" || resp.Results[1].Error == "" {
		t.Fatalf("bad file outcome: %+v", resp.Results[1])
	}
}

func TestCompareEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	env.startWorker(t)

	body, ct := multipartBody(t,
		[][2]string{{"parsers", "simple,gemini"}},
		[]filePart{{"file", "doc.pdf", validPDF()}},
	)
	rec := env.do(t, http.MethodPost, "/api/v1/compare", body, ct)
	if rec.Code != http.StatusOK {
		t.Fatalf("compare status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp models.CompareResponse
	decodeJSON(t, rec, &resp)
	if resp.Filename != "doc.pdf" || len(resp.Results) != 2 {
		t.Fatalf("unexpected compare response: %+v", resp)
	}
	if resp.Results["simple"].Status != models.StatusDone {
		t.Fatalf("simple snapshot: %+v", resp.Results["simple"])
	}
	if resp.Results["gemini"].Status != models.StatusError ||
		!strings.Contains(resp.Results["gemini"].ErrorMessage, "boom") {
		t.Fatalf("gemini snapshot: %+v", resp.Results["gemini"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var resp models.HealthResponse
	decodeJSON(t, rec, &resp)
	if resp.Status != "healthy" || !resp.RedisConnected {
		t.Fatalf("unexpected health: %+v", resp)
	}
	if resp.GeminiAvailable {
		t.Fatal("gemini reported available without an API key")
	}
}

func TestStatsEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	body, ct := multipartBody(t, nil, []filePart{{"file", "doc.pdf", validPDF()}})
	if rec := env.do(t, http.MethodPost, "/api/v1/upload", body, ct); rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/debug/stats", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp models.StatsResponse
	decodeJSON(t, rec, &resp)
	if resp.TotalJobs != 1 || resp.JobsByStatus["pending"] != 1 {
		t.Fatalf("unexpected stats: %+v", resp)
	}
	if resp.Config["stream_name"] != "doc_jobs" {
		t.Fatalf("config echo: %+v", resp.Config)
	}
	if _, ok := resp.QueueMetrics["stream_length"]; !ok {
		t.Fatalf("queue metrics missing: %+v", resp.QueueMetrics)
	}
}
