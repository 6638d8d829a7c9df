package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/NarendraPati1/deIdentifier/internal/config"
	"github.com/NarendraPati1/deIdentifier/internal/detect"
	"github.com/NarendraPati1/deIdentifier/internal/parser"
	"github.com/NarendraPati1/deIdentifier/internal/pipeline"
	"github.com/NarendraPati1/deIdentifier/internal/store"
)

const testKey = "secret"

func newTestServer(t *testing.T, withStore bool) *Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.APIKey = testKey
	cfg.WorkerCount = 1
	return newTestServerConfig(t, withStore, cfg)
}

func newTestServerConfig(t *testing.T, withStore bool, cfg config.Config) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	pipe := pipeline.New(
		parser.NewExtractor(parser.Options{Logger: log}),
		detect.NewAdapter(detect.Options{Logger: log}),
		log,
		pipeline.Config{Concurrency: 2, SharedCache: true},
	)

	var st HistoryStore
	if withStore {
		s, err := store.Open(":memory:")
		if err != nil {
			t.Fatalf("store.Open: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		st = s
	}

	orch := pipeline.NewOrchestrator(cfg, pipe, st, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return NewServer(orch, st, nil, false, log, cfg)
}

func uploadBody(t *testing.T, userID string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if userID != "" {
		mw.WriteField("userId", userID)
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, true)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode(t, rec)
	if body["detection"] != "demo" {
		t.Errorf("expected demo detection, got %v", body["detection"])
	}
	if body["store"] != "ok" {
		t.Errorf("expected store ok, got %v", body["store"])
	}
	if body["ocr_available"] != false {
		t.Errorf("expected ocr unavailable, got %v", body["ocr_available"])
	}
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, false)
	cases := map[string]string{
		"missing": "",
		"wrong":   "Bearer nope",
		"scheme":  "Basic " + testKey,
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/stats/oracle", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}

func TestProcessFiles(t *testing.T) {
	s := newTestServer(t, true)
	body, ct := uploadBody(t, "u1", map[string]string{
		"patients.csv": "name,age\nRavi Kumar,40\n",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/process-files", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	if out["filesProcessed"] != float64(1) {
		t.Errorf("expected 1 file, got %v", out["filesProcessed"])
	}
	if out["stored"] != true {
		t.Errorf("expected session stored, got %v", out["stored"])
	}
	if !strings.HasPrefix(out["sessionName"].(string), "Session_") {
		t.Errorf("unexpected session name %v", out["sessionName"])
	}

	rows := out["piiPhiData"].([]any)
	row := rows[0].(map[string]any)
	if row["filename"] != "patients.csv" {
		t.Errorf("expected filename patients.csv, got %v", row["filename"])
	}
	if row["drug"] != "Lisinopril 10mg" {
		t.Errorf("expected demo medication, got %v", row["drug"])
	}
	if row["Patient_Name"] == "John Doe" || row["Patient_Name"] == "" {
		t.Errorf("expected synthetic patient name, got %v", row["Patient_Name"])
	}

	comps := out["comparisons"].([]any)
	pairs := comps[0].(map[string]any)["pairs"].([]any)
	if len(pairs) != 3 {
		t.Errorf("expected 3 comparison pairs, got %d", len(pairs))
	}

	hist := do(t, s, httptest.NewRequest(http.MethodGet, "/api/redactions-history/u1", nil))
	if hist.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", hist.Code)
	}
	if h := decode(t, hist)["history"].([]any); len(h) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(h))
	}

	sess := do(t, s, httptest.NewRequest(http.MethodGet, "/api/sessions-history/u1", nil))
	if got := decode(t, sess)["sessions"].([]any); len(got) != 1 {
		t.Errorf("expected 1 session, got %d", len(got))
	}
}

func TestProcessFiles_UnsupportedFileFails(t *testing.T) {
	s := newTestServer(t, false)
	body, ct := uploadBody(t, "", map[string]string{"notes.txt": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/process-files", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, s, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	out := decode(t, rec)
	f := out["files"].([]any)[0].(map[string]any)
	if f["status"] != "failed" {
		t.Errorf("expected failed, got %v", f["status"])
	}
	if f["error"] != "Error: Unsupported file format '.txt'" {
		t.Errorf("unexpected error %v", f["error"])
	}
	if out["stored"] != false {
		t.Errorf("expected nothing stored without a store, got %v", out["stored"])
	}
}

func TestProcessFiles_NoFiles(t *testing.T) {
	s := newTestServer(t, false)
	body, ct := uploadBody(t, "u1", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/process-files", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, s, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestProcessFiles_BodyTooLarge(t *testing.T) {
	cfg := config.Defaults()
	cfg.APIKey = testKey
	cfg.WorkerCount = 1
	cfg.MaxUploadBytes = 1024
	s := newTestServerConfig(t, false, cfg)

	// Past the upload limit plus the form allowance.
	body, ct := uploadBody(t, "u1", map[string]string{"big.csv": strings.Repeat("a", 11<<20)})
	req := httptest.NewRequest(http.MethodPost, "/api/process-files", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, s, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(decode(t, rec)["error"].(string), "exceeds") {
		t.Errorf("unexpected error body %q", rec.Body.String())
	}
}

func TestSessionJob(t *testing.T) {
	s := newTestServer(t, true)
	body, ct := uploadBody(t, "u2", map[string]string{"a.csv": "x\n1\n"})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", body)
	req.Header.Set("Content-Type", ct)
	rec := do(t, s, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	poll := out["poll_url"].(string)

	deadline := time.Now().Add(5 * time.Second)
	var status map[string]any
	for time.Now().Before(deadline) {
		status = decode(t, do(t, s, httptest.NewRequest(http.MethodGet, poll, nil)))
		if status["status"] == "completed" || status["status"] == "failed" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status["status"] != "completed" {
		t.Fatalf("expected completed, got %v", status["status"])
	}
	if status["session"] == nil {
		t.Error("expected session on completed job")
	}

	missing := do(t, s, httptest.NewRequest(http.MethodGet, "/api/sessions/nope", nil))
	if missing.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", missing.Code)
	}
}

func TestDownloadResults(t *testing.T) {
	s := newTestServer(t, false)
	payload := `{"piiPhiData":[{"filename":"a.png","Patient_Name":"Arjun Sharma","Age":"41"}]}`
	rec := do(t, s, httptest.NewRequest(http.MethodPost, "/api/download-results", strings.NewReader(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("expected xlsx content type, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "PII_PHI_Results_") {
		t.Errorf("unexpected disposition %q", cd)
	}
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("PII_PHI_Data")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][2] != "Arjun Sharma" {
		t.Errorf("unexpected rows %v", rows)
	}

	empty := do(t, s, httptest.NewRequest(http.MethodPost, "/api/download-results", strings.NewReader(`{"piiPhiData":[]}`)))
	if empty.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", empty.Code)
	}
}

func TestHistoryWithoutStore(t *testing.T) {
	s := newTestServer(t, false)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/redactions-history/u1", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestOracleStats(t *testing.T) {
	s := newTestServer(t, false)
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats/oracle", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without oracle, got %d", rec.Code)
	}

	s.oracleStats = detect.NewLatencyStats(time.Minute)
	s.oracleStats.Record(120)
	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats/oracle", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if decode(t, rec)["model"] != "urchade/gliner_multi_pii-v1" {
		t.Error("expected configured model in stats")
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"scan.png":               "scan.png",
		"../../etc/passwd":       "passwd",
		`C:\Users\me\report.pdf`: "report.pdf",
		"a..b.csv":               "a_b.csv",
		"":                       "unnamed",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q): expected %q, got %q", in, want, got)
		}
	}
}
