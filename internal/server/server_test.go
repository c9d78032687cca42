package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/ppiankov/negcheck/internal/model"
	"github.com/ppiankov/negcheck/internal/pipeline"
)

const sampleReport = "Bribe\n1. BR ACME Corp\nTitle: ACME Corp indicted for bribery\nURL: https://news.example/a\n" +
	"2. FR Beta Ltd\nTitle: Beta opens office\nURL: https://news.example/missing\n"

type mapFetcher map[string]string

func (m mapFetcher) Fetch(_ context.Context, url string) string {
	return m[url]
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := model.DefaultConfig()
	p := pipeline.NewPipeline(&cfg, pipeline.WithPageFetcher(mapFetcher{
		"https://news.example/a": "ACME Corp was investigated for bribery last year.",
	}))
	s := New(p, cfg.Server)
	s.uploadDir = t.TempDir()
	return s, s.uploadDir
}

func uploadRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func assertNoUploadsLeft(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir not cleaned: %d entries left", len(entries))
	}
}

func TestAnalyzeReport(t *testing.T) {
	s, dir := newTestServer(t)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, uploadRequest(t, "/analyze-report", "file", "ACME Report.txt", []byte(sampleReport)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		OK      bool `json:"ok"`
		Summary struct {
			Rows []struct {
				Keyword  string `json:"keyword"`
				Total    int    `json:"total"`
				Negative int    `json:"negative"`
			} `json:"rows"`
			Totals model.Totals `json:"totals"`
		} `json:"summary"`
		DebugCount map[string]int    `json:"debugCount"`
		Sample     []string          `json:"sample"`
		Status     string            `json:"status"`
		Stats      model.VerifyStats `json:"stats"`
		Findings   []json.RawMessage `json:"findings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !resp.OK {
		t.Error("expected ok=true")
	}
	if len(resp.Summary.Rows) != len(model.Categories) || resp.Summary.Rows[0].Keyword != "Money Laundering" {
		t.Errorf("rows = %+v", resp.Summary.Rows)
	}
	if resp.Summary.Totals != (model.Totals{Total: 2, Negative: 1}) {
		t.Errorf("totals = %+v", resp.Summary.Totals)
	}
	if resp.DebugCount["Bribe"] != 1 || resp.DebugCount["Fraud"] != 1 {
		t.Errorf("debugCount = %v", resp.DebugCount)
	}
	if len(resp.Sample) == 0 || resp.Sample[0] != "Bribe" {
		t.Errorf("sample = %q", resp.Sample)
	}
	if resp.Status != "partial" || resp.Stats.Yes != 1 || resp.Stats.FetchFailed != 1 {
		t.Errorf("status = %s, stats = %+v", resp.Status, resp.Stats)
	}
	if resp.Findings != nil {
		t.Errorf("findings should be omitted by default")
	}
	assertNoUploadsLeft(t, dir)
}

func TestAnalyzeReport_WithFindings(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, uploadRequest(t, "/analyze-report?findings=true", "file", "r.txt", []byte(sampleReport)))

	var resp struct {
		Findings []struct {
			Keyword string `json:"keyword"`
			Entity  string `json:"entity"`
			Finding string `json:"finding"`
			Note    string `json:"note"`
		} `json:"findings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Findings) != 2 {
		t.Fatalf("findings = %+v", resp.Findings)
	}
	if resp.Findings[0].Keyword != "Bribe" || resp.Findings[0].Finding != "Yes" || !strings.HasPrefix(resp.Findings[0].Note, "Evidence") {
		t.Errorf("first finding = %+v", resp.Findings[0])
	}
	if resp.Findings[1].Finding != "No" || resp.Findings[1].Note != "Fetch failed or non-HTML" {
		t.Errorf("second finding = %+v", resp.Findings[1])
	}
}

func TestAnalyzeReport_InputErrors(t *testing.T) {
	tests := []struct {
		name       string
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantError  string
	}{
		{
			name: "no file field",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/analyze-report", "", "", nil)
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "No file uploaded",
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/analyze-report", strings.NewReader("{}"))
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "No file uploaded",
		},
		{
			name: "unreadable file",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "/analyze-report", "file", "image.png", []byte{0x89, 'P', 'N', 'G'})
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "Unsupported or unreadable file type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, dir := newTestServer(t)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, tt.req(t))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.OK || resp.Error != tt.wantError {
				t.Errorf("got %+v, want error %q", resp, tt.wantError)
			}
			assertNoUploadsLeft(t, dir)
		})
	}
}

func TestAnalyzeReport_TooLarge(t *testing.T) {
	s, _ := newTestServer(t)
	s.cfg.MaxUploadBytes = 64

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, uploadRequest(t, "/analyze-report", "file", "big.txt", bytes.Repeat([]byte("x"), 1024)))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestExportExcel(t *testing.T) {
	s, dir := newTestServer(t)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, uploadRequest(t, "/export-excel", "file", "ACME Report.txt", []byte(sampleReport)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("content type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "ACME_Report_Check.xlsx") || !strings.HasPrefix(cd, "attachment") {
		t.Errorf("content disposition = %q", cd)
	}
	// xlsx is a zip archive
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("body is not an xlsx archive")
	}
	assertNoUploadsLeft(t, dir)
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Errorf("health: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "negcheck_") {
		t.Errorf("metrics: %d", rec.Code)
	}
}

func TestRoutes_MethodsAndCORS(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyze-report", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /analyze-report = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/export-excel", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("OPTIONS /export-excel = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(nil, model.ServerConfig{})
	srv := s.HTTPServer()
	if srv.Addr != ":4000" {
		t.Errorf("addr = %q", srv.Addr)
	}
	if srv.WriteTimeout != model.DefaultConfig().Server.WriteTimeout {
		t.Errorf("write timeout = %s", srv.WriteTimeout)
	}
	if srv.ReadHeaderTimeout == 0 {
		t.Error("read header timeout not set")
	}
}
