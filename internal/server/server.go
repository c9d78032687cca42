// Package server exposes the report pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/negcheck/internal/docextract"
	"github.com/ppiankov/negcheck/internal/metrics"
	"github.com/ppiankov/negcheck/internal/model"
	"github.com/ppiankov/negcheck/internal/pipeline"
)

const (
	uploadField     = "file"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	shutdownTimeout = 30 * time.Second
	multipartMemory = 8 << 20
)

var errUploadTooLarge = errors.New("upload too large")

// Server handles report uploads
type Server struct {
	pipeline  *pipeline.Pipeline
	cfg       model.ServerConfig
	uploadDir string // temp dir for uploads, "" means os.TempDir
}

// New creates a server around a pipeline
func New(p *pipeline.Pipeline, cfg model.ServerConfig) *Server {
	defaults := model.DefaultConfig().Server
	if cfg.Addr == "" {
		cfg.Addr = defaults.Addr
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaults.MaxUploadBytes
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	return &Server{pipeline: p, cfg: cfg}
}

// RegisterRoutes registers the API routes
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/analyze-report", s.handleAnalyze).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/export-excel", s.handleExport).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

// Handler returns the routed handler with logging and CORS applied
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(logRequests, allowCORS)
	s.RegisterRoutes(router)
	return router
}

// HTTPServer builds the http.Server. Writes get a long timeout because
// verification of a large report can take minutes.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := s.HTTPServer()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type analyzeResponse struct {
	OK         bool                   `json:"ok"`
	Summary    model.Summary          `json:"summary"`
	DebugCount map[model.Category]int `json:"debugCount"`
	Sample     []string               `json:"sample"`
	Status     model.Status           `json:"status"`
	Stats      model.VerifyStats      `json:"stats"`
	Findings   []model.VerifiedRecord `json:"findings,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	doc, cleanup, err := s.receiveUpload(w, r)
	defer cleanup()
	if err != nil {
		s.writeError(w, "analyze", err)
		return
	}

	report, err := s.pipeline.Analyze(r.Context(), doc)
	if err != nil {
		s.writeError(w, "analyze", err)
		return
	}

	resp := analyzeResponse{
		OK:         true,
		Summary:    report.Summary,
		DebugCount: report.DebugCount,
		Sample:     report.Sample,
		Status:     report.Status,
		Stats:      report.Stats,
	}
	if withFindings, _ := strconv.ParseBool(r.URL.Query().Get("findings")); withFindings {
		resp.Findings = report.Findings
	}

	metrics.RequestsTotal.WithLabelValues("analyze", string(report.Status)).Inc()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, cleanup, err := s.receiveUpload(w, r)
	defer cleanup()
	if err != nil {
		s.writeError(w, "export", err)
		return
	}

	res, err := s.pipeline.Export(r.Context(), doc)
	if err != nil {
		s.writeError(w, "export", err)
		return
	}

	metrics.RequestsTotal.WithLabelValues("export", string(res.Stats.Status())).Inc()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Data); err != nil {
		slog.Warn("write workbook response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "status": "healthy"})
}

// receiveUpload copies the multipart "file" field to a temp file owned by this
// request. cleanup is always safe to call and removes whatever was created.
func (s *Server) receiveUpload(w http.ResponseWriter, r *http.Request) (*pipeline.Document, func(), error) {
	var tmpPath string
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
		if tmpPath != "" {
			if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				slog.Debug("remove upload", "path", tmpPath, "error", err)
			}
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, cleanup, errUploadTooLarge
		}
		return nil, cleanup, pipeline.ErrNoInput
	}

	src, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, cleanup, pipeline.ErrNoInput
	}
	defer func() { _ = src.Close() }()

	dst, err := os.CreateTemp(s.uploadDir, "negcheck-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return nil, cleanup, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath = dst.Name()

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return nil, cleanup, fmt.Errorf("store upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return nil, cleanup, fmt.Errorf("store upload: %w", err)
	}

	return &pipeline.Document{
		Path: tmpPath,
		Name: header.Filename,
		MIME: header.Header.Get("Content-Type"),
	}, cleanup, nil
}

func (s *Server) writeError(w http.ResponseWriter, operation string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errUploadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case pipeline.IsInputError(err):
		status = http.StatusBadRequest
	}

	outcome := "error"
	if status < http.StatusInternalServerError {
		outcome = "rejected"
		slog.Info("request rejected", "operation", operation, "error", err)
	} else {
		slog.Error("request failed", "operation", operation, "error", err)
	}
	metrics.RequestsTotal.WithLabelValues(operation, outcome).Inc()

	writeJSON(w, status, errorResponse{OK: false, Error: userMessage(err)})
}

// userMessage maps input errors to the messages clients display
func userMessage(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrNoInput):
		return "No file uploaded"
	case errors.Is(err, docextract.ErrUnreadable):
		return "Unsupported or unreadable file type"
	case errors.Is(err, errUploadTooLarge):
		return "Upload too large"
	default:
		return err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "error", err)
	}
}
