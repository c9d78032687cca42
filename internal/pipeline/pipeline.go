package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/negcheck/internal/docextract"
	"github.com/ppiankov/negcheck/internal/export"
	"github.com/ppiankov/negcheck/internal/metrics"
	"github.com/ppiankov/negcheck/internal/model"
	"github.com/ppiankov/negcheck/internal/parse"
	"github.com/ppiankov/negcheck/internal/rules"
	"github.com/ppiankov/negcheck/internal/summary"
	"github.com/ppiankov/negcheck/internal/verify"
	"github.com/ppiankov/negcheck/internal/worker"
)

// SampleLines is how many leading text lines an analyze result carries
const SampleLines = 120

// ErrNoInput is returned when no document was supplied
var ErrNoInput = errors.New("no file uploaded")

// IsInputError reports whether err is the caller's fault (missing or unreadable document)
func IsInputError(err error) bool {
	return errors.Is(err, ErrNoInput) || errors.Is(err, docextract.ErrUnreadable)
}

// Document is an uploaded report on local disk
type Document struct {
	Path string // Local file holding the upload
	Name string // Original file name, used for the report name and format hint
	MIME string // Declared content type, may be empty
}

// ReportName is the document name without directory or extension
func (d *Document) ReportName() string {
	base := filepath.Base(strings.TrimSpace(d.Name))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (d *Document) hint() string {
	if d.MIME != "" && d.MIME != "application/octet-stream" {
		return d.MIME
	}
	return d.Name
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithPageFetcher replaces the HTTP fetcher
func WithPageFetcher(f verify.PageFetcher) Option {
	return func(p *Pipeline) { p.pageFetcher = f }
}

// WithRules replaces the default keyword rules
func WithRules(set rules.Set) Option {
	return func(p *Pipeline) { p.rules = set }
}

// Pipeline orchestrates the processing of one report
type Pipeline struct {
	parser      *parse.Parser
	pageFetcher verify.PageFetcher
	rules       rules.Set
	verifier    *verify.Verifier
	config      *model.Config
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(cfg *model.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		parser: parse.New(cfg.Parser),
		rules:  rules.Default(),
		config: cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.pageFetcher == nil {
		limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
		p.pageFetcher = NewFetcher(cfg.HTTP, limiter)
	}
	p.verifier = verify.New(p.pageFetcher, p.rules, verify.OptionsFromConfig(cfg))
	return p
}

// Processed holds every intermediate result for one document
type Processed struct {
	ReportName string
	Text       string
	Parsed     parse.Result
	Findings   []model.VerifiedRecord
}

// Extract reads the document text
func (p *Pipeline) Extract(doc *Document) (string, error) {
	if doc == nil || strings.TrimSpace(doc.Path) == "" {
		return "", ErrNoInput
	}
	text, err := docextract.ExtractText(doc.Path, doc.hint())
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return text, nil
}

// ParseText parses report text and records per-category counts
func (p *Pipeline) ParseText(text string) parse.Result {
	res := p.parser.Parse(text)
	for c, n := range res.Counts {
		if n > 0 {
			metrics.RecordsParsed.WithLabelValues(c.String()).Add(float64(n))
		}
	}
	return res
}

// Verify checks parsed records against their pages
func (p *Pipeline) Verify(ctx context.Context, records []model.RawRecord) []model.VerifiedRecord {
	return p.verifier.Verify(ctx, records)
}

// Process runs extract, parse and verify
func (p *Pipeline) Process(ctx context.Context, doc *Document) (*Processed, error) {
	start := time.Now()

	text, err := p.Extract(doc)
	if err != nil {
		return nil, err
	}

	parsed := p.ParseText(text)
	slog.Info("parsed report",
		"name", doc.Name,
		"records", len(parsed.Records),
	)

	findings := p.Verify(ctx, parsed.Records)
	slog.Info("verified report",
		"name", doc.Name,
		"records", len(findings),
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return &Processed{
		ReportName: doc.ReportName(),
		Text:       text,
		Parsed:     parsed,
		Findings:   findings,
	}, nil
}

// Analyze processes the document and builds the summary payload
func (p *Pipeline) Analyze(ctx context.Context, doc *Document) (*model.AnalyzeReport, error) {
	proc, err := p.Process(ctx, doc)
	if err != nil {
		return nil, err
	}

	sum, err := safeSummary(proc.Findings)
	if err != nil {
		return nil, err
	}

	stats := verify.Stats(proc.Findings)
	return &model.AnalyzeReport{
		ReportName: proc.ReportName,
		Summary:    sum,
		DebugCount: proc.Parsed.Counts,
		Sample:     sample(proc.Text, SampleLines),
		Status:     stats.Status(),
		Stats:      stats,
		Findings:   proc.Findings,
	}, nil
}

// ExportResult is a rendered workbook
type ExportResult struct {
	Data     []byte
	FileName string
	Stats    model.VerifyStats
}

// Export processes the document and renders the workbook
func (p *Pipeline) Export(ctx context.Context, doc *Document) (*ExportResult, error) {
	proc, err := p.Process(ctx, doc)
	if err != nil {
		return nil, err
	}
	return p.Render(proc.Findings, proc.ReportName)
}

// Render turns verified records into a workbook
func (p *Pipeline) Render(findings []model.VerifiedRecord, reportName string) (*ExportResult, error) {
	data, err := export.Render(findings, reportName)
	if err != nil {
		return nil, fmt.Errorf("render workbook: %w", err)
	}
	return &ExportResult{
		Data:     data,
		FileName: export.FileName(reportName),
		Stats:    verify.Stats(findings),
	}, nil
}

// safeSummary turns a panic while aggregating into an error for the whole request
func safeSummary(findings []model.VerifiedRecord) (s model.Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("build summary: %v", r)
		}
	}()
	return summary.Build(findings), nil
}

// sample returns up to n leading lines of the normalised text
func sample(text string, n int) []string {
	lines := parse.Lines(text)
	if len(lines) > n {
		lines = lines[:n]
	}
	return lines
}
