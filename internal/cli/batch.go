package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/negcheck/internal/model"
	"github.com/ppiankov/negcheck/internal/pipeline"
	"github.com/ppiankov/negcheck/internal/worker"
)

var (
	batchConcurrency int
	outputDir        string
	batchTimeout     time.Duration
	batchJSON        bool
	batchFetch       fetchFlags
)

// reportExtensions are the files picked up when a directory is given
var reportExtensions = map[string]bool{".pdf": true, ".docx": true, ".txt": true}

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <report|dir>...",
	Short: "Check several reports in parallel and write one workbook each",
	Long: `Batch exports many reports at once:
- Directories are expanded to the .pdf, .docx and .txt files they contain
- Reports are processed in parallel with a configurable worker count
- Each report still checks its own links with --workers concurrent fetches
- One workbook per report is written to the output directory

Example:
  negcheck batch ./reports
  negcheck batch a.pdf b.docx --concurrency 2 --output-dir ./checked
  negcheck batch ./reports --json --timeout 30m`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 2, "reports processed at the same time")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./negcheck-results", "output directory for workbooks")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "also write the analyze result of each report as JSON")
	batchFetch.register(batchCmd)
}

// reportJob exports one report into the output directory
type reportJob struct {
	pipeline *pipeline.Pipeline
	doc      *pipeline.Document
	outDir   string
	withJSON bool
}

type reportResult struct {
	Name  string
	Path  string
	Stats model.VerifyStats
	Err   error
}

func (r *reportResult) GetError() error { return r.Err }

func (j *reportJob) Execute(ctx context.Context) worker.Result {
	res := &reportResult{Name: j.doc.Name}

	proc, err := j.pipeline.Process(ctx, j.doc)
	if err != nil {
		res.Err = err
		return res
	}

	out, err := j.pipeline.Render(proc.Findings, proc.ReportName)
	if err != nil {
		res.Err = err
		return res
	}
	res.Stats = out.Stats
	res.Path = filepath.Join(j.outDir, out.FileName)

	if err := os.WriteFile(res.Path, out.Data, 0o644); err != nil {
		res.Err = fmt.Errorf("write workbook: %w", err)
		return res
	}

	if j.withJSON {
		jsonPath := strings.TrimSuffix(res.Path, filepath.Ext(res.Path)) + ".json"
		if err := writeJSONFile(jsonPath, proc.Findings); err != nil {
			res.Err = err
		}
	}
	return res
}

func runBatch(cmd *cobra.Command, args []string) error {
	docs, err := collectReports(args)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return errors.New("no reports found (expected .pdf, .docx or .txt files)")
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	batchFetch.apply(cmd, cfg)

	ctx, cancel := signalContext(batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", rule)
	fmt.Fprintf(os.Stderr, "  negcheck Batch Processing\n")
	fmt.Fprintf(os.Stderr, "%s\n", rule)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Reports:      %d\n", len(docs))
	fmt.Fprintf(os.Stderr, "  Concurrency:  %d reports, %d links each\n", batchConcurrency, cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// One pipeline so every report shares the fetcher's per-host limiter
	p := pipeline.NewPipeline(cfg)

	jobs := make([]worker.Job, len(docs))
	for i, doc := range docs {
		jobs[i] = &reportJob{pipeline: p, doc: doc, outDir: outputDir, withJSON: batchJSON}
	}

	fmt.Fprintf(os.Stderr, "⚙️  Processing reports...\n\n")
	results := worker.RunBatch(ctx, batchConcurrency, jobs)

	successCount, failureCount := 0, 0
	for i, r := range results {
		res, ok := r.(*reportResult)
		if !ok || res.Err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", docs[i].Name, r.GetError())
			continue
		}
		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s -> %s (%d records, %d confirmed, %s)\n",
			res.Name, res.Path, res.Stats.Records, res.Stats.Yes, res.Stats.Status())
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "%s\n", rule)
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "%s\n", rule)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d reports\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d reports failed", failureCount, len(results))
	}
	return nil
}

// collectReports expands directories (one level, sorted) and keeps files as given
func collectReports(args []string) ([]*pipeline.Document, error) {
	var docs []*pipeline.Document
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("open report: %w", err)
		}
		if !info.IsDir() {
			docs = append(docs, &pipeline.Document{Path: arg, Name: filepath.Base(arg)})
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read directory: %w", err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
		for _, e := range entries {
			if e.IsDir() || !reportExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
				continue
			}
			docs = append(docs, &pipeline.Document{Path: filepath.Join(arg, e.Name()), Name: e.Name()})
		}
	}
	return docs, nil
}
