package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ppiankov/negcheck/internal/model"
	"github.com/ppiankov/negcheck/internal/pipeline"
)

var (
	analyzeJSON     string
	analyzeFindings bool
	analyzeTimeout  time.Duration
	analyzeFetch    fetchFlags
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <report>",
	Short: "Parse a report, verify its links and print the summary",
	Long: `Analyze extracts the text of a report, recovers every finding, fetches
each cited article and prints a per-category summary.

Example:
  negcheck analyze "ACME Q3.pdf"
  negcheck analyze report.docx --findings
  negcheck analyze report.pdf --json result.json --workers 4`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeJSON, "json", "", "write the full result as JSON to this path")
	analyzeCmd.Flags().BoolVar(&analyzeFindings, "findings", false, "list every verified record")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 10*time.Minute, "overall timeout")
	analyzeFetch.register(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	doc, err := openReport(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	analyzeFetch.apply(cmd, cfg)

	ctx, cancel := signalContext(analyzeTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "⚙️  Analyzing %s with %d workers...\n", doc.Name, cfg.Concurrency.Workers)

	report, err := pipeline.NewPipeline(cfg).Analyze(ctx, doc)
	if err != nil {
		return fmt.Errorf("analyze failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Checked %d records\n\n", report.Stats.Records)

	out := cmd.OutOrStdout()
	printSummary(out, report)
	if analyzeFindings {
		fmt.Fprintln(out)
		printFindings(out, report.Findings)
	}

	if analyzeJSON != "" {
		if err := writeJSONFile(analyzeJSON, report); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", analyzeJSON)
	}
	return nil
}

var (
	headerColor = color.New(color.FgWhite, color.Bold)
	alertColor  = color.New(color.FgRed, color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	subtleColor = color.New(color.FgCyan)
)

const summaryWidth = 14

// printSummary writes the per-category table followed by the verification status
func printSummary(w io.Writer, report *model.AnalyzeReport) {
	if report.ReportName != "" {
		headerColor.Fprintf(w, "%s\n\n", report.ReportName)
	}

	headerColor.Fprintf(w, "  %-*s %8s %9s\n", summaryWidth, "Keyword", "Total", "Negative")
	for _, row := range report.Summary.Rows {
		fmt.Fprintf(w, "  %-*s %8d ", summaryWidth, row.Category, row.Total)
		if row.Negative > 0 {
			alertColor.Fprintf(w, "%9d\n", row.Negative)
		} else {
			fmt.Fprintf(w, "%9d\n", row.Negative)
		}
	}
	headerColor.Fprintf(w, "  %-*s %8d %9d\n", summaryWidth, "Total", report.Summary.Totals.Total, report.Summary.Totals.Negative)
	fmt.Fprintln(w)

	s := report.Stats
	fmt.Fprintf(w, "  Confirmed: %d   Not confirmed: %d   Skipped: %d   Fetch failed: %d   Analyzer errors: %d\n",
		s.Yes, s.No, s.Skipped, s.FetchFailed, s.AnalyzerErrs)

	fmt.Fprint(w, "  Status: ")
	if report.Status == model.StatusComplete {
		okColor.Fprintln(w, report.Status)
	} else {
		warnColor.Fprintln(w, report.Status)
	}
}

// printFindings lists verified records in report order
func printFindings(w io.Writer, findings []model.VerifiedRecord) {
	for i, f := range findings {
		fmt.Fprintf(w, "%3d. [%s] %s\n", i+1, f.Category, f.Entity)
		if f.Title != "" {
			fmt.Fprintf(w, "     %s\n", f.Title)
		}
		if f.URL != "" {
			subtleColor.Fprintf(w, "     %s\n", f.URL)
		}
		fmt.Fprint(w, "     ")
		if f.Finding == model.FindingYes {
			alertColor.Fprint(w, f.Finding)
		} else {
			fmt.Fprint(w, f.Finding)
		}
		fmt.Fprintf(w, "  %s\n", f.Note)
	}
}

func jsonIndent(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode JSON: %w", err)
	}
	return data, nil
}

func writeJSONFile(path string, v any) error {
	data, err := jsonIndent(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write JSON: %w", err)
	}
	return nil
}

// signalContext is cancelled by SIGINT/SIGTERM or after timeout
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := notifyContext()
	if timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}
