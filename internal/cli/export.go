package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/negcheck/internal/pipeline"
)

var (
	exportOutput  string
	exportTimeout time.Duration
	exportFetch   fetchFlags
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <report>",
	Short: "Verify a report and write the results as an Excel workbook",
	Long: `Export runs the same checks as analyze and writes one sheet per keyword
category. Confirmed findings are highlighted.

The default output name is derived from the report name:
  "ACME Q3.pdf" -> ACME_Q3_Check.xlsx

Example:
  negcheck export "ACME Q3.pdf"
  negcheck export report.docx -o checked.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output workbook path (default <report>_Check.xlsx)")
	exportCmd.Flags().DurationVar(&exportTimeout, "timeout", 10*time.Minute, "overall timeout")
	exportFetch.register(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	doc, err := openReport(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	exportFetch.apply(cmd, cfg)

	ctx, cancel := signalContext(exportTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "⚙️  Checking %s with %d workers...\n", doc.Name, cfg.Concurrency.Workers)

	res, err := pipeline.NewPipeline(cfg).Export(ctx, doc)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	path := exportOutput
	if path == "" {
		path = res.FileName
	}
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Workbook: %s (%d records, %d confirmed, status %s)\n",
		path, res.Stats.Records, res.Stats.Yes, res.Stats.Status())
	return nil
}
