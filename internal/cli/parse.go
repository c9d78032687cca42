package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ppiankov/negcheck/internal/model"
	"github.com/ppiankov/negcheck/internal/pipeline"
)

var parseJSON bool

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse <report>",
	Short: "Show the records recovered from a report without fetching anything",
	Long: `Parse extracts the report text and prints the records the parser finds.
Use it to check how a report layout is read before running analyze.

Example:
  negcheck parse report.pdf
  negcheck parse report.docx --json`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "print records as JSON")
}

func runParse(cmd *cobra.Command, args []string) error {
	doc, err := openReport(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	p := pipeline.NewPipeline(cfg)
	text, err := p.Extract(doc)
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}
	res := p.ParseText(text)

	out := cmd.OutOrStdout()
	if parseJSON {
		return printRecordsJSON(out, res.Records, res.Counts)
	}
	printRecords(out, res.Records, res.Counts)
	return nil
}

func printRecords(w io.Writer, records []model.RawRecord, counts map[model.Category]int) {
	for i, r := range records {
		fmt.Fprintf(w, "%3d. [%s] %s\n", i+1, r.Category, r.Entity)
		if r.Title != "" {
			fmt.Fprintf(w, "     Title: %s\n", r.Title)
		}
		if r.URL != "" {
			fmt.Fprintf(w, "     URL:   %s\n", r.URL)
		} else {
			fmt.Fprintln(w, "     URL:   (none)")
		}
	}

	fmt.Fprintln(w)
	for _, c := range model.Categories {
		fmt.Fprintf(w, "  %-*s %d\n", summaryWidth, c, counts[c])
	}
	fmt.Fprintf(w, "  %-*s %d\n", summaryWidth, "Records", len(records))
}

func printRecordsJSON(w io.Writer, records []model.RawRecord, counts map[model.Category]int) error {
	data, err := jsonIndent(struct {
		Records    []model.RawRecord      `json:"records"`
		DebugCount map[model.Category]int `json:"debugCount"`
	}{records, counts})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
