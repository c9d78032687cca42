package model

// SummaryRow aggregates the records of one category
type SummaryRow struct {
	Category Category `json:"keyword"`
	Total    int      `json:"total"`    // Records with a URL
	Negative int      `json:"negative"` // Subset whose title reads as a direct allegation
}

// Totals sums the summary rows
type Totals struct {
	Total    int `json:"total"`
	Negative int `json:"negative"`
}

// Summary is the quick per-category overview shown before link verification details
type Summary struct {
	Rows   []SummaryRow `json:"rows"`
	Totals Totals       `json:"totals"`
}

// Status tells the caller whether every record was verified normally
type Status string

const (
	StatusComplete Status = "complete" // Every record was fetched and matched
	StatusPartial  Status = "partial"  // Some records degraded (fetch failure or analyzer error); data still usable
)

// VerifyStats counts verification outcomes for one batch
type VerifyStats struct {
	Records      int `json:"records"`
	Yes          int `json:"yes"`
	No           int `json:"no"`
	Skipped      int `json:"skipped"`      // Not fetched: missing URL or pattern
	FetchFailed  int `json:"fetch_failed"` // Fetched page was empty or non-HTML
	AnalyzerErrs int `json:"analyzer_errors"`
}

// Status derives the batch status from the counts
func (s VerifyStats) Status() Status {
	if s.FetchFailed > 0 || s.AnalyzerErrs > 0 {
		return StatusPartial
	}
	return StatusComplete
}

// AnalyzeReport is the payload of a successful analyze request
type AnalyzeReport struct {
	ReportName string           `json:"report_name,omitempty"`
	Summary    Summary          `json:"summary"`
	DebugCount map[Category]int `json:"debugCount"` // Parsed records per category
	Sample     []string         `json:"sample"`     // Leading lines of the extracted text
	Status     Status           `json:"status"`
	Stats      VerifyStats      `json:"stats"`
	Findings   []VerifiedRecord `json:"findings,omitempty"`
}
