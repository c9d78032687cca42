// Package summary builds the per-category overview from parsed or verified records.
package summary

import (
	"regexp"
	"strings"

	"github.com/ppiankov/negcheck/internal/model"
)

// Title cues that read as a direct allegation. Kept conservative: a topic word
// alone ("fraud") is not enough, it has to come with a case or probe.
var negativeTitleCues = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(indict(ed|ment)?|charge[sd]?|sue[sd]?|convict(ed|ion)?|plead(ed|s)?\s+guilty|arrest(ed)?|fined|penalt(y|ies)|sanction(ed|s)?)\b`),
	regexp.MustCompile(`(?i)\b(class\s+action|lawsuits?|settlements?)\b`),
	regexp.MustCompile(`(?i)\b(bribe(ry)?|kickbacks?|corrupt(ion)?|fraud|money\s+launder(ing|ed)|cartel|antitrust)\b.*\b(case|probe|investigation|alleg(ation|ations|e|ed))\b`),
}

// NegativeTitle reports whether a title reads as negative news
func NegativeTitle(title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}
	for _, re := range negativeTitleCues {
		if re.MatchString(title) {
			return true
		}
	}
	return false
}

// Build aggregates records into one row per category, in fixed category order.
// Only records with a URL are counted; records outside the fixed categories are ignored.
func Build[T model.Entry](records []T) model.Summary {
	index := make(map[model.Category]int, len(model.Categories))
	rows := make([]model.SummaryRow, len(model.Categories))
	for i, c := range model.Categories {
		rows[i] = model.SummaryRow{Category: c}
		index[c] = i
	}

	for _, e := range records {
		r := e.Raw()
		i, ok := index[r.Category]
		if !ok || strings.TrimSpace(r.URL) == "" {
			continue
		}
		rows[i].Total++
		if NegativeTitle(r.Title) {
			rows[i].Negative++
		}
	}

	var totals model.Totals
	for _, row := range rows {
		totals.Total += row.Total
		totals.Negative += row.Negative
	}

	return model.Summary{Rows: rows, Totals: totals}
}
