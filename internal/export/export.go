// Package export renders verified records as an xlsx workbook, one sheet per category.
package export

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/negcheck/internal/model"
)

// Column layout shared by every sheet
var columns = []struct {
	header string
	width  float64
	wrap   bool
}{
	{"No.", 6, false},
	{"Person or legal entity", 28, false},
	{"URL", 50, true},
	{"Title", 60, true},
	{"Negative found", 16, false},
	{"Note", 40, true},
}

const (
	borderColor   = "D1D5DB"
	yesFillColor  = "FFC7CE"
	noteFillColor = "FFF2CC"

	formatRows = 2000 // last row covered by the conditional fills
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// FileName returns the download name for a report's workbook
func FileName(reportName string) string {
	name := strings.TrimSpace(reportName)
	name = strings.NewReplacer("/", "_", `\`, "_", `"`, "").Replace(name)
	name = whitespaceRe.ReplaceAllString(name, "_")
	if name == "" {
		name = "Report"
	}
	return name + "_Check.xlsx"
}

// Render builds the workbook and returns it as xlsx bytes
func Render(records []model.VerifiedRecord, reportName string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	styles, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[model.Category][]model.VerifiedRecord, len(model.Categories))
	for _, r := range records {
		if r.Category.Valid() {
			byCategory[r.Category] = append(byCategory[r.Category], r)
		}
	}

	for _, c := range model.Categories {
		if _, err := f.NewSheet(c.String()); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", c, err)
		}
		if err := writeSheet(f, c.String(), sortRecords(byCategory[c]), styles); err != nil {
			return nil, fmt.Errorf("write sheet %s: %w", c, err)
		}
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(0)

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   strings.TrimSpace(reportName),
		Creator: "negcheck",
	}); err != nil {
		return nil, fmt.Errorf("set document properties: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

type sheetStyles struct {
	header int
	cell   int
	wrap   int
	yes    int // conditional fill for the finding column
	note   int // conditional fill for the note column
}

func newStyles(f *excelize.File) (*sheetStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: borderColor, Style: 1},
		{Type: "top", Color: borderColor, Style: 1},
		{Type: "right", Color: borderColor, Style: 1},
		{Type: "bottom", Color: borderColor, Style: 1},
	}

	var s sheetStyles
	var err error

	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    border,
	}); err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	if s.cell, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top"},
		Border:    border,
	}); err != nil {
		return nil, fmt.Errorf("cell style: %w", err)
	}
	if s.wrap, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		Border:    border,
	}); err != nil {
		return nil, fmt.Errorf("wrap style: %w", err)
	}
	if s.yes, err = f.NewConditionalStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{yesFillColor}, Pattern: 1},
	}); err != nil {
		return nil, fmt.Errorf("finding highlight: %w", err)
	}
	if s.note, err = f.NewConditionalStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{noteFillColor}, Pattern: 1},
	}); err != nil {
		return nil, fmt.Errorf("note highlight: %w", err)
	}
	return &s, nil
}

func writeSheet(f *excelize.File, sheet string, records []model.VerifiedRecord, st *sheetStyles) error {
	lastCol, _ := excelize.ColumnNumberToName(len(columns))

	for i, col := range columns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet, name, name, col.width); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, name+"1", col.header); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", st.header); err != nil {
		return err
	}

	for i, r := range records {
		row := i + 2
		values := []any{i + 1, r.Entity, r.URL, r.Title, r.Finding.String(), r.Note}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		if r.URL != "" {
			if err := f.SetCellHyperLink(sheet, fmt.Sprintf("C%d", row), r.URL, "External"); err != nil {
				return err
			}
		}
		for c, col := range columns {
			name, _ := excelize.CoordinatesToCellName(c+1, row)
			style := st.cell
			if col.wrap {
				style = st.wrap
			}
			if err := f.SetCellStyle(sheet, name, name, style); err != nil {
				return err
			}
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if err := f.AutoFilter(sheet, "A1:"+lastCol+"1", nil); err != nil {
		return err
	}

	yesRule := `EXACT($E2,"Yes")`
	if err := f.SetConditionalFormat(sheet, fmt.Sprintf("E2:E%d", formatRows), []excelize.ConditionalFormatOptions{
		{Type: "formula", Criteria: yesRule, Format: st.yes},
	}); err != nil {
		return err
	}
	return f.SetConditionalFormat(sheet, fmt.Sprintf("F2:F%d", formatRows), []excelize.ConditionalFormatOptions{
		{Type: "formula", Criteria: yesRule, Format: st.note},
	})
}

// sortRecords orders a sheet by entity, then title, ignoring case
func sortRecords(records []model.VerifiedRecord) []model.VerifiedRecord {
	out := make([]model.VerifiedRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		ei, ej := strings.ToLower(out[i].Entity), strings.ToLower(out[j].Entity)
		if ei != ej {
			return ei < ej
		}
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return out
}
