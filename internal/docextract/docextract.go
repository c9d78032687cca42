// Package docextract turns an uploaded report (PDF, DOCX or plain text) into text lines.
package docextract

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"code.sajari.com/docconv/v2"
	"github.com/ledongthuc/pdf"
)

// ErrUnreadable is returned when no extractor produced any text
var ErrUnreadable = errors.New("unsupported or unreadable file type")

// Kind is a supported document format
type Kind int

const (
	KindUnknown Kind = iota
	KindPDF
	KindDOCX
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindDOCX:
		return "docx"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// DetectKind picks the format from a MIME type or file name hint, then from
// the path's extension
func DetectKind(path, hint string) Kind {
	hint = strings.TrimSpace(hint)
	if mediaType, _, err := mime.ParseMediaType(hint); err == nil && strings.Contains(mediaType, "/") {
		switch {
		case mediaType == "application/pdf":
			return KindPDF
		case mediaType == docxMIME:
			return KindDOCX
		case mediaType == "text/plain":
			return KindText
		}
	}
	if k := kindFromExt(hint); k != KindUnknown {
		return k
	}
	return kindFromExt(path)
}

func kindFromExt(name string) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDOCX
	case ".txt", ".text":
		return KindText
	default:
		return KindUnknown
	}
}

// ExtractText reads the document at path. hint is the uploaded file's MIME type
// or original name and may be empty.
//
// The detected format is tried first. When it fails or yields no text, PDF and
// then DOCX are tried. Carriage returns are removed from the result.
func ExtractText(path, hint string) (string, error) {
	kind := DetectKind(path, hint)

	tried := make(map[Kind]bool, 2)
	attempts := []Kind{kind, KindPDF, KindDOCX}

	var lastErr error
	for _, k := range attempts {
		if k == KindUnknown || tried[k] {
			continue
		}
		tried[k] = true

		text, err := extract(k, path)
		if err != nil {
			slog.Debug("document extraction failed", "path", path, "kind", k.String(), "error", err)
			lastErr = err
			continue
		}
		text = strings.ReplaceAll(text, "\r", "")
		if strings.TrimSpace(text) == "" {
			lastErr = fmt.Errorf("%s: no text", k)
			continue
		}
		return text, nil
	}

	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, lastErr)
	}
	return "", ErrUnreadable
}

func extract(k Kind, path string) (string, error) {
	switch k {
	case KindPDF:
		return extractPDF(path)
	case KindDOCX:
		return extractDOCX(path)
	case KindText:
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported kind %s", k)
	}
}

// extractPDF reads text row by row so report lines survive. Pages the row
// reader cannot handle fall back to plain text.
func extractPDF(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panicked: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		sb.WriteString(pageText(p))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// pageText rebuilds the page's lines from positioned glyphs. Rows run top to
// bottom, glyphs within a row left to right. Pages without positioned text
// fall back to the plain text stream.
func pageText(p pdf.Page) string {
	if text := rowText(p); strings.TrimSpace(text) != "" {
		return text
	}
	plain, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return plain
}

func rowText(p pdf.Page) (text string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("pdf content walk failed", "error", r)
			text = ""
		}
	}()

	glyphs := p.Content().Text
	if len(glyphs) == 0 {
		return ""
	}

	// PDF y grows upwards
	sorted := make([]pdf.Text, len(glyphs))
	copy(sorted, glyphs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var sb strings.Builder
	var row []pdf.Text
	var rowY float64
	flush := func() {
		if line := joinRow(row); line != "" {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		row = row[:0]
	}
	for _, g := range sorted {
		if len(row) > 0 && rowY-g.Y > fontSize(row[0])*0.5 {
			flush()
		}
		if len(row) == 0 {
			rowY = g.Y
		}
		row = append(row, g)
	}
	flush()
	return sb.String()
}

// joinRow orders a row's glyphs by x and inserts a space wherever the gap to
// the next glyph exceeds a fifth of the font size
func joinRow(row []pdf.Text) string {
	if len(row) == 0 {
		return ""
	}
	// Stable so fonts without widths keep content order
	sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })

	var sb strings.Builder
	for i, g := range row {
		sb.WriteString(g.S)
		if i == len(row)-1 {
			break
		}
		if gap := row[i+1].X - (g.X + g.W); gap > fontSize(g)*0.2 {
			sb.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func fontSize(t pdf.Text) float64 {
	if t.FontSize <= 0 {
		return 12
	}
	return t.FontSize
}

func extractDOCX(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer func() { _ = f.Close() }()

	text, _, err := docconv.ConvertDocx(f)
	if err != nil {
		return "", fmt.Errorf("convert docx: %w", err)
	}
	return text, nil
}
