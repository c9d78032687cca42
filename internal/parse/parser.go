// Package parse recovers finding records from the free text of a negative-news report.
//
// Reports are human-authored and only loosely structured. Each finding starts with
// an item head such as "3. BR Acme Holdings" and is followed by labelled fields
// ("Title:", "URL:") within a few lines. The parser is a single pass over an
// immutable line slice; helpers take the line index they start from and return
// what they consumed, so each rule can be tested on its own.
package parse

import (
	"regexp"
	"strings"

	"github.com/ppiankov/negcheck/internal/model"
)

// Default lookahead windows, in lines
const (
	DefaultEntityLookahead = 5
	DefaultFieldWindow     = 30
)

var (
	itemHeadRe   = regexp.MustCompile(`^\s*(\d+)\s*[.)\-]?\s*([A-Za-z0-9]{2,3})\b(?:\s+(.*))?$`)
	labelRe      = regexp.MustCompile(`(?i)^(?:\d+\.\s*)?(title|url|link|description|finding|comment|co\s*clarification|clarification)\b`)
	nonDataRe    = regexp.MustCompile(`(?i)^(?:\d+\.\s*)?(finding|comment|co\s*clarification|clarification)\b`)
	titleLabelRe = regexp.MustCompile(`(?i)^(?:\d+\.\s*)?title\b[:\-\s]*(.*)$`)
	urlLabelRe   = regexp.MustCompile(`(?i)^(?:\d+\.\s*)?(?:url|link)\b[:\-\s]*(https?://\S+)`)
	bareURLRe    = regexp.MustCompile(`(?i)https?://\S+`)
	spacesRe     = regexp.MustCompile(` {2,}`)
)

// Result is the parser output
type Result struct {
	Records []model.RawRecord
	Counts  map[model.Category]int // Records per category, every category present
}

// Parser holds the lookahead windows. It has no other state and is safe for concurrent use.
type Parser struct {
	entityLookahead int
	fieldWindow     int
}

// New creates a parser from config. Non-positive windows fall back to the defaults.
func New(cfg model.ParserConfig) *Parser {
	p := &Parser{
		entityLookahead: cfg.EntityLookahead,
		fieldWindow:     cfg.FieldWindow,
	}
	if p.entityLookahead <= 0 {
		p.entityLookahead = DefaultEntityLookahead
	}
	if p.fieldWindow <= 0 {
		p.fieldWindow = DefaultFieldWindow
	}
	return p
}

// Parse runs a parser with the default windows
func Parse(text string) Result {
	return New(model.ParserConfig{}).Parse(text)
}

// Parse extracts records in document order. It never fails; text with no
// recognisable items yields an empty result.
func (p *Parser) Parse(text string) Result {
	lines := Lines(text)
	res := Result{Counts: model.NewCategoryCounts()}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			continue
		}

		// Section headers carry no record data; the item code decides the category.
		if _, ok := categoryHeader(line); ok {
			continue
		}

		head, ok := parseItemHead(line)
		if !ok {
			continue
		}

		entity, entityLine := head.rest, -1
		seed := ""
		if entity == "" || labelRe.MatchString(entity) {
			seed = entity
			entity, entityLine = p.lookupEntity(lines, i+1)
		}
		if entity == "" {
			entity = model.UnknownEntity
		}

		title, url := p.scanFields(lines, i+1, entityLine, seed)
		if title == "" && url == "" {
			continue
		}

		res.Records = append(res.Records, model.RawRecord{
			Category: head.category,
			Entity:   entity,
			Title:    title,
			URL:      url,
		})
		res.Counts[head.category]++
	}

	return res
}

// Lines normalises report text and splits it into trimmed lines.
// Tabs and non-breaking spaces become spaces and runs of spaces collapse.
func Lines(text string) []string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.NewReplacer("\t", " ", "\u00a0", " ").Replace(text)
	text = spacesRe.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return lines
}

type itemHead struct {
	category model.Category
	rest     string
}

// parseItemHead recognises "<n>[.)-] <CODE> [rest]" lines with a known code.
// The returned category is always valid when ok is true.
func parseItemHead(line string) (itemHead, bool) {
	m := itemHeadRe.FindStringSubmatch(line)
	if m == nil {
		return itemHead{}, false
	}
	c, ok := model.CategoryFromCode(m[2])
	if !ok {
		return itemHead{}, false
	}
	return itemHead{category: c, rest: strings.TrimSpace(m[3])}, true
}

func categoryHeader(line string) (model.Category, bool) {
	return model.CategoryFromName(line)
}

// isBoundary reports whether a line starts the next item or a new category section
func isBoundary(line string) bool {
	if _, ok := categoryHeader(line); ok {
		return true
	}
	_, ok := parseItemHead(line)
	return ok
}

func isBareURL(line string) bool {
	loc := bareURLRe.FindStringIndex(line)
	return loc != nil && loc[0] == 0 && loc[1] == len(line)
}

// lookupEntity returns the first plausible entity line in the lookahead window
// starting at from, and its index. An empty "Title" label ends the search since
// the line after it is the article title.
func (p *Parser) lookupEntity(lines []string, from int) (string, int) {
	end := min(len(lines), from+p.entityLookahead)
	for j := from; j < end; j++ {
		l := lines[j]
		if l == "" {
			continue
		}
		if isBoundary(l) {
			break
		}
		if m := titleLabelRe.FindStringSubmatch(l); m != nil && strings.TrimSpace(m[1]) == "" {
			break
		}
		if labelRe.MatchString(l) || isBareURL(l) {
			continue
		}
		return l, j
	}
	return "", -1
}

// scanFields collects title and url from the field window starting at from.
// The line at skip was consumed as the entity and is ignored. A non-empty seed is
// a label found on the item head itself and is read before the window.
func (p *Parser) scanFields(lines []string, from, skip int, seed string) (title, url string) {
	titlePending := false

	// take consumes one line and reports whether the scan must stop
	take := func(l string) bool {
		if isBoundary(l) {
			return true
		}
		if nonDataRe.MatchString(l) {
			return false
		}

		if m := titleLabelRe.FindStringSubmatch(l); m != nil {
			if title == "" {
				title = strings.TrimSpace(m[1])
				titlePending = title == ""
			}
			return false
		}

		if m := urlLabelRe.FindStringSubmatch(l); m != nil {
			if url == "" {
				url = cleanURL(m[1])
			}
			return false
		}

		if titlePending && !labelRe.MatchString(l) && !isBareURL(l) {
			title = l
			titlePending = false
			return false
		}

		if url == "" {
			if m := bareURLRe.FindString(l); m != "" {
				url = cleanURL(m)
			}
		}
		return false
	}

	if seed != "" {
		take(seed)
	}

	end := min(len(lines), from+p.fieldWindow)
	for j := from; j < end; j++ {
		l := lines[j]
		if l == "" || j == skip {
			continue
		}
		if take(l) {
			break
		}
	}

	return title, url
}

// cleanURL drops sentence punctuation that sticks to URLs in prose
func cleanURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), ".,;:\"'>")
}
