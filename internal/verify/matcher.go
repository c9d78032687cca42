package verify

import (
	"regexp"
	"strings"

	"github.com/ppiankov/negcheck/internal/model"
)

// Evidence prefixes
const (
	EvidencePrefix       = "Evidence: "
	NearbyEvidencePrefix = "Evidence (nearby): "
)

// maxParagraphLen is the size above which a line is split into sentences
const maxParagraphLen = 1200

// Matcher decides whether an entity and a category pattern co-occur on a page
type Matcher struct {
	preview int
	window  int
	margin  int
}

// NewMatcher creates a matcher; non-positive sizes fall back to the defaults
func NewMatcher(cfg model.MatcherConfig) *Matcher {
	defaults := model.DefaultConfig().Matcher
	m := &Matcher{preview: cfg.PreviewLength, window: cfg.ProximityWindow, margin: cfg.Margin}
	if m.preview <= 0 {
		m.preview = defaults.PreviewLength
	}
	if m.window <= 0 {
		m.window = defaults.ProximityWindow
	}
	if m.margin < 0 {
		m.margin = defaults.Margin
	}
	return m
}

type span struct{ start, end int }

// Match returns an evidence excerpt, or "" when the entity and pattern do not co-occur.
//
// The first pass looks for a paragraph holding both. Only when that fails does
// the second pass accept an entity and a pattern match that sit within the
// proximity window of each other anywhere on the page.
func (m *Matcher) Match(pageText, entity string, pattern *regexp.Regexp) string {
	entity = strings.TrimSpace(entity)
	if entity == "" || entity == model.UnknownEntity || pattern == nil || pageText == "" {
		return ""
	}
	entityRe, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(entity))
	if err != nil {
		return ""
	}

	paragraphs := splitParagraphs(pageText)

	for _, p := range paragraphs {
		ents := entityRe.FindAllStringIndex(p, -1)
		if len(ents) == 0 {
			continue
		}
		pats := pattern.FindAllStringIndex(p, -1)
		if len(pats) == 0 {
			continue
		}
		return EvidencePrefix + m.excerpt(p, ents, pats)
	}

	joined := strings.Join(paragraphs, " ")
	ents := runeSpans(joined, entityRe.FindAllStringIndex(joined, -1))
	pats := runeSpans(joined, pattern.FindAllStringIndex(joined, -1))
	a, b, gap, ok := nearest(ents, pats)
	if !ok || gap > m.window {
		return ""
	}

	text := []rune(joined)
	start := max(0, min(a.start, b.start)-m.margin)
	end := min(len(text), max(a.end, b.end)+m.margin)
	return NearbyEvidencePrefix + clip(text, start, end)
}

// excerpt cuts a paragraph down to the preview length, keeping the nearest
// entity/pattern pair inside it. ents and pats are byte offsets into p; all
// sizes are counted in characters.
func (m *Matcher) excerpt(p string, ents, pats [][]int) string {
	text := []rune(p)
	if len(text) <= m.preview {
		return p
	}

	a, b, _, _ := nearest(runeSpans(p, ents), runeSpans(p, pats))
	lo, hi := min(a.start, b.start), max(a.end, b.end)

	if hi-lo <= m.preview {
		pad := (m.preview - (hi - lo)) / 2
		start := max(0, lo-pad)
		end := min(len(text), start+m.preview)
		if end < hi {
			end = hi
		}
		if end-start < m.preview {
			start = max(0, end-m.preview)
		}
		return clip(text, start, end)
	}

	// Too far apart for one window: show both ends
	half := m.preview / 2
	first, second := a, b
	if b.start < a.start {
		first, second = b, a
	}
	return clip(text, max(0, first.start-half/4), min(len(text), first.end+half)) + " " +
		clip(text, max(0, second.start-half), min(len(text), second.end+half/4))
}

// runeSpans converts regexp byte offsets into s to character offsets
func runeSpans(s string, locs [][]int) [][]int {
	if len(locs) == 0 {
		return locs
	}
	pos := make([]int, len(s)+1)
	n := 0
	for i := range s {
		pos[i] = n
		n++
	}
	pos[len(s)] = n

	out := make([][]int, len(locs))
	for i, l := range locs {
		out[i] = []int{pos[l[0]], pos[l[1]]}
	}
	return out
}

// nearest returns the entity/pattern pair with the smallest gap between them
func nearest(ents, pats [][]int) (ent, pat span, gap int, ok bool) {
	gap = -1
	for _, e := range ents {
		for _, q := range pats {
			g := 0
			switch {
			case q[0] >= e[1]:
				g = q[0] - e[1]
			case e[0] >= q[1]:
				g = e[0] - q[1]
			}
			if gap < 0 || g < gap {
				gap = g
				ent, pat = span{e[0], e[1]}, span{q[0], q[1]}
			}
		}
	}
	return ent, pat, gap, gap >= 0
}

// clip returns text[start:end] with "..." where text was cut
func clip(text []rune, start, end int) string {
	out := strings.TrimSpace(string(text[start:end]))
	if start > 0 {
		out = "..." + out
	}
	if end < len(text) {
		out += "..."
	}
	return out
}

// splitParagraphs returns the non-empty lines of page text. Very long lines are
// broken at sentence ends so one paragraph does not span a whole page.
func splitParagraphs(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) <= maxParagraphLen {
			out = append(out, line)
			continue
		}
		out = append(out, splitSentences(line)...)
	}
	return out
}

// splitSentences splits after '.', '!' or '?' followed by whitespace
func splitSentences(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			if s[i+1] == ' ' {
				if sent := strings.TrimSpace(s[start : i+1]); sent != "" {
					out = append(out, sent)
				}
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
