// Package rules holds the keyword vocabulary used to confirm a category on a fetched page.
package rules

import (
	"regexp"

	"github.com/ppiankov/negcheck/internal/model"
)

// Set maps a category to its keyword pattern
type Set interface {
	Pattern(c model.Category) (*regexp.Regexp, bool)
}

var (
	moneyLaunderingRe = regexp.MustCompile(`(?i)\b(launder(ing|ed|s)?|anti[-\s]?money[-\s]?laundering|aml)\b`)
	bribeRe           = regexp.MustCompile(`(?i)\b(brib(e|es|ed|ery|ing)|kickbacks?|pay[-\s]?offs?|gratification)\b`)
	corruptRe         = regexp.MustCompile(`(?i)\b(corrupt(ion|ed|ly)?|malfeasance|graft)\b`)
	fraudRe           = regexp.MustCompile(`(?i)\b(fraud(ulent|ster|sters|s)?|scams?|false\s*claims?|decept(ion|ive))\b`)
	litigationRe      = regexp.MustCompile(`(?i)\b(lawsuits?|sue[sd]?|suing|filed|complaints?|settlements?|consent\s*decree|charged?|charges)\b`)
	abuseRe           = regexp.MustCompile(`(?i)\b(abuse[sd]?|abusive|harass(ment|ed)?|misconduct|bully(ing)?|assault(ed)?)\b`)
	cartelRe          = regexp.MustCompile(`(?i)\b(cartels?|price[-\s]?fix(ing|ed)?|bid[-\s]?rigging|rigg(ing|ed)|collus(ion|ive))\b`)
	antitrustRe       = regexp.MustCompile(`(?i)\b(anti[-\s]?trust|competition\s*law|monopol(y|ies|istic)|restraint\s*of\s*trade)\b`)
)

type defaultSet struct{}

// Default returns the built-in rule set. It has a pattern for every category.
func Default() Set {
	return defaultSet{}
}

func (defaultSet) Pattern(c model.Category) (*regexp.Regexp, bool) {
	switch c {
	case model.CategoryMoneyLaundering:
		return moneyLaunderingRe, true
	case model.CategoryBribe:
		return bribeRe, true
	case model.CategoryCorrupt:
		return corruptRe, true
	case model.CategoryFraud:
		return fraudRe, true
	case model.CategoryLitigation:
		return litigationRe, true
	case model.CategoryAbuse:
		return abuseRe, true
	case model.CategoryCartel:
		return cartelRe, true
	case model.CategoryAntitrust:
		return antitrustRe, true
	default:
		return nil, false
	}
}

type mapSet map[model.Category]*regexp.Regexp

// New builds a set from explicit patterns. Categories left out have no pattern.
func New(patterns map[model.Category]*regexp.Regexp) Set {
	m := make(mapSet, len(patterns))
	for c, re := range patterns {
		if re != nil && c.Valid() {
			m[c] = re
		}
	}
	return m
}

func (m mapSet) Pattern(c model.Category) (*regexp.Regexp, bool) {
	re, ok := m[c]
	return re, ok
}
