package model

import (
	"fmt"
	"strings"
)

// Category is one of the fixed negative-news classes a report groups findings into
type Category int

const (
	CategoryMoneyLaundering Category = iota
	CategoryBribe
	CategoryCorrupt
	CategoryFraud
	CategoryLitigation
	CategoryAbuse
	CategoryCartel
	CategoryAntitrust

	categoryCount
)

// Categories lists every category in report order. Summary rows and workbook
// sheets follow this order.
var Categories = []Category{
	CategoryMoneyLaundering,
	CategoryBribe,
	CategoryCorrupt,
	CategoryFraud,
	CategoryLitigation,
	CategoryAbuse,
	CategoryCartel,
	CategoryAntitrust,
}

// Valid reports whether c is one of the fixed categories
func (c Category) Valid() bool {
	return c >= 0 && c < categoryCount
}

// String returns the display name used in report headers and sheet names
func (c Category) String() string {
	switch c {
	case CategoryMoneyLaundering:
		return "Money Laundering"
	case CategoryBribe:
		return "Bribe"
	case CategoryCorrupt:
		return "Corrupt"
	case CategoryFraud:
		return "Fraud"
	case CategoryLitigation:
		return "Litigation"
	case CategoryAbuse:
		return "Abuse"
	case CategoryCartel:
		return "Cartel"
	case CategoryAntitrust:
		return "Antitrust"
	default:
		return fmt.Sprintf("Category(%d)", int(c))
	}
}

// Code returns the short item code that introduces a finding in a report
func (c Category) Code() string {
	switch c {
	case CategoryMoneyLaundering:
		return "ML"
	case CategoryBribe:
		return "BR"
	case CategoryCorrupt:
		return "CR"
	case CategoryFraud:
		return "FR"
	case CategoryLitigation:
		return "LI"
	case CategoryAbuse:
		return "AB"
	case CategoryCartel:
		return "CA"
	case CategoryAntitrust:
		return "EX1"
	default:
		return ""
	}
}

// CategoryFromCode maps an item code (case-insensitive) to its category.
// "CO" marks clarification blocks and is never a category.
func CategoryFromCode(code string) (Category, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || code == "CO" {
		return 0, false
	}
	for _, c := range Categories {
		if c.Code() == code {
			return c, true
		}
	}
	return 0, false
}

// CategoryFromName matches a whole header line against the category names.
// Only exact, case-insensitive matches count; substrings do not.
func CategoryFromName(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false
	}
	for _, c := range Categories {
		if strings.EqualFold(c.String(), name) {
			return c, true
		}
	}
	return 0, false
}

// MarshalText encodes the category by display name
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid category: %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a display name
func (c *Category) UnmarshalText(text []byte) error {
	parsed, ok := CategoryFromName(string(text))
	if !ok {
		return fmt.Errorf("unknown category: %q", string(text))
	}
	*c = parsed
	return nil
}

// NewCategoryCounts returns a zeroed count for every category
func NewCategoryCounts() map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = 0
	}
	return counts
}
