package model

import (
	"fmt"
	"strings"
)

// UnknownEntity is the entity name used when a report item does not name one
const UnknownEntity = "Unknown"

// RawRecord is one finding recovered from report text
type RawRecord struct {
	Category Category `json:"keyword"`         // Category the report filed the item under
	Entity   string   `json:"entity"`          // Person or legal entity named by the item
	Title    string   `json:"title,omitempty"` // Article title, may be empty
	URL      string   `json:"url,omitempty"`   // Article URL, may be empty
}

// Raw returns the record itself so raw and verified records share one interface
func (r RawRecord) Raw() RawRecord {
	return r
}

// HasEntity reports whether the record names a real entity
func (r RawRecord) HasEntity() bool {
	e := strings.TrimSpace(r.Entity)
	return e != "" && e != UnknownEntity
}

// Entry is implemented by RawRecord and VerifiedRecord
type Entry interface {
	Raw() RawRecord
}

// Finding is the page-level verification outcome
type Finding bool

const (
	FindingNo  Finding = false
	FindingYes Finding = true
)

func (f Finding) String() string {
	if f {
		return "Yes"
	}
	return "No"
}

// MarshalText encodes the finding as "Yes" or "No"
func (f Finding) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText accepts "Yes"/"No" (case-insensitive)
func (f *Finding) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "yes":
		*f = FindingYes
	case "no", "":
		*f = FindingNo
	default:
		return fmt.Errorf("unknown finding: %q", string(text))
	}
	return nil
}

// VerifiedRecord is a RawRecord after its link has been checked
type VerifiedRecord struct {
	RawRecord
	Finding Finding `json:"finding"`
	Note    string  `json:"note"` // Evidence excerpt, or the reason the finding is No
}

// Verdict is the result of one verification step
type Verdict struct {
	Finding Finding
	Note    string
}

// Apply attaches the verdict to a raw record
func (v Verdict) Apply(r RawRecord) VerifiedRecord {
	return VerifiedRecord{RawRecord: r, Finding: v.Finding, Note: v.Note}
}
