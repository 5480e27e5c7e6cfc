// Package keywords implements first-match-wins substring classification over
// ordered keyword tables.
package keywords

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/kiranshivaraju/medinventory/pkg/models"
)

// Entry maps one lowercase substring to a label.
type Entry struct {
	Keyword string `yaml:"keyword"`
	Label   string `yaml:"label"`
}

// Table is an ordered keyword table. The first entry whose keyword occurs in
// the text wins; later entries are never consulted after a hit.
type Table struct {
	entries []Entry
}

// NewTable builds a table, normalizing keywords and dropping blank ones.
// The order of entries is preserved.
func NewTable(entries []Entry) Table {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		kw := Normalize(e.Keyword)
		if kw == "" {
			continue
		}
		out = append(out, Entry{Keyword: kw, Label: e.Label})
	}
	return Table{entries: out}
}

// NewList builds a table in which every keyword maps to the same label.
func NewList(label string, keywords ...string) Table {
	entries := make([]Entry, len(keywords))
	for i, kw := range keywords {
		entries[i] = Entry{Keyword: kw, Label: label}
	}
	return NewTable(entries)
}

// Match returns the label of the first keyword contained in text.
func (t Table) Match(text string) (string, bool) {
	return t.matchNormalized(Normalize(text))
}

func (t Table) matchNormalized(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	for _, e := range t.entries {
		if strings.Contains(text, e.Keyword) {
			return e.Label, true
		}
	}
	return "", false
}

// Len returns the number of entries.
func (t Table) Len() int { return len(t.entries) }

// Entries returns a copy of the table's entries in match order.
func (t Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Normalize lower-cases text and folds compatibility forms (full-width
// characters, ligatures) so keyword lookups are not defeated by encoding noise.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.ToLower(norm.NFKC.String(s))
}

// Tables bundles every keyword table the pipeline consults.
type Tables struct {
	Category Table

	// FacilityNeedsReview is checked before the suitability tables; a hit
	// short-circuits to Needs Review.
	FacilityNeedsReview Table
	FacilityRural       Table
	FacilityDistrict    Table
}

// Facility resolves facility suitability from keywords alone.
// A needs-review hit wins outright. Otherwise rural and district tables are
// scanned independently: both → Both, one → that tier, none → no match.
func (ts Tables) Facility(text string) (string, bool) {
	n := Normalize(text)
	if n == "" {
		return "", false
	}
	if _, ok := ts.FacilityNeedsReview.matchNormalized(n); ok {
		return models.LabelNeedsReview, true
	}
	_, rural := ts.FacilityRural.matchNormalized(n)
	_, district := ts.FacilityDistrict.matchNormalized(n)
	switch {
	case rural && district:
		return models.FacilityBoth, true
	case rural:
		return models.FacilityRural, true
	case district:
		return models.FacilityDistrict, true
	}
	return "", false
}
