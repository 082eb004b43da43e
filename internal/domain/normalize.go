package domain

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Normalized is one normalizer result. Gap is set when the jurisdiction code
// passed through without a mapping.
type Normalized struct {
	Record Record
	Gap    *MappingGap
}

// Normalizer maps raw feed entries to canonical records.
type Normalizer struct {
	table CodeTable
	rules []Rule
	clock clockwork.Clock
	loc   *time.Location
}

// NewNormalizer creates a Normalizer. A nil clock uses real time and a nil
// location uses UTC.
func NewNormalizer(table CodeTable, rules []Rule, clock clockwork.Clock, loc *time.Location) *Normalizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{
		table: table,
		rules: append([]Rule(nil), rules...),
		clock: clock,
		loc:   loc,
	}
}

// Today returns the processing date.
func (n *Normalizer) Today() time.Time {
	return Date(n.clock.Now(), n.loc)
}

// Normalize converts one entry. It fails with a ParseError when the level
// label has no number, the jurisdiction is missing, or the publish time is
// unset.
func (n *Normalizer) Normalize(entry RawEntry) (Normalized, error) {
	if len(entry.Tags) == 0 {
		return Normalized{}, &ParseError{Field: "tags", Value: entry.Title, Reason: "no threat level tag"}
	}
	level := entry.Tags[0]
	number, err := ParseThreatNumber(level)
	if err != nil {
		return Normalized{}, err
	}

	if entry.Published.IsZero() {
		return Normalized{}, &ParseError{Field: "published", Value: entry.Title, Reason: "missing publish time"}
	}
	published := Date(entry.Published, n.loc)
	if today := n.Today(); published.After(today) {
		published = today
	}

	raw := jurisdictionTag(entry)
	code, mapped := n.table.Resolve(raw)
	if override, ok := applyRules(n.rules, entry); ok {
		code, mapped = override, true
	}
	if code == "" {
		return Normalized{}, &ParseError{Field: "jurisdiction", Value: entry.Title, Reason: "no jurisdiction code"}
	}

	out := Normalized{
		Record: Record{
			CountryCode:  code,
			PublishedOn:  published,
			ThreatLevel:  level,
			ThreatNumber: number,
		},
	}
	if !mapped {
		out.Gap = &MappingGap{Code: raw, Name: entry.Name()}
	}
	return out, nil
}

// NormalizeBatch converts every entry, stopping at the first failure. Mapping
// gaps are collected rather than returned as errors.
func (n *Normalizer) NormalizeBatch(entries []RawEntry) ([]Record, []MappingGap, error) {
	records := make([]Record, 0, len(entries))
	var gaps []MappingGap
	for _, e := range entries {
		res, err := n.Normalize(e)
		if err != nil {
			return nil, nil, fmt.Errorf("normalize entry %q: %w", e.Title, err)
		}
		records = append(records, res.Record)
		if res.Gap != nil {
			gaps = append(gaps, *res.Gap)
		}
	}
	return records, gaps, nil
}

// FilterSince drops records published before cutoff. A zero cutoff keeps
// everything.
func FilterSince(records []Record, cutoff time.Time) []Record {
	if cutoff.IsZero() {
		return records
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if !r.PublishedOn.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}
