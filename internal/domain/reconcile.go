package domain

import (
	"maps"
	"regexp"
	"slices"
	"time"
)

var isoCodeRe = regexp.MustCompile(`^[A-Z]{2}$`)

// Reconcile compares batch against history. Every batch record is appended
// to history, changed or not; Changed marks records whose publish date
// differs from the latest previously recorded for the code.
func Reconcile(batch, history []Record) Reconciliation {
	prior := make(map[string]time.Time, len(history))
	for _, r := range history {
		if cur, ok := prior[r.CountryCode]; !ok || r.PublishedOn.After(cur) {
			prior[r.CountryCode] = r.PublishedOn
		}
	}

	reconciled := make([]Reconciled, 0, len(batch))
	for _, r := range batch {
		p, ok := prior[r.CountryCode]
		reconciled = append(reconciled, Reconciled{
			Record:           r,
			Changed:          !ok || !r.PublishedOn.Equal(p),
			PriorPublishedOn: p,
		})
	}

	merged := make([]Record, 0, len(history)+len(batch))
	merged = append(merged, history...)
	merged = append(merged, batch...)

	return Reconciliation{
		Batch:   reconciled,
		History: merged,
		Latest:  LatestState(merged),
	}
}

// LatestState projects records to the most recently published record per
// country code, ordered by code. Ties on date go to the record seen last.
func LatestState(records []Record) []Record {
	latest := make(map[string]Record)
	for _, r := range records {
		if cur, ok := latest[r.CountryCode]; !ok || !r.PublishedOn.Before(cur.PublishedOn) {
			latest[r.CountryCode] = r
		}
	}
	out := make([]Record, 0, len(latest))
	for _, code := range slices.Sorted(maps.Keys(latest)) {
		out = append(out, latest[code])
	}
	return out
}

// ValidateRecord checks a persisted record against the record invariants.
// A zero ThreatNumber is accepted for rows that predate the column.
func ValidateRecord(r Record, table CodeTable, today time.Time) error {
	if table.IsAggregate(r.CountryCode) {
		return &ConsistencyError{Code: r.CountryCode, Reason: "aggregate code was not expanded"}
	}
	if !isoCodeRe.MatchString(r.CountryCode) {
		return &ConsistencyError{Code: r.CountryCode, Reason: "country code is not two uppercase letters"}
	}
	if r.PublishedOn.After(today) {
		return &ConsistencyError{Code: r.CountryCode, Reason: "published after " + today.Format(DateLayout)}
	}
	if r.ThreatNumber == 0 {
		return nil
	}
	n, err := ParseThreatNumber(r.ThreatLevel)
	if err != nil {
		return err
	}
	if n != r.ThreatNumber {
		return &ConsistencyError{Code: r.CountryCode, Reason: "threat number does not match level label"}
	}
	return nil
}
