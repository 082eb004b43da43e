package domain

import (
	"strings"
	"time"
)

// DateLayout is the canonical serialized form of a record's publish date.
const DateLayout = "2006-01-02"

// RawEntry is one advisory item as delivered by the feed.
type RawEntry struct {
	Title     string
	Published time.Time
	Tags      []string // tag[0] = threat level label, tag[1] = jurisdiction code
}

// Name returns the jurisdiction name portion of the title, e.g.
// "Macau - Level 2: Exercise Increased Caution" -> "Macau".
func (e RawEntry) Name() string {
	name, _, _ := strings.Cut(e.Title, " - ")
	return strings.TrimSpace(name)
}

// Record is the canonical per-country advisory reading.
type Record struct {
	CountryCode  string    `json:"country_code"`
	PublishedOn  time.Time `json:"published_on"`
	ThreatLevel  string    `json:"threat_level"`
	ThreatNumber int       `json:"threat_number,omitempty"` // 0 on rows persisted before the column existed
}

// Date truncates t to its calendar date in loc and returns midnight UTC of
// that date, so records compare equal regardless of source timezone.
func Date(t time.Time, loc *time.Location) time.Time {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Reconciled is a batch record annotated with its comparison against history.
type Reconciled struct {
	Record
	Changed bool
	// PriorPublishedOn is the latest date previously recorded for the code,
	// zero when the code had no history.
	PriorPublishedOn time.Time
}

// Reconciliation is the outcome of merging a batch into history.
type Reconciliation struct {
	Batch   []Reconciled
	History []Record // existing rows followed by the full batch
	Latest  []Record // one record per country code, ordered by code
}

// ChangedOnly returns the batch records whose publish date differs from the
// prior latest for their country.
func (r Reconciliation) ChangedOnly() []Reconciled {
	var out []Reconciled
	for _, rec := range r.Batch {
		if rec.Changed {
			out = append(out, rec)
		}
	}
	return out
}
