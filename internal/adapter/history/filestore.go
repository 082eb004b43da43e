// Package history persists the append-only advisory history to a local file.
package history

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/travel-advisory-etl/internal/domain"
	"github.com/natefinch/atomic"
)

// Format selects the on-disk encoding.
type Format int

const (
	FormatCSV Format = iota
	FormatJSON
)

var csvHeader = []string{"country_code", "published_on", "threat_level", "threat_number"}

// legacyDateLayout is the month/day/year form written by earlier exports.
const legacyDateLayout = "01/02/2006"

// FileStore reads and writes the full history as CSV or JSON.
type FileStore struct {
	path   string
	format Format
}

// NewFileStore picks the format from the file extension; anything other
// than .json is CSV.
func NewFileStore(path string) *FileStore {
	f := FormatCSV
	if strings.EqualFold(filepath.Ext(path), ".json") {
		f = FormatJSON
	}
	return &FileStore{path: path, format: f}
}

// Load returns every stored record in file order. A missing file is an empty
// history.
func (s *FileStore) Load(_ context.Context) ([]domain.Record, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, nil
	}

	var records []domain.Record
	switch s.format {
	case FormatJSON:
		records, err = decodeJSON(b)
	default:
		records, err = decodeCSV(bytes.NewReader(b))
	}
	if err != nil {
		return nil, fmt.Errorf("decode history %s: %w", s.path, err)
	}
	return records, nil
}

// Save replaces the file with records. The write goes through a temp file
// and rename so a failure leaves the previous history in place.
func (s *FileStore) Save(_ context.Context, records []domain.Record) error {
	var buf bytes.Buffer
	var err error
	switch s.format {
	case FormatJSON:
		err = encodeJSON(&buf, records)
	default:
		err = encodeCSV(&buf, records)
	}
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}
	if err := atomic.WriteFile(s.path, &buf); err != nil {
		return fmt.Errorf("write history %s: %w", s.path, err)
	}
	return nil
}

func decodeCSV(r io.Reader) ([]domain.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, required := range csvHeader[:3] {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	numCol, hasNum := cols["threat_number"]

	var records []domain.Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		field := func(i int) string {
			if i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		published, err := parseDate(field(cols["published_on"]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rec := domain.Record{
			CountryCode: field(cols["country_code"]),
			PublishedOn: published,
			ThreatLevel: field(cols["threat_level"]),
		}
		if hasNum {
			if v := field(numCol); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", line, &domain.ParseError{Field: "threat_number", Value: v, Reason: "not an integer"})
				}
				rec.ThreatNumber = n
			}
		}
		records = append(records, rec)
	}
}

func encodeCSV(w io.Writer, records []domain.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		num := ""
		if r.ThreatNumber != 0 {
			num = strconv.Itoa(r.ThreatNumber)
		}
		if err := cw.Write([]string{r.CountryCode, r.PublishedOn.Format(domain.DateLayout), r.ThreatLevel, num}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonRow is the JSON file shape. The alternate keys are the ones used by
// earlier exports; pubDate there may be a date string or epoch
// milliseconds.
type jsonRow struct {
	CountryCode  string          `json:"country_code"`
	PublishedOn  string          `json:"published_on"`
	ThreatLevel  string          `json:"threat_level"`
	ThreatNumber int             `json:"threat_number,omitempty"`
	ISOA2        string          `json:"ISO_A2,omitempty"`
	PubDate      json.RawMessage `json:"pubDate,omitempty"`
	LegacyLevel  string          `json:"threat-level,omitempty"`
	LegacyNumber int             `json:"threat-num,omitempty"`
}

func decodeJSON(b []byte) ([]domain.Record, error) {
	var rows []jsonRow
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, err
	}

	records := make([]domain.Record, 0, len(rows))
	for i, row := range rows {
		rec := domain.Record{
			CountryCode:  firstNonEmpty(row.CountryCode, row.ISOA2),
			ThreatLevel:  firstNonEmpty(row.ThreatLevel, row.LegacyLevel),
			ThreatNumber: row.ThreatNumber,
		}
		if rec.ThreatNumber == 0 {
			rec.ThreatNumber = row.LegacyNumber
		}

		var err error
		switch {
		case row.PublishedOn != "":
			rec.PublishedOn, err = parseDate(row.PublishedOn)
		case len(row.PubDate) > 0:
			rec.PublishedOn, err = parseLegacyDate(row.PubDate)
		default:
			err = &domain.ParseError{Field: "published_on", Reason: "missing"}
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func encodeJSON(w io.Writer, records []domain.Record) error {
	rows := make([]jsonRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, jsonRow{
			CountryCode:  r.CountryCode,
			PublishedOn:  r.PublishedOn.Format(domain.DateLayout),
			ThreatLevel:  r.ThreatLevel,
			ThreatNumber: r.ThreatNumber,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func parseDate(v string) (time.Time, error) {
	for _, layout := range []string{domain.DateLayout, legacyDateLayout} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &domain.ParseError{Field: "published_on", Value: v, Reason: "want YYYY-MM-DD or MM/DD/YYYY"}
}

func parseLegacyDate(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseDate(s)
	}
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return domain.Date(time.UnixMilli(ms), time.UTC), nil
	}
	return time.Time{}, &domain.ParseError{Field: "pubDate", Value: string(raw), Reason: "want date string or epoch milliseconds"}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
