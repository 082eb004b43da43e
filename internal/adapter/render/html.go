// Package render draws the latest advisory state as a static HTML map.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/couchcryptid/travel-advisory-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/natefinch/atomic"
)

// Scale maps threat numbers 1-4 to fill colors.
var Scale = map[int]string{
	1: "#1a9850",
	2: "#fee08b",
	3: "#fc8d59",
	4: "#d73027",
}

// NoDataColor fills countries without a record.
const NoDataColor = "#d9d9d9"

var page = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Travel Advisory Levels</title>
<style>
body { font-family: sans-serif; margin: 1.5rem; }
.grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(4.5rem, 1fr)); gap: 4px; }
.tile { padding: 0.6rem 0; text-align: center; font-weight: bold; border-radius: 3px; }
.tile.no-data { color: #777; font-weight: normal; }
.legend span { display: inline-block; margin-right: 1rem; }
.legend i { display: inline-block; width: 1rem; height: 1rem; margin-right: 0.3rem; vertical-align: middle; }
</style>
</head>
<body>
<h1>Travel Advisory Levels</h1>
<p>Generated {{.Generated}}. {{.Rated}} of {{len .Tiles}} countries rated.</p>
<div class="legend">
{{- range .Legend}}
<span><i style="background: {{.Color}}"></i>{{.Label}}</span>
{{- end}}
</div>
<div class="grid">
{{- range .Tiles}}
{{- if .HasData}}
<div class="tile" style="background: {{.Color}}" title="{{.Level}} ({{.Published}})" data-level="{{.Number}}">{{.Code}}</div>
{{- else}}
<div class="tile no-data" style="background: {{.Color}}" title="No data">{{.Code}}</div>
{{- end}}
{{- end}}
</div>
</body>
</html>
`))

type tile struct {
	Code      string
	HasData   bool
	Color     template.CSS
	Level     string
	Number    int
	Published string
}

type legendEntry struct {
	Color template.CSS
	Label string
}

type pageData struct {
	Generated string
	Rated     int
	Legend    []legendEntry
	Tiles     []tile
}

// HTMLRenderer writes one colored tile per known country.
type HTMLRenderer struct {
	path  string
	codes []string
	clock clockwork.Clock
}

// NewHTMLRenderer renders to path. codes are the countries drawn even when
// they have no record, typically CodeTable.ISOCodes.
func NewHTMLRenderer(path string, codes []string, clock clockwork.Clock) *HTMLRenderer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HTMLRenderer{path: path, codes: slices.Clone(codes), clock: clock}
}

// Render replaces the output file with the map for latest.
func (r *HTMLRenderer) Render(_ context.Context, latest []domain.Record) error {
	var buf bytes.Buffer
	if err := page.Execute(&buf, r.pageData(latest)); err != nil {
		return fmt.Errorf("execute map template: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create map dir: %w", err)
		}
	}
	if err := atomic.WriteFile(r.path, &buf); err != nil {
		return fmt.Errorf("write map %s: %w", r.path, err)
	}
	return nil
}

func (r *HTMLRenderer) pageData(latest []domain.Record) pageData {
	byCode := make(map[string]domain.Record, len(latest))
	for _, rec := range latest {
		byCode[rec.CountryCode] = rec
	}
	known := make(map[string]struct{}, len(r.codes)+len(byCode))
	for _, c := range r.codes {
		known[c] = struct{}{}
	}
	for c := range byCode {
		known[c] = struct{}{}
	}

	data := pageData{Generated: r.clock.Now().UTC().Format("2006-01-02 15:04 MST")}
	for n := 1; n <= 4; n++ {
		label, _ := domain.CanonicalLevel(n)
		data.Legend = append(data.Legend, legendEntry{Color: template.CSS(Scale[n]), Label: label})
	}
	data.Legend = append(data.Legend, legendEntry{Color: NoDataColor, Label: "No data"})

	for _, code := range slices.Sorted(maps.Keys(known)) {
		rec, ok := byCode[code]
		number := rec.ThreatNumber
		if ok && number == 0 {
			number, _ = domain.ParseThreatNumber(rec.ThreatLevel)
		}
		color, rated := Scale[number]
		if !ok || !rated {
			data.Tiles = append(data.Tiles, tile{Code: code, Color: NoDataColor})
			continue
		}
		data.Rated++
		data.Tiles = append(data.Tiles, tile{
			Code:      code,
			HasData:   true,
			Color:     template.CSS(color),
			Level:     rec.ThreatLevel,
			Number:    number,
			Published: rec.PublishedOn.Format(domain.DateLayout),
		})
	}
	return data
}
