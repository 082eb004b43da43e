package domain

import (
	"context"
	"slices"
)

// RegionRating is one sub-region's level as published on an advisory page.
type RegionRating struct {
	Region string
	Level  int
}

// RatingSource supplies sub-region ratings for a dependent territory.
type RatingSource interface {
	// RegionRatings returns one rating per configured sub-region.
	RegionRatings(ctx context.Context) ([]RegionRating, error)
}

// DependentTerritory names a territory whose rating is derived from the
// advisory page of a base country.
type DependentTerritory struct {
	BaseCode string
	Code     string
}

// DefaultDependentTerritory derives the Palestinian territories from the
// Israel advisory.
func DefaultDependentTerritory() DependentTerritory {
	return DependentTerritory{BaseCode: "IL", Code: "PS"}
}

// ExpandAggregates replaces each aggregate row with one record per
// constituent territory, in place. Zero rows of an aggregate code is a no-op;
// more than one is a ConsistencyError.
func ExpandAggregates(records []Record, table CodeTable) ([]Record, error) {
	out := slices.Clone(records)
	for _, agg := range table.AggregateCodes() {
		idx := -1
		count := 0
		for i, r := range out {
			if r.CountryCode == agg {
				idx = i
				count++
			}
		}
		if count == 0 {
			continue
		}
		if count > 1 {
			return nil, &ConsistencyError{Code: agg, Count: count}
		}

		src := out[idx]
		parts, _ := table.Constituents(agg)
		expanded := make([]Record, 0, len(parts))
		for _, code := range parts {
			r := src
			r.CountryCode = code
			expanded = append(expanded, r)
		}
		out = slices.Replace(out, idx, idx+1, expanded...)
	}
	return out, nil
}

// EnrichDependentTerritory adds a record for dep.Code rated as the most
// severe sub-region level reported by source. It is a no-op when source is
// nil or the batch has no record for dep.BaseCode. An existing dep.Code row
// is replaced. Source errors are returned unchanged.
func EnrichDependentTerritory(ctx context.Context, records []Record, dep DependentTerritory, source RatingSource) ([]Record, error) {
	if source == nil {
		return records, nil
	}
	baseIdx := slices.IndexFunc(records, func(r Record) bool { return r.CountryCode == dep.BaseCode })
	if baseIdx < 0 {
		return records, nil
	}
	base := records[baseIdx]

	ratings, err := source.RegionRatings(ctx)
	if err != nil {
		return nil, err
	}
	if len(ratings) == 0 {
		return nil, &ParseError{Field: "region ratings", Value: dep.Code, Reason: "no sub-region ratings found"}
	}

	worst := 0
	for _, r := range ratings {
		if _, ok := CanonicalLevel(r.Level); !ok {
			return nil, &ParseError{Field: "region rating", Value: r.Region, Reason: "level out of range 1-4"}
		}
		worst = max(worst, r.Level)
	}
	label, _ := CanonicalLevel(worst)

	out := slices.DeleteFunc(slices.Clone(records), func(r Record) bool { return r.CountryCode == dep.Code })
	return append(out, Record{
		CountryCode:  dep.Code,
		PublishedOn:  base.PublishedOn,
		ThreatLevel:  label,
		ThreatNumber: worst,
	}), nil
}
