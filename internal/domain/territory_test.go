package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock rating source ---

type mockRatingSource struct {
	ratings []RegionRating
	err     error
	calls   int
}

func (m *mockRatingSource) RegionRatings(_ context.Context) ([]RegionRating, error) {
	m.calls++
	return m.ratings, m.err
}

// --- tests ---

func TestExpandAggregates_SingleRow(t *testing.T) {
	d := time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC)
	records := []Record{
		{CountryCode: "DE", PublishedOn: d, ThreatLevel: testLevel2, ThreatNumber: 2},
		{CountryCode: "A3", PublishedOn: d, ThreatLevel: testLevel3, ThreatNumber: 3},
		{CountryCode: "FR", PublishedOn: d, ThreatLevel: testLevel2, ThreatNumber: 2},
	}

	got, err := ExpandAggregates(records, DefaultCodeTable())
	require.NoError(t, err)
	require.Len(t, got, 6)

	var codes []string
	for _, r := range got {
		codes = append(codes, r.CountryCode)
		assert.NotEqual(t, "A3", r.CountryCode)
	}
	assert.Equal(t, []string{"DE", "GP", "MQ", "MF", "BL", "FR"}, codes)

	for _, r := range got[1:5] {
		assert.Equal(t, d, r.PublishedOn)
		assert.Equal(t, testLevel3, r.ThreatLevel)
		assert.Equal(t, 3, r.ThreatNumber)
	}

	// Input is left untouched.
	assert.Equal(t, "A3", records[1].CountryCode)
}

func TestExpandAggregates_NoAggregate(t *testing.T) {
	records := []Record{{CountryCode: "DE"}}
	got, err := ExpandAggregates(records, DefaultCodeTable())
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestExpandAggregates_DuplicateAggregate(t *testing.T) {
	records := []Record{
		{CountryCode: "A3", ThreatLevel: testLevel2},
		{CountryCode: "A3", ThreatLevel: testLevel3},
	}

	_, err := ExpandAggregates(records, DefaultCodeTable())
	var cerr *ConsistencyError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "A3", cerr.Code)
	assert.Equal(t, 2, cerr.Count)
}

func TestEnrichDependentTerritory(t *testing.T) {
	d := time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC)
	dep := DefaultDependentTerritory()

	t.Run("takes the most severe sub-region", func(t *testing.T) {
		src := &mockRatingSource{ratings: []RegionRating{{Region: "West Bank", Level: 3}, {Region: "Gaza", Level: 4}}}
		records := []Record{{CountryCode: "IL", PublishedOn: d, ThreatLevel: testLevel3, ThreatNumber: 3}}

		got, err := EnrichDependentTerritory(context.Background(), records, dep, src)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, Record{CountryCode: "PS", PublishedOn: d, ThreatLevel: "Level 4: Do Not Travel", ThreatNumber: 4}, got[1])
	})

	t.Run("skipped without base record", func(t *testing.T) {
		src := &mockRatingSource{ratings: []RegionRating{{Region: "Gaza", Level: 4}}}
		records := []Record{{CountryCode: "DE", PublishedOn: d}}

		got, err := EnrichDependentTerritory(context.Background(), records, dep, src)
		require.NoError(t, err)
		assert.Equal(t, records, got)
		assert.Equal(t, 0, src.calls)
	})

	t.Run("nil source", func(t *testing.T) {
		records := []Record{{CountryCode: "IL", PublishedOn: d}}
		got, err := EnrichDependentTerritory(context.Background(), records, dep, nil)
		require.NoError(t, err)
		assert.Equal(t, records, got)
	})

	t.Run("replaces existing dependent row", func(t *testing.T) {
		src := &mockRatingSource{ratings: []RegionRating{{Region: "West Bank", Level: 2}, {Region: "Gaza", Level: 3}}}
		records := []Record{
			{CountryCode: "PS", PublishedOn: d, ThreatLevel: testLevel2, ThreatNumber: 2},
			{CountryCode: "IL", PublishedOn: d, ThreatLevel: testLevel2, ThreatNumber: 2},
		}

		got, err := EnrichDependentTerritory(context.Background(), records, dep, src)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "IL", got[0].CountryCode)
		assert.Equal(t, "PS", got[1].CountryCode)
		assert.Equal(t, 3, got[1].ThreatNumber)
	})

	t.Run("source error propagates", func(t *testing.T) {
		fetchErr := &FetchError{Source: "advisory page", URL: "http://example", StatusCode: 503}
		src := &mockRatingSource{err: fetchErr}
		records := []Record{{CountryCode: "IL", PublishedOn: d}}

		_, err := EnrichDependentTerritory(context.Background(), records, dep, src)
		var ferr *FetchError
		require.True(t, errors.As(err, &ferr))
		assert.Equal(t, 503, ferr.StatusCode)
	})

	t.Run("no ratings", func(t *testing.T) {
		src := &mockRatingSource{}
		records := []Record{{CountryCode: "IL", PublishedOn: d}}

		_, err := EnrichDependentTerritory(context.Background(), records, dep, src)
		var perr *ParseError
		require.True(t, errors.As(err, &perr))
	})

	t.Run("rating out of range", func(t *testing.T) {
		src := &mockRatingSource{ratings: []RegionRating{{Region: "Gaza", Level: 9}}}
		records := []Record{{CountryCode: "IL", PublishedOn: d}}

		_, err := EnrichDependentTerritory(context.Background(), records, dep, src)
		var perr *ParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "Gaza", perr.Value)
	})
}

func TestCodeTable(t *testing.T) {
	t.Run("merge overrides without mutating base", func(t *testing.T) {
		base := DefaultCodeTable()
		merged := base.Merge(map[string]string{"GM": "XX"}, nil, map[string][]string{"A9": {"AA", "BB"}})

		iso, ok := merged.Resolve("GM")
		assert.True(t, ok)
		assert.Equal(t, "XX", iso)

		iso, _ = base.Resolve("GM")
		assert.Equal(t, "DE", iso)
		assert.False(t, base.IsAggregate("A9"))
		assert.Equal(t, []string{"A3", "A9"}, merged.AggregateCodes())
	})

	t.Run("iso codes include constituents", func(t *testing.T) {
		codes := DefaultCodeTable().ISOCodes()
		assert.Contains(t, codes, "DE")
		assert.Contains(t, codes, "GP")
		assert.Contains(t, codes, "BL")
		assert.IsIncreasing(t, codes)
	})

	t.Run("constituents are copies", func(t *testing.T) {
		table := DefaultCodeTable()
		parts, ok := table.Constituents("A3")
		require.True(t, ok)
		parts[0] = "ZZ"
		again, _ := table.Constituents("A3")
		assert.Equal(t, "GP", again[0])
	})
}
