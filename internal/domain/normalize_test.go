package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testLevel2 = "Level 2: Exercise Increased Caution"
	testLevel3 = "Level 3: Reconsider Travel"
)

func testNormalizer(now time.Time) *Normalizer {
	return NewNormalizer(DefaultCodeTable(), DefaultRules(), clockwork.NewFakeClockAt(now), time.UTC)
}

func entry(title, level, code string, published time.Time) RawEntry {
	return RawEntry{Title: title, Published: published, Tags: []string{level, code}}
}

func TestNormalize_TableLookup(t *testing.T) {
	n := testNormalizer(time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC))
	published := time.Date(2025, 9, 15, 8, 0, 0, 0, time.UTC)

	for stateCode, iso := range defaultCodes {
		t.Run(stateCode, func(t *testing.T) {
			res, err := n.Normalize(entry("Somewhere - "+testLevel2, testLevel2, stateCode, published))
			require.NoError(t, err)
			assert.Equal(t, iso, res.Record.CountryCode)
			assert.Nil(t, res.Gap)
		})
	}
}

func TestNormalize_PassthroughReportsGap(t *testing.T) {
	n := testNormalizer(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))

	res, err := n.Normalize(entry("France - "+testLevel2, testLevel2, "FR", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	assert.Equal(t, "FR", res.Record.CountryCode)
	require.NotNil(t, res.Gap)
	assert.Equal(t, MappingGap{Code: "FR", Name: "France"}, *res.Gap)
}

func TestNormalize_BoliviaRedirect(t *testing.T) {
	n := testNormalizer(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))

	res, err := n.Normalize(entry("Bolivia - "+testLevel2, testLevel2, "BL", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, "BO", res.Record.CountryCode)
	assert.Nil(t, res.Gap)
}

func TestNormalize_AggregateIsNotAGap(t *testing.T) {
	n := testNormalizer(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))

	res, err := n.Normalize(entry("French West Indies - "+testLevel2, testLevel2, "A3", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, "A3", res.Record.CountryCode)
	assert.Nil(t, res.Gap)
}

func TestNormalize_NameOverrides(t *testing.T) {
	n := testNormalizer(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	published := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		title string
		tag   string
		want  string
	}{
		{"macau with table code", "Macau - " + testLevel2, "MC", "MO"},
		{"macau with colliding code", "Macau - " + testLevel2, "GM", "MO"},
		{"macau without code", "Macau - " + testLevel2, "", "MO"},
		{"hong kong", "Hong Kong - " + testLevel2, "HK", "HK"},
		{"hong kong with china code", "Hong Kong - " + testLevel2, "CH", "HK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := n.Normalize(entry(tt.title, testLevel2, tt.tag, published))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Record.CountryCode)
			assert.Nil(t, res.Gap)
		})
	}
}

func TestNormalize_ThreatNumber(t *testing.T) {
	n := testNormalizer(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	published := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		label string
		want  int
	}{
		{testLevel3, 3},
		{"level 1: exercise normal precautions", 1},
		{"Level 4: Do Not Travel", 4},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			res, err := n.Normalize(entry("Germany - "+tt.label, tt.label, "GM", published))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Record.ThreatNumber)
			assert.Equal(t, tt.label, res.Record.ThreatLevel)
		})
	}
}

func TestNormalize_ParseErrors(t *testing.T) {
	n := testNormalizer(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	published := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		entry RawEntry
		field string
	}{
		{"no digit in level", entry("Germany - x", "Reconsider Travel", "GM", published), "threat level"},
		{"level out of range", entry("Germany - x", "Level 7: Unknown", "GM", published), "threat level"},
		{"no tags", RawEntry{Title: "Germany", Published: published}, "tags"},
		{"no jurisdiction", RawEntry{Title: "Germany", Published: published, Tags: []string{testLevel2}}, "jurisdiction"},
		{"no publish time", entry("Germany - x", testLevel2, "GM", time.Time{}), "published"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.entry)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "want ParseError, got %v", err)
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestNormalize_ClampsFutureDates(t *testing.T) {
	n := testNormalizer(time.Date(2025, 10, 1, 9, 30, 0, 0, time.UTC))

	res, err := n.Normalize(entry("Germany - "+testLevel2, testLevel2, "GM", time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), res.Record.PublishedOn)
}

func TestNormalize_DateInProcessingLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)
	n := NewNormalizer(DefaultCodeTable(), DefaultRules(), clockwork.NewFakeClockAt(time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)), loc)

	// 03:00 UTC on Sep 10 is still Sep 9 in EST.
	res, err := n.Normalize(entry("Germany - "+testLevel2, testLevel2, "GM", time.Date(2025, 9, 10, 3, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 9, 9, 0, 0, 0, 0, time.UTC), res.Record.PublishedOn)
}

func TestNormalize_SubstituteTable(t *testing.T) {
	table := NewCodeTable(map[string]string{"ZZ": "DE"}, nil, nil)
	n := NewNormalizer(table, nil, clockwork.NewFakeClockAt(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)), nil)

	res, err := n.Normalize(entry("Germany - "+testLevel2, testLevel2, "ZZ", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, "DE", res.Record.CountryCode)

	res, err = n.Normalize(entry("Germany - "+testLevel2, testLevel2, "GM", time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Equal(t, "GM", res.Record.CountryCode)
	assert.NotNil(t, res.Gap)
}

func TestNormalizeBatch(t *testing.T) {
	n := testNormalizer(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	published := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	t.Run("collects gaps", func(t *testing.T) {
		records, gaps, err := n.NormalizeBatch([]RawEntry{
			entry("Germany - "+testLevel2, testLevel2, "GM", published),
			entry("France - "+testLevel2, testLevel2, "FR", published),
		})
		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, []MappingGap{{Code: "FR", Name: "France"}}, gaps)
	})

	t.Run("aborts on parse error", func(t *testing.T) {
		records, _, err := n.NormalizeBatch([]RawEntry{
			entry("Germany - "+testLevel2, testLevel2, "GM", published),
			entry("Broken - x", "no level", "FR", published),
		})
		require.Error(t, err)
		assert.Nil(t, records)
		assert.Contains(t, err.Error(), "Broken")
	})
}

func TestFilterSince(t *testing.T) {
	records := []Record{
		{CountryCode: "DE", PublishedOn: time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)},
		{CountryCode: "FR", PublishedOn: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)},
		{CountryCode: "IT", PublishedOn: time.Date(2025, 10, 2, 0, 0, 0, 0, time.UTC)},
	}

	got := FilterSince(records, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, got, 2)
	assert.Equal(t, "FR", got[0].CountryCode)
	assert.Equal(t, "IT", got[1].CountryCode)

	assert.Len(t, FilterSince(records, time.Time{}), 3)
}

func TestRawEntry_Name(t *testing.T) {
	assert.Equal(t, "Macau", RawEntry{Title: "Macau - Level 2: Exercise Increased Caution"}.Name())
	assert.Equal(t, "Bosnia and Herzegovina", RawEntry{Title: "Bosnia and Herzegovina - Level 2"}.Name())
	assert.Equal(t, "Germany", RawEntry{Title: "Germany"}.Name())
}
