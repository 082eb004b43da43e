package kafka

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/travel-advisory-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeToMessage(t *testing.T) {
	rec := domain.Reconciled{
		Record: domain.Record{
			CountryCode:  "MX",
			PublishedOn:  time.Date(2025, 10, 9, 0, 0, 0, 0, time.UTC),
			ThreatLevel:  "Level 3: Reconsider Travel",
			ThreatNumber: 3,
		},
		Changed:          true,
		PriorPublishedOn: time.Date(2025, 8, 12, 0, 0, 0, 0, time.UTC),
	}

	msg, err := serializeToMessage(rec)
	require.NoError(t, err)

	assert.Equal(t, []byte("MX"), msg.Key)
	assert.JSONEq(t, `{
		"country_code": "MX",
		"published_on": "2025-10-09",
		"prior_published_on": "2025-08-12",
		"threat_level": "Level 3: Reconsider Travel",
		"threat_number": 3
	}`, string(msg.Value))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "threat_number", msg.Headers[0].Key)
	assert.Equal(t, []byte("3"), msg.Headers[0].Value)
	assert.Equal(t, "published_on", msg.Headers[1].Key)
	assert.Equal(t, []byte("2025-10-09"), msg.Headers[1].Value)
}

func TestSerializeToMessage_NewCountryOmitsPrior(t *testing.T) {
	msg, err := serializeToMessage(domain.Reconciled{
		Record:  domain.Record{CountryCode: "PS", PublishedOn: time.Date(2025, 10, 9, 0, 0, 0, 0, time.UTC), ThreatLevel: "Level 4: Do Not Travel", ThreatNumber: 4},
		Changed: true,
	})
	require.NoError(t, err)
	assert.NotContains(t, string(msg.Value), "prior_published_on")
}

func TestPublish_NothingChanged(t *testing.T) {
	// No brokers are reachable; Publish must return before dialing.
	w := NewWriter([]string{"127.0.0.1:1"}, "travel-advisory-changes", slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer w.Close()

	err := w.Publish(context.Background(), []domain.Reconciled{
		{Record: domain.Record{CountryCode: "DE"}, Changed: false},
	})
	assert.NoError(t, err)
}
