package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/travel-advisory-etl/internal/adapter/httpfetch"
	"github.com/couchcryptid/travel-advisory-etl/internal/domain"
	"github.com/couchcryptid/travel-advisory-etl/internal/observability"
	"github.com/couchcryptid/travel-advisory-etl/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const advisoryRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Travel Advisories</title>
		<link>https://travel.state.gov</link>
		<item>
			<title>Germany - Level 2: Exercise Increased Caution</title>
			<link>https://travel.state.gov/germany</link>
			<pubDate>Mon, 15 Sep 2025 00:00:00 -0400</pubDate>
			<category domain="Threat-Level">Level 2: Exercise Increased Caution</category>
			<category domain="Country-Tag">GM</category>
		</item>
		<item>
			<title>Macau - Level 1: Exercise Normal Precautions</title>
			<link>https://travel.state.gov/macau</link>
			<pubDate>Tue, 02 Sep 2025 12:30:00 GMT</pubDate>
			<category domain="Threat-Level">Level 1: Exercise Normal Precautions</category>
			<category domain="Country-Tag">MC</category>
		</item>
	</channel>
</rss>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(url string) *Client {
	getter := httpfetch.NewGetter("feed", 2*time.Second, retry.Policy{Attempts: 2, Delay: time.Millisecond},
		discardLogger(), observability.NewMetricsForTesting())
	return NewClient(url, getter, discardLogger())
}

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(advisoryRSS))
	}))
	defer srv.Close()

	entries, err := testClient(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	de := entries[0]
	assert.Equal(t, "Germany - Level 2: Exercise Increased Caution", de.Title)
	assert.Equal(t, []string{"Level 2: Exercise Increased Caution", "GM"}, de.Tags)
	assert.True(t, de.Published.Equal(time.Date(2025, 9, 15, 4, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Germany", de.Name())

	assert.Equal(t, "Macau", entries[1].Name())
	assert.True(t, entries[1].Published.Equal(time.Date(2025, 9, 2, 12, 30, 0, 0, time.UTC)))
}

func TestClient_Fetch_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background())
	var ferr *domain.FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, http.StatusBadGateway, ferr.StatusCode)
}

func TestClient_Fetch_NotAFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>maintenance</body></html>"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background())
	var perr *domain.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "feed", perr.Field)
}

func TestClient_Fetch_EmptyChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`))
	}))
	defer srv.Close()

	entries, err := testClient(srv.URL).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
