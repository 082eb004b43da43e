// Package httpfetch performs GET requests under the bounded retry policy.
package httpfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/travel-advisory-etl/internal/domain"
	"github.com/couchcryptid/travel-advisory-etl/internal/observability"
	"github.com/couchcryptid/travel-advisory-etl/internal/retry"
)

// DefaultUserAgent identifies the job to the State Department servers.
const DefaultUserAgent = "travel-advisory-etl/1.0 (+https://github.com/couchcryptid/travel-advisory-etl)"

// maxBodyBytes bounds a single response; the feed is a few hundred KB.
const maxBodyBytes = 16 << 20

// Getter fetches a URL body, retrying transport errors and non-200 responses.
type Getter struct {
	source     string
	httpClient *http.Client
	policy     retry.Policy
	userAgent  string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewGetter creates a Getter. source labels errors, logs, and the retry metric
// (e.g. "feed", "advisory_page").
func NewGetter(source string, timeout time.Duration, policy retry.Policy, logger *slog.Logger, metrics *observability.Metrics) *Getter {
	return &Getter{
		source:     source,
		httpClient: &http.Client{Timeout: timeout},
		policy:     policy,
		userAgent:  DefaultUserAgent,
		logger:     logger,
		metrics:    metrics,
	}
}

// Get returns the body of url. Every failure, including cancellation while
// waiting to retry, is returned as a *domain.FetchError.
func (g *Getter) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := g.policy.Do(ctx, func() error {
		b, err := g.once(ctx, url)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, func(err error, attempt int, wait time.Duration) {
		g.logger.Warn("fetch failed, retrying",
			"source", g.source,
			"url", url,
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
		if g.metrics != nil {
			g.metrics.FetchRetries.WithLabelValues(g.source).Inc()
		}
	})
	if err != nil {
		var ferr *domain.FetchError
		if errors.As(err, &ferr) {
			return nil, err
		}
		// Cancellation between attempts surfaces as the bare context error.
		return nil, &domain.FetchError{Source: g.source, URL: url, Err: err}
	}
	return body, nil
}

func (g *Getter) once(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Permanent(&domain.FetchError{Source: g.source, URL: url, Err: fmt.Errorf("create request: %w", err)})
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Source: g.source, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.FetchError{Source: g.source, URL: url, StatusCode: resp.StatusCode}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.FetchError{Source: g.source, URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return b, nil
}
