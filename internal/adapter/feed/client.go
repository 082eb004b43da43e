// Package feed reads the State Department advisory RSS feed.
package feed

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/couchcryptid/travel-advisory-etl/internal/domain"
	"github.com/mmcdole/gofeed"
)

// BodyGetter fetches a URL body. *httpfetch.Getter implements it.
type BodyGetter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Client fetches and parses the advisory feed.
type Client struct {
	url    string
	getter BodyGetter
	parser *gofeed.Parser
	logger *slog.Logger
}

// NewClient creates a feed client for url.
func NewClient(url string, getter BodyGetter, logger *slog.Logger) *Client {
	return &Client{
		url:    url,
		getter: getter,
		parser: gofeed.NewParser(),
		logger: logger,
	}
}

// Fetch returns every entry in the feed. Fetch failures are *domain.FetchError
// (already retried); an unparseable body is a *domain.ParseError.
func (c *Client) Fetch(ctx context.Context) ([]domain.RawEntry, error) {
	body, err := c.getter.Get(ctx, c.url)
	if err != nil {
		return nil, err
	}

	f, err := c.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ParseError{Field: "feed", Value: c.url, Reason: err.Error()}
	}

	entries := make([]domain.RawEntry, 0, len(f.Items))
	for _, item := range f.Items {
		entries = append(entries, mapItem(item))
	}
	c.logger.Debug("feed fetched", "url", c.url, "entries", len(entries))
	return entries, nil
}

// mapItem converts a feed item. Categories arrive in document order: threat
// level first, jurisdiction code second.
func mapItem(item *gofeed.Item) domain.RawEntry {
	e := domain.RawEntry{
		Title: item.Title,
		Tags:  append([]string(nil), item.Categories...),
	}
	switch {
	case item.PublishedParsed != nil:
		e.Published = *item.PublishedParsed
	case item.UpdatedParsed != nil:
		e.Published = *item.UpdatedParsed
	}
	return e
}

