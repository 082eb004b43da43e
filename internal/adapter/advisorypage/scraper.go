// Package advisorypage scrapes sub-region ratings from a country advisory page.
package advisorypage

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/couchcryptid/travel-advisory-etl/internal/domain"
	"golang.org/x/net/html"
)

const (
	// DefaultAlertSelector matches the alert block listing per-region levels.
	DefaultAlertSelector = "div.tsg-rwd-emergency-alert-text"
)

// DefaultRegions are the sub-regions of the Israel advisory that make up the
// Palestinian territories.
var DefaultRegions = []string{"West Bank", "Gaza"}

var digitRe = regexp.MustCompile(`\d`)

// BodyGetter fetches a URL body. *httpfetch.Getter implements it.
type BodyGetter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Scraper implements domain.RatingSource against a single advisory page.
type Scraper struct {
	url      string
	getter   BodyGetter
	selector string
	regions  []string
	logger   *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithSelector overrides the alert block selector.
func WithSelector(sel string) Option {
	return func(s *Scraper) { s.selector = sel }
}

// WithRegions overrides the region labels to look for.
func WithRegions(regions ...string) Option {
	return func(s *Scraper) { s.regions = regions }
}

// NewScraper creates a scraper for url.
func NewScraper(url string, getter BodyGetter, logger *slog.Logger, opts ...Option) *Scraper {
	s := &Scraper{
		url:      url,
		getter:   getter,
		selector: DefaultAlertSelector,
		regions:  DefaultRegions,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegionRatings fetches the page and returns one rating per configured region,
// in configuration order.
func (s *Scraper) RegionRatings(ctx context.Context) ([]domain.RegionRating, error) {
	body, err := s.getter.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	ratings, err := ParseRatings(body, s.selector, s.regions)
	if err != nil {
		return nil, err
	}
	for _, r := range ratings {
		s.logger.Debug("region rating scraped", "region", r.Region, "threat_number", r.Level)
	}
	return ratings, nil
}

// ParseRatings extracts region ratings from page markup. Each region must
// appear in a bold element inside the alert block. The level is the first
// digit of that element; failing that, of the text following it up to the
// next bold element; failing that, the last digit of the text preceding it
// back to the previous bold element.
func ParseRatings(page []byte, selector string, regions []string) ([]domain.RegionRating, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, &domain.ParseError{Field: "advisory page", Reason: err.Error()}
	}

	block := doc.Find(selector).First()
	if block.Length() == 0 {
		return nil, &domain.ParseError{Field: "alert block", Value: selector, Reason: "not found"}
	}

	ratings := make([]domain.RegionRating, 0, len(regions))
	for _, region := range regions {
		bold := block.Find("b, strong").FilterFunction(func(_ int, sel *goquery.Selection) bool {
			return strings.Contains(sel.Text(), region)
		}).First()
		if bold.Length() == 0 {
			return nil, &domain.ParseError{Field: "region", Value: region, Reason: "not found in alert block"}
		}

		digit := digitRe.FindString(bold.Text())
		if digit == "" {
			digit = digitRe.FindString(siblingText(bold.Nodes[0], true))
		}
		if digit == "" {
			if before := digitRe.FindAllString(siblingText(bold.Nodes[0], false), -1); len(before) > 0 {
				digit = before[len(before)-1]
			}
		}
		if digit == "" {
			return nil, &domain.ParseError{Field: "region level", Value: region, Reason: "no digit found"}
		}
		level, _ := strconv.Atoi(digit)
		ratings = append(ratings, domain.RegionRating{Region: region, Level: level})
	}
	return ratings, nil
}

// siblingText collects the text beside n, walking forward or backward until
// the next bold sibling.
func siblingText(n *html.Node, forward bool) string {
	var parts []string
	for sib := step(n, forward); sib != nil; sib = step(sib, forward) {
		if sib.Type == html.ElementNode && (sib.Data == "b" || sib.Data == "strong") {
			break
		}
		parts = append(parts, nodeText(sib))
	}
	if !forward {
		slices.Reverse(parts)
	}
	return strings.Join(parts, "")
}

func step(n *html.Node, forward bool) *html.Node {
	if forward {
		return n.NextSibling
	}
	return n.PrevSibling
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}
