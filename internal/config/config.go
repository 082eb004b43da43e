package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/couchcryptid/travel-advisory-etl/internal/retry"
)

const (
	DefaultFeedURL = "https://travel.state.gov/_res/rss/TAsTWs.xml"
	// DefaultTerritoryPageURL is the Israel advisory, which rates the West Bank and Gaza.
	DefaultTerritoryPageURL = "https://travel.state.gov/content/travel/en/traveladvisories/traveladvisories/israel-west-bank-and-gaza-travel-advisory.html"
)

// Config holds all job settings, populated from environment variables.
type Config struct {
	FeedURL                    string
	TerritoryPageURL           string
	TerritoryEnrichmentEnabled bool

	HistoryPath   string
	HistoryDSN    string // selects the Postgres store when set
	MapOutputPath string // empty disables rendering
	CodeTablePath string // optional YAML rule file

	FetchAttempts   int
	FetchRetryDelay time.Duration
	FetchTimeout    time.Duration

	PublishedSince time.Time // zero disables the cutoff
	Location       *time.Location

	KafkaBrokers []string // empty disables change publishing
	KafkaTopic   string

	RunInterval     time.Duration
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchAttempts, err := parsePositiveInt("FETCH_ATTEMPTS", retry.DefaultAttempts)
	if err != nil {
		return nil, err
	}
	fetchRetryDelay, err := parseDuration("FETCH_RETRY_DELAY", retry.DefaultDelay.String(), true)
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "30s", false)
	if err != nil {
		return nil, err
	}
	runInterval, err := parseDuration("RUN_INTERVAL", "6h", false)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(sharedcfg.EnvOrDefault("PROCESSING_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROCESSING_TIMEZONE: %w", err)
	}

	since, err := parseSince(envOrDefaultAllowEmpty("PUBLISHED_SINCE", "2025-10-01"))
	if err != nil {
		return nil, err
	}

	enrichment := true
	if v := os.Getenv("TERRITORY_ENRICHMENT_ENABLED"); v != "" {
		enrichment = v == "true"
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		FeedURL:                    sharedcfg.EnvOrDefault("FEED_URL", DefaultFeedURL),
		TerritoryPageURL:           sharedcfg.EnvOrDefault("TERRITORY_PAGE_URL", DefaultTerritoryPageURL),
		TerritoryEnrichmentEnabled: enrichment,
		HistoryPath:                sharedcfg.EnvOrDefault("HISTORY_PATH", "advisories.csv"),
		HistoryDSN:                 os.Getenv("HISTORY_DSN"),
		MapOutputPath:              envOrDefaultAllowEmpty("MAP_OUTPUT_PATH", "advisory_map.html"),
		CodeTablePath:              os.Getenv("CODE_TABLE_PATH"),
		FetchAttempts:              fetchAttempts,
		FetchRetryDelay:            fetchRetryDelay,
		FetchTimeout:               fetchTimeout,
		PublishedSince:             since,
		Location:                   loc,
		KafkaBrokers:               brokers,
		KafkaTopic:                 sharedcfg.EnvOrDefault("KAFKA_TOPIC", "travel-advisory-changes"),
		RunInterval:                runInterval,
		HTTPAddr:                   sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:                   sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:                  sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:            shutdownTimeout,
	}

	if cfg.FeedURL == "" {
		return nil, errors.New("FEED_URL is required")
	}
	if cfg.HistoryPath == "" && cfg.HistoryDSN == "" {
		return nil, errors.New("HISTORY_PATH or HISTORY_DSN is required")
	}
	if cfg.TerritoryEnrichmentEnabled && cfg.TerritoryPageURL == "" {
		return nil, errors.New("TERRITORY_ENRICHMENT_ENABLED is true but TERRITORY_PAGE_URL is not set")
	}

	return cfg, nil
}

// envOrDefaultAllowEmpty distinguishes an unset variable (default) from one
// explicitly set to the empty string (disabled).
func envOrDefaultAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseSince(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid PUBLISHED_SINCE: %w", err)
	}
	return t, nil
}

// FetchPolicy is the retry policy applied to feed and page fetches.
func (c *Config) FetchPolicy() retry.Policy {
	return retry.Policy{Attempts: c.FetchAttempts, Delay: c.FetchRetryDelay}
}
