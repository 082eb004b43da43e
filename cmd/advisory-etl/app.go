package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/travel-advisory-etl/internal/adapter/advisorypage"
	"github.com/couchcryptid/travel-advisory-etl/internal/adapter/feed"
	"github.com/couchcryptid/travel-advisory-etl/internal/adapter/history"
	"github.com/couchcryptid/travel-advisory-etl/internal/adapter/httpfetch"
	kafkaadapter "github.com/couchcryptid/travel-advisory-etl/internal/adapter/kafka"
	"github.com/couchcryptid/travel-advisory-etl/internal/adapter/postgres"
	"github.com/couchcryptid/travel-advisory-etl/internal/adapter/render"
	"github.com/couchcryptid/travel-advisory-etl/internal/config"
	"github.com/couchcryptid/travel-advisory-etl/internal/domain"
	"github.com/couchcryptid/travel-advisory-etl/internal/observability"
	"github.com/couchcryptid/travel-advisory-etl/internal/pipeline"
)

// app holds the wired job for one command invocation.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	metrics    *observability.Metrics
	table      domain.CodeTable
	normalizer *domain.Normalizer
	store      pipeline.HistoryStore
	pipeline   *pipeline.Pipeline
	closers    []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	table, rules, err := config.LoadCodeTable(cfg.CodeTablePath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		logger:     logger,
		metrics:    observability.NewMetrics(),
		table:      table,
		normalizer: domain.NewNormalizer(table, rules, nil, cfg.Location),
	}

	if cfg.HistoryDSN != "" {
		pg, err := postgres.Open(ctx, cfg.HistoryDSN)
		if err != nil {
			return nil, err
		}
		a.store = pg
		a.closers = append(a.closers, pg.Close)
		logger.Info("history store", "backend", "postgres")
	} else {
		a.store = history.NewFileStore(cfg.HistoryPath)
		logger.Info("history store", "backend", "file", "path", cfg.HistoryPath)
	}

	policy := cfg.FetchPolicy()
	feedClient := feed.NewClient(cfg.FeedURL,
		httpfetch.NewGetter("feed", cfg.FetchTimeout, policy, logger, a.metrics), logger)

	opts := []pipeline.Option{pipeline.WithSince(cfg.PublishedSince)}

	if cfg.TerritoryEnrichmentEnabled {
		scraper := advisorypage.NewScraper(cfg.TerritoryPageURL,
			httpfetch.NewGetter("advisory_page", cfg.FetchTimeout, policy, logger, a.metrics), logger)
		opts = append(opts, pipeline.WithTerritoryEnrichment(domain.DefaultDependentTerritory(), scraper))
	} else {
		logger.Info("territory enrichment disabled")
	}

	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		a.closers = append(a.closers, writer.Close)
		opts = append(opts, pipeline.WithPublisher(writer))
		logger.Info("change publishing enabled", "topic", cfg.KafkaTopic)
	}

	if cfg.MapOutputPath != "" {
		opts = append(opts, pipeline.WithRenderer(render.NewHTMLRenderer(cfg.MapOutputPath, table.ISOCodes(), nil)))
	}

	a.pipeline = pipeline.New(feedClient, a.normalizer, table, a.store, logger, a.metrics, opts...)
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
