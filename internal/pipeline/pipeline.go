// Package pipeline runs the fetch, normalize, reconcile, and persist job.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/travel-advisory-etl/internal/domain"
	"github.com/couchcryptid/travel-advisory-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Fetcher reads the raw advisory entries.
type Fetcher interface {
	Fetch(ctx context.Context) ([]domain.RawEntry, error)
}

// HistoryStore loads and replaces the full history.
type HistoryStore interface {
	Load(ctx context.Context) ([]domain.Record, error)
	Save(ctx context.Context, records []domain.Record) error
}

// Appender is implemented by stores that can append a batch without
// rewriting existing rows.
type Appender interface {
	Append(ctx context.Context, batch []domain.Record) error
}

// ChangePublisher announces changed records downstream.
type ChangePublisher interface {
	Publish(ctx context.Context, records []domain.Reconciled) error
}

// Renderer draws the latest state.
type Renderer interface {
	Render(ctx context.Context, latest []domain.Record) error
}

// Plan is a reconciled batch that has not been persisted.
type Plan struct {
	Fetched        int
	Gaps           []domain.MappingGap
	Reconciliation domain.Reconciliation
}

// Summary describes a completed run.
type Summary struct {
	Fetched   int
	Appended  int
	Changed   int
	Published int
	Gaps      []domain.MappingGap
	Rendered  bool
}

// Pipeline orchestrates one advisory run end to end.
type Pipeline struct {
	fetcher    Fetcher
	normalizer *domain.Normalizer
	store      HistoryStore

	table     domain.CodeTable
	since     time.Time
	territory domain.DependentTerritory
	ratings   domain.RatingSource
	publisher ChangePublisher
	renderer  Renderer

	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// Option configures optional pipeline stages.
type Option func(*Pipeline)

// WithSince drops records published before cutoff.
func WithSince(cutoff time.Time) Option {
	return func(p *Pipeline) { p.since = cutoff }
}

// WithTerritoryEnrichment derives dep from source when the batch carries the
// base country.
func WithTerritoryEnrichment(dep domain.DependentTerritory, source domain.RatingSource) Option {
	return func(p *Pipeline) {
		p.territory = dep
		p.ratings = source
	}
}

// WithPublisher publishes changed records after a successful save.
func WithPublisher(pub ChangePublisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithRenderer renders the latest state after a successful save.
func WithRenderer(r Renderer) Option {
	return func(p *Pipeline) { p.renderer = r }
}

// WithClock replaces the clock that drives the scheduled loop.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New creates a Pipeline. table must be the table the normalizer was built
// with; it drives aggregate expansion.
func New(f Fetcher, n *domain.Normalizer, table domain.CodeTable, store HistoryStore, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:    f,
		normalizer: n,
		table:      table,
		store:      store,
		clock:      clockwork.NewRealClock(),
		logger:     logger,
		metrics:    metrics,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a run has persisted successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Latest returns the latest persisted record per country.
func (p *Pipeline) Latest(ctx context.Context) ([]domain.Record, error) {
	history, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return domain.LatestState(history), nil
}

// Prepare fetches and reconciles a batch without writing anything.
func (p *Pipeline) Prepare(ctx context.Context) (Plan, error) {
	entries, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("fetch feed: %w", err)
	}
	p.metrics.EntriesFetched.Add(float64(len(entries)))

	records, gaps, err := p.normalizer.NormalizeBatch(entries)
	if err != nil {
		return Plan{}, err
	}
	for _, g := range gaps {
		p.logger.Warn("unmapped jurisdiction code", "code", g.Code, "name", g.Name)
	}
	p.metrics.MappingGaps.Add(float64(len(gaps)))

	records = domain.FilterSince(records, p.since)

	records, err = domain.ExpandAggregates(records, p.table)
	if err != nil {
		return Plan{}, err
	}

	records, err = domain.EnrichDependentTerritory(ctx, records, p.territory, p.ratings)
	if err != nil {
		return Plan{}, fmt.Errorf("enrich %s: %w", p.territory.Code, err)
	}

	history, err := p.store.Load(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("load history: %w", err)
	}

	return Plan{
		Fetched:        len(entries),
		Gaps:           gaps,
		Reconciliation: domain.Reconcile(records, history),
	}, nil
}

// RunOnce performs a full run. Any failure before the save leaves history
// untouched. Publish and render failures are returned after the save has
// committed.
func (p *Pipeline) RunOnce(ctx context.Context) (Summary, error) {
	start := p.clock.Now()
	sum, err := p.runOnce(ctx)

	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())
	if err != nil {
		p.metrics.Runs.WithLabelValues("error").Inc()
		return sum, err
	}
	p.metrics.Runs.WithLabelValues("success").Inc()
	p.metrics.LastSuccessTime.Set(float64(p.clock.Now().Unix()))
	return sum, nil
}

func (p *Pipeline) runOnce(ctx context.Context) (Summary, error) {
	plan, err := p.Prepare(ctx)
	if err != nil {
		return Summary{}, err
	}
	rec := plan.Reconciliation
	changed := rec.ChangedOnly()

	if err := p.persist(ctx, rec); err != nil {
		return Summary{}, err
	}
	p.ready.Store(true)

	sum := Summary{
		Fetched:  plan.Fetched,
		Appended: len(rec.Batch),
		Changed:  len(changed),
		Gaps:     plan.Gaps,
	}
	p.metrics.RecordsAppended.Add(float64(sum.Appended))
	p.metrics.RecordsChanged.Add(float64(sum.Changed))
	p.logger.Info("history updated",
		"appended", sum.Appended,
		"changed", sum.Changed,
		"history_size", len(rec.History),
	)

	var errs []error
	if p.publisher != nil && len(changed) > 0 {
		if err := p.publisher.Publish(ctx, changed); err != nil {
			errs = append(errs, fmt.Errorf("publish changes: %w", err))
		} else {
			sum.Published = len(changed)
			p.metrics.RecordsPublished.Add(float64(sum.Published))
		}
	}
	if p.renderer != nil {
		if err := p.renderer.Render(ctx, rec.Latest); err != nil {
			errs = append(errs, fmt.Errorf("render map: %w", err))
		} else {
			sum.Rendered = true
		}
	}
	return sum, errors.Join(errs...)
}

func (p *Pipeline) persist(ctx context.Context, rec domain.Reconciliation) error {
	if a, ok := p.store.(Appender); ok {
		batch := make([]domain.Record, 0, len(rec.Batch))
		for _, r := range rec.Batch {
			batch = append(batch, r.Record)
		}
		if err := a.Append(ctx, batch); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
		return nil
	}
	if err := p.store.Save(ctx, rec.History); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Run executes a run immediately and then once per interval until ctx is
// cancelled. Failed runs are logged and retried on the next tick.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	p.logger.Info("pipeline started", "interval", interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		p.runAndLog(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

func (p *Pipeline) runAndLog(ctx context.Context) {
	sum, err := p.RunOnce(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("run failed", "error", err)
		return
	}
	p.logger.Info("run complete",
		"fetched", sum.Fetched,
		"appended", sum.Appended,
		"changed", sum.Changed,
		"published", sum.Published,
		"mapping_gaps", len(sum.Gaps),
	)
}
