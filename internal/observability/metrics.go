package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the advisory job.
type Metrics struct {
	EntriesFetched   prometheus.Counter
	FetchRetries     *prometheus.CounterVec // labels: source={feed,advisory_page}
	MappingGaps      prometheus.Counter
	RecordsAppended  prometheus.Counter
	RecordsChanged   prometheus.Counter
	RecordsPublished prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Run metrics.
	Runs            *prometheus.CounterVec // labels: outcome={success,error}
	RunDuration     prometheus.Histogram
	LastSuccessTime prometheus.Gauge
}

// NewMetrics creates and registers all job metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.EntriesFetched,
		m.FetchRetries,
		m.MappingGaps,
		m.RecordsAppended,
		m.RecordsChanged,
		m.RecordsPublished,
		m.PipelineRunning,
		m.Runs,
		m.RunDuration,
		m.LastSuccessTime,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EntriesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "advisory_etl",
			Name:      "entries_fetched_total",
			Help:      "Total advisory entries read from the feed.",
		}),
		FetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisory_etl",
			Name:      "fetch_retries_total",
			Help:      "Fetch attempts that failed and were retried, by source.",
		}, []string{"source"}),
		MappingGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "advisory_etl",
			Name:      "mapping_gaps_total",
			Help:      "Jurisdiction codes passed through without a table mapping.",
		}),
		RecordsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "advisory_etl",
			Name:      "records_appended_total",
			Help:      "Total records appended to history.",
		}),
		RecordsChanged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "advisory_etl",
			Name:      "records_changed_total",
			Help:      "Total batch records whose publish date changed against history.",
		}),
		RecordsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "advisory_etl",
			Name:      "records_published_total",
			Help:      "Total changed records published to the change topic.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "advisory_etl",
			Name:      "pipeline_running",
			Help:      "1 while the scheduled pipeline is active, 0 when shut down.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "advisory_etl",
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "advisory_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-reconcile-persist run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LastSuccessTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "advisory_etl",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}
}
