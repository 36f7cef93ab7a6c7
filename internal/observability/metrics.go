// Package observability provides structured logging and Prometheus metrics.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	SymbolsFetched *prometheus.CounterVec
	FetchErrors    *prometheus.CounterVec
	BarsIngested   prometheus.Counter
	FetchLatency   *prometheus.HistogramVec

	// Pipeline metrics
	PipelineRunsTotal         *prometheus.CounterVec
	PipelineDuration          *prometheus.HistogramVec
	RowsProduced              *prometheus.CounterVec
	WeightInvariantViolations prometheus.Counter
	ReportsGenerated          prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulIngestion prometheus.Gauge
	LastSuccessfulPipeline  prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "price_signal_lab"
	}

	return &Metrics{
		// Ingestion metrics
		SymbolsFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "symbols_fetched_total",
			Help:      "Total number of symbols downloaded by market",
		}, []string{"market"}),
		FetchErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed symbol downloads by market",
		}, []string{"market"}),
		BarsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "bars_ingested_total",
			Help:      "Total number of daily bars ingested",
		}),
		FetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "fetch_latency_seconds",
			Help:      "Market data download latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),

		// Pipeline metrics
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"phase", "status"}),
		PipelineDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"phase"}),
		RowsProduced: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "rows_produced_total",
			Help:      "Total number of rows produced by stage",
		}, []string{"stage"}),
		WeightInvariantViolations: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "weight_invariant_violations_total",
			Help:      "Total number of runs aborted because daily weights did not sum to 0 or 1",
		}),
		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "reports_generated_total",
			Help:      "Total number of reports generated",
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulIngestion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_ingestion_timestamp",
			Help:      "Unix timestamp of last successful ingestion",
		}),
		LastSuccessfulPipeline: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_pipeline_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSymbolFetched records one symbol download.
func RecordSymbolFetched(market string, bars int, seconds float64, err error) {
	DefaultMetrics.FetchLatency.WithLabelValues("stooq").Observe(seconds)
	if err != nil {
		DefaultMetrics.FetchErrors.WithLabelValues(market).Inc()
		return
	}
	DefaultMetrics.SymbolsFetched.WithLabelValues(market).Inc()
	DefaultMetrics.BarsIngested.Add(float64(bars))
}

// RecordIngestionSuccess stamps the last successful ingestion.
func RecordIngestionSuccess() {
	DefaultMetrics.LastSuccessfulIngestion.Set(float64(time.Now().Unix()))
}

// RecordRows adds the rows produced by a pipeline stage.
func RecordRows(stage string, rows int) {
	DefaultMetrics.RowsProduced.WithLabelValues(stage).Add(float64(rows))
}

// RecordWeightInvariantViolation counts an aborted backtest.
func RecordWeightInvariantViolation() {
	DefaultMetrics.WeightInvariantViolations.Inc()
}

// RecordReportGenerated counts a written report.
func RecordReportGenerated() {
	DefaultMetrics.ReportsGenerated.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordPipelineRun records a pipeline run.
func RecordPipelineRun(phase, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessfulPipeline.Set(float64(time.Now().Unix()))
	}
}
