package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the pipeline subsystem.
type Metrics struct {
	JobsTotal             *prometheus.CounterVec
	StageDuration         *prometheus.HistogramVec
	EntitiesDetected      prometheus.Histogram
	RiskTotal             *prometheus.CounterVec
	RetriesTotal          *prometheus.CounterVec
	SummaryFallbacksTotal prometheus.Counter
	SinkErrorsTotal       prometheus.Counter
	QueueDepth            prometheus.Gauge
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigilo_jobs_total",
			Help: "Total pipeline runs by terminal status.",
		}, []string{"status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sigilo_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~40s
		}, []string{"stage"}),
		EntitiesDetected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sigilo_entities_detected",
			Help:    "Entities detected per request.",
			Buckets: prometheus.LinearBuckets(0, 2, 16), // 0 .. 30
		}),
		RiskTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigilo_risk_level_total",
			Help: "Finished requests by risk level.",
		}, []string{"level"}),
		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigilo_stage_retries_total",
			Help: "Stage retries by stage name.",
		}, []string{"stage"}),
		SummaryFallbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigilo_summary_fallbacks_total",
			Help: "Jobs that finished with the deterministic fallback summary.",
		}),
		SinkErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigilo_status_sink_errors_total",
			Help: "Failed status sink writes (best-effort, never fail a stage).",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigilo_queue_depth",
			Help: "Jobs waiting in the worker queue.",
		}),
	}

	reg.MustRegister(
		m.JobsTotal,
		m.StageDuration,
		m.EntitiesDetected,
		m.RiskTotal,
		m.RetriesTotal,
		m.SummaryFallbacksTotal,
		m.SinkErrorsTotal,
		m.QueueDepth,
	)

	return m
}
