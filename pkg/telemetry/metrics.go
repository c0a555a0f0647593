package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Load results recorded by RecordLoad.
const (
	LoadComposed = "composed"
	LoadReused   = "reused"
	LoadFailed   = "failed"
)

// Metrics provides Prometheus metrics for the loader.
type Metrics struct {
	config MetricsConfig

	loads           *prometheus.CounterVec
	loadDuration    *prometheus.HistogramVec
	fragmentReads   *prometheus.CounterVec
	decryptFailures prometheus.Counter
	skippedLoads    prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector on a private registry.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loads_total",
				Help:      "Total number of top-level profile loads",
			},
			[]string{"result"},
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "load_duration_seconds",
				Help:      "Duration of top-level profile loads in seconds",
				Buckets:   buckets,
			},
			[]string{"result"},
		),
		fragmentReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fragment_reads_total",
				Help:      "Total number of fragment files read",
			},
			[]string{"kind"},
		),
		decryptFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decrypt_failures_total",
				Help:      "Total number of failed fragment decryptions",
			},
		),
		skippedLoads: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fragments_skipped_total",
				Help:      "Total number of fragments skipped because they were already loaded",
			},
		),
	}

	registry.MustRegister(
		m.loads,
		m.loadDuration,
		m.fragmentReads,
		m.decryptFailures,
		m.skippedLoads,
	)

	return m, nil
}

// RecordLoad records a finished top-level load.
func (m *Metrics) RecordLoad(result string, duration time.Duration) {
	if m.loads == nil {
		return
	}
	m.loads.WithLabelValues(result).Inc()
	m.loadDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordFragmentRead records one fragment file read.
func (m *Metrics) RecordFragmentRead(kind string) {
	if m.fragmentReads == nil {
		return
	}
	m.fragmentReads.WithLabelValues(kind).Inc()
}

// RecordDecryptFailure records a failed decryption.
func (m *Metrics) RecordDecryptFailure() {
	if m.decryptFailures == nil {
		return
	}
	m.decryptFailures.Inc()
}

// RecordSkip records a fragment skipped by the ledger.
func (m *Metrics) RecordSkip() {
	if m.skippedLoads == nil {
		return
	}
	m.skippedLoads.Inc()
}

// Registry returns the private registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Total sums every sample of the named counter family (without namespace).
func (m *Metrics) Total(name string) float64 {
	if m.registry == nil {
		return 0
	}
	families, err := m.registry.Gather()
	if err != nil {
		return 0
	}

	full := prometheus.BuildFQName(m.config.Namespace, "", name)
	var total float64
	for _, mf := range families {
		if mf.GetName() != full {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
		}
	}
	return total
}

// Timer helps measure operation duration.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
