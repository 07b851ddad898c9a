package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Recorder with Prometheus collectors.
type Prometheus struct {
	imports           *prometheus.CounterVec
	importErrors      *prometheus.CounterVec
	transactions      *prometheus.CounterVec
	importLatency     *prometheus.HistogramVec
	classifierBatches *prometheus.CounterVec
	classifierLatency prometheus.Histogram
	circuitState      *prometheus.GaugeVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates collectors under namespace. Call Register before use.
func NewPrometheus(namespace string) *Prometheus {
	return &Prometheus{
		imports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imports_total",
				Help:      "Total number of completed imports per source parser",
			},
			[]string{"source"},
		),
		importErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_errors_total",
				Help:      "Total number of failed imports per reason",
			},
			[]string{"reason"},
		),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Transactions processed per source and result (imported, duplicate, skipped)",
			},
			[]string{"source", "result"},
		),
		importLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "import_duration_seconds",
				Help:      "Import call latency",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
			},
			[]string{"source"},
		),
		classifierBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classifier_batches_total",
				Help:      "Classifier batches per outcome (classified, fallback, rejected)",
			},
			[]string{"outcome"},
		),
		classifierLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "classifier_duration_seconds",
				Help:      "Classifier batch latency",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (p *Prometheus) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		p.imports,
		p.importErrors,
		p.transactions,
		p.importLatency,
		p.classifierBatches,
		p.classifierLatency,
		p.circuitState,
	}
	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// RecordImport records one completed import.
func (p *Prometheus) RecordImport(source string, imported, duplicates, skipped int, duration time.Duration) {
	p.imports.WithLabelValues(source).Inc()
	p.transactions.WithLabelValues(source, "imported").Add(float64(imported))
	p.transactions.WithLabelValues(source, "duplicate").Add(float64(duplicates))
	p.transactions.WithLabelValues(source, "skipped").Add(float64(skipped))
	p.importLatency.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordImportError records a failed import.
func (p *Prometheus) RecordImportError(reason string) {
	p.importErrors.WithLabelValues(reason).Inc()
}

// RecordClassifier records one classifier batch.
func (p *Prometheus) RecordClassifier(outcome string, duration time.Duration) {
	p.classifierBatches.WithLabelValues(outcome).Inc()
	p.classifierLatency.Observe(duration.Seconds())
}

// RecordCircuitState records a circuit breaker state change.
func (p *Prometheus) RecordCircuitState(name string, state CircuitState) {
	p.circuitState.WithLabelValues(name).Set(float64(state))
}
