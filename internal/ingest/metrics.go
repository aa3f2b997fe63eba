package ingest

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "vibe_kg"

// Record outcomes used as the "outcome" label of the records counter.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeDiscarded = "discarded"
)

// Metrics exports pipeline counters to Prometheus. A nil *Metrics records
// nothing.
type Metrics struct {
	Records          *prometheus.CounterVec
	Genotypes        prometheus.Counter
	InvalidGenotypes prometheus.Counter
	UnresolvedEdges  prometheus.Counter
	Retries          prometheus.Counter
	FlushDuration    prometheus.Histogram
}

// NewMetrics creates the pipeline metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "records_total",
				Help:      "VCF records by ingestion outcome.",
			},
			[]string{"outcome"},
		),
		Genotypes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "genotype_edges_total",
			Help:      "Sample-variant edges written.",
		}),
		InvalidGenotypes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "invalid_genotypes_total",
			Help:      "Genotype calls that could not be encoded.",
		}),
		UnresolvedEdges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "unresolved_edges_total",
			Help:      "Edges skipped because an endpoint node was missing.",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "store_retries_total",
			Help:      "Store operations retried after a retryable failure.",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "flush_duration_seconds",
			Help:      "Time to write one batch, including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
	}

	for _, c := range []prometheus.Collector{
		m.Records, m.Genotypes, m.InvalidGenotypes, m.UnresolvedEdges, m.Retries, m.FlushDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) records(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Records.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) flushed(b *batch, written, unresolved int, d time.Duration) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(OutcomeProcessed).Add(float64(b.records))
	m.Genotypes.Add(float64(written))
	m.InvalidGenotypes.Add(float64(b.invalid))
	m.UnresolvedEdges.Add(float64(unresolved))
	m.FlushDuration.Observe(d.Seconds())
}

func (m *Metrics) retried() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}
