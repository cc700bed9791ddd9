package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pipeline's Prometheus instruments.
type Metrics struct {
	TicksTotal            prometheus.Counter
	QCFailTotal           prometheus.Counter
	DroppedTicksTotal     prometheus.Counter
	SamplesPersistedTotal prometheus.Counter
	BatchFlushSeconds     prometheus.Histogram
}

// NewMetrics registers the pipeline instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "agriscan_ticks_total",
			Help: "Sampling ticks processed.",
		}),
		QCFailTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "agriscan_qc_fail_total",
			Help: "Samples that failed quality control.",
		}),
		DroppedTicksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "agriscan_dropped_ticks_total",
			Help: "Ticks dropped because processing fell behind.",
		}),
		SamplesPersistedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "agriscan_samples_persisted_total",
			Help: "Samples committed to the database.",
		}),
		BatchFlushSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agriscan_batch_flush_seconds",
			Help:    "Latency of sample batch commits.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
