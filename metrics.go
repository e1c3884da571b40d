package phasetwo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects evaluation statistics. A nil *Metrics records nothing.
type Metrics struct {
	calls       *prometheus.CounterVec
	scripts     prometheus.Counter
	cpuConsumed prometheus.Histogram
	memConsumed prometheus.Histogram
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		calls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "phasetwo",
				Name:      "calls_total",
				Help:      "Boundary calls by operation and result",
			},
			[]string{"op", "result"},
		),
		scripts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "phasetwo",
				Name:      "scripts_evaluated_total",
				Help:      "Scripts evaluated successfully",
			},
		),
		cpuConsumed: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "phasetwo",
				Name:      "script_cpu_consumed",
				Help:      "CPU steps consumed per script",
				Buckets:   prometheus.ExponentialBuckets(1e5, 10, 7),
			},
		),
		memConsumed: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "phasetwo",
				Name:      "script_mem_consumed",
				Help:      "Memory units consumed per script",
				Buckets:   prometheus.ExponentialBuckets(1e3, 10, 6),
			},
		),
	}
}

func (m *Metrics) observeFailure(op string, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op, string(KindOf(err))).Inc()
}

func (m *Metrics) observeSuccess(op string) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(op, "ok").Inc()
}

func (m *Metrics) observeOutcomes(outcomes []Outcome) {
	if m == nil {
		return
	}
	for _, o := range outcomes {
		consumed := o.Consumed()
		m.scripts.Inc()
		m.cpuConsumed.Observe(float64(consumed.CPU))
		m.memConsumed.Observe(float64(consumed.Mem))
	}
}
