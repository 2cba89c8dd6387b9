package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BreakerMetrics tracks circuit breaker state. OnStateChange matches
// objectstore.BreakerConfig.OnStateChange.
type BreakerMetrics struct {
	// State is 0 when closed, 1 when half-open and 2 when open.
	State *prometheus.GaugeVec

	// TransitionsTotal counts state changes by breaker and target state.
	TransitionsTotal *prometheus.CounterVec
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

func newBreakerMetrics(f promauto.Factory) *BreakerMetrics {
	return &BreakerMetrics{
		State: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "auditvault",
				Subsystem: "breaker",
				Name:      "state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open).",
			},
			[]string{"name"},
		),
		TransitionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "auditvault",
				Subsystem: "breaker",
				Name:      "transitions_total",
				Help:      "Total number of circuit breaker state transitions, by breaker and target state.",
			},
			[]string{"name", "to"},
		),
	}
}

// NewBreakerMetrics creates and registers breaker metrics.
func NewBreakerMetrics() *BreakerMetrics {
	return newBreakerMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewBreakerMetricsWithRegistry creates breaker metrics registered with a custom registry.
func NewBreakerMetricsWithRegistry(reg prometheus.Registerer) *BreakerMetrics {
	return newBreakerMetrics(promauto.With(reg))
}

// OnStateChange records a transition of the named breaker.
func (m *BreakerMetrics) OnStateChange(name, _, to string) {
	m.State.WithLabelValues(name).Set(breakerStateValue(to))
	m.TransitionsTotal.WithLabelValues(name, to).Inc()
}
