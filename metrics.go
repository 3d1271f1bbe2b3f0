package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver records gate decisions and store lookup latency.
type PrometheusObserver struct {
	decisions *prometheus.CounterVec
	lookups   *prometheus.HistogramVec
}

// NewPrometheusObserver creates the collectors and registers them with reg.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authgate",
			Name:      "decisions_total",
			Help:      "Policy decisions by policy, final gate state and deny reason.",
		}, []string{"policy", "state", "reason"}),
		lookups: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "authgate",
			Name:      "resolution_seconds",
			Help:      "Identity store lookup latency by strategy and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy", "outcome"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{o.decisions, o.lookups} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return o, nil
}

func (o *PrometheusObserver) ObserveDecision(policy string, d Decision) {
	o.decisions.WithLabelValues(policy, d.State.String(), string(d.Reason)).Inc()
}

func (o *PrometheusObserver) ObserveLookup(strategy, outcome string, elapsed time.Duration) {
	o.lookups.WithLabelValues(strategy, outcome).Observe(elapsed.Seconds())
}

// Decisions exposes the counter vector, mostly for tests.
func (o *PrometheusObserver) Decisions() *prometheus.CounterVec {
	return o.decisions
}
