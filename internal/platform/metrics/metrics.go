// Package metrics holds the Prometheus collectors for push delivery and the
// request lifecycles. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	pushSends        *prometheus.CounterVec
	pushDuration     prometheus.Histogram
	sosTransitions   *prometheus.CounterVec
	requestDecisions *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		pushSends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rescue_push_sends_total",
				Help: "Push notification send attempts by outcome",
			},
			[]string{"outcome"},
		),
		pushDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rescue_push_send_duration_seconds",
				Help:    "Duration of a single push provider call in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
		sosTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rescue_sos_transitions_total",
				Help: "SOS request state transitions by event and target state",
			},
			[]string{"event", "to"},
		),
		requestDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rescue_hospital_request_transitions_total",
				Help: "Hospital request submissions and decisions by resulting status",
			},
			[]string{"status"},
		),
	}
	reg.MustRegister(m.pushSends, m.pushDuration, m.sosTransitions, m.requestDecisions)
	return m
}

// ObservePush records one provider call.
func (m *Metrics) ObservePush(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.pushSends.WithLabelValues(outcome).Inc()
	m.pushDuration.Observe(d.Seconds())
}

// SkippedPush records a send that never reached the provider (no token).
func (m *Metrics) SkippedPush(outcome string) {
	if m == nil {
		return
	}
	m.pushSends.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SosTransition(event, to string) {
	if m == nil {
		return
	}
	m.sosTransitions.WithLabelValues(event, to).Inc()
}

func (m *Metrics) HospitalRequest(status string) {
	if m == nil {
		return
	}
	m.requestDecisions.WithLabelValues(status).Inc()
}

// Push sends the registry's current values to a Prometheus pushgateway.
// Short-lived CLI invocations use it instead of a scrape endpoint.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
