// Package metrics provides Prometheus metrics for gateway sends and token cleanup.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Send outcomes used as the "outcome" label.
const (
	OutcomeSuccess   = "success"
	OutcomeRetryable = "retryable"
	OutcomeDropped   = "dropped"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	sendsTotal        *prometheus.CounterVec   // batches sent, by gateway and outcome
	sendDuration      *prometheus.HistogramVec // batch latency, by gateway
	tokensInvalidated *prometheus.CounterVec   // registration IDs removed, by gateway
	tokensCanonical   *prometheus.CounterVec   // registration IDs replaced, by gateway
}

// New creates the metrics and registers them with registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "push_gateway_sends_total",
				Help: "Total number of gateway requests by gateway and outcome",
			},
			[]string{"gateway", "outcome"},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "push_gateway_send_duration_seconds",
				Help:    "Time taken for one gateway request",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"gateway"},
		),
		tokensInvalidated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "push_tokens_invalidated_total",
				Help: "Total number of registration IDs reported invalid by the gateway",
			},
			[]string{"gateway"},
		),
		tokensCanonical: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "push_tokens_canonicalized_total",
				Help: "Total number of registration IDs replaced by a canonical ID",
			},
			[]string{"gateway"},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register push metrics: %w", err)
	}
	return m, nil
}

// ObserveSend records one gateway request.
func (m *Metrics) ObserveSend(gateway, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.sendsTotal.WithLabelValues(gateway, outcome).Inc()
	m.sendDuration.WithLabelValues(gateway).Observe(d.Seconds())
}

func (m *Metrics) AddInvalidTokens(gateway string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.tokensInvalidated.WithLabelValues(gateway).Add(float64(n))
}

func (m *Metrics) AddCanonicalTokens(gateway string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.tokensCanonical.WithLabelValues(gateway).Add(float64(n))
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.sendsTotal.Describe(ch)
	m.sendDuration.Describe(ch)
	m.tokensInvalidated.Describe(ch)
	m.tokensCanonical.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.sendsTotal.Collect(ch)
	m.sendDuration.Collect(ch)
	m.tokensInvalidated.Collect(ch)
	m.tokensCanonical.Collect(ch)
}
