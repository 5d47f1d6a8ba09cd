package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "keygate"

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics is safe to use through a nil pointer; every method is a no-op then.
type Metrics struct {
	authDecisions   *prometheus.CounterVec
	adminDecisions  *prometheus.CounterVec
	signatureChecks *prometheus.CounterVec
	keyStoreOps     *prometheus.CounterVec
	liveKeys        prometheus.Gauge
	buckets         prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		authDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "request_decisions_total",
				Help:      "API key authentication decisions by outcome.",
			},
			[]string{"outcome"},
		),
		adminDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "admin_decisions_total",
				Help:      "Admin credential checks by outcome.",
			},
			[]string{"outcome"},
		),
		signatureChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "signature",
				Name:      "checks_total",
				Help:      "Webhook signature verifications by scheme and outcome.",
			},
			[]string{"scheme", "outcome"},
		),
		keyStoreOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "keystore",
				Name:      "operations_total",
				Help:      "Key store mutations by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		liveKeys: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "keystore",
				Name:      "live_keys",
				Help:      "Number of API keys currently held by the key store.",
			},
		),
		buckets: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "buckets",
				Help:      "Number of token buckets currently tracked.",
			},
		),
	}
}

func (m *Metrics) ObserveAuth(outcome string) {
	if m == nil {
		return
	}
	m.authDecisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveAdmin(ok bool) {
	if m == nil {
		return
	}
	m.adminDecisions.WithLabelValues(outcomeOf(ok)).Inc()
}

func (m *Metrics) ObserveSignature(scheme string, ok bool) {
	if m == nil {
		return
	}
	m.signatureChecks.WithLabelValues(scheme, outcomeOf(ok)).Inc()
}

func (m *Metrics) ObserveKeyStoreOp(op string, err error) {
	if m == nil {
		return
	}
	m.keyStoreOps.WithLabelValues(op, outcomeOf(err == nil)).Inc()
}

func (m *Metrics) SetLiveKeys(n int) {
	if m == nil {
		return
	}
	m.liveKeys.Set(float64(n))
}

func (m *Metrics) SetBuckets(n int) {
	if m == nil {
		return
	}
	m.buckets.Set(float64(n))
}

func outcomeOf(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
