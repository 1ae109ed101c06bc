// Package metrics holds the Prometheus collectors exposed on /metrics. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crowdstack"

type Metrics struct {
	checkins      *prometheus.CounterVec
	registrations *prometheus.CounterVec
	payoutRuns    prometheus.Counter
	statements    *prometheus.CounterVec
	guestFlags    *prometheus.CounterVec
	emitFailures  *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Door check-in transitions by action.",
		}, []string{"action"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration requests by outcome.",
		}, []string{"outcome"}),
		payoutRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_runs_total",
			Help:      "Payout runs generated.",
		}),
		statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_statements_total",
			Help:      "Payout statement renders by result.",
		}, []string{"result"}),
		guestFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guest_flags_total",
			Help:      "Guest strikes recorded by resulting state.",
		}, []string{"state"}),
		emitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_emit_failures_total",
			Help:      "Outbox events that could not be handed off.",
		}, []string{"event"}),
	}
	if reg != nil {
		reg.MustRegister(m.checkins, m.registrations, m.payoutRuns, m.statements, m.guestFlags, m.emitFailures)
	}
	return m
}

func (m *Metrics) Checkin(action string) {
	if m == nil {
		return
	}
	m.checkins.WithLabelValues(action).Inc()
}

func (m *Metrics) Registration(outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PayoutRun() {
	if m == nil {
		return
	}
	m.payoutRuns.Inc()
}

func (m *Metrics) Statement(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.statements.WithLabelValues(result).Inc()
}

func (m *Metrics) GuestFlag(state string) {
	if m == nil {
		return
	}
	m.guestFlags.WithLabelValues(state).Inc()
}

func (m *Metrics) EmitFailure(event string) {
	if m == nil {
		return
	}
	m.emitFailures.WithLabelValues(event).Inc()
}
