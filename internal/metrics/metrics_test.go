package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Checkin("checkin")
	m.Checkin("checkin")
	m.Checkin("undo")
	m.Statement(false)

	if got := testutil.ToFloat64(m.checkins.WithLabelValues("checkin")); got != 2 {
		t.Errorf("expected 2 check-ins, got %v", got)
	}
	if got := testutil.ToFloat64(m.checkins.WithLabelValues("undo")); got != 1 {
		t.Errorf("expected 1 undo, got %v", got)
	}
	if got := testutil.ToFloat64(m.statements.WithLabelValues("failed")); got != 1 {
		t.Errorf("expected 1 failed statement, got %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Checkin("checkin")
	m.Registration("created")
	m.PayoutRun()
	m.Statement(true)
	m.GuestFlag("warned")
	m.EmitFailure("payout_generated")
}
