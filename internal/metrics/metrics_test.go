package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordSession("bridged")
	m.RecordSummary("ok")
	m.RecordRetrieval("answered", 0.2)
	m.RecordIngested(3)
	m.RecordDispatch("queued")
}

func TestRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RecordSession("bridged")
	m.RecordSession("bridged")
	m.RecordSummary("degraded")
	m.RecordIngested(7)

	if got := testutil.ToFloat64(m.Sessions.WithLabelValues("bridged")); got != 2 {
		t.Errorf("sessions bridged=%v", got)
	}
	if got := testutil.ToFloat64(m.Summaries.WithLabelValues("degraded")); got != 1 {
		t.Errorf("summaries degraded=%v", got)
	}
	if got := testutil.ToFloat64(m.IngestedPassages); got != 7 {
		t.Errorf("ingested=%v", got)
	}

	n := 3
	RegisterActiveSessions(reg, func() int { return n })
	count, err := testutil.GatherAndCount(reg, "voicetutor_sessions_active")
	if err != nil || count != 1 {
		t.Errorf("active gauge count=%d err=%v", count, err)
	}
}
