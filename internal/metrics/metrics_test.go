package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCycle(t *testing.T) {
	m := New()
	at := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	m.ObserveCycle(3, 2, 1, true, 5*time.Second, at)
	m.ObserveCycle(0, 0, 0, false, time.Second, at.Add(time.Hour))

	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues("added")); got != 3 {
		t.Fatalf("added=%v want=3", got)
	}
	if got := testutil.ToFloat64(m.cyclesTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("failed cycles=%v want=1", got)
	}
	if got := testutil.ToFloat64(m.lastCycleSuccess); got != float64(at.Unix()) {
		t.Fatalf("last success=%v want=%v", got, at.Unix())
	}
}

func TestObserveAdapter(t *testing.T) {
	m := New()
	m.ObserveAdapter("meetup", AdapterStats{Accepted: 4, Rejected: 2}, false, time.Second)
	m.ObserveAdapter("eventbrite", AdapterStats{}, true, 2*time.Minute)

	if got := testutil.ToFloat64(m.candidatesTotal.WithLabelValues("meetup")); got != 4 {
		t.Fatalf("candidates=%v want=4", got)
	}
	if got := testutil.ToFloat64(m.droppedTotal.WithLabelValues("meetup", "not_business")); got != 2 {
		t.Fatalf("dropped=%v want=2", got)
	}
	if got := testutil.ToFloat64(m.adapterFailures.WithLabelValues("eventbrite")); got != 1 {
		t.Fatalf("failures=%v want=1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveSweep(1, 2, 3)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `eventsync_swept_rows_total{table="registrations"} 3`) {
		t.Fatalf("metrics body missing sweep counter:\n%s", rec.Body.String())
	}
}

func TestNilPipelineIsSafe(t *testing.T) {
	var m *Pipeline
	m.ObserveCycle(1, 1, 1, true, time.Second, time.Now())
	m.ObserveAdapter("x", AdapterStats{}, false, time.Second)
	m.ObserveSweep(1, 1, 1)
	if m.Registry() != nil {
		t.Fatalf("nil pipeline should have no registry")
	}
}
