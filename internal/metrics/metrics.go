package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventsync"

// Pipeline holds the collectors of the ingestion pipeline. A nil *Pipeline
// records nothing.
type Pipeline struct {
	reg *prometheus.Registry

	cyclesTotal      *prometheus.CounterVec
	cycleDuration    prometheus.Histogram
	eventsTotal      *prometheus.CounterVec
	candidatesTotal  *prometheus.CounterVec
	droppedTotal     *prometheus.CounterVec
	adapterFailures  *prometheus.CounterVec
	adapterDuration  *prometheus.HistogramVec
	lastCycleSuccess prometheus.Gauge
	sweptTotal       *prometheus.CounterVec
}

func New() *Pipeline {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Pipeline{
		reg: reg,
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Pipeline cycles by outcome.",
		}, []string{"status"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a full pipeline cycle.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Event rows written by operation.",
		}, []string{"op"}),
		candidatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Accepted candidates by source.",
		}, []string{"source"}),
		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_dropped_total",
			Help:      "Listings dropped inside adapters by source and reason.",
		}, []string{"source", "reason"}),
		adapterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adapter_failures_total",
			Help:      "Adapter fetches that failed or timed out.",
		}, []string{"source"}),
		adapterDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_duration_seconds",
			Help:      "Adapter fetch duration.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 180},
		}, []string{"source"}),
		lastCycleSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that reconciled without error.",
		}),
		sweptTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_rows_total",
			Help:      "Rows removed by the expiry sweeper by table.",
		}, []string{"table"}),
	}
	reg.MustRegister(
		m.cyclesTotal,
		m.cycleDuration,
		m.eventsTotal,
		m.candidatesTotal,
		m.droppedTotal,
		m.adapterFailures,
		m.adapterDuration,
		m.lastCycleSuccess,
		m.sweptTotal,
	)
	return m
}

func (m *Pipeline) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Pipeline) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// AdapterStats is the subset of per-fetch counters exported as drop reasons.
type AdapterStats struct {
	Accepted  int
	Rejected  int
	NoID      int
	NoDate    int
	Invalid   int
	Duplicate int
}

func (m *Pipeline) ObserveAdapter(source string, stats AdapterStats, failed bool, d time.Duration) {
	if m == nil {
		return
	}
	m.adapterDuration.WithLabelValues(source).Observe(d.Seconds())
	if failed {
		m.adapterFailures.WithLabelValues(source).Inc()
		return
	}
	m.candidatesTotal.WithLabelValues(source).Add(float64(stats.Accepted))
	for reason, n := range map[string]int{
		"not_business": stats.Rejected,
		"no_id":        stats.NoID,
		"no_date":      stats.NoDate,
		"invalid":      stats.Invalid,
		"duplicate":    stats.Duplicate,
	} {
		if n > 0 {
			m.droppedTotal.WithLabelValues(source, reason).Add(float64(n))
		}
	}
}

func (m *Pipeline) ObserveCycle(added, updated, deleted int, ok bool, d time.Duration, at time.Time) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.cyclesTotal.WithLabelValues(status).Inc()
	m.cycleDuration.Observe(d.Seconds())
	m.eventsTotal.WithLabelValues("added").Add(float64(added))
	m.eventsTotal.WithLabelValues("updated").Add(float64(updated))
	m.eventsTotal.WithLabelValues("deleted").Add(float64(deleted))
	if ok {
		m.lastCycleSuccess.Set(float64(at.Unix()))
	}
}

func (m *Pipeline) ObserveSweep(events, ticketClasses, registrations int64) {
	if m == nil {
		return
	}
	m.sweptTotal.WithLabelValues("events").Add(float64(events))
	m.sweptTotal.WithLabelValues("ticket_classes").Add(float64(ticketClasses))
	m.sweptTotal.WithLabelValues("registrations").Add(float64(registrations))
}
