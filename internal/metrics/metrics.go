// Package metrics exposes the monitor's prometheus collectors and the HTTP
// server that serves them.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "tribewatch"

// Cycle results used as label values.
const (
	ResultOK          = "ok"
	ResultFetchFailed = "fetch_failed"
	ResultBaseline    = "baseline"
)

// Metrics holds every collector the poller updates. The zero value is not
// usable; call New.
type Metrics struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	fetchedBytes  prometheus.Gauge
	records       prometheus.Counter
	malformed     prometheus.Counter
	events        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	seen          prometheus.Gauge

	lastSuccess atomic.Int64
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll cycles by result",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_cycle_duration_seconds",
			Help:      "Wall time of a poll cycle including fetch and sends",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		fetchedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fetched_bytes",
			Help:      "Size of the most recently fetched state file",
		}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_extracted_total",
			Help:      "Length-prefixed records extracted from fetched buffers",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_frames_total",
			Help:      "Fetches whose record table ended in a malformed frame",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_new_total",
			Help:      "Newly seen classified events by category",
		}, []string{"category"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications handed to the sink by result; with the retry queue enabled accepted means queued",
		}, []string{"result"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_delivered_total",
			Help:      "Final outcome of queued notifications",
		}, []string{"result"}),
		seen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seen_records",
			Help:      "Entries currently held in the seen set",
		}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.cycleDuration,
		m.fetchedBytes,
		m.records,
		m.malformed,
		m.events,
		m.notifications,
		m.deliveries,
		m.seen,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CycleCompleted records the outcome and duration of one poll cycle.
func (m *Metrics) CycleCompleted(result string, d time.Duration) {
	m.cycles.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(d.Seconds())
	if result != ResultFetchFailed {
		m.lastSuccess.Store(time.Now().UnixNano())
	}
}

// Fetched records the size of a fetched buffer and the records it held.
func (m *Metrics) Fetched(bytes, records int, malformed bool) {
	m.fetchedBytes.Set(float64(bytes))
	m.records.Add(float64(records))
	if malformed {
		m.malformed.Inc()
	}
}

// NewEvent counts a newly seen event of the given category.
func (m *Metrics) NewEvent(category string) {
	m.events.WithLabelValues(category).Inc()
}

// Notified counts a notification handed to the sink, accepted or rejected.
func (m *Metrics) Notified(ok bool) {
	if ok {
		m.notifications.WithLabelValues("accepted").Inc()
		return
	}
	m.notifications.WithLabelValues("rejected").Inc()
}

// Delivered counts the final outcome of a notification the retry queue
// accepted earlier.
func (m *Metrics) Delivered(ok bool) {
	if ok {
		m.deliveries.WithLabelValues("delivered").Inc()
		return
	}
	m.deliveries.WithLabelValues("dropped").Inc()
}

// SeenSize sets the seen-set size gauge.
func (m *Metrics) SeenSize(n int) {
	m.seen.Set(float64(n))
}

// LastSuccess reports when a cycle last fetched successfully. Zero if never.
func (m *Metrics) LastSuccess() time.Time {
	ns := m.lastSuccess.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
