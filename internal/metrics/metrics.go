// ABOUTME: Prometheus collectors for the mailbox device
// ABOUTME: Counts write/read outcomes and exposes queue depth gauges

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/coven-mailbox/internal/mailbox"
)

// Outcome labels used by the write and read counters.
const (
	OutcomeOK               = "ok"
	OutcomeMalformed        = "malformed"
	OutcomeCapacity         = "capacity_exceeded"
	OutcomeIdentity         = "identity_resolution"
	OutcomeTransfer         = "transfer_fault"
	OutcomeAllocation       = "allocation_failure"
	OutcomeInvalid          = "invalid_argument"
	OutcomeUnknownRecipient = "unknown_recipient"
	OutcomeEOF              = "eof"
	OutcomeClosed           = "closed"
	OutcomeError            = "error"
)

// Metrics holds Prometheus metric descriptors for one device.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	store     *mailbox.Store
	startTime time.Time
	registry  *prometheus.Registry

	writesTotal    *prometheus.CounterVec
	readsTotal     *prometheus.CounterVec
	promotedTotal  prometheus.Counter
	bytesReadTotal prometheus.Counter
	retriesTotal   prometheus.Counter
	unreadMessages prometheus.Gauge
	readMessages   prometheus.Gauge
	unreadCapacity prometheus.Gauge
	uptimeSeconds  prometheus.Gauge
}

// New creates metrics for store and registers them on a private registry.
func New(store *mailbox.Store, startTime time.Time) *Metrics {
	m := &Metrics{
		store:     store,
		startTime: startTime,
		registry:  prometheus.NewRegistry(),
		writesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coven_mailbox_writes_total",
			Help: "Device writes by outcome.",
		}, []string{"outcome"}),
		readsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coven_mailbox_reads_total",
			Help: "Device reads by outcome.",
		}, []string{"outcome"}),
		promotedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coven_mailbox_promoted_total",
			Help: "Messages moved from unread to read.",
		}),
		bytesReadTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coven_mailbox_bytes_read_total",
			Help: "Bytes delivered to readers.",
		}),
		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "coven_mailbox_read_retries_total",
			Help: "Read transactions retried because new senders appeared.",
		}),
		unreadMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coven_mailbox_unread_messages",
			Help: "Messages currently in the unread queue.",
		}),
		readMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coven_mailbox_read_messages",
			Help: "Messages currently in the read queue.",
		}),
		unreadCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coven_mailbox_unread_capacity",
			Help: "Maximum number of unread messages.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "coven_mailbox_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
	}

	m.registry.MustRegister(
		m.writesTotal,
		m.readsTotal,
		m.promotedTotal,
		m.bytesReadTotal,
		m.retriesTotal,
		m.unreadMessages,
		m.readMessages,
		m.unreadCapacity,
		m.uptimeSeconds,
	)

	return m
}

// Write records one write outcome.
func (m *Metrics) Write(outcome string) {
	if m == nil {
		return
	}
	m.writesTotal.WithLabelValues(outcome).Inc()
}

// Read records one read outcome with the bytes delivered and messages promoted.
func (m *Metrics) Read(outcome string, bytes, promoted int) {
	if m == nil {
		return
	}
	m.readsTotal.WithLabelValues(outcome).Inc()
	m.bytesReadTotal.Add(float64(bytes))
	m.promotedTotal.Add(float64(promoted))
}

// Retry records a read transaction retry.
func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

// Update refreshes all gauges from current store state.
func (m *Metrics) Update() {
	stats := m.store.Stats()
	m.unreadMessages.Set(float64(stats.Unread))
	m.readMessages.Set(float64(stats.Read))
	m.unreadCapacity.Set(float64(stats.Capacity))
	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())
}

// Gatherer exposes the private registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	inner := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		inner.ServeHTTP(w, r)
	})
}
