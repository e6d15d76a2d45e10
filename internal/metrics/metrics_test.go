// ABOUTME: Tests for the device Prometheus collectors
// ABOUTME: Gathers the private registry and checks counters and gauges

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-mailbox/internal/mailbox"
	"github.com/2389/coven-mailbox/internal/message"
)

func newStore(t *testing.T) *mailbox.Store {
	t.Helper()
	s, err := mailbox.New(mailbox.Config{Capacity: 4})
	require.NoError(t, err)
	return s
}

// family returns the gathered metric family with the given name.
func family(t *testing.T, m *Metrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return nil
}

// labeled returns the counter value for one outcome label.
func labeled(t *testing.T, m *Metrics, name, outcome string) float64 {
	t.Helper()
	for _, metric := range family(t, m, name).GetMetric() {
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == "outcome" && lp.GetValue() == outcome {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Write(OutcomeOK)
		m.Read(OutcomeOK, 10, 1)
		m.Retry()
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := New(newStore(t), time.Now())

	m.Write(OutcomeOK)
	m.Write(OutcomeOK)
	m.Write(OutcomeMalformed)
	m.Read(OutcomeOK, 42, 3)
	m.Read(OutcomeEOF, 0, 0)
	m.Retry()

	assert.Equal(t, 2.0, labeled(t, m, "coven_mailbox_writes_total", OutcomeOK))
	assert.Equal(t, 1.0, labeled(t, m, "coven_mailbox_writes_total", OutcomeMalformed))
	assert.Equal(t, 1.0, labeled(t, m, "coven_mailbox_reads_total", OutcomeOK))
	assert.Equal(t, 1.0, labeled(t, m, "coven_mailbox_reads_total", OutcomeEOF))
	assert.Equal(t, 42.0, family(t, m, "coven_mailbox_bytes_read_total").GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 3.0, family(t, m, "coven_mailbox_promoted_total").GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 1.0, family(t, m, "coven_mailbox_read_retries_total").GetMetric()[0].GetCounter().GetValue())
}

func TestMetrics_UpdateGauges(t *testing.T) {
	s := newStore(t)
	m := New(s, time.Now().Add(-time.Minute))

	for _, rcpt := range []string{"bob", "bob", "carol"} {
		msg, err := message.New([]byte("hi"), 1000, rcpt)
		require.NoError(t, err)
		require.NoError(t, s.Append(msg))
	}
	_, err := s.PromoteAllMatching("bob")
	require.NoError(t, err)

	m.Update()

	gauge := func(name string) float64 {
		return family(t, m, name).GetMetric()[0].GetGauge().GetValue()
	}
	assert.Equal(t, 1.0, gauge("coven_mailbox_unread_messages"))
	assert.Equal(t, 2.0, gauge("coven_mailbox_read_messages"))
	assert.Equal(t, 4.0, gauge("coven_mailbox_unread_capacity"))
	assert.GreaterOrEqual(t, gauge("coven_mailbox_uptime_seconds"), 60.0)
}

func TestMetrics_Handler(t *testing.T) {
	s := newStore(t)
	m := New(s, time.Now())

	msg, err := message.New([]byte("hi"), 1000, "bob")
	require.NoError(t, err)
	require.NoError(t, s.Append(msg))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "coven_mailbox_unread_messages 1")
}
