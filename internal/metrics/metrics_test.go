package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveCommand("GET", false, time.Millisecond)
		m.Lookup(true)
		m.Expired(3)
		m.Blocked(1)
		m.Connected(-1)
		m.Published(2)
	})
	assert.Nil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveCommand("GET", false, time.Microsecond)
	m.ObserveCommand("GET", false, time.Microsecond)
	m.ObserveCommand("GET", true, time.Microsecond)
	m.Lookup(true)
	m.Lookup(false)
	m.Lookup(false)
	m.Expired(4)
	m.Expired(0)
	m.Published(5)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.commands.WithLabelValues("GET", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.commands.WithLabelValues("GET", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.hits))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.misses))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.expired))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.published))
}

func TestGauges(t *testing.T) {
	m := New()

	m.Connected(1)
	m.Connected(1)
	m.Connected(-1)
	m.Blocked(2)
	m.Blocked(-2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.connected))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.blocked))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveCommand("PING", false, time.Microsecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `moonmock_commands_total{command="PING",result="ok"} 1`))
	assert.True(t, strings.Contains(body, "moonmock_command_duration_seconds_bucket"))
}
