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

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PollCycle()
		m.PollError()
		m.Decision("new", "text")
		m.HistorySize(1, 2)
		m.StrategyAttempt("keystroke", true)
		m.PasteResult("delivered", time.Second)
	})
}

func TestCounters(t *testing.T) {
	m := New()
	m.PollCycle()
	m.PollCycle()
	m.StrategyAttempt("menu", false)
	m.StrategyAttempt("keystroke", true)
	m.PasteResult("delivered", 100*time.Millisecond)
	m.HistorySize(2, 5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pollCycles))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.strategyResults.WithLabelValues("menu", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pasteResults.WithLabelValues("delivered")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.historyEntries.WithLabelValues("false")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.Decision("duplicate", "rtf")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `clipstack_poller_decisions_total{decision="duplicate",kind="rtf"} 1`))
}
