// Package metrics exposes the daemon's counters in Prometheus format.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "clipstack"

// Metrics groups every collector on a private registry
type Metrics struct {
	registry *prometheus.Registry

	pollCycles      prometheus.Counter
	pollErrors      prometheus.Counter
	decisions       *prometheus.CounterVec
	historyEntries  *prometheus.GaugeVec
	strategyResults *prometheus.CounterVec
	pasteResults    *prometheus.CounterVec
	pasteDuration   prometheus.Histogram
}

// New registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "poller", Name: "cycles_total",
			Help: "Pasteboard poll cycles that observed a change.",
		}),
		pollErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "poller", Name: "errors_total",
			Help: "Pasteboard reads that failed.",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "poller", Name: "decisions_total",
			Help: "Dedup outcomes by decision and content kind.",
		}, []string{"decision", "kind"}),
		historyEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "history", Name: "entries",
			Help: "Entries currently held in history.",
		}, []string{"pinned"}),
		strategyResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "paste", Name: "strategy_attempts_total",
			Help: "Delivery strategy attempts by strategy and result.",
		}, []string{"strategy", "result"}),
		pasteResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "paste", Name: "requests_total",
			Help: "Paste requests by final outcome.",
		}, []string{"outcome"}),
		pasteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "paste", Name: "duration_seconds",
			Help:    "Time from paste request to final outcome.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		}),
	}
	m.registry.MustRegister(
		m.pollCycles, m.pollErrors, m.decisions, m.historyEntries,
		m.strategyResults, m.pasteResults, m.pasteDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) PollCycle() {
	if m == nil {
		return
	}
	m.pollCycles.Inc()
}

func (m *Metrics) PollError() {
	if m == nil {
		return
	}
	m.pollErrors.Inc()
}

func (m *Metrics) Decision(decision, kind string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision, kind).Inc()
}

func (m *Metrics) HistorySize(pinned, unpinned int) {
	if m == nil {
		return
	}
	m.historyEntries.WithLabelValues("true").Set(float64(pinned))
	m.historyEntries.WithLabelValues("false").Set(float64(unpinned))
}

func (m *Metrics) StrategyAttempt(strategy string, ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.strategyResults.WithLabelValues(strategy, result).Inc()
}

func (m *Metrics) PasteResult(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.pasteResults.WithLabelValues(outcome).Inc()
	m.pasteDuration.Observe(elapsed.Seconds())
}

// Handler serves the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
