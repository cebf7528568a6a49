// Package observability exposes run counters in Prometheus format.
package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seedgoat"

// Metrics holds the collectors for one seeding run.
type Metrics struct {
	registry *prometheus.Registry

	pages      *prometheus.CounterVec
	items      *prometheus.CounterVec
	failures   *prometheus.CounterVec
	pageBytes  prometheus.Counter
	fetchTimes prometheus.Histogram

	stats  func() map[string]any
	logger *slog.Logger
}

// NewMetrics creates a Metrics instance with its own registry.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pages_total",
				Help:      "Listing pages by category and outcome.",
			},
			[]string{"category", "outcome"},
		),
		items: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "items_total",
				Help:      "Listing entries by category and outcome.",
			},
			[]string{"category", "outcome"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "item_failures_total",
				Help:      "Failed entries by the stage that failed.",
			},
			[]string{"stage"},
		),
		pageBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_bytes_total",
			Help:      "Bytes of listing HTML downloaded.",
		}),
		fetchTimes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_fetch_seconds",
			Help:      "Listing page fetch latency.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 8),
		}),
		logger: logger.With("component", "metrics"),
	}

	m.registry.MustRegister(
		m.pages,
		m.items,
		m.failures,
		m.pageBytes,
		m.fetchTimes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) PageFetched(category string, size int, took time.Duration) {
	m.pages.WithLabelValues(category, "fetched").Inc()
	m.pageBytes.Add(float64(size))
	m.fetchTimes.Observe(took.Seconds())
}

func (m *Metrics) PageFailed(category string) {
	m.pages.WithLabelValues(category, "failed").Inc()
}

func (m *Metrics) PageSkipped(category string) {
	m.pages.WithLabelValues(category, "skipped").Inc()
}

func (m *Metrics) ItemWritten(category string) {
	m.items.WithLabelValues(category, "written").Inc()
}

func (m *Metrics) ItemFailed(category, stage string) {
	m.items.WithLabelValues(category, "failed").Inc()
	m.failures.WithLabelValues(stage).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetStatsSource supplies the run counters served as JSON on /api/stats.
func (m *Metrics) SetStatsSource(fn func() map[string]any) {
	m.stats = fn
}

func (m *Metrics) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if m.stats != nil {
		for k, v := range m.stats() {
			stats[k] = v
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// StartServer serves metrics on port until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())
	mux.HandleFunc("/api/stats", m.handleStats)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	return srv
}
