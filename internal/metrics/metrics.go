// Package metrics exposes Prometheus instrumentation for backend calls and
// chat traffic.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "scheduleai"

// Metrics owns a private registry. It implements api.Recorder.
type Metrics struct {
	registry      *prometheus.Registry
	apiRequests   *prometheus.CounterVec
	apiDuration   *prometheus.HistogramVec
	botUpdates    *prometheus.CounterVec
	remindersSent prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Backend requests by method, route and status code (0 for transport errors).",
		}, []string{"method", "route", "status"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Backend request latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
		botUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_updates_total",
			Help:      "Chat updates handled, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Upcoming-task reminders delivered.",
		}),
	}
	m.registry.MustRegister(
		m.apiRequests,
		m.apiDuration,
		m.botUpdates,
		m.remindersSent,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one backend call.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.apiRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.apiDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveUpdate records one handled chat update.
func (m *Metrics) ObserveUpdate(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.botUpdates.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ReminderSent() {
	m.remindersSent.Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
