package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for modelops. A nil *Metrics, or one
// created with metrics disabled, silently drops every observation.
type Metrics struct {
	config MetricsConfig

	// Attempt metrics
	attempts       *prometheus.CounterVec
	attemptLatency *prometheus.HistogramVec
	activeAttempts prometheus.Gauge

	// Pre-execution rejections (resolution, policy, build)
	rejections *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec

	// Audit sink health
	auditFailures *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operation_attempts_total",
				Help:      "Total number of operation attempts that reached the executor",
			},
			[]string{"operation", "status"},
		),
		attemptLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of external process execution in seconds",
				Buckets:   buckets,
			},
			[]string{"operation", "kind"},
		),
		activeAttempts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_attempts",
				Help:      "Number of operation attempts currently executing",
			},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operation_rejections_total",
				Help:      "Total number of attempts rejected before execution",
			},
			[]string{"code"},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		auditFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "audit_write_failures_total",
				Help:      "Total number of audit records a sink failed to persist",
			},
			[]string{"sink"},
		),
	}

	registry.MustRegister(
		m.attempts,
		m.attemptLatency,
		m.activeAttempts,
		m.rejections,
		m.errorsByClass,
		m.auditFailures,
	)

	return m, nil
}

// RecordAttemptStarted marks an attempt as executing.
func (m *Metrics) RecordAttemptStarted() {
	if m == nil || m.activeAttempts == nil {
		return
	}
	m.activeAttempts.Inc()
}

// RecordAttempt records a finished attempt with its outcome and duration.
func (m *Metrics) RecordAttempt(operation, status, kind string, duration time.Duration) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(operation, status).Inc()
	m.attemptLatency.WithLabelValues(operation, kind).Observe(duration.Seconds())
	m.activeAttempts.Dec()
}

// RecordRejection records an attempt that failed before reaching the executor.
func (m *Metrics) RecordRejection(code, class string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(code).Inc()
	if class != "" {
		m.errorsByClass.WithLabelValues(class).Inc()
	}
}

// RecordAuditFailure records a failed audit write for the named sink.
func (m *Metrics) RecordAuditFailure(sink string) {
	if m == nil || m.auditFailures == nil {
		return
	}
	m.auditFailures.WithLabelValues(sink).Inc()
}

// Registry returns the underlying registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics. It is a no-op
// when metrics are disabled or no listen address is configured.
func (m *Metrics) StartMetricsServer() error {
	if m == nil || !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Log error but don't fail the application
			log.Error().Err(err).Str("addr", m.config.ListenAddress).Msg("metrics server error")
		}
	}()

	return nil
}

// Shutdown stops the metrics server if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
