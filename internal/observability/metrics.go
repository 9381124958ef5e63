package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and dispatch flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	campaignsCreatedTotal *prometheus.CounterVec
	quotaRejectedTotal    prometheus.Counter
	recordsSentTotal      *prometheus.CounterVec
	recordsFailedTotal    *prometheus.CounterVec
	sendDuration          *prometheus.HistogramVec
	dispatchInflight      *prometheus.GaugeVec
	retryRequeuedTotal    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "comms_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "comms_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		campaignsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "comms_engine",
				Name:      "campaigns_created_total",
				Help:      "Total number of campaigns created, by channel.",
			},
			[]string{"channel"},
		),
		quotaRejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "comms_engine",
				Name:      "quota_rejected_total",
				Help:      "Total number of send requests rejected by the per-event quota.",
			},
		),
		recordsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "comms_engine",
				Name:      "records_sent_total",
				Help:      "Total number of dispatch records delivered successfully.",
			},
			[]string{"channel"},
		),
		recordsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "comms_engine",
				Name:      "records_failed_total",
				Help:      "Total number of dispatch records that ended in failed state.",
			},
			[]string{"channel", "reason"},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "comms_engine",
				Name:      "send_duration_seconds",
				Help:      "Provider send duration in seconds grouped by channel.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel"},
		),
		dispatchInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "comms_engine",
				Name:      "dispatch_inflight",
				Help:      "Current number of in-flight provider sends grouped by channel.",
			},
			[]string{"channel"},
		),
		retryRequeuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "comms_engine",
				Name:      "retry_requeued_total",
				Help:      "Total number of failed records requeued by user-triggered retry.",
			},
			[]string{"channel"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.campaignsCreatedTotal,
		m.quotaRejectedTotal,
		m.recordsSentTotal,
		m.recordsFailedTotal,
		m.sendDuration,
		m.dispatchInflight,
		m.retryRequeuedTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncCampaignCreated(channel string) {
	if m == nil {
		return
	}
	m.campaignsCreatedTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) IncQuotaRejected() {
	if m == nil {
		return
	}
	m.quotaRejectedTotal.Inc()
}

func (m *Metrics) IncRecordSent(channel string) {
	if m == nil {
		return
	}
	m.recordsSentTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) IncRecordFailed(channel string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.recordsFailedTotal.WithLabelValues(normalizeChannel(channel), reasonLabel).Inc()
}

func (m *Metrics) ObserveSendDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sendDuration.WithLabelValues(normalizeChannel(channel)).Observe(seconds)
}

func (m *Metrics) IncDispatchInFlight(channel string) {
	if m == nil {
		return
	}
	m.dispatchInflight.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) DecDispatchInFlight(channel string) {
	if m == nil {
		return
	}
	m.dispatchInflight.WithLabelValues(normalizeChannel(channel)).Dec()
}

func (m *Metrics) AddRetryRequeued(channel string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.retryRequeuedTotal.WithLabelValues(normalizeChannel(channel)).Add(float64(count))
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeChannel(channel string) string {
	normalized := strings.ToLower(strings.TrimSpace(channel))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
