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

// Metrics stores Prometheus collectors used by the API and the invoice pipeline.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDuration        *prometheus.HistogramVec
	invoicesSentTotal          *prometheus.CounterVec
	invoicesFailedTotal        *prometheus.CounterVec
	invoiceRenderDuration      prometheus.Histogram
	emailAttemptsTotal         *prometheus.CounterVec
	emailAttemptDuration       *prometheus.HistogramVec
	emailProviderFallbackTotal *prometheus.CounterVec
	emailDeliveryAttempts      prometheus.Histogram
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kartarkiv",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kartarkiv",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		invoicesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kartarkiv",
				Name:      "invoices_sent_total",
				Help:      "Total number of invoices delivered and marked as requested, by provider.",
			},
			[]string{"provider"},
		),
		invoicesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kartarkiv",
				Name:      "invoices_failed_total",
				Help:      "Total number of invoice sends that failed, by pipeline stage.",
			},
			[]string{"stage"},
		),
		invoiceRenderDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "kartarkiv",
				Name:      "invoice_render_duration_seconds",
				Help:      "Invoice PDF render duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		emailAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kartarkiv",
				Name:      "email_attempts_total",
				Help:      "Total number of email delivery attempts by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		emailAttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "kartarkiv",
				Name:      "email_attempt_duration_seconds",
				Help:      "Duration of a single email delivery attempt in seconds by provider.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider"},
		),
		emailProviderFallbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "kartarkiv",
				Name:      "email_provider_fallback_total",
				Help:      "Total number of switches from one email provider to another.",
			},
			[]string{"from", "to"},
		),
		emailDeliveryAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "kartarkiv",
				Name:      "email_delivery_attempts",
				Help:      "Number of attempts used by successful email deliveries.",
				Buckets:   []float64{1, 2, 3, 4, 5, 8},
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.invoicesSentTotal,
		m.invoicesFailedTotal,
		m.invoiceRenderDuration,
		m.emailAttemptsTotal,
		m.emailAttemptDuration,
		m.emailProviderFallbackTotal,
		m.emailDeliveryAttempts,
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

func (m *Metrics) IncInvoiceSent(provider string) {
	if m == nil {
		return
	}
	m.invoicesSentTotal.WithLabelValues(normalizeLabel(provider)).Inc()
}

func (m *Metrics) IncInvoiceFailed(stage string) {
	if m == nil {
		return
	}
	m.invoicesFailedTotal.WithLabelValues(normalizeLabel(stage)).Inc()
}

func (m *Metrics) ObserveInvoiceRender(duration time.Duration) {
	if m == nil {
		return
	}
	m.invoiceRenderDuration.Observe(nonNegativeSeconds(duration))
}

// ObserveEmailAttempt records one provider call. outcome is "success" or the
// delivery error kind.
func (m *Metrics) ObserveEmailAttempt(provider string, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	providerLabel := normalizeLabel(provider)
	m.emailAttemptsTotal.WithLabelValues(providerLabel, normalizeLabel(outcome)).Inc()
	m.emailAttemptDuration.WithLabelValues(providerLabel).Observe(nonNegativeSeconds(duration))
}

func (m *Metrics) IncEmailProviderFallback(from string, to string) {
	if m == nil {
		return
	}
	m.emailProviderFallbackTotal.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *Metrics) ObserveEmailDelivered(attempts int) {
	if m == nil {
		return
	}
	m.emailDeliveryAttempts.Observe(float64(attempts))
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

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

func nonNegativeSeconds(duration time.Duration) float64 {
	seconds := duration.Seconds()
	if seconds < 0 {
		return 0
	}
	return seconds
}
