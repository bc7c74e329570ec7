// Package metrics collects and exposes Prometheus metrics for the payment
// subsystem.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Verification outcomes recorded per provider.
const (
	VerifyResultSuccess   = "success"
	VerifyResultDuplicate = "duplicate"
	VerifyResultRejected  = "rejected"
	VerifyResultFailed    = "failed"
)

// Recorder is the interface the service and handler layers record against.
type Recorder interface {
	RecordCheckoutCreated(provider, paymentType string)
	RecordVerification(provider, result string)
	RecordCreditsGranted(credits int64)
	RecordCreditsSpent(credits int64)
	RecordWebhook(provider, outcome string)
	RecordHTTPRequest(method string, status int, duration time.Duration)
}

// Collector is the Prometheus-backed Recorder implementation.
type Collector struct {
	registry *prometheus.Registry

	checkoutCreated *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	creditsGranted  prometheus.Counter
	creditsSpent    prometheus.Counter
	webhooks        *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics on a fresh
// registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		checkoutCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btl_checkout_created_total",
			Help: "Checkout sessions created, by provider and payment type.",
		}, []string{"provider", "payment_type"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btl_verifications_total",
			Help: "Payment verification attempts, by provider and result.",
		}, []string{"provider", "result"}),
		creditsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "btl_credits_granted_total",
			Help: "Credits granted through verified payments.",
		}),
		creditsSpent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "btl_credits_spent_total",
			Help: "Credits spent on outfit unlocks.",
		}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btl_webhooks_total",
			Help: "Webhook deliveries, by provider and outcome.",
		}, []string{"provider", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "btl_http_requests_total",
			Help: "HTTP responses, by method and status code.",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "btl_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		c.checkoutCreated,
		c.verifications,
		c.creditsGranted,
		c.creditsSpent,
		c.webhooks,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

func (c *Collector) RecordCheckoutCreated(provider, paymentType string) {
	c.checkoutCreated.WithLabelValues(provider, paymentType).Inc()
}

func (c *Collector) RecordVerification(provider, result string) {
	c.verifications.WithLabelValues(provider, result).Inc()
}

func (c *Collector) RecordCreditsGranted(credits int64) {
	c.creditsGranted.Add(float64(credits))
}

func (c *Collector) RecordCreditsSpent(credits int64) {
	c.creditsSpent.Add(float64(credits))
}

func (c *Collector) RecordWebhook(provider, outcome string) {
	c.webhooks.WithLabelValues(provider, outcome).Inc()
}

func (c *Collector) RecordHTTPRequest(method string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// Handler returns the scrape endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
