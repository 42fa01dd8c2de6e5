package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics exposes the request-level instruments served on /metrics.
// Each instance carries its own registry so tests can build them freely.
type HTTPMetrics struct {
	registry         *prometheus.Registry
	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	rateLimitAllowed *prometheus.CounterVec
	rateLimitDenied  *prometheus.CounterVec
}

func NewHTTPMetrics() *HTTPMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &HTTPMetrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "academy_http_request_duration_seconds",
			Help:    "HTTP request latency by route and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		rateLimitAllowed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_rate_limit_allowed_total",
			Help: "Requests allowed by the rate limiter, by endpoint class.",
		}, []string{"class"}),
		rateLimitDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "academy_rate_limit_denied_total",
			Help: "Requests denied by the rate limiter, by endpoint class.",
		}, []string{"class"}),
	}
}

// Handler serves this instance's registry.
func (m *HTTPMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPMetrics) RecordRateLimit(class string, allowed bool) {
	if m == nil {
		return
	}
	if allowed {
		m.rateLimitAllowed.WithLabelValues(class).Inc()
		return
	}
	m.rateLimitDenied.WithLabelValues(class).Inc()
}

// GinMiddleware records request counts and latency. Uses the matched route
// template to keep label cardinality bounded.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
