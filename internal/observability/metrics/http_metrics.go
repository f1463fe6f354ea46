package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request latency on the Prometheus registry served at
// /metrics.
type HTTPMetrics struct {
	requests *prometheus.HistogramVec
}

func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	return newHTTPMetrics(prometheus.DefaultRegisterer, cfg)
}

func newHTTPMetrics(registerer prometheus.Registerer, cfg Config) *HTTPMetrics {
	requests := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "storefront_http_request_duration_seconds",
		Help:        "HTTP request latency by route and status.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: prometheus.Labels{"service": cfg.ServiceName},
	}, []string{"method", "route", "status_code"})
	if err := registerer.Register(requests); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			requests = already.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			panic(err)
		}
	}
	return &HTTPMetrics{requests: requests}
}

func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
