package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "linkrem"

var (
	// HTTPRequests counts handled requests by method, route template and status
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by method, route and status code.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes request latency by method and route template
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// Reconciliations counts link/tag mutations by operation and outcome
	Reconciliations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tag_reconciliations_total",
		Help:      "Link and tag mutations, by operation and outcome.",
	}, []string{"operation", "outcome"})

	// TagsSwept counts orphaned tags removed by the sweep
	TagsSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orphan_tags_swept_total",
		Help:      "Tags deleted because no link referenced them.",
	})

	// SweepFailures counts best-effort sweeps that returned an error
	SweepFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orphan_tag_sweep_failures_total",
		Help:      "Orphan tag sweeps that failed.",
	})
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, Reconciliations, TagsSwept, SweepFailures)
}

// Middleware records request count and latency per route template
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry in the Prometheus text format
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
