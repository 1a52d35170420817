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

const namespace = "feed"

// Ledger operation results.
const (
	ResultOK           = "ok"
	ResultNoop         = "noop"
	ResultAlreadyLiked = "already_liked"
	ResultNotFound     = "not_found"
	ResultError        = "error"
)

var (
	LedgerOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "like_ledger_operations_total",
		Help:      "Like ledger operations by operation and result.",
	}, []string{"op", "result"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "likes_count_cache_lookups_total",
		Help:      "likes_count cache lookups by result (hit, miss, error).",
	}, []string{"result"})

	CDCEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cdc_events_total",
		Help:      "Debezium events handled by operation.",
	}, []string{"op"})

	// CounterDriftPosts is the number of posts whose likes_count disagreed
	// with their like rows during the last reconciliation.
	CounterDriftPosts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "likes_count_drift_posts",
		Help:      "Posts with likes_count drift found by the last reconciliation.",
	})

	ReconcileRuns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_runs_total",
		Help:      "Completed hot-key reconciliation cycles.",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// ObserveLedger counts one ledger operation.
func ObserveLedger(op, result string) {
	LedgerOperations.WithLabelValues(op, result).Inc()
}

// GinMiddleware records request latency. Unmatched routes are grouped under
// one label to keep cardinality bounded.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
