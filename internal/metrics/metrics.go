// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RemindersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dunning_reminders_total",
			Help: "Reminder outcomes per channel",
		},
		[]string{"channel", "result"},
	)
	RunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dunning_runs_total",
			Help: "Number of completed dunning runs",
		},
	)
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dunning_provider_requests_total",
			Help: "Outbound provider calls by outcome (ok, retry, permanent)",
		},
		[]string{"provider", "outcome"},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(RemindersTotal, RunsTotal, ProviderRequestsTotal, httpRequestsTotal, httpRequestDuration)
}

// ProviderOutcome labels a provider call result.
func ProviderOutcome(ok, retry bool) string {
	switch {
	case ok:
		return "ok"
	case retry:
		return "retry"
	default:
		return "permanent"
	}
}

// GinMiddleware records request counts and latency for the service API.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		labels := prometheus.Labels{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": strconv.Itoa(c.Writer.Status()),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
