package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promptbot_tokens_issued_total",
		Help: "Total number of tokens issued through the link command",
	}, []string{"admin"})
	PromptsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "promptbot_prompts_submitted_total",
		Help: "Total number of prompts submitted",
	})
	PromptsPosted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "promptbot_prompts_posted_total",
		Help: "Total number of prompts published in announcements",
	})
	BroadcastDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promptbot_broadcast_deliveries_total",
		Help: "Announcement deliveries per channel kind and outcome",
	}, []string{"target", "status"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(TokensIssued, PromptsSubmitted, PromptsPosted, BroadcastDeliveries, HttpRequestsTotal, HttpRequestDuration)
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
