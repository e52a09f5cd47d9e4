package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"orgchat-backend/pkg/logger"
	"orgchat-backend/pkg/metrics"
)

// PrometheusMiddleware is a Gin middleware that records HTTP metrics
type PrometheusMiddleware struct {
	metrics *metrics.Metrics
}

// NewPrometheusMiddleware creates a new Prometheus middleware
func NewPrometheusMiddleware(m *metrics.Metrics) *PrometheusMiddleware {
	return &PrometheusMiddleware{
		metrics: m,
	}
}

// Handler returns the Gin middleware handler
func (p *PrometheusMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p.metrics.IncrementHTTPRequestsInFlight()
		defer p.metrics.DecrementHTTPRequestsInFlight()

		start := time.Now()

		c.Next()

		p.metrics.RecordHTTPRequest(
			c.Request.Method,
			c.FullPath(),
			c.Writer.Status(),
			time.Since(start),
		)
	}
}

// MetricsHandler returns an HTTP handler for the Prometheus scrape endpoint.
// It answers 200 whenever the process is alive, even if collection fails.
func MetricsHandler(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Panic in metrics handler", zap.Any("panic", r))
				c.JSON(200, gin.H{"status": "metrics_collection_error"})
				c.Abort()
			}
		}()

		if m == nil || m.GetRegistry() == nil {
			c.JSON(200, gin.H{"status": "metrics_not_initialized"})
			return
		}

		c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		handler := promhttp.HandlerFor(m.GetRegistry(), promhttp.HandlerOpts{
			EnableOpenMetrics: false,
		})
		handler.ServeHTTP(c.Writer, c.Request)
	}
}
