package httpmiddleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/metrics"
)

// Prometheus records request counts and latency by matched route.
func Prometheus(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(route, c.Request.Method, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
