package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/voice-audit/internal/observe"
)

// Metrics records request latency by route template, so /sessions/:token stays one series.
func Metrics(m *observe.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequest(c.Request.Context(), c.Request.Method, route, c.Writer.Status(), time.Since(start).Seconds())
	}
}
