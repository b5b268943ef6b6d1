package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records request latency labelled by the matched route template.
func Middleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
