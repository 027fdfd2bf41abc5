package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/peai-backend/internal/observability"
)

// Probe and scrape routes are left out of the API series.
var unobservedRoutes = map[string]bool{
	"/metrics":     true,
	"/healthcheck": true,
	"/api/health":  true,
}

// Metrics records request count, latency and in-flight gauge per matched
// route. Requests that match no route share the "unmatched" label so random
// paths cannot grow the label set.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if unobservedRoutes[route] {
			c.Next()
			return
		}
		m.ApiInflightInc()
		start := time.Now()
		defer func() {
			m.ApiInflightDec()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
		}()
		c.Next()
	}
}
