package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yungbote/helpdesk-backend/internal/observability"
)

// Metrics counts API requests. A websocket upgrade holds its request open for
// the whole session, so upgrades are counted once and kept out of the latency
// histogram and the in-flight gauge.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		if websocket.IsWebSocketUpgrade(c.Request) {
			c.Next()
			m.CountAPI(c.Request.Method, route, upgradeStatus(c))
			return
		}

		start := time.Now()
		m.ApiInflightInc()
		c.Next()
		m.ApiInflightDec()
		m.ObserveAPI(c.Request.Method, route, observability.StatusLabel(c.Writer.Status()), time.Since(start))
	}
}

// upgradeStatus reports 101 for a hijacked connection. Gin never sees the
// switching-protocols line gorilla writes, so its writer still says 200.
func upgradeStatus(c *gin.Context) string {
	if status := c.Writer.Status(); status != 200 {
		return observability.StatusLabel(status)
	}
	return "101"
}
