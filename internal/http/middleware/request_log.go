package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yungbote/helpdesk-backend/internal/platform/ctxutil"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

// RequestLogger writes one line per request. An upgraded websocket request
// returns only when its session ends, so it is logged as a session.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{"method", c.Request.Method, "path", path}
		if td := ctxutil.GetTraceData(c.Request.Context()); td != nil {
			fields = append(fields, "trace_id", td.TraceID, "request_id", td.RequestID)
		}
		if id, ok := ctxutil.GetIdentity(c.Request.Context()); ok {
			fields = append(fields, "identity", id.Key())
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.String())
		}

		status := c.Writer.Status()
		if websocket.IsWebSocketUpgrade(c.Request) && status == 200 {
			log.Info("realtime session ended", append(fields, "session_ms", time.Since(start).Milliseconds())...)
			return
		}
		fields = append(fields, "status", status, "duration_ms", time.Since(start).Milliseconds())
		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}
