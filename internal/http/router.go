package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/helpdesk-backend/internal/http/handlers"
	httpMW "github.com/yungbote/helpdesk-backend/internal/http/middleware"
	"github.com/yungbote/helpdesk-backend/internal/observability"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AllowedOrigins []string
	ServiceName    string

	AuthMiddleware *httpMW.AuthMiddleware

	RealtimeHandler *httpH.RealtimeHandler
	TicketHandler   *httpH.TicketHandler
	MessageHandler  *httpH.MessageHandler
	HealthHandler   *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	// Realtime upgrade authenticates its own handshake
	if cfg.RealtimeHandler != nil {
		r.GET("/ws", cfg.RealtimeHandler.Connect)
	}

	protected := r.Group("/api")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		if cfg.RealtimeHandler != nil {
			protected.GET("/realtime/online", cfg.RealtimeHandler.Online)
		}

		// Tickets
		if cfg.TicketHandler != nil {
			protected.POST("/tickets/:id/claim", cfg.TicketHandler.Claim)
			protected.POST("/tickets/:id/resolve", cfg.TicketHandler.Resolve)
			protected.GET("/tickets/:id/messages", cfg.TicketHandler.Messages)
		}

		// Direct messages and counters
		if cfg.MessageHandler != nil {
			protected.GET("/direct/:userId/messages", cfg.MessageHandler.Direct)
			protected.GET("/unread", cfg.MessageHandler.Unread)
		}
	}

	return r
}
