package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/helpdesk-backend/internal/http"
	httpH "github.com/yungbote/helpdesk-backend/internal/http/handlers"
	httpMW "github.com/yungbote/helpdesk-backend/internal/http/middleware"
	"github.com/yungbote/helpdesk-backend/internal/observability"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Realtime *httpH.RealtimeHandler
	Ticket   *httpH.TicketHandler
	Message  *httpH.MessageHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, cfg Config, services Services, rt Realtime) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(db),
		Realtime: httpH.NewRealtimeHandler(log, services.Auth, rt.Gateway, cfg.WS.AllowedOrigins),
		Ticket:   httpH.NewTicketHandler(services.Ticket),
		Message:  httpH.NewMessageHandler(services.Message),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		AllowedOrigins:  cfg.WS.AllowedOrigins,
		ServiceName:     serviceName,
		AuthMiddleware:  middleware.Auth,
		RealtimeHandler: handlers.Realtime,
		TicketHandler:   handlers.Ticket,
		MessageHandler:  handlers.Message,
		HealthHandler:   handlers.Health,
	})
}
