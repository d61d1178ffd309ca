package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
	"github.com/yungbote/helpdesk-backend/internal/realtime"
	"github.com/yungbote/helpdesk-backend/internal/services"
)

type Services struct {
	Auth    services.AuthService
	Ticket  services.TicketService
	Message services.MessageService
}

// Realtime is the delivery core: one registry per process.
type Realtime struct {
	Registry *realtime.Registry
	Delivery *realtime.Delivery
	Gateway  *realtime.Gateway
}

func wireRealtime(log *logger.Logger, cfg Config, r Repos) Realtime {
	log.Info("Wiring realtime...")
	registry := realtime.NewRegistry(log, cfg.WS.Heartbeat)
	delivery := realtime.NewDelivery(realtime.DeliveryDeps{
		Registry:   registry,
		Router:     realtime.NewRouter(r.Ticket, r.Employment, log),
		Messages:   r.Message,
		Unread:     r.Unread,
		Employment: r.Employment,
	}, log)
	gateway := realtime.NewGateway(registry, delivery, realtime.GatewayOptions{
		Heartbeat:    cfg.WS.Heartbeat,
		WriteTimeout: cfg.WS.WriteTimeout,
		SendBuffer:   cfg.WS.SendBuffer,
		ReadLimit:    cfg.WS.ReadLimit,
	}, log)
	return Realtime{Registry: registry, Delivery: delivery, Gateway: gateway}
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, rt Realtime) Services {
	log.Info("Wiring services...")
	auth := services.NewAuthService(log, cfg.JWTSecretKey, cfg.AccessTokenTTL)
	if !auth.Enabled() {
		log.Warn("JWT_SECRET_KEY not set: handshake identities are trusted as claimed")
	}
	return Services{
		Auth:    auth,
		Ticket:  services.NewTicketService(log, r.Ticket, r.Employment, r.Message, rt.Delivery),
		Message: services.NewMessageService(log, r.Message, r.Unread, r.Employment),
	}
}
