package realtime

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/domain/errs"
	"github.com/yungbote/helpdesk-backend/internal/observability"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
	"github.com/yungbote/helpdesk-backend/internal/realtime/wire"
)

type GatewayOptions struct {
	Heartbeat    time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
	ReadLimit    int64
}

func (o GatewayOptions) withDefaults() GatewayOptions {
	if o.Heartbeat <= 0 {
		o.Heartbeat = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	return o
}

// Gateway runs the per-connection session: register, connection frame,
// reconnect sweep, then the read loop until the socket fails.
type Gateway struct {
	registry *Registry
	delivery *Delivery
	opts     GatewayOptions
	log      *logger.Logger
}

func NewGateway(registry *Registry, delivery *Delivery, opts GatewayOptions, log *logger.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		delivery: delivery,
		opts:     opts.withDefaults(),
		log:      log.With("component", "RealtimeGateway"),
	}
}

func (g *Gateway) Registry() *Registry { return g.registry }

func (g *Gateway) Delivery() *Delivery { return g.delivery }

// Serve blocks until the connection ends. ctx bounds the session; the
// identity must already be validated by the handshake.
func (g *Gateway) Serve(ctx context.Context, id auth.Identity, sock Socket) {
	conn := NewConn(id, sock, ConnOptions{SendBuffer: g.opts.SendBuffer, WriteTimeout: g.opts.WriteTimeout}, g.log)
	log := conn.log

	readWait := 2*g.opts.Heartbeat + g.opts.WriteTimeout
	sock.SetReadLimit(g.opts.ReadLimit)
	_ = sock.SetReadDeadline(time.Now().Add(readWait))
	sock.SetPongHandler(func(string) error {
		conn.MarkAlive()
		return sock.SetReadDeadline(time.Now().Add(readWait))
	})

	if !g.registry.Register(conn) {
		conn.CloseWith(websocket.CloseGoingAway, "server shutting down")
		return
	}
	defer func() {
		g.registry.Unregister(conn)
		conn.Close()
		log.Info("realtime connection closed")
	}()
	go conn.WritePump()

	_ = conn.Push(wire.Connection(id))
	log.Info("realtime connection accepted")

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sessionCtx.Done():
			conn.Close()
		case <-conn.Done():
		}
	}()
	// The backlog goes out before this peer's own frames are read.
	if _, err := g.delivery.SweepPending(sessionCtx, conn); err != nil {
		log.Warn("reconnect sweep failed", "error", err)
	}

	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			if !conn.Closed() {
				log.Debug("read failed", "error", err)
			}
			return
		}
		conn.MarkAlive()
		_ = sock.SetReadDeadline(time.Now().Add(readWait))
		g.handle(sessionCtx, conn, raw)
	}
}

func (g *Gateway) handle(ctx context.Context, conn *Conn, raw []byte) {
	f, err := wire.Decode(raw)
	if err != nil {
		observability.Current().IncFrame("in", "invalid")
		g.reject(conn, err, nil)
		return
	}
	observability.Current().IncFrame("in", string(f.Type))

	ctx, span := observability.Tracer().Start(ctx, "realtime.frame")
	span.SetAttributes(attribute.String("frame.type", string(f.Type)), attribute.String("identity", conn.Identity.Key()))
	defer span.End()

	switch f.Type {
	case wire.TypePing:
		_ = conn.Push(wire.Pong(time.Now()))
	case wire.TypePong:
	case wire.TypeMessage:
		if _, err := g.delivery.Dispatch(ctx, conn.Identity, f); err != nil {
			g.reject(conn, err, f.TicketID)
		}
	case wire.TypeStatusUpdate:
		if err := g.delivery.Acknowledge(ctx, conn.Identity, f); err != nil {
			g.reject(conn, err, nil)
		}
	default:
		g.reject(conn, errs.Protocol("gateway.handle", "frame type "+string(f.Type)+" is server-only"), nil)
	}
}

// reject reports err to the offending connection only.
func (g *Gateway) reject(conn *Conn, err error, ticketID *uint64) {
	kind := errs.KindOf(err)
	switch kind {
	case errs.KindPersistence, errs.KindInternal:
		conn.log.Error("frame failed", "error", err, "kind", kind)
	default:
		conn.log.Debug("frame rejected", "error", err, "kind", kind)
	}
	_ = conn.Push(wire.Error(err, ticketID))
}
