package client

import "github.com/yungbote/helpdesk-backend/internal/realtime/wire"

// Handlers receive server frames by type. Nil handlers are skipped. They run
// on the read goroutine and must not block.
type Handlers struct {
	OnConnection     func(wire.Frame)
	OnMessage        func(wire.Frame)
	OnStatusUpdate   func(wire.Frame)
	OnTicketResolved func(wire.Frame)
	OnError          func(wire.Frame)
}

func (h Handlers) dispatch(f wire.Frame) {
	var fn func(wire.Frame)
	switch f.Type {
	case wire.TypeConnection:
		fn = h.OnConnection
	case wire.TypeMessage:
		fn = h.OnMessage
	case wire.TypeStatusUpdate:
		fn = h.OnStatusUpdate
	case wire.TypeTicketResolved:
		fn = h.OnTicketResolved
	case wire.TypeError:
		fn = h.OnError
	}
	if fn != nil {
		fn(f)
	}
}
