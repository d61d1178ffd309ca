package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/domain/errs"
	"github.com/yungbote/helpdesk-backend/internal/observability"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
	"github.com/yungbote/helpdesk-backend/internal/realtime/wire"
)

// Socket is the subset of *websocket.Conn the server uses.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	SetReadLimit(limit int64)
	Close() error
}

var errConnClosed = errs.New(errs.KindTransport, "conn.Push", "connection closed", nil)

// outbound is one queued frame. written runs on the write pump after the
// socket accepted the frame; frames dropped by Close never call it.
type outbound struct {
	raw     []byte
	written func()
}

// Conn is one accepted socket bound to an identity. Writes go through a
// buffered queue drained by WritePump; Close is idempotent.
//
// Message frames stay behind gate until the reconnect sweep has drained the
// backlog and marked the conn live, so stored rows reach the peer before
// anything dispatched after the connect.
type Conn struct {
	ID       uuid.UUID
	Identity auth.Identity

	socket       Socket
	send         chan outbound
	gate         sync.Mutex
	live         bool
	done         chan struct{}
	closeOnce    sync.Once
	alive        atomic.Bool
	writeTimeout time.Duration
	log          *logger.Logger
}

type ConnOptions struct {
	SendBuffer   int
	WriteTimeout time.Duration
}

func NewConn(id auth.Identity, socket Socket, opts ConnOptions, log *logger.Logger) *Conn {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	c := &Conn{
		ID:           uuid.New(),
		Identity:     id,
		socket:       socket,
		send:         make(chan outbound, opts.SendBuffer),
		done:         make(chan struct{}),
		writeTimeout: opts.WriteTimeout,
	}
	c.log = log.With("conn_id", c.ID.String(), "identity", id.Key())
	c.alive.Store(true)
	return c
}

// Push queues f without blocking. A full queue means the peer is not
// draining; the connection is closed and the push fails.
func (c *Conn) Push(f wire.Frame) error {
	return c.enqueue(f, nil)
}

// PushMessage queues a live message frame. It reports false without queueing
// while the reconnect sweep still owns the conn; the row stays at sent and
// the sweep picks it up.
func (c *Conn) PushMessage(f wire.Frame, onWritten func()) (bool, error) {
	c.gate.Lock()
	defer c.gate.Unlock()
	if !c.live {
		return false, nil
	}
	if err := c.enqueue(f, onWritten); err != nil {
		return false, err
	}
	return true, nil
}

// drain runs fn with live pushes held back. fn returns true once the backlog
// is empty, which opens the conn to live pushes.
func (c *Conn) drain(fn func() bool) {
	c.gate.Lock()
	defer c.gate.Unlock()
	if fn() {
		c.live = true
	}
}

// Live reports whether live message pushes reach this conn.
func (c *Conn) Live() bool {
	c.gate.Lock()
	defer c.gate.Unlock()
	return c.live
}

func (c *Conn) enqueue(f wire.Frame, onWritten func()) error {
	raw, err := wire.Encode(f)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "conn.Push", err)
	}
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- outbound{raw: raw, written: onWritten}:
		observability.Current().IncFrame("out", string(f.Type))
		return nil
	case <-c.done:
		return errConnClosed
	default:
		c.log.Warn("send buffer full; closing slow connection")
		observability.Current().IncEviction("slow_consumer")
		c.Close()
		return errs.New(errs.KindTransport, "conn.Push", "send buffer full", nil)
	}
}

// WritePump drains the send queue until the connection closes.
func (c *Conn) WritePump() {
	defer c.Close()
	for {
		select {
		case <-c.done:
			return
		case out := <-c.send:
			if c.Closed() {
				return
			}
			_ = c.socket.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.socket.WriteMessage(websocket.TextMessage, out.raw); err != nil {
				c.log.Debug("write failed", "error", err)
				return
			}
			if out.written != nil {
				out.written()
			}
		}
	}
}

// MarkAlive records liveness for the next registry sweep.
func (c *Conn) MarkAlive() { c.alive.Store(true) }

// expire clears the alive mark and reports whether it was set.
func (c *Conn) expire() bool { return c.alive.Swap(false) }

// Ping sends a transport ping; a failed ping closes the connection.
func (c *Conn) Ping(now time.Time) {
	if err := c.socket.WriteControl(websocket.PingMessage, nil, now.Add(c.writeTimeout)); err != nil {
		c.log.Debug("ping failed", "error", err)
		c.Close()
	}
}

func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close shuts the socket once. Queued frames are dropped and their rows
// stay at sent.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.socket.Close()
	})
}

// CloseWith sends a close frame carrying reason before closing.
func (c *Conn) CloseWith(code int, reason string) {
	_ = c.socket.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	c.Close()
}
