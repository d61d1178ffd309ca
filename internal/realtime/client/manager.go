// Package client keeps one logical realtime connection per user session,
// reconnecting with capped exponential backoff.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/domain/chat"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
	"github.com/yungbote/helpdesk-backend/internal/realtime/wire"
)

// NotConnectedError is returned by Send while no socket is open. Nothing is
// queued; the caller decides whether to retry.
type NotConnectedError struct {
	State State
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("realtime client not connected (state=%s)", e.State)
}

func IsNotConnected(err error) bool {
	var e *NotConnectedError
	return errors.As(err, &e)
}

type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	URL      string
	Identity auth.Identity
	Token    string

	Backoff      Backoff
	PingInterval time.Duration
	// PongTimeout is how long past a ping the link may stay silent before it
	// is treated as dead.
	PongTimeout  time.Duration
	WriteTimeout time.Duration

	Dialer   Dialer
	Handlers Handlers
}

// Manager owns the session. Every socket belongs to a generation; events from
// an older generation are ignored, so stacked reconnects cannot happen.
type Manager struct {
	cfg Config
	log *logger.Logger

	mu       sync.Mutex
	state    State
	gen      uint64
	link     *link
	attempts int
	timer    *time.Timer
	ctx      context.Context
	closed   bool
	onState  []func(State)
}

type link struct {
	sock     Socket
	lastSeen atomic.Int64
	writeMu  sync.Mutex
	done     chan struct{}
	once     sync.Once
}

func (l *link) close() {
	l.once.Do(func() {
		close(l.done)
		_ = l.sock.Close()
	})
}

func New(cfg Config, log *logger.Logger) *Manager {
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 15 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = WebsocketDialer{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		cfg:   cfg,
		log:   log.With("component", "ReconnectManager", "identity", cfg.Identity.Key()),
		state: Disconnected,
		ctx:   context.Background(),
	}
}

// OnStateChange registers fn for every state transition.
func (m *Manager) OnStateChange(fn func(State)) {
	m.mu.Lock()
	m.onState = append(m.onState, fn)
	m.mu.Unlock()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Connected() bool { return m.State() == Connected }

// Attempts is the number of reconnects since the last successful open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect starts a fresh connection sequence. Any scheduled reconnect is
// cancelled and the attempt budget is reset. ctx bounds every future dial.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Identity.Valid() {
		return fmt.Errorf("invalid identity %q", m.cfg.Identity.Key())
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New("realtime client closed")
	}
	m.ctx = ctx
	m.attempts = 0
	m.stopTimerLocked()
	if m.link != nil {
		m.link.close()
		m.link = nil
	}
	gen := m.beginLocked()
	m.mu.Unlock()

	m.notify(Connecting)
	go m.dial(ctx, gen)
	return nil
}

// Close tears the session down for good.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	m.stopTimerLocked()
	if m.link != nil {
		m.link.close()
		m.link = nil
	}
	m.state = Disconnected
	m.mu.Unlock()
	m.notify(Disconnected)
}

func (m *Manager) beginLocked() uint64 {
	m.gen++
	m.state = Connecting
	return m.gen
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) dial(ctx context.Context, gen uint64) {
	target, err := m.endpoint()
	if err != nil {
		m.log.Error("bad realtime endpoint", "error", err)
		m.fail(gen)
		return
	}
	var header http.Header
	if m.cfg.Token != "" {
		header = http.Header{"Authorization": []string{"Bearer " + m.cfg.Token}}
	}
	sock, err := m.cfg.Dialer.Dial(ctx, target, header)

	m.mu.Lock()
	if gen != m.gen || m.closed {
		m.mu.Unlock()
		if sock != nil {
			_ = sock.Close()
		}
		return
	}
	if err != nil {
		m.log.Debug("dial failed", "error", err, "attempt", m.attempts)
		next := m.scheduleLocked()
		m.mu.Unlock()
		m.notify(next)
		return
	}
	l := &link{sock: sock, done: make(chan struct{})}
	l.lastSeen.Store(time.Now().UnixNano())
	m.link = l
	m.state = Connected
	m.attempts = 0
	m.mu.Unlock()

	m.log.Info("realtime connected")
	m.notify(Connected)
	go m.readLoop(l)
	go m.heartbeat(l)
}

// scheduleLocked moves to Disconnected and arms the next attempt, or to
// Failed once the budget is spent. It returns the resulting state.
func (m *Manager) scheduleLocked() State {
	if m.cfg.Backoff.Exhausted(m.attempts) {
		m.state = Failed
		m.log.Warn("reconnect budget exhausted", "attempts", m.attempts)
		return Failed
	}
	m.attempts++
	delay := m.cfg.Backoff.Delay(m.attempts)
	m.state = Disconnected
	gen := m.gen
	ctx := m.ctx
	m.timer = time.AfterFunc(delay, func() { m.retry(ctx, gen) })
	return Disconnected
}

func (m *Manager) retry(ctx context.Context, prev uint64) {
	m.mu.Lock()
	if prev != m.gen || m.closed || m.state != Disconnected {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	if ctx.Err() != nil {
		m.state = Failed
		m.mu.Unlock()
		m.notify(Failed)
		return
	}
	gen := m.beginLocked()
	m.mu.Unlock()
	m.notify(Connecting)
	m.dial(ctx, gen)
}

func (m *Manager) fail(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.state = Failed
	m.mu.Unlock()
	m.notify(Failed)
}

// lost handles a dead link: close it and schedule a reconnect.
func (m *Manager) lost(l *link, cause error) {
	l.close()
	m.mu.Lock()
	if m.link != l || m.closed {
		m.mu.Unlock()
		return
	}
	m.link = nil
	m.log.Info("realtime connection lost", "error", cause)
	next := m.scheduleLocked()
	m.mu.Unlock()
	m.notify(Disconnected)
	if next == Failed {
		m.notify(Failed)
	}
}

func (m *Manager) readLoop(l *link) {
	for {
		_, raw, err := l.sock.ReadMessage()
		if err != nil {
			m.lost(l, err)
			return
		}
		l.lastSeen.Store(time.Now().UnixNano())
		f, err := wire.Decode(raw)
		if err != nil {
			m.log.Warn("dropping invalid server frame", "error", err)
			continue
		}
		switch f.Type {
		case wire.TypePong:
		case wire.TypePing:
			_ = m.write(l, wire.Pong(time.Now()))
		default:
			m.cfg.Handlers.dispatch(f)
		}
	}
}

// heartbeat pings on a fixed interval. Silence past PingInterval+PongTimeout
// is treated like a hard disconnect.
func (m *Manager) heartbeat(l *link) {
	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()
	window := m.cfg.PingInterval + m.cfg.PongTimeout
	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			if now.Sub(time.Unix(0, l.lastSeen.Load())) > window {
				m.lost(l, errors.New("heartbeat timeout"))
				return
			}
			if err := m.write(l, wire.Ping(now)); err != nil {
				m.lost(l, err)
				return
			}
		}
	}
}

func (m *Manager) write(l *link, f wire.Frame) error {
	raw, err := wire.Encode(f)
	if err != nil {
		return err
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	_ = l.sock.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	return l.sock.WriteMessage(websocket.TextMessage, raw)
}

// Send writes f on the open socket or fails fast with NotConnectedError.
func (m *Manager) Send(f wire.Frame) error {
	m.mu.Lock()
	l, state := m.link, m.state
	m.mu.Unlock()
	if l == nil || state != Connected {
		return &NotConnectedError{State: state}
	}
	if err := f.Validate(); err != nil {
		return err
	}
	if err := m.write(l, f); err != nil {
		go m.lost(l, err)
		return &NotConnectedError{State: Disconnected}
	}
	return nil
}

// SendMessage sends on a ticket, or directly to receiverID when ticketID is 0.
func (m *Manager) SendMessage(ticketID, receiverID uint64, content string) error {
	f := wire.Frame{
		Type:       wire.TypeMessage,
		SenderID:   m.cfg.Identity.ID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  wire.Millis(time.Now()),
	}
	if ticketID != 0 {
		f.TicketID = &ticketID
	} else {
		f.DirectMessageUserID = &receiverID
	}
	return m.Send(f)
}

func (m *Manager) SendReadReceipt(messageID uint64) error {
	return m.Send(wire.StatusUpdate(messageID, chat.StatusRead, time.Now()))
}

// endpoint renders URL with the handshake identity. The same identity is
// presented on every reconnect.
func (m *Manager) endpoint() (string, error) {
	u, err := url.Parse(m.cfg.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("userId", strconv.FormatUint(m.cfg.Identity.ID, 10))
	q.Set("role", string(m.cfg.Identity.Role))
	if m.cfg.Token != "" {
		q.Set("token", m.cfg.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (m *Manager) notify(s State) {
	m.mu.Lock()
	fns := append([]func(State){}, m.onState...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}
