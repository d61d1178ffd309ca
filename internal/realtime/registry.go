package realtime

import (
	"context"
	"time"

	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/observability"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

// CloseSuperseded is the websocket close code sent to a connection replaced
// by a newer one for the same identity.
const CloseSuperseded = 4000

// Registry maps identity keys to the single live connection for that
// identity. The map is owned by Run; every read and write is an op on its loop.
type Registry struct {
	log      *logger.Logger
	interval time.Duration
	ops      chan func(map[string]*Conn)
	stopped  chan struct{}
}

func NewRegistry(log *logger.Logger, heartbeat time.Duration) *Registry {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Registry{
		log:      log.With("component", "ConnectionRegistry"),
		interval: heartbeat,
		ops:      make(chan func(map[string]*Conn)),
		stopped:  make(chan struct{}),
	}
}

// Run owns the map until ctx ends, sweeping every heartbeat interval. On
// exit all connections are closed.
func (r *Registry) Run(ctx context.Context) error {
	conns := make(map[string]*Conn)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.stopped)
	for {
		select {
		case <-ctx.Done():
			for key, c := range conns {
				c.Close()
				delete(conns, key)
			}
			observability.Current().SetConnections(0)
			r.log.Info("registry stopped")
			return nil
		case op := <-r.ops:
			op(conns)
		case now := <-ticker.C:
			r.sweep(conns, now)
		}
	}
}

// do runs fn on the loop and waits for it. It reports false once Run exited.
func (r *Registry) do(fn func(map[string]*Conn)) bool {
	done := make(chan struct{})
	select {
	case r.ops <- func(m map[string]*Conn) { fn(m); close(done) }:
	case <-r.stopped:
		return false
	}
	<-done
	return true
}

// Register stores c for its identity, closing any previous connection.
func (r *Registry) Register(c *Conn) bool {
	var old *Conn
	ok := r.do(func(m map[string]*Conn) {
		key := c.Identity.Key()
		old = m[key]
		m[key] = c
		c.MarkAlive()
		observability.Current().SetConnections(len(m))
	})
	if !ok {
		c.Close()
		return false
	}
	if old != nil && old != c {
		r.log.Info("connection superseded", "identity", c.Identity.Key(), "old_conn", old.ID.String(), "new_conn", c.ID.String())
		observability.Current().IncEviction("superseded")
		go old.CloseWith(CloseSuperseded, "superseded")
	}
	observability.Current().IncAccepted(string(c.Identity.Role))
	return true
}

// Unregister removes c only if it is still the registered connection, so a
// late close of a superseded socket never evicts its replacement.
func (r *Registry) Unregister(c *Conn) bool {
	removed := false
	r.do(func(m map[string]*Conn) {
		key := c.Identity.Key()
		if cur, ok := m[key]; ok && cur == c {
			delete(m, key)
			removed = true
			observability.Current().SetConnections(len(m))
		}
	})
	return removed
}

func (r *Registry) Lookup(id auth.Identity) (*Conn, bool) {
	var c *Conn
	r.do(func(m map[string]*Conn) {
		c = m[id.Key()]
	})
	if c == nil || c.Closed() {
		return nil, false
	}
	return c, true
}

// LookupMany resolves several identities in one loop round trip. Offline
// identities are absent from the result.
func (r *Registry) LookupMany(ids []auth.Identity) map[string]*Conn {
	out := make(map[string]*Conn, len(ids))
	r.do(func(m map[string]*Conn) {
		for _, id := range ids {
			if c, ok := m[id.Key()]; ok && !c.Closed() {
				out[id.Key()] = c
			}
		}
	})
	return out
}

func (r *Registry) Online() int {
	n := 0
	r.do(func(m map[string]*Conn) { n = len(m) })
	return n
}

// Sweep runs one heartbeat pass immediately and returns the number evicted.
func (r *Registry) Sweep() int {
	n := 0
	r.do(func(m map[string]*Conn) { n = r.sweep(m, time.Now()) })
	return n
}

// sweep evicts every connection not marked alive since the previous pass and
// probes the rest. Probes run off the loop.
func (r *Registry) sweep(m map[string]*Conn, now time.Time) int {
	evicted := 0
	for key, c := range m {
		if c.Closed() || !c.expire() {
			delete(m, key)
			c.Close()
			evicted++
			observability.Current().IncEviction("heartbeat")
			continue
		}
		go c.Ping(now)
	}
	if evicted > 0 {
		r.log.Info("heartbeat sweep evicted connections", "evicted", evicted, "remaining", len(m))
	}
	observability.Current().SetConnections(len(m))
	return evicted
}
