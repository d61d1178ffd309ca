package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/realtime/wire"
)

// TestReconnectOverWebsocket drops the first session server-side and checks
// the manager comes back with the same handshake.
func TestReconnectOverWebsocket(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		mu.Lock()
		queries = append(queries, r.URL.RawQuery)
		n := len(queries)
		mu.Unlock()

		raw, _ := wire.Encode(wire.Connection(auth.NewIdentity(auth.RoleBusiness, 10)))
		_ = conn.WriteMessage(websocket.TextMessage, raw)
		if n == 1 {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	connections := make(chan wire.Frame, 4)
	m := New(Config{
		URL:          "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		Identity:     auth.NewIdentity(auth.RoleBusiness, 10),
		Token:        "t0k",
		Backoff:      Backoff{Base: 5 * time.Millisecond, Max: 20 * time.Millisecond, MaxAttempts: 5},
		PingInterval: time.Hour,
		Handlers:     Handlers{OnConnection: func(f wire.Frame) { connections <- f }},
	}, nil)
	defer m.Close()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case f := <-connections:
			if f.UserID != 10 || f.Role != auth.RoleBusiness {
				t.Fatalf("connection frame %d: %+v", i, f)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for connection frame %d", i)
		}
	}
	waitFor(t, "connected after reconnect", m.Connected)

	mu.Lock()
	defer mu.Unlock()
	if len(queries) != 2 || queries[0] != queries[1] {
		t.Fatalf("handshakes: want two identical got=%v", queries)
	}
	if !strings.Contains(queries[0], "userId=10") || !strings.Contains(queries[0], "role=business") {
		t.Fatalf("handshake query: %s", queries[0])
	}
}
