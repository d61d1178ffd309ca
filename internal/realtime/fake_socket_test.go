package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
	"github.com/yungbote/helpdesk-backend/internal/realtime/wire"
)

var errSocketClosed = errors.New("socket closed")

// fakeSocket is an in-memory Socket. The test plays the client side through
// send and recv.
type fakeSocket struct {
	in        chan []byte
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	pings     atomic.Int32

	mu   sync.Mutex
	pong func(string) error
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case raw := <-s.in:
		return websocket.TextMessage, raw, nil
	case <-s.closed:
		return 0, nil, errSocketClosed
	}
}

func (s *fakeSocket) WriteMessage(_ int, data []byte) error {
	select {
	case <-s.closed:
		return errSocketClosed
	default:
	}
	select {
	case s.out <- data:
		return nil
	case <-s.closed:
		return errSocketClosed
	}
}

func (s *fakeSocket) WriteControl(messageType int, _ []byte, _ time.Time) error {
	select {
	case <-s.closed:
		return errSocketClosed
	default:
	}
	if messageType == websocket.PingMessage {
		s.pings.Add(1)
	}
	return nil
}

func (s *fakeSocket) SetReadDeadline(time.Time) error  { return nil }
func (s *fakeSocket) SetWriteDeadline(time.Time) error { return nil }
func (s *fakeSocket) SetReadLimit(int64)               {}

func (s *fakeSocket) SetPongHandler(h func(string) error) {
	s.mu.Lock()
	s.pong = h
	s.mu.Unlock()
}

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *fakeSocket) send(t *testing.T, f wire.Frame) {
	t.Helper()
	raw, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	s.sendRaw(t, raw)
}

func (s *fakeSocket) sendRaw(t *testing.T, raw []byte) {
	t.Helper()
	select {
	case s.in <- raw:
	case <-time.After(time.Second):
		t.Fatalf("timed out sending frame")
	}
}

func recvFrame(t *testing.T, s *fakeSocket, timeout time.Duration) wire.Frame {
	t.Helper()
	select {
	case raw := <-s.out:
		f, err := wire.Decode(raw)
		if err != nil {
			t.Fatalf("server wrote invalid frame %s: %v", raw, err)
		}
		return f
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for frame")
	}
	return wire.Frame{}
}

func expectFrame(t *testing.T, s *fakeSocket, typ wire.FrameType) wire.Frame {
	t.Helper()
	f := recvFrame(t, s, 2*time.Second)
	if f.Type != typ {
		t.Fatalf("frame type: want=%s got=%s (%+v)", typ, f.Type, f)
	}
	return f
}

func expectSilence(t *testing.T, s *fakeSocket, d time.Duration) {
	t.Helper()
	select {
	case raw := <-s.out:
		t.Fatalf("unexpected frame: %s", raw)
	case <-time.After(d):
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	return logger.Nop()
}
