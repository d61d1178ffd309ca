package wire

import (
	"strings"
	"testing"
	"time"

	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/domain/chat"
	"github.com/yungbote/helpdesk-backend/internal/domain/errs"
)

func TestDecodeRejectsBadFrames(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{"type":`},
		{"missing type", `{"timestamp":1}`},
		{"unknown type", `{"type":"typing","timestamp":1}`},
		{"ping without timestamp", `{"type":"ping"}`},
		{"message without target", `{"type":"message","senderId":1,"content":"hi","timestamp":1}`},
		{"message with both targets", `{"type":"message","senderId":1,"receiverId":2,"content":"hi","timestamp":1,"ticketId":4,"directMessageUserId":2}`},
		{"blank content", `{"type":"message","senderId":1,"content":"   ","timestamp":1,"ticketId":4}`},
		{"direct without receiver", `{"type":"message","senderId":1,"content":"hi","timestamp":1,"directMessageUserId":2}`},
		{"status sent", `{"type":"status_update","messageId":1,"status":"sent","timestamp":1}`},
		{"status without id", `{"type":"status_update","status":"read","timestamp":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.raw))
			if !errs.Is(err, errs.KindProtocol) {
				t.Fatalf("want protocol error, got=%v", err)
			}
		})
	}
}

func TestDecodeAcceptsMessage(t *testing.T) {
	f, err := Decode([]byte(`{"type":"message","senderId":7,"receiverId":0,"content":"Hello","timestamp":1700000000000,"ticketId":42}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if f.IsDirect() || *f.TicketID != 42 || f.Content != "Hello" {
		t.Fatalf("unexpected frame: %+v", f)
	}
}

func TestDecodeContentLimit(t *testing.T) {
	long := strings.Repeat("a", MaxContentRunes+1)
	_, err := Decode([]byte(`{"type":"message","senderId":7,"content":"` + long + `","timestamp":1,"ticketId":1}`))
	if !errs.Is(err, errs.KindProtocol) {
		t.Fatalf("want protocol error, got=%v", err)
	}
}

func TestMessageFrameDirectPeer(t *testing.T) {
	m := &chat.Message{ID: 9, SenderID: 3, ReceiverID: 4, Content: "x", Status: chat.StatusSent, SentAt: time.Now()}
	if got := *Message(m, 4).DirectMessageUserID; got != 3 {
		t.Fatalf("receiver view peer: want=3 got=%d", got)
	}
	if got := *Message(m, 3).DirectMessageUserID; got != 4 {
		t.Fatalf("sender view peer: want=4 got=%d", got)
	}
	if err := Message(m, 4).Validate(); err != nil {
		t.Fatalf("outbound message frame invalid: %v", err)
	}
}

func TestServerFramesValidate(t *testing.T) {
	now := time.Now()
	frames := []Frame{
		Connection(auth.NewIdentity(auth.RoleEmployee, 3)),
		Ping(now),
		StatusUpdate(100, chat.StatusRead, now),
		TicketResolved(42, 3, now),
		Error(errs.Authorization("x", "not allowed"), nil),
	}
	for _, f := range frames {
		if err := f.Validate(); err != nil {
			t.Fatalf("%s: %v", f.Type, err)
		}
	}
}

func TestErrorFrameHidesInternals(t *testing.T) {
	f := Error(errs.Wrap(errs.KindInternal, "db", errTest("pq: connection refused")), nil)
	if f.Error != "internal error" || f.Code != string(errs.KindInternal) {
		t.Fatalf("want sanitized internal error, got=%+v", f)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
