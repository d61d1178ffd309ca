// Package wire defines the JSON frames exchanged over a realtime connection.
package wire

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/domain/chat"
	"github.com/yungbote/helpdesk-backend/internal/domain/errs"
)

type FrameType string

const (
	TypeConnection     FrameType = "connection"
	TypePing           FrameType = "ping"
	TypePong           FrameType = "pong"
	TypeMessage        FrameType = "message"
	TypeStatusUpdate   FrameType = "status_update"
	TypeTicketResolved FrameType = "ticket_resolved"
	TypeError          FrameType = "error"
)

// MaxContentRunes bounds a single message body.
const MaxContentRunes = 4000

const StatusConnected = "connected"

// Frame is the flat union of every frame type; Type says which fields apply.
type Frame struct {
	Type                FrameType `json:"type"`
	UserID              uint64    `json:"userId,omitempty"`
	Role                auth.Role `json:"role,omitempty"`
	Status              string    `json:"status,omitempty"`
	Timestamp           int64     `json:"timestamp,omitempty"`
	MessageID           uint64    `json:"messageId,omitempty"`
	SenderID            uint64    `json:"senderId,omitempty"`
	ReceiverID          uint64    `json:"receiverId,omitempty"`
	Content             string    `json:"content,omitempty"`
	TicketID            *uint64   `json:"ticketId,omitempty"`
	DirectMessageUserID *uint64   `json:"directMessageUserId,omitempty"`
	ChatInitiator       bool      `json:"chatInitiator,omitempty"`
	ResolvedBy          uint64    `json:"resolvedBy,omitempty"`
	Error               string    `json:"error,omitempty"`
	Code                string    `json:"code,omitempty"`
}

// Millis is the frame timestamp encoding: unix milliseconds.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func Time(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// Decode parses and validates one frame. Failures are protocol errors.
func Decode(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, errs.New(errs.KindProtocol, "wire.Decode", "malformed frame", err)
	}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// Validate checks the required fields of f's type.
func (f Frame) Validate() error {
	const op = "wire.Validate"
	switch f.Type {
	case TypeConnection:
		if f.UserID == 0 || !f.Role.Valid() || f.Status == "" {
			return errs.Protocol(op, "connection frame needs userId, role and status")
		}
	case TypePing, TypePong:
		if f.Timestamp <= 0 {
			return errs.Protocol(op, string(f.Type)+" frame needs timestamp")
		}
	case TypeMessage:
		return f.validateMessage()
	case TypeStatusUpdate:
		if f.MessageID == 0 || f.Timestamp <= 0 {
			return errs.Protocol(op, "status_update frame needs messageId and timestamp")
		}
		st := chat.MessageStatus(f.Status)
		if st != chat.StatusDelivered && st != chat.StatusRead {
			return errs.Protocol(op, "status_update status must be delivered or read")
		}
	case TypeTicketResolved:
		if f.TicketID == nil || *f.TicketID == 0 || f.ResolvedBy == 0 || f.Timestamp <= 0 {
			return errs.Protocol(op, "ticket_resolved frame needs ticketId, resolvedBy and timestamp")
		}
	case TypeError:
		if strings.TrimSpace(f.Error) == "" {
			return errs.Protocol(op, "error frame needs error")
		}
	case "":
		return errs.Protocol(op, "missing frame type")
	default:
		return errs.Protocol(op, "unknown frame type "+string(f.Type))
	}
	return nil
}

func (f Frame) validateMessage() error {
	const op = "wire.Validate"
	if f.SenderID == 0 {
		return errs.Protocol(op, "message frame needs senderId")
	}
	if f.Timestamp <= 0 {
		return errs.Protocol(op, "message frame needs timestamp")
	}
	content := strings.TrimSpace(f.Content)
	if content == "" {
		return errs.Protocol(op, "message frame needs content")
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return errs.Protocol(op, "message content too long")
	}
	hasTicket := f.TicketID != nil && *f.TicketID != 0
	hasDirect := f.DirectMessageUserID != nil && *f.DirectMessageUserID != 0
	switch {
	case hasTicket && hasDirect:
		return errs.Protocol(op, "message frame carries both ticketId and directMessageUserId")
	case !hasTicket && !hasDirect:
		return errs.Protocol(op, "message frame needs ticketId or directMessageUserId")
	case hasDirect && f.ReceiverID == 0:
		return errs.Protocol(op, "direct message needs receiverId")
	}
	return nil
}

// IsDirect reports whether a message frame addresses a user rather than a ticket.
func (f Frame) IsDirect() bool {
	return f.TicketID == nil || *f.TicketID == 0
}

func Connection(id auth.Identity) Frame {
	return Frame{Type: TypeConnection, UserID: id.ID, Role: id.Role, Status: StatusConnected, Timestamp: Millis(time.Now())}
}

func Ping(at time.Time) Frame { return Frame{Type: TypePing, Timestamp: Millis(at)} }
func Pong(at time.Time) Frame { return Frame{Type: TypePong, Timestamp: Millis(at)} }

// Message renders a stored message for viewer. Direct messages carry the
// other participant in directMessageUserId so the viewer can thread them.
func Message(m *chat.Message, viewer uint64) Frame {
	f := Frame{
		Type:          TypeMessage,
		MessageID:     m.ID,
		SenderID:      m.SenderID,
		ReceiverID:    m.ReceiverID,
		Content:       m.Content,
		Status:        string(m.Status),
		Timestamp:     Millis(m.SentAt),
		ChatInitiator: m.ChatInitiator,
	}
	if m.TicketID != nil {
		tid := *m.TicketID
		f.TicketID = &tid
		return f
	}
	peer := m.ReceiverID
	if viewer == m.ReceiverID {
		peer = m.SenderID
	}
	f.DirectMessageUserID = &peer
	return f
}

func StatusUpdate(messageID uint64, status chat.MessageStatus, at time.Time) Frame {
	return Frame{Type: TypeStatusUpdate, MessageID: messageID, Status: string(status), Timestamp: Millis(at)}
}

func TicketResolved(ticketID, resolvedBy uint64, at time.Time) Frame {
	tid := ticketID
	return Frame{Type: TypeTicketResolved, TicketID: &tid, ResolvedBy: resolvedBy, Timestamp: Millis(at)}
}

// Error renders err for the offending connection. ticketID may be nil.
func Error(err error, ticketID *uint64) Frame {
	f := Frame{
		Type:      TypeError,
		Error:     errs.Public(err),
		Code:      string(errs.KindOf(err)),
		Timestamp: Millis(time.Now()),
	}
	if ticketID != nil && *ticketID != 0 {
		tid := *ticketID
		f.TicketID = &tid
	}
	return f
}
