package chat

import (
	"time"

	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
)

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// Rank orders statuses; transitions only ever move to a higher rank.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

func (s MessageStatus) Valid() bool { return s.Rank() > 0 }

// CanAdvanceTo reports whether moving from s to next is a forward transition.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	return next.Valid() && next.Rank() > s.Rank()
}

// Message is an append-only log entry. Content never changes after insert;
// only the status columns move.
type Message struct {
	ID            uint64        `gorm:"primaryKey;autoIncrement" json:"id"`
	Content       string        `gorm:"column:content;type:text;not null" json:"content"`
	SenderID      uint64        `gorm:"column:sender_id;not null;index" json:"senderId"`
	SenderRole    auth.Role     `gorm:"column:sender_role;type:varchar(16);not null" json:"senderRole"`
	ReceiverID    uint64        `gorm:"column:receiver_id;not null;index:idx_message_receiver_status,priority:1" json:"receiverId"`
	ReceiverRole  auth.Role     `gorm:"column:receiver_role;type:varchar(16);not null;index:idx_message_receiver_status,priority:2" json:"receiverRole"`
	TicketID      *uint64       `gorm:"column:ticket_id;index" json:"ticketId,omitempty"`
	Status        MessageStatus `gorm:"column:status;type:varchar(16);not null;default:'sent';index:idx_message_receiver_status,priority:3" json:"status"`
	ChatInitiator bool          `gorm:"column:chat_initiator;not null;default:false" json:"chatInitiator"`
	SentAt        time.Time     `gorm:"column:sent_at;not null" json:"sentAt"`
	DeliveredAt   *time.Time    `gorm:"column:delivered_at" json:"deliveredAt,omitempty"`
	ReadAt        *time.Time    `gorm:"column:read_at" json:"readAt,omitempty"`
	CreatedAt     time.Time     `gorm:"column:created_at;not null;index" json:"createdAt"`
}

func (Message) TableName() string { return "message" }

func (m *Message) Sender() auth.Identity {
	return auth.NewIdentity(m.SenderRole, m.SenderID)
}

func (m *Message) Receiver() auth.Identity {
	return auth.NewIdentity(m.ReceiverRole, m.ReceiverID)
}

func (m *Message) IsDirect() bool { return m.TicketID == nil }

// DirectInbox is the ticket id unread counters use for direct messages.
const DirectInbox uint64 = 0

// UnreadCounter counts messages persisted for a user that have not been read.
type UnreadCounter struct {
	UserID    uint64    `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"userId"`
	TicketID  uint64    `gorm:"column:ticket_id;primaryKey;autoIncrement:false" json:"ticketId"`
	Count     int64     `gorm:"column:unread_count;not null;default:0" json:"count"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null" json:"updatedAt"`
}

func (UnreadCounter) TableName() string { return "unread_counter" }
