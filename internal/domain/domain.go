package domain

import (
	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/domain/chat"
	"github.com/yungbote/helpdesk-backend/internal/domain/helpdesk"
)

type Role = auth.Role
type Identity = auth.Identity

const (
	RoleBusiness = auth.RoleBusiness
	RoleCustomer = auth.RoleCustomer
	RoleEmployee = auth.RoleEmployee
)

type Message = chat.Message
type MessageStatus = chat.MessageStatus
type UnreadCounter = chat.UnreadCounter

const (
	StatusSent      = chat.StatusSent
	StatusDelivered = chat.StatusDelivered
	StatusRead      = chat.StatusRead

	DirectInbox = chat.DirectInbox
)

type Ticket = helpdesk.Ticket
type TicketStatus = helpdesk.TicketStatus
type BusinessEmployee = helpdesk.BusinessEmployee

const (
	TicketOpen       = helpdesk.TicketOpen
	TicketInProgress = helpdesk.TicketInProgress
	TicketResolved   = helpdesk.TicketResolved
)

// Models lists every table the service migrates.
func Models() []interface{} {
	return []interface{}{
		&Ticket{},
		&BusinessEmployee{},
		&Message{},
		&UnreadCounter{},
	}
}
