package realtime

import (
	"time"

	types "github.com/yungbote/helpdesk-backend/internal/domain"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
)

// TicketStore is the read side of ticket CRUD the router needs.
type TicketStore interface {
	GetByID(dbc dbctx.Context, id uint64) (*types.Ticket, error)
}

type EmploymentStore interface {
	IsActive(dbc dbctx.Context, businessID, employeeID uint64) (bool, error)
	ListActiveEmployeeIDs(dbc dbctx.Context, businessID uint64) ([]uint64, error)
	ListActiveBusinessIDs(dbc dbctx.Context, employeeID uint64) ([]uint64, error)
	SharesActiveBusiness(dbc dbctx.Context, a, b uint64) (bool, error)
}

type MessageStore interface {
	Create(dbc dbctx.Context, msg *types.Message) (*types.Message, error)
	GetByID(dbc dbctx.Context, id uint64) (*types.Message, error)
	Advance(dbc dbctx.Context, id uint64, status types.MessageStatus, at time.Time) (bool, error)
	HasTicketMessages(dbc dbctx.Context, ticketID uint64) (bool, error)
	HasDirectMessages(dbc dbctx.Context, a, b uint64) (bool, error)
	ListPending(dbc dbctx.Context, receiver types.Identity, afterID uint64, limit int) ([]*types.Message, error)
	ListMailbox(dbc dbctx.Context, businessIDs []uint64, afterID uint64, limit int) ([]*types.Message, error)
}

type UnreadStore interface {
	Increment(dbc dbctx.Context, userIDs []uint64, ticketID uint64) error
	Reset(dbc dbctx.Context, userID, ticketID uint64) error
}
