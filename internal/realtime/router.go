package realtime

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/helpdesk-backend/internal/data/repos/repoerr"
	types "github.com/yungbote/helpdesk-backend/internal/domain"
	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/domain/errs"
	"github.com/yungbote/helpdesk-backend/internal/observability"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
	"github.com/yungbote/helpdesk-backend/internal/realtime/wire"
)

// Route is the routing decision for one inbound message frame.
type Route struct {
	Sender   auth.Identity
	Target   Target
	TicketID *uint64
	// Ticket is the claim state read for this send; nil for direct messages.
	Ticket *types.Ticket
	// OrderKey serializes persist and push per conversation.
	OrderKey string
}

// UnreadKey is the ticket id unread counters for this route are kept under.
func (r *Route) UnreadKey() uint64 {
	if r.TicketID == nil {
		return types.DirectInbox
	}
	return *r.TicketID
}

// Router resolves who currently receives a message. Ticket claim state is
// read on every call, never cached.
type Router struct {
	tickets    TicketStore
	employment EmploymentStore
	log        *logger.Logger
}

func NewRouter(tickets TicketStore, employment EmploymentStore, log *logger.Logger) *Router {
	return &Router{tickets: tickets, employment: employment, log: log.With("component", "MessageRouter")}
}

// Resolve authorizes sender for f and picks the target. Every error it
// returns short-circuits before anything is persisted.
func (r *Router) Resolve(ctx context.Context, sender auth.Identity, f wire.Frame) (route *Route, err error) {
	ctx, span := observability.Tracer().Start(ctx, "realtime.route", trace.WithAttributes(
		attribute.String("sender", sender.Key()),
		attribute.Bool("direct", f.IsDirect()),
	))
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, string(errs.KindOf(err)))
			span.RecordError(err)
		} else {
			span.SetAttributes(attribute.String("target", route.Target.String()))
		}
		span.End()
	}()

	if f.Type != wire.TypeMessage {
		return nil, errs.Protocol("router.Resolve", "not a message frame")
	}
	if f.SenderID != sender.ID {
		return nil, errs.Authorization("router.Resolve", "senderId does not match the connection")
	}
	dbc := dbctx.Of(ctx)
	if f.IsDirect() {
		return r.direct(dbc, sender, f)
	}
	return r.ticket(dbc, sender, *f.TicketID)
}

func (r *Router) ticket(dbc dbctx.Context, sender auth.Identity, ticketID uint64) (*Route, error) {
	const op = "router.ticket"
	t, err := r.tickets.GetByID(dbc, ticketID)
	if err != nil {
		if errors.Is(err, repoerr.ErrNotFound) {
			return nil, errs.NotFound(op, fmt.Sprintf("ticket %d not found", ticketID))
		}
		return nil, errs.Wrap(errs.KindInternal, op, err)
	}
	if t.Status == types.TicketResolved {
		return nil, errs.Conflict(op, fmt.Sprintf("ticket %d is resolved", ticketID))
	}

	route := &Route{
		Sender:   sender,
		TicketID: &t.ID,
		Ticket:   t,
		OrderKey: ticketOrderKey(t.ID),
	}

	switch sender.Role {
	case auth.RoleCustomer:
		if sender.ID != t.CustomerID {
			return nil, errs.Authorization(op, "ticket belongs to another customer")
		}
		if t.Claimed() {
			route.Target = Single(ClaimantIdentity(t))
			return route, nil
		}
		employees, err := r.employment.ListActiveEmployeeIDs(dbc, t.BusinessID)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, op, err)
		}
		route.Target = Mailbox(t.BusinessID, employees)
		return route, nil

	case auth.RoleBusiness:
		if sender.ID != t.BusinessID {
			return nil, errs.Authorization(op, "ticket belongs to another business")
		}

	case auth.RoleEmployee:
		if !t.Claimed() {
			return nil, errs.Authorization(op, "claim the ticket before replying")
		}
		if !t.ClaimedBy(sender.ID) {
			return nil, errs.Authorization(op, "ticket is claimed by someone else")
		}
		active, err := r.employment.IsActive(dbc, t.BusinessID, sender.ID)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, op, err)
		}
		if !active {
			return nil, errs.Authorization(op, "employee is not active for this business")
		}

	default:
		return nil, errs.Authorization(op, "unknown role")
	}

	route.Target = Single(auth.NewIdentity(auth.RoleCustomer, t.CustomerID))
	return route, nil
}

func (r *Router) direct(dbc dbctx.Context, sender auth.Identity, f wire.Frame) (*Route, error) {
	const op = "router.direct"
	peer := f.ReceiverID
	if f.DirectMessageUserID != nil && *f.DirectMessageUserID != peer {
		return nil, errs.Protocol(op, "directMessageUserId and receiverId disagree")
	}
	if peer == sender.ID {
		return nil, errs.Protocol(op, "cannot message yourself")
	}

	var receiver auth.Identity
	switch sender.Role {
	case auth.RoleEmployee:
		// the peer may be the owner of a business the sender works for
		owner, err := r.employment.IsActive(dbc, peer, sender.ID)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, op, err)
		}
		if owner {
			receiver = auth.NewIdentity(auth.RoleBusiness, peer)
			break
		}
		shared, err := r.employment.SharesActiveBusiness(dbc, sender.ID, peer)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, op, err)
		}
		if !shared {
			return nil, errs.Authorization(op, "no shared active business with receiver")
		}
		receiver = auth.NewIdentity(auth.RoleEmployee, peer)

	case auth.RoleBusiness:
		active, err := r.employment.IsActive(dbc, sender.ID, peer)
		if err != nil {
			return nil, errs.Wrap(errs.KindInternal, op, err)
		}
		if !active {
			return nil, errs.Authorization(op, "receiver is not an active employee of this business")
		}
		receiver = auth.NewIdentity(auth.RoleEmployee, peer)

	default:
		return nil, errs.Authorization(op, "direct messages are staff only")
	}

	return &Route{
		Sender:   sender,
		Target:   Single(receiver),
		OrderKey: directOrderKey(sender.ID, peer),
	}, nil
}

func ticketOrderKey(ticketID uint64) string {
	return fmt.Sprintf("ticket:%d", ticketID)
}

func directOrderKey(a, b uint64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("direct:%d:%d", a, b)
}

// orderKey is the conversation key of a stored message.
func orderKey(m *types.Message) string {
	if m.TicketID != nil {
		return ticketOrderKey(*m.TicketID)
	}
	return directOrderKey(m.SenderID, m.ReceiverID)
}

// ClaimantIdentity is the registry identity of a ticket's claimant. An owner
// who claims their own ticket stays a business identity.
func ClaimantIdentity(t *types.Ticket) auth.Identity {
	if !t.Claimed() {
		return auth.Identity{}
	}
	id := *t.ClaimedByID
	if id == t.BusinessID {
		return auth.NewIdentity(auth.RoleBusiness, id)
	}
	return auth.NewIdentity(auth.RoleEmployee, id)
}

// ResolvedAudience lists who is told a ticket was resolved: the customer,
// the claimant and the business owner.
func ResolvedAudience(t *types.Ticket) []auth.Identity {
	out := []auth.Identity{
		auth.NewIdentity(auth.RoleCustomer, t.CustomerID),
		auth.NewIdentity(auth.RoleBusiness, t.BusinessID),
	}
	if c := ClaimantIdentity(t); c.Valid() && c.Role != auth.RoleBusiness {
		out = append(out, c)
	}
	return out
}
