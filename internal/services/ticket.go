package services

import (
	"errors"
	"time"

	"github.com/yungbote/helpdesk-backend/internal/data/repos"
	"github.com/yungbote/helpdesk-backend/internal/data/repos/repoerr"
	types "github.com/yungbote/helpdesk-backend/internal/domain"
	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/domain/errs"
	"github.com/yungbote/helpdesk-backend/internal/platform/ctxutil"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

// ResolveNotifier is told about every ticket that moves to resolved.
type ResolveNotifier interface {
	NotifyResolved(t *types.Ticket, resolvedBy uint64) int
}

type TicketService interface {
	Claim(dbc dbctx.Context, ticketID uint64) (*types.Ticket, error)
	Resolve(dbc dbctx.Context, ticketID uint64) (*types.Ticket, error)
	History(dbc dbctx.Context, ticketID uint64, q repos.ListQuery) ([]*types.Message, error)
}

type ticketService struct {
	log        *logger.Logger
	tickets    repos.TicketRepo
	employment repos.EmploymentRepo
	messages   repos.MessageRepo
	notifier   ResolveNotifier
}

func NewTicketService(
	baseLog *logger.Logger,
	tickets repos.TicketRepo,
	employment repos.EmploymentRepo,
	messages repos.MessageRepo,
	notifier ResolveNotifier,
) TicketService {
	return &ticketService{
		log:        baseLog.With("service", "TicketService"),
		tickets:    tickets,
		employment: employment,
		messages:   messages,
		notifier:   notifier,
	}
}

func (s *ticketService) Claim(dbc dbctx.Context, ticketID uint64) (*types.Ticket, error) {
	const op = "tickets.Claim"
	caller, err := callerIdentity(dbc, op)
	if err != nil {
		return nil, err
	}
	t, err := s.load(dbc, op, ticketID)
	if err != nil {
		return nil, err
	}
	ok, err := s.isStaffOf(dbc, caller, t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Authorization(op, "only staff of the ticket's business may claim it")
	}
	claimed, err := s.tickets.Claim(dbc, ticketID, caller.ID)
	switch {
	case errors.Is(err, repoerr.ErrConflict):
		return nil, errs.Conflict(op, "ticket already claimed or resolved")
	case errors.Is(err, repoerr.ErrNotFound):
		return nil, errs.NotFound(op, "ticket not found")
	case err != nil:
		return nil, errs.Wrap(errs.KindPersistence, op, err)
	}
	s.log.Info("ticket claimed", "ticket_id", ticketID, "claimant", caller.Key())
	return claimed, nil
}

func (s *ticketService) Resolve(dbc dbctx.Context, ticketID uint64) (*types.Ticket, error) {
	const op = "tickets.Resolve"
	caller, err := callerIdentity(dbc, op)
	if err != nil {
		return nil, err
	}
	t, err := s.load(dbc, op, ticketID)
	if err != nil {
		return nil, err
	}
	owner := caller.Role == auth.RoleBusiness && caller.ID == t.BusinessID
	claimant := caller.Role.IsStaff() && t.ClaimedBy(caller.ID)
	if !owner && !claimant {
		return nil, errs.Authorization(op, "only the claimant or the business may resolve the ticket")
	}
	resolved, err := s.tickets.Resolve(dbc, ticketID, time.Now().UTC())
	switch {
	case errors.Is(err, repoerr.ErrConflict):
		return nil, errs.Conflict(op, "ticket already resolved")
	case errors.Is(err, repoerr.ErrNotFound):
		return nil, errs.NotFound(op, "ticket not found")
	case err != nil:
		return nil, errs.Wrap(errs.KindPersistence, op, err)
	}
	notified := 0
	if s.notifier != nil {
		notified = s.notifier.NotifyResolved(resolved, caller.ID)
	}
	s.log.Info("ticket resolved", "ticket_id", ticketID, "resolved_by", caller.Key(), "notified", notified)
	return resolved, nil
}

func (s *ticketService) History(dbc dbctx.Context, ticketID uint64, q repos.ListQuery) ([]*types.Message, error) {
	const op = "tickets.History"
	caller, err := callerIdentity(dbc, op)
	if err != nil {
		return nil, err
	}
	t, err := s.load(dbc, op, ticketID)
	if err != nil {
		return nil, err
	}
	allowed := caller.Role == auth.RoleCustomer && caller.ID == t.CustomerID
	if !allowed && caller.Role.IsStaff() {
		allowed, err = s.isStaffOf(dbc, caller, t)
		if err != nil {
			return nil, err
		}
	}
	if !allowed {
		return nil, errs.Authorization(op, "not a participant of this ticket")
	}
	out, err := s.messages.ListByTicket(dbc, ticketID, q)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, op, err)
	}
	return out, nil
}

func (s *ticketService) load(dbc dbctx.Context, op string, ticketID uint64) (*types.Ticket, error) {
	if ticketID == 0 {
		return nil, errs.Protocol(op, "missing ticket id")
	}
	t, err := s.tickets.GetByID(dbc, ticketID)
	if errors.Is(err, repoerr.ErrNotFound) {
		return nil, errs.NotFound(op, "ticket not found")
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, op, err)
	}
	return t, nil
}

// isStaffOf: the owning business itself, or one of its active employees.
func (s *ticketService) isStaffOf(dbc dbctx.Context, caller auth.Identity, t *types.Ticket) (bool, error) {
	switch caller.Role {
	case auth.RoleBusiness:
		return caller.ID == t.BusinessID, nil
	case auth.RoleEmployee:
		ok, err := s.employment.IsActive(dbc, t.BusinessID, caller.ID)
		if err != nil {
			return false, errs.Wrap(errs.KindPersistence, "tickets.isStaffOf", err)
		}
		return ok, nil
	default:
		return false, nil
	}
}

func callerIdentity(dbc dbctx.Context, op string) (auth.Identity, error) {
	id, ok := ctxutil.GetIdentity(dbc.Ctx)
	if !ok {
		return auth.Identity{}, errs.Authorization(op, "unauthorized")
	}
	return id, nil
}
