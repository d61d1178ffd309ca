package services

import (
	"github.com/yungbote/helpdesk-backend/internal/data/repos"
	types "github.com/yungbote/helpdesk-backend/internal/domain"
	"github.com/yungbote/helpdesk-backend/internal/domain/auth"
	"github.com/yungbote/helpdesk-backend/internal/domain/errs"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

type MessageService interface {
	DirectHistory(dbc dbctx.Context, peerID uint64, q repos.ListQuery) ([]*types.Message, error)
	Unread(dbc dbctx.Context) ([]*types.UnreadCounter, error)
}

type messageService struct {
	log        *logger.Logger
	messages   repos.MessageRepo
	unread     repos.UnreadRepo
	employment repos.EmploymentRepo
}

func NewMessageService(
	baseLog *logger.Logger,
	messages repos.MessageRepo,
	unread repos.UnreadRepo,
	employment repos.EmploymentRepo,
) MessageService {
	return &messageService{
		log:        baseLog.With("service", "MessageService"),
		messages:   messages,
		unread:     unread,
		employment: employment,
	}
}

func (s *messageService) DirectHistory(dbc dbctx.Context, peerID uint64, q repos.ListQuery) ([]*types.Message, error) {
	const op = "messages.DirectHistory"
	caller, err := callerIdentity(dbc, op)
	if err != nil {
		return nil, err
	}
	if peerID == 0 || peerID == caller.ID {
		return nil, errs.Protocol(op, "invalid peer id")
	}
	if !caller.Role.IsStaff() {
		return nil, errs.Authorization(op, "customers have no direct conversations")
	}
	ok, err := s.related(dbc, caller, peerID)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, op, err)
	}
	if !ok {
		return nil, errs.Authorization(op, "no shared active business with this user")
	}
	out, err := s.messages.ListBetween(dbc, caller.ID, peerID, q)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, op, err)
	}
	return out, nil
}

// related mirrors the direct message routing rule: owner and active employee,
// or two employees of one business.
func (s *messageService) related(dbc dbctx.Context, caller auth.Identity, peerID uint64) (bool, error) {
	if caller.Role == auth.RoleBusiness {
		return s.employment.IsActive(dbc, caller.ID, peerID)
	}
	ok, err := s.employment.IsActive(dbc, peerID, caller.ID)
	if err != nil || ok {
		return ok, err
	}
	return s.employment.SharesActiveBusiness(dbc, caller.ID, peerID)
}

func (s *messageService) Unread(dbc dbctx.Context) ([]*types.UnreadCounter, error) {
	const op = "messages.Unread"
	caller, err := callerIdentity(dbc, op)
	if err != nil {
		return nil, err
	}
	out, err := s.unread.ListForUser(dbc, caller.ID)
	if err != nil {
		return nil, errs.Wrap(errs.KindPersistence, op, err)
	}
	return out, nil
}
