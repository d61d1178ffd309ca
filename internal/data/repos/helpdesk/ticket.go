package helpdesk

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/helpdesk-backend/internal/domain"
	"github.com/yungbote/helpdesk-backend/internal/data/repos/repoerr"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

type TicketRepo interface {
	Create(dbc dbctx.Context, t *types.Ticket) (*types.Ticket, error)
	GetByID(dbc dbctx.Context, id uint64) (*types.Ticket, error)
	// Claim assigns an unclaimed ticket to userID. A ticket that is already
	// claimed by someone else yields repoerr.ErrConflict.
	Claim(dbc dbctx.Context, id, userID uint64) (*types.Ticket, error)
	Resolve(dbc dbctx.Context, id uint64, at time.Time) (*types.Ticket, error)
}

type ticketRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTicketRepo(db *gorm.DB, log *logger.Logger) TicketRepo {
	return &ticketRepo{db: db, log: log.With("repo", "TicketRepo")}
}

func (r *ticketRepo) Create(dbc dbctx.Context, t *types.Ticket) (*types.Ticket, error) {
	if t == nil {
		return nil, fmt.Errorf("missing ticket")
	}
	if t.CustomerID == 0 || t.BusinessID == 0 {
		return nil, fmt.Errorf("ticket needs customer and business")
	}
	now := time.Now().UTC()
	if t.Status == "" {
		t.Status = types.TicketOpen
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if err := dbc.Conn(r.db).Create(t).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return t, nil
}

func (r *ticketRepo) GetByID(dbc dbctx.Context, id uint64) (*types.Ticket, error) {
	if id == 0 {
		return nil, fmt.Errorf("missing ticket id")
	}
	var out types.Ticket
	if err := dbc.Conn(r.db).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return &out, nil
}

func (r *ticketRepo) Claim(dbc dbctx.Context, id, userID uint64) (*types.Ticket, error) {
	if id == 0 || userID == 0 {
		return nil, fmt.Errorf("missing ticket or claimant id")
	}
	res := dbc.Conn(r.db).
		Model(&types.Ticket{}).
		Where("id = ? AND claimed_by_id IS NULL AND status <> ?", id, types.TicketResolved).
		Updates(map[string]interface{}{
			"claimed_by_id": userID,
			"status":        types.TicketInProgress,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, repoerr.Map(res.Error)
	}
	t, err := r.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 && !t.ClaimedBy(userID) {
		return t, repoerr.ErrConflict
	}
	return t, nil
}

func (r *ticketRepo) Resolve(dbc dbctx.Context, id uint64, at time.Time) (*types.Ticket, error) {
	if id == 0 {
		return nil, fmt.Errorf("missing ticket id")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	res := dbc.Conn(r.db).
		Model(&types.Ticket{}).
		Where("id = ? AND status <> ?", id, types.TicketResolved).
		Updates(map[string]interface{}{
			"status":      types.TicketResolved,
			"resolved_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return nil, repoerr.Map(res.Error)
	}
	t, err := r.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return t, repoerr.ErrConflict
	}
	return t, nil
}
