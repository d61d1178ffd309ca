package chat

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/helpdesk-backend/internal/domain"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

// UnreadRepo keeps (user, ticket) unread counts. Direct messages count under
// chat.DirectInbox.
type UnreadRepo interface {
	Increment(dbc dbctx.Context, userIDs []uint64, ticketID uint64) error
	Reset(dbc dbctx.Context, userID, ticketID uint64) error
	ListForUser(dbc dbctx.Context, userID uint64) ([]*types.UnreadCounter, error)
}

type unreadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUnreadRepo(db *gorm.DB, log *logger.Logger) UnreadRepo {
	return &unreadRepo{db: db, log: log.With("repo", "UnreadRepo")}
}

func (r *unreadRepo) Increment(dbc dbctx.Context, userIDs []uint64, ticketID uint64) error {
	if len(userIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]*types.UnreadCounter, 0, len(userIDs))
	seen := make(map[uint64]bool, len(userIDs))
	for _, id := range userIDs {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		rows = append(rows, &types.UnreadCounter{UserID: id, TicketID: ticketID, Count: 1, UpdatedAt: now})
	}
	if len(rows) == 0 {
		return nil
	}
	return dbc.Conn(r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "ticket_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"unread_count": gorm.Expr("unread_counter.unread_count + 1"),
			"updated_at":   now,
		}),
	}).Create(&rows).Error
}

func (r *unreadRepo) Reset(dbc dbctx.Context, userID, ticketID uint64) error {
	return dbc.Conn(r.db).
		Model(&types.UnreadCounter{}).
		Where("user_id = ? AND ticket_id = ?", userID, ticketID).
		Updates(map[string]interface{}{
			"unread_count": 0,
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *unreadRepo) ListForUser(dbc dbctx.Context, userID uint64) ([]*types.UnreadCounter, error) {
	var out []*types.UnreadCounter
	err := dbc.Conn(r.db).
		Where("user_id = ? AND unread_count > 0", userID).
		Order("ticket_id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
