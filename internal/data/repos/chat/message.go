package chat

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/helpdesk-backend/internal/domain"
	"github.com/yungbote/helpdesk-backend/internal/data/repos/repoerr"
	"github.com/yungbote/helpdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

type MessageRepo interface {
	Create(dbc dbctx.Context, msg *types.Message) (*types.Message, error)
	GetByID(dbc dbctx.Context, id uint64) (*types.Message, error)
	// Advance moves a message forward to status. It reports false when the row
	// was already at or past status, which callers treat as a no-op.
	Advance(dbc dbctx.Context, id uint64, status types.MessageStatus, at time.Time) (bool, error)
	HasTicketMessages(dbc dbctx.Context, ticketID uint64) (bool, error)
	HasDirectMessages(dbc dbctx.Context, a, b uint64) (bool, error)
	ListByTicket(dbc dbctx.Context, ticketID uint64, q ListQuery) ([]*types.Message, error)
	ListBetween(dbc dbctx.Context, a, b uint64, q ListQuery) ([]*types.Message, error)
	ListPending(dbc dbctx.Context, receiver types.Identity, afterID uint64, limit int) ([]*types.Message, error)
	ListMailbox(dbc dbctx.Context, businessIDs []uint64, afterID uint64, limit int) ([]*types.Message, error)
}

// ListQuery pages backwards from BeforeID; results are returned oldest first.
type ListQuery struct {
	Limit    int
	BeforeID uint64
}

func (q ListQuery) limit() int {
	if q.Limit <= 0 || q.Limit > 500 {
		return 50
	}
	return q.Limit
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, msg *types.Message) (*types.Message, error) {
	if msg == nil {
		return nil, fmt.Errorf("missing message")
	}
	if strings.TrimSpace(msg.Content) == "" {
		return nil, fmt.Errorf("missing content")
	}
	if msg.SenderID == 0 || msg.ReceiverID == 0 {
		return nil, fmt.Errorf("message needs sender and receiver")
	}
	now := time.Now().UTC()
	if msg.Status == "" {
		msg.Status = types.StatusSent
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = now
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if err := dbc.Conn(r.db).Create(msg).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return msg, nil
}

func (r *messageRepo) GetByID(dbc dbctx.Context, id uint64) (*types.Message, error) {
	if id == 0 {
		return nil, fmt.Errorf("missing message id")
	}
	var out types.Message
	if err := dbc.Conn(r.db).Where("id = ?", id).First(&out).Error; err != nil {
		return nil, repoerr.Map(err)
	}
	return &out, nil
}

func (r *messageRepo) Advance(dbc dbctx.Context, id uint64, status types.MessageStatus, at time.Time) (bool, error) {
	if id == 0 {
		return false, fmt.Errorf("missing message id")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var (
		from    []types.MessageStatus
		updates map[string]interface{}
	)
	switch status {
	case types.StatusDelivered:
		from = []types.MessageStatus{types.StatusSent}
		updates = map[string]interface{}{
			"status":       types.StatusDelivered,
			"delivered_at": at,
		}
	case types.StatusRead:
		// read satisfies delivered even if the delivered transition never happened
		from = []types.MessageStatus{types.StatusSent, types.StatusDelivered}
		updates = map[string]interface{}{
			"status":       types.StatusRead,
			"read_at":      at,
			"delivered_at": gorm.Expr("COALESCE(delivered_at, ?)", at),
		}
	default:
		return false, fmt.Errorf("cannot advance message to %q", status)
	}
	res := dbc.Conn(r.db).
		Model(&types.Message{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, repoerr.Map(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *messageRepo) HasTicketMessages(dbc dbctx.Context, ticketID uint64) (bool, error) {
	var n int64
	err := dbc.Conn(r.db).
		Model(&types.Message{}).
		Where("ticket_id = ?", ticketID).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *messageRepo) HasDirectMessages(dbc dbctx.Context, a, b uint64) (bool, error) {
	var n int64
	err := betweenScope(dbc.Conn(r.db).Model(&types.Message{}), a, b).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *messageRepo) ListByTicket(dbc dbctx.Context, ticketID uint64, q ListQuery) ([]*types.Message, error) {
	if ticketID == 0 {
		return nil, fmt.Errorf("missing ticket_id")
	}
	tx := dbc.Conn(r.db).Model(&types.Message{}).Where("ticket_id = ?", ticketID)
	return r.page(tx, q)
}

func (r *messageRepo) ListBetween(dbc dbctx.Context, a, b uint64, q ListQuery) ([]*types.Message, error) {
	if a == 0 || b == 0 {
		return nil, fmt.Errorf("missing participant id")
	}
	tx := betweenScope(dbc.Conn(r.db).Model(&types.Message{}), a, b)
	return r.page(tx, q)
}

func (r *messageRepo) page(tx *gorm.DB, q ListQuery) ([]*types.Message, error) {
	if q.BeforeID > 0 {
		tx = tx.Where("id < ?", q.BeforeID)
	}
	var out []*types.Message
	if err := tx.Order("id DESC").Limit(q.limit()).Find(&out).Error; err != nil {
		return nil, err
	}
	// Normalize to ASC for clients.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ListPending returns rows still at sent for receiver with id above afterID.
func (r *messageRepo) ListPending(dbc dbctx.Context, receiver types.Identity, afterID uint64, limit int) ([]*types.Message, error) {
	if !receiver.Valid() {
		return nil, fmt.Errorf("invalid receiver identity")
	}
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	var out []*types.Message
	err := dbc.Conn(r.db).
		Where("receiver_id = ? AND receiver_role = ? AND status = ?", receiver.ID, receiver.Role, types.StatusSent).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListMailbox returns rows addressed to the business mailbox of tickets
// nobody has claimed yet, at any status, with id above afterID.
func (r *messageRepo) ListMailbox(dbc dbctx.Context, businessIDs []uint64, afterID uint64, limit int) ([]*types.Message, error) {
	if len(businessIDs) == 0 {
		return []*types.Message{}, nil
	}
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	var out []*types.Message
	err := dbc.Conn(r.db).
		Model(&types.Message{}).
		Joins("JOIN ticket ON ticket.id = message.ticket_id").
		Where("message.receiver_role = ?", types.RoleBusiness).
		Where("message.receiver_id IN ?", businessIDs).
		Where("message.id > ?", afterID).
		Where("ticket.claimed_by_id IS NULL").
		Order("message.id ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func betweenScope(tx *gorm.DB, a, b uint64) *gorm.DB {
	return tx.Where("ticket_id IS NULL").
		Where("((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))", a, b, b, a)
}
