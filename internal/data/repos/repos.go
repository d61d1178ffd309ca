package repos

import (
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/helpdesk-backend/internal/data/repos/chat"
	"github.com/yungbote/helpdesk-backend/internal/data/repos/helpdesk"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

type MessageRepo = chat.MessageRepo
type UnreadRepo = chat.UnreadRepo
type ListQuery = chat.ListQuery

type TicketRepo = helpdesk.TicketRepo
type EmploymentRepo = helpdesk.EmploymentRepo

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return chat.NewMessageRepo(db, baseLog)
}

// NewUnreadRepo prefers redis for counters when a client is configured.
func NewUnreadRepo(db *gorm.DB, rdb goredis.UniversalClient, baseLog *logger.Logger) UnreadRepo {
	if rdb != nil {
		return chat.NewRedisUnreadRepo(rdb, "", baseLog)
	}
	return chat.NewUnreadRepo(db, baseLog)
}

func NewTicketRepo(db *gorm.DB, baseLog *logger.Logger) TicketRepo {
	return helpdesk.NewTicketRepo(db, baseLog)
}

func NewEmploymentRepo(db *gorm.DB, baseLog *logger.Logger) EmploymentRepo {
	return helpdesk.NewEmploymentRepo(db, baseLog)
}
