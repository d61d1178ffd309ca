package app

import (
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/helpdesk-backend/internal/data/repos"
	"github.com/yungbote/helpdesk-backend/internal/platform/logger"
)

type Repos struct {
	Message    repos.MessageRepo
	Unread     repos.UnreadRepo
	Ticket     repos.TicketRepo
	Employment repos.EmploymentRepo
}

func wireRepos(db *gorm.DB, rdb goredis.UniversalClient, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Message:    repos.NewMessageRepo(db, log),
		Unread:     repos.NewUnreadRepo(db, rdb, log),
		Ticket:     repos.NewTicketRepo(db, log),
		Employment: repos.NewEmploymentRepo(db, log),
	}
}
