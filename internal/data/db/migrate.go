package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/helpdesk-backend/internal/domain"
)

// partialIndexes back the reconnect sweep. Both drivers accept the WHERE form.
var partialIndexes = []struct {
	name string
	ddl  string
}{
	{
		name: "idx_message_pending",
		ddl:  "CREATE INDEX IF NOT EXISTS idx_message_pending ON message (receiver_role, receiver_id, id) WHERE status = 'sent'",
	},
	{
		name: "idx_ticket_unclaimed",
		ddl:  "CREATE INDEX IF NOT EXISTS idx_ticket_unclaimed ON ticket (business_id) WHERE claimed_by_id IS NULL",
	},
}

func AutoMigrateAll(db *gorm.DB) error {
	for _, m := range types.Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	for _, ix := range partialIndexes {
		if err := db.Exec(ix.ddl).Error; err != nil {
			return fmt.Errorf("create index %s: %w", ix.name, err)
		}
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("running auto migrations", "driver", s.driver, "models", len(types.Models()))
	return AutoMigrateAll(s.db)
}
