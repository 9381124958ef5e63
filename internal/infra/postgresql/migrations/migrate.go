package migrations

import (
	"github.com/eventline/comms-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_campaigns",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.CampaignModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_campaigns_event_created ON campaigns (event_id, created_at)`,
					`CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns (status)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.CampaignModel{})
			},
		},
		{
			ID: "000002_create_dispatch_records",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.DispatchRecordModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE INDEX IF NOT EXISTS idx_records_campaign_status ON dispatch_records (campaign_id, status)`,
					`CREATE INDEX IF NOT EXISTS idx_records_stale_pending ON dispatch_records (updated_at) WHERE status = 'PENDING'`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.DispatchRecordModel{})
			},
		},
		{
			ID: "000003_create_platform_views",
			Migrate: func(tx *gorm.DB) error {
				// Local mirrors of the platform tables this engine reads.
				// In production these are owned and populated by the event
				// platform; the engine only ever selects from them.
				if err := tx.AutoMigrate(
					&repository.EventModel{},
					&repository.UserModel{},
					&repository.RegistrationModel{},
					&repository.AdminGrantModel{},
				); err != nil {
					return err
				}
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_registrations_event_user ON registrations (event_id, user_id)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					&repository.AdminGrantModel{},
					&repository.RegistrationModel{},
					&repository.UserModel{},
					&repository.EventModel{},
				)
			},
		},
	})

	return m.Migrate()
}
