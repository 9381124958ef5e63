package repository

import (
	"context"
	"fmt"

	"github.com/eventline/comms-engine/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const recordInsertBatchSize = 200

// CampaignStore creates a campaign together with its per-recipient dispatch
// records in one transaction: quota re-check, recipient resolution, campaign
// insert, and the bulk record insert all succeed or none do.
type CampaignStore interface {
	Create(ctx context.Context, draft *domain.Campaign) (*domain.Campaign, domain.Resolution, error)
}

type GormCampaignStore struct {
	db *gorm.DB
}

func NewGormCampaignStore(db *gorm.DB) *GormCampaignStore {
	return &GormCampaignStore{db: db}
}

type registrantRow struct {
	UserID  string `gorm:"column:user_id"`
	Address string `gorm:"column:address"`
}

// Create runs the whole creation pipeline under a per-event advisory lock.
// The lock serializes concurrent sends for the same event, which makes the
// quota cap exact instead of check-then-act best effort.
func (s *GormCampaignStore) Create(ctx context.Context, draft *domain.Campaign) (*domain.Campaign, domain.Resolution, error) {
	if draft == nil {
		return nil, domain.Resolution{}, fmt.Errorf("%w: campaign draft is required", domain.ErrValidation)
	}

	var (
		created    *domain.Campaign
		resolution domain.Resolution
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`SELECT pg_advisory_xact_lock(hashtext(?))`, draft.EventID).Error; err != nil {
			return fmt.Errorf("failed to take event send lock: %w", err)
		}

		var used int64
		if err := tx.Model(&CampaignModel{}).
			Where("event_id = ?", draft.EventID).
			Count(&used).Error; err != nil {
			return fmt.Errorf("failed to count campaigns: %w", err)
		}
		if used >= int64(domain.MaxCampaignsPerEvent) {
			return fmt.Errorf("%w: event %s has used %d of %d campaigns",
				domain.ErrQuotaExceeded, draft.EventID, used, domain.MaxCampaignsPerEvent)
		}

		registrants, err := loadRegistrants(tx, draft.EventID)
		if err != nil {
			return fmt.Errorf("failed to load registrants: %w", err)
		}

		resolution = domain.ResolveRecipients(draft.Channel, registrants)

		model := campaignModelFromDomain(draft)
		if model.ID == "" {
			model.ID = uuid.NewString()
		}
		model.Status = domain.CampaignStatusSending
		model.TotalRegistrations = resolution.Total
		model.ValidRecipientsCount = len(resolution.Eligible)
		model.ExcludedCount = resolution.ExcludedCount()
		model.VirtualExcludedCount = resolution.ExcludedVirtual
		model.MissingExcludedCount = resolution.ExcludedMissing

		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to insert campaign: %w", err)
		}

		if len(resolution.Eligible) > 0 {
			records := make([]DispatchRecordModel, 0, len(resolution.Eligible))
			for _, recipient := range resolution.Eligible {
				records = append(records, DispatchRecordModel{
					ID:              uuid.NewString(),
					CampaignID:      model.ID,
					RecipientUserID: recipient.UserID,
					Address:         recipient.Address,
					Status:          domain.RecordStatusPending,
				})
			}
			if err := tx.CreateInBatches(&records, recordInsertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert dispatch records: %w", err)
			}
		}

		created = campaignModelToDomain(model)
		return nil
	})
	if err != nil {
		return nil, domain.Resolution{}, err
	}

	return created, resolution, nil
}

// loadRegistrants joins registrations to users inside the creation
// transaction so the address snapshot matches the campaign exactly. The
// left join keeps registrations whose user row is gone; they surface as
// missing addresses.
func loadRegistrants(tx *gorm.DB, eventID string) ([]domain.Registrant, error) {
	var rows []registrantRow
	err := tx.Table("registrations").
		Select("registrations.user_id AS user_id, COALESCE(users.email, '') AS address").
		Joins("LEFT JOIN users ON users.id = registrations.user_id").
		Where("registrations.event_id = ?", eventID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	registrants := make([]domain.Registrant, 0, len(rows))
	for _, row := range rows {
		registrants = append(registrants, domain.Registrant{
			UserID:  row.UserID,
			Address: row.Address,
		})
	}
	return registrants, nil
}
