package repository

import (
	"context"
	"errors"

	"github.com/eventline/comms-engine/internal/domain"
	"gorm.io/gorm"
)

// ListParams is offset pagination shared by campaign and record listings.
type ListParams struct {
	Page     int
	PageSize int
}

func (p ListParams) normalized() (page int, pageSize int) {
	page = max(p.Page, 1)
	pageSize = p.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	pageSize = min(pageSize, 100)
	return page, pageSize
}

// StatusSummary is one GROUP BY status row over a campaign's records.
type StatusSummary struct {
	Status domain.RecordStatus `gorm:"column:status"`
	Count  int                 `gorm:"column:count"`
}

type CampaignRepository interface {
	CountActive(ctx context.Context, eventID string) (int64, error)
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	ListByEvent(ctx context.Context, eventID string, params ListParams) ([]domain.Campaign, int64, error)
	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error
}

type GormCampaignRepo struct {
	db *gorm.DB
}

func NewGormCampaignRepo(db *gorm.DB) *GormCampaignRepo {
	return &GormCampaignRepo{db: db}
}

// CountActive counts non-deleted campaigns for an event. The soft-delete
// scope on CampaignModel keeps deleted campaigns out of the quota.
func (r *GormCampaignRepo) CountActive(ctx context.Context, eventID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormCampaignRepo) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	var model CampaignModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return campaignModelToDomain(&model), nil
}

func (r *GormCampaignRepo) ListByEvent(ctx context.Context, eventID string, params ListParams) ([]domain.Campaign, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("event_id = ?", eventID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := params.normalized()

	var models []CampaignModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	campaigns := make([]domain.Campaign, 0, len(models))
	for i := range models {
		campaigns = append(campaigns, *campaignModelToDomain(&models[i]))
	}

	return campaigns, total, nil
}

func (r *GormCampaignRepo) UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error {
	result := r.db.WithContext(ctx).
		Model(&CampaignModel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
