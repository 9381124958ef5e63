package repository

import (
	"context"
	"time"

	"github.com/eventline/comms-engine/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RecordRepository interface {
	GetPendingByCampaign(ctx context.Context, campaignID string) ([]domain.DispatchRecord, error)
	GetPendingByIDs(ctx context.Context, ids []string) ([]domain.DispatchRecord, error)
	ListByCampaign(ctx context.Context, campaignID string, params ListParams) ([]domain.DispatchRecord, int64, error)
	MarkSent(ctx context.Context, id string, providerMessageID string, sentAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, id string, errorMessage string) (bool, error)
	RequeueFailed(ctx context.Context, campaignID string) ([]string, error)
	SummaryByCampaign(ctx context.Context, campaignID string) ([]StatusSummary, error)
	StalePendingCampaignIDs(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
}

type GormRecordRepo struct {
	db *gorm.DB
}

func NewGormRecordRepo(db *gorm.DB) *GormRecordRepo {
	return &GormRecordRepo{db: db}
}

func (r *GormRecordRepo) GetPendingByCampaign(ctx context.Context, campaignID string) ([]domain.DispatchRecord, error) {
	var models []DispatchRecordModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, domain.RecordStatusPending).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return recordModelsToDomain(models), nil
}

func (r *GormRecordRepo) GetPendingByIDs(ctx context.Context, ids []string) ([]domain.DispatchRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var models []DispatchRecordModel
	err := r.db.WithContext(ctx).
		Where("id IN ? AND status = ?", ids, domain.RecordStatusPending).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return recordModelsToDomain(models), nil
}

func (r *GormRecordRepo) ListByCampaign(ctx context.Context, campaignID string, params ListParams) ([]domain.DispatchRecord, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&DispatchRecordModel{}).
		Where("campaign_id = ?", campaignID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := params.normalized()

	var models []DispatchRecordModel
	err := query.
		Order("created_at ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	return recordModelsToDomain(models), total, nil
}

// MarkSent advances a record PENDING -> SENT. The status guard in the WHERE
// clause makes the transition a compare-and-set: a false return means the
// record was no longer PENDING at write time and nothing was stored.
func (r *GormRecordRepo) MarkSent(ctx context.Context, id string, providerMessageID string, sentAt time.Time) (bool, error) {
	updates := map[string]any{
		"status":        domain.RecordStatusSent,
		"sent_at":       sentAt,
		"error_message": nil,
	}
	if providerMessageID != "" {
		updates["provider_message_id"] = providerMessageID
	}

	result := r.db.WithContext(ctx).
		Model(&DispatchRecordModel{}).
		Where("id = ? AND status = ?", id, domain.RecordStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkFailed advances a record PENDING -> FAILED with the same guard as
// MarkSent. A record that already reached SENT is never overwritten.
func (r *GormRecordRepo) MarkFailed(ctx context.Context, id string, errorMessage string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&DispatchRecordModel{}).
		Where("id = ? AND status = ?", id, domain.RecordStatusPending).
		Updates(map[string]any{
			"status":        domain.RecordStatusFailed,
			"error_message": errorMessage,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// RequeueFailed flips every FAILED record of a campaign back to PENDING in
// one conditional update and returns exactly the IDs it touched. Records in
// any other state are untouched, so a retry can race the original dispatch
// without ever reopening a SENT record.
func (r *GormRecordRepo) RequeueFailed(ctx context.Context, campaignID string) ([]string, error) {
	var requeued []DispatchRecordModel
	result := r.db.WithContext(ctx).
		Model(&requeued).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}}}).
		Where("campaign_id = ? AND status = ?", campaignID, domain.RecordStatusFailed).
		Updates(map[string]any{
			"status":        domain.RecordStatusPending,
			"error_message": nil,
		})
	if result.Error != nil {
		return nil, result.Error
	}

	ids := make([]string, 0, len(requeued))
	for i := range requeued {
		ids = append(ids, requeued[i].ID)
	}
	return ids, nil
}

func (r *GormRecordRepo) SummaryByCampaign(ctx context.Context, campaignID string) ([]StatusSummary, error) {
	var summaries []StatusSummary
	err := r.db.WithContext(ctx).
		Model(&DispatchRecordModel{}).
		Select("status, COUNT(*) as count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// StalePendingCampaignIDs finds campaigns still holding PENDING records
// last touched before the cutoff. These are dispatch passes lost to a
// crash; the sweeper re-enqueues them.
func (r *GormRecordRepo) StalePendingCampaignIDs(ctx context.Context, olderThan time.Time, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&DispatchRecordModel{}).
		Distinct("campaign_id").
		Where("status = ? AND updated_at < ?", domain.RecordStatusPending, olderThan).
		Limit(limit).
		Pluck("campaign_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func recordModelsToDomain(models []DispatchRecordModel) []domain.DispatchRecord {
	records := make([]domain.DispatchRecord, 0, len(models))
	for i := range models {
		records = append(records, *recordModelToDomain(&models[i]))
	}
	return records
}
