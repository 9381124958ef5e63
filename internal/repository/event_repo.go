package repository

import (
	"context"
	"errors"

	"github.com/eventline/comms-engine/internal/domain"
	"gorm.io/gorm"
)

type EventRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	HasManageGrant(ctx context.Context, eventID string, userID string) (bool, error)
}

type GormEventRepo struct {
	db *gorm.DB
}

func NewGormEventRepo(db *gorm.DB) *GormEventRepo {
	return &GormEventRepo{db: db}
}

func (r *GormEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	var model EventModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return eventModelToDomain(&model), nil
}

// HasManageGrant reports whether the user holds an admin grant with both
// edit and registration-management rights on the event.
func (r *GormEventRepo) HasManageGrant(ctx context.Context, eventID string, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&AdminGrantModel{}).
		Where("event_id = ? AND user_id = ? AND can_edit AND can_manage_registrants", eventID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
