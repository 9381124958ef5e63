package repository

import (
	"time"

	"github.com/eventline/comms-engine/internal/domain"
	"gorm.io/gorm"
)

// CampaignModel is the persistence model for the campaigns table.
type CampaignModel struct {
	ID          string                `gorm:"type:uuid;primaryKey"`
	EventID     string                `gorm:"type:uuid;not null"`
	SentBy      string                `gorm:"type:uuid;not null"`
	Channel     domain.Channel        `gorm:"type:varchar(10);not null"`
	Subject     string                `gorm:"type:varchar(200);not null"`
	Body        string                `gorm:"type:text;not null"`
	ScheduledAt *time.Time            `gorm:"type:timestamptz"`
	Status      domain.CampaignStatus `gorm:"type:varchar(20);not null"`

	TotalRegistrations   int `gorm:"not null"`
	ValidRecipientsCount int `gorm:"not null"`
	ExcludedCount        int `gorm:"not null"`
	VirtualExcludedCount int `gorm:"not null"`
	MissingExcludedCount int `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (CampaignModel) TableName() string {
	return "campaigns"
}

// DispatchRecordModel is the persistence model for dispatch_records.
type DispatchRecordModel struct {
	ID              string              `gorm:"type:uuid;primaryKey"`
	CampaignID      string              `gorm:"type:uuid;not null;uniqueIndex:idx_records_campaign_recipient"`
	RecipientUserID string              `gorm:"type:uuid;not null;uniqueIndex:idx_records_campaign_recipient"`
	Address         string              `gorm:"type:varchar(255);not null"`
	Status          domain.RecordStatus `gorm:"type:varchar(10);not null"`

	ErrorMessage      *string    `gorm:"type:text"`
	ProviderMessageID *string    `gorm:"type:varchar(255)"`
	SentAt            *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DispatchRecordModel) TableName() string {
	return "dispatch_records"
}

// EventModel mirrors the platform events table this engine reads.
type EventModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	OwnerID   string `gorm:"type:uuid;not null"`
	Title     string `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time
}

func (EventModel) TableName() string {
	return "events"
}

// UserModel mirrors the platform users table this engine reads.
type UserModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Name      string `gorm:"type:varchar(255);not null"`
	Email     string `gorm:"type:varchar(255)"`
	CreatedAt time.Time
}

func (UserModel) TableName() string {
	return "users"
}

// RegistrationModel mirrors the platform registrations table.
type RegistrationModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	EventID   string `gorm:"type:uuid;not null;index"`
	UserID    string `gorm:"type:uuid;not null"`
	CreatedAt time.Time
}

func (RegistrationModel) TableName() string {
	return "registrations"
}

// AdminGrantModel mirrors the platform admin_grants table.
type AdminGrantModel struct {
	ID                   string `gorm:"type:uuid;primaryKey"`
	EventID              string `gorm:"type:uuid;not null;index"`
	UserID               string `gorm:"type:uuid;not null"`
	CanEdit              bool   `gorm:"not null"`
	CanManageRegistrants bool   `gorm:"not null"`
	CreatedAt            time.Time
}

func (AdminGrantModel) TableName() string {
	return "admin_grants"
}

func campaignModelFromDomain(c *domain.Campaign) *CampaignModel {
	if c == nil {
		return nil
	}

	return &CampaignModel{
		ID:                   c.ID,
		EventID:              c.EventID,
		SentBy:               c.SentBy,
		Channel:              c.Channel,
		Subject:              c.Subject,
		Body:                 c.Body,
		ScheduledAt:          c.ScheduledAt,
		Status:               c.Status,
		TotalRegistrations:   c.TotalRegistrations,
		ValidRecipientsCount: c.ValidRecipientsCount,
		ExcludedCount:        c.ExcludedCount,
		VirtualExcludedCount: c.VirtualExcludedCount,
		MissingExcludedCount: c.MissingExcludedCount,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
		DeletedAt:            c.DeletedAt,
	}
}

func campaignModelToDomain(m *CampaignModel) *domain.Campaign {
	if m == nil {
		return nil
	}

	return &domain.Campaign{
		ID:                   m.ID,
		EventID:              m.EventID,
		SentBy:               m.SentBy,
		Channel:              m.Channel,
		Subject:              m.Subject,
		Body:                 m.Body,
		ScheduledAt:          m.ScheduledAt,
		Status:               m.Status,
		TotalRegistrations:   m.TotalRegistrations,
		ValidRecipientsCount: m.ValidRecipientsCount,
		ExcludedCount:        m.ExcludedCount,
		VirtualExcludedCount: m.VirtualExcludedCount,
		MissingExcludedCount: m.MissingExcludedCount,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
		DeletedAt:            m.DeletedAt,
	}
}

func recordModelToDomain(m *DispatchRecordModel) *domain.DispatchRecord {
	if m == nil {
		return nil
	}

	return &domain.DispatchRecord{
		ID:                m.ID,
		CampaignID:        m.CampaignID,
		RecipientUserID:   m.RecipientUserID,
		Address:           m.Address,
		Status:            m.Status,
		ErrorMessage:      m.ErrorMessage,
		ProviderMessageID: m.ProviderMessageID,
		SentAt:            m.SentAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func eventModelToDomain(m *EventModel) *domain.Event {
	if m == nil {
		return nil
	}

	return &domain.Event{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Title:     m.Title,
		CreatedAt: m.CreatedAt,
	}
}
