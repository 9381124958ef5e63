package domain

import "time"

// RecordStatus represents the delivery state of a single dispatch record.
type RecordStatus string

const (
	RecordStatusPending RecordStatus = "PENDING"
	RecordStatusSent    RecordStatus = "SENT"
	RecordStatusFailed  RecordStatus = "FAILED"
)

func (s RecordStatus) String() string { return string(s) }

func (s RecordStatus) IsValid() bool {
	switch s {
	case RecordStatusPending, RecordStatusSent, RecordStatusFailed:
		return true
	}
	return false
}

// DispatchRecord is one per-recipient delivery-attempt record belonging to
// a campaign. The recipient id and address are snapshotted at campaign
// creation time and never re-resolved; status only advances through guarded
// conditional transitions, so a record that reached SENT is final.
type DispatchRecord struct {
	ID              string       `gorm:"type:uuid;primaryKey"`
	CampaignID      string       `gorm:"type:uuid;not null;uniqueIndex:idx_records_campaign_recipient"`
	RecipientUserID string       `gorm:"type:uuid;not null;uniqueIndex:idx_records_campaign_recipient"`
	Address         string       `gorm:"type:varchar(255);not null"`
	Status          RecordStatus `gorm:"type:varchar(10);not null"`

	ErrorMessage      *string    `gorm:"type:text"`
	ProviderMessageID *string    `gorm:"type:varchar(255)"`
	SentAt            *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
