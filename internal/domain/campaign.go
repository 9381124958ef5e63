package domain

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// CampaignStatus represents the derived lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusSending         CampaignStatus = "SENDING"
	CampaignStatusSent            CampaignStatus = "SENT"
	CampaignStatusPartiallyFailed CampaignStatus = "PARTIALLY_FAILED"
	CampaignStatusFailed          CampaignStatus = "FAILED"
)

func (s CampaignStatus) String() string { return string(s) }

func (s CampaignStatus) IsValid() bool {
	switch s {
	case CampaignStatusSending, CampaignStatusSent, CampaignStatusPartiallyFailed, CampaignStatusFailed:
		return true
	}
	return false
}

// Channel represents the delivery channel.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToUpper(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Content limits per campaign (in characters).
const (
	MaxSubjectLength = 200
	MaxBodyLength    = 2000
)

// MaxCampaignsPerEvent is the fixed lifetime quota of non-deleted campaigns
// an event may create.
const MaxCampaignsPerEvent = 8

// Campaign is one bulk-communication request scoped to a single event.
// The recipient counters are a snapshot fixed at creation time and are
// never recomputed afterwards.
type Campaign struct {
	ID          string         `gorm:"type:uuid;primaryKey"`
	EventID     string         `gorm:"type:uuid;not null"`
	SentBy      string         `gorm:"type:uuid;not null"`
	Channel     Channel        `gorm:"type:varchar(10);not null"`
	Subject     string         `gorm:"type:varchar(200);not null"`
	Body        string         `gorm:"type:text;not null"`
	ScheduledAt *time.Time     `gorm:"type:timestamptz"`
	Status      CampaignStatus `gorm:"type:varchar(20);not null"`

	TotalRegistrations    int `gorm:"not null"`
	ValidRecipientsCount  int `gorm:"not null"`
	ExcludedCount         int `gorm:"not null"`
	VirtualExcludedCount  int `gorm:"not null"`
	MissingExcludedCount  int `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.EventID) == "" {
		return fmt.Errorf("%w: event id is required", ErrValidation)
	}
	if strings.TrimSpace(c.SentBy) == "" {
		return fmt.Errorf("%w: sender id is required", ErrValidation)
	}
	if !c.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, c.Channel)
	}
	if c.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if c.Body == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}

	if subjectLen := len([]rune(c.Subject)); subjectLen > MaxSubjectLength {
		return fmt.Errorf("%w: subject exceeds %d characters (got %d)", ErrValidation, MaxSubjectLength, subjectLen)
	}
	if bodyLen := len([]rune(c.Body)); bodyLen > MaxBodyLength {
		return fmt.Errorf("%w: body exceeds %d characters (got %d)", ErrValidation, MaxBodyLength, bodyLen)
	}

	return nil
}

// QuotaStatus reports campaign quota usage for one event.
type QuotaStatus struct {
	Allowed   bool
	Remaining int
	Used      int
	Max       int
}

func NewQuotaStatus(used int, max int) QuotaStatus {
	remaining := max - used
	if remaining < 0 {
		remaining = 0
	}
	return QuotaStatus{
		Allowed:   used < max,
		Remaining: remaining,
		Used:      used,
		Max:       max,
	}
}
