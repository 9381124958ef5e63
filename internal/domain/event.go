package domain

import "time"

// Event is the read-only slice of the platform event this engine needs:
// identity and ownership for authorization checks.
type Event struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	OwnerID   string `gorm:"type:uuid;not null"`
	Title     string `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time
}

// AdminGrant is an admin delegation on an event. Campaign operations
// require both the edit and registration-management rights.
type AdminGrant struct {
	ID                   string `gorm:"type:uuid;primaryKey"`
	EventID              string `gorm:"type:uuid;not null"`
	UserID               string `gorm:"type:uuid;not null"`
	CanEdit              bool   `gorm:"not null"`
	CanManageRegistrants bool   `gorm:"not null"`
	CreatedAt            time.Time
}
