package models

import "time"

// LogoutEvent records a validated OIDC back-channel logout.
// Rows are immutable and unique on (Iss, Sub, Sid). A missing sub or sid is stored as "".
type LogoutEvent struct {
	ID        uint64    `gorm:"primaryKey"`
	Iss       string    `gorm:"size:255;not null;uniqueIndex:idx_logout_iss_sub_sid;index:idx_logout_iss_sid,priority:1"`
	Sub       string    `gorm:"size:255;not null;uniqueIndex:idx_logout_iss_sub_sid"`
	Sid       string    `gorm:"size:255;not null;uniqueIndex:idx_logout_iss_sub_sid;index:idx_logout_iss_sid,priority:2"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName specifies the database table name for the LogoutEvent model.
func (LogoutEvent) TableName() string {
	return "logout_events"
}
