package models

import "time"

// Group is a local group. Memberships of groups reachable through an
// ADGroupMapping are maintained by AD group sync, other memberships are left alone.
type Group struct {
	// ID is the unique identifier for the group.
	ID uint `gorm:"primaryKey"`
	// Name is the unique group name.
	Name string `gorm:"size:150;uniqueIndex;not null"`
	// Description provides a human-readable explanation of the group's purpose.
	Description string `gorm:"size:255"`
	// CreatedAt is the timestamp when the group was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the group was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Group model.
func (Group) TableName() string {
	return "groups"
}
