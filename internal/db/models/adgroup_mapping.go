package models

import "time"

// ADGroupMapping grants membership of a local group to every member of an AD group.
// A (group, AD group) pair can only be mapped once.
type ADGroupMapping struct {
	// ID is the unique identifier for the mapping.
	ID uint `gorm:"primaryKey"`
	// GroupID is the local group granted by the mapping.
	GroupID uint `gorm:"not null;uniqueIndex:idx_group_ad_group"`
	// ADGroupID is the AD group whose members receive GroupID.
	ADGroupID uint `gorm:"column:ad_group_id;not null;uniqueIndex:idx_group_ad_group"`
	// Group is the associated group, removed mappings follow the group (CASCADE).
	Group Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	// ADGroup is the associated AD group (CASCADE).
	ADGroup ADGroup `gorm:"foreignKey:ADGroupID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the mapping was created (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the ADGroupMapping model.
func (ADGroupMapping) TableName() string {
	return "ad_group_mappings"
}
