package models

import "time"

// UserGroup is the junction between users and local groups.
type UserGroup struct {
	// UserID is the ID of the user in this membership.
	UserID uint64 `gorm:"primaryKey;column:user_id"`
	// GroupID is the ID of the group in this membership.
	GroupID uint `gorm:"primaryKey;column:group_id"`
	// User is the associated user, memberships go away with it.
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	// Group is the associated group, memberships go away with it.
	Group Group `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	// CreatedAt is the timestamp when the user was added to the group (managed by GORM).
	CreatedAt time.Time
}

// TableName specifies the database table name for the UserGroup model.
func (UserGroup) TableName() string {
	return "user_groups"
}
