package models

// ADGroup is an externally managed group name as reported in token claims.
// Name is stored lowercased so lookups are case-insensitive.
type ADGroup struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:200;uniqueIndex;not null"`
	DisplayName string `gorm:"size:200"`
}

// TableName specifies the database table name for the ADGroup model.
func (ADGroup) TableName() string {
	return "ad_groups"
}

// UserADGroup is the junction between users and AD groups.
type UserADGroup struct {
	UserID    uint64  `gorm:"primaryKey;column:user_id"`
	ADGroupID uint    `gorm:"primaryKey;column:ad_group_id"`
	User      User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ADGroup   ADGroup `gorm:"foreignKey:ADGroupID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the database table name for the UserADGroup model.
func (UserADGroup) TableName() string {
	return "user_ad_groups"
}
