// Package models contains the gorm models of the principal store.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnusablePasswordPrefix marks a password that can never match.
// Principals created from tokens never authenticate with a local password.
const UnusablePasswordPrefix = "!"

// User is a principal materialised from verified token claims.
// UUID is the external identity key, Username is derived from it when the
// principal is created.
type User struct {
	// ID is the unique identifier for the user.
	ID uint64 `gorm:"primaryKey"`
	// UUID is the normalized external subject identifier.
	UUID uuid.UUID `gorm:"type:varchar(36);uniqueIndex;not null"`
	// Username is the unique username, "u-" + base32(UUID) for token provisioned users.
	Username string `gorm:"unique;size:150;not null"`
	// Password is always unusable for token provisioned users.
	Password string `gorm:"size:255"`
	// FirstName is the user's first or given name.
	FirstName string `gorm:"size:150"`
	// LastName is the user's last or family name.
	LastName string `gorm:"size:150"`
	// Email is the user's email address.
	Email string `gorm:"size:254;index"`
	// DepartmentName is the organisational unit reported by the identity provider.
	DepartmentName string `gorm:"size:50"`
	// Active indicates whether the user account is active.
	Active bool `gorm:"not null;default:true"`
	// CreatedAt is the timestamp when the user was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the user was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the User model.
func (User) TableName() string {
	return "users"
}

// UnusablePassword returns a password value that no input can match.
func UnusablePassword() string {
	return UnusablePasswordPrefix + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// HasUsablePassword reports whether a local password is set.
func (u *User) HasUsablePassword() bool {
	return u.Password != "" && !strings.HasPrefix(u.Password, UnusablePasswordPrefix)
}

// DisplayName is "first last" when both are known, the email address otherwise.
func (u *User) DisplayName() string {
	if u.FirstName != "" && u.LastName != "" {
		return strings.TrimSpace(u.FirstName + " " + u.LastName)
	}

	return u.Email
}

// ShortName is the first name, falling back to the email address.
func (u *User) ShortName() string {
	if u.FirstName != "" {
		return u.FirstName
	}

	return u.Email
}

// PublicUsername hides generated usernames behind the email address when one is known.
func (u *User) PublicUsername(generated func(uuid.UUID) string) string {
	if u.Email != "" && generated != nil && u.Username == generated(u.UUID) {
		return u.Email
	}

	return u.Username
}
