package revocation

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/models"
)

// GormStore keeps logout events in the logout_events table.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore returns a store on db. The logout_events table must be migrated.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Record inserts the event, relying on the unique index to drop duplicates.
func (s *GormStore) Record(ctx context.Context, issuer, subject, sessionID string) error {
	if issuer == "" {
		return ErrIssuerEmpty
	}

	event := models.LogoutEvent{Iss: issuer, Sub: subject, Sid: sessionID}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&event).Error
	if err != nil {
		return fmt.Errorf("failed to record logout event: %w", err)
	}

	return nil
}

// IsTerminated reports whether a logout event exists for (issuer, sessionID).
func (s *GormStore) IsTerminated(ctx context.Context, issuer, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}

	var count int64

	err := s.db.WithContext(ctx).
		Model(&models.LogoutEvent{}).
		Where("iss = ? AND sid = ?", issuer, sessionID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to query logout events: %w", err)
	}

	return count > 0, nil
}

// Events lists the recorded events of an issuer, oldest first.
func (s *GormStore) Events(ctx context.Context, issuer string) ([]models.LogoutEvent, error) {
	var events []models.LogoutEvent

	err := s.db.WithContext(ctx).
		Where("iss = ?", issuer).
		Order("id").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list logout events: %w", err)
	}

	return events, nil
}
