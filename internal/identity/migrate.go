package identity

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/claims"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/config"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/models"
)

// MigrateUser moves an existing user onto the subject newID when the identity
// provider of that user changed. It returns the migrated user, or nil when
// any precondition fails:
//
//   - migration is enabled
//   - one of the token's amr values is allowed
//   - the domain of the token's email is allowed
//   - exactly one user has that email
//   - that user still carries the username generated from its old UUID
func MigrateUser(tx *gorm.DB, newID uuid.UUID, c claims.Claims, cfg config.TokenAuth) (*models.User, error) {
	if !cfg.UserMigrateEnabled {
		return nil, nil //nolint:nilnil
	}

	amrs := claims.StringOrList(c["amr"])
	if !slices.ContainsFunc(amrs, func(amr string) bool { return slices.Contains(cfg.UserMigrateAMRs, amr) }) {
		return nil, nil //nolint:nilnil
	}

	email, _ := c.String("email")

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return nil, nil //nolint:nilnil
	}

	domain := email[at+1:]
	if !slices.ContainsFunc(cfg.UserMigrateEmailDomains, func(d string) bool { return strings.EqualFold(d, domain) }) {
		return nil, nil //nolint:nilnil
	}

	var candidates []models.User
	if err := tx.Where("LOWER(email) = ?", strings.ToLower(email)).Limit(2).Find(&candidates).Error; err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to query migration candidates: %w", err)
	}

	if len(candidates) != 1 {
		return nil, nil //nolint:nilnil
	}

	user := candidates[0]
	if !IsGeneratedUsername(user.Username, user.UUID) {
		return nil, nil //nolint:nilnil
	}

	oldID := user.UUID
	user.UUID = newID
	user.Username = UUIDToUsername(newID)

	if err := tx.Model(&user).Updates(map[string]any{"uuid": user.UUID, "username": user.Username}).Error; err != nil {
		return nil, fmt.Errorf("failed to migrate user %d: %w", user.ID, err)
	}

	log.Info().
		Uint64("user_id", user.ID).
		Str("old_uuid", oldID.String()).
		Str("new_uuid", newID.String()).
		Msg("migrated user to new subject")

	return &user, nil
}
