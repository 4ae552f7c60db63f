// Package identity maps verified token claims onto local users.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/claims"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/config"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/models"
)

// Via tells which authentication path produced the claims.
type Via int

const (
	// ViaOIDC is a bearer token verified against a configured issuer.
	ViaOIDC Via = iota
	// ViaOther is any other source, such as a login pipeline.
	ViaOther
)

// maxUsernameSuffix bounds the search for a free username.
const maxUsernameSuffix = 100

// Resolver creates or updates the user of a set of verified claims.
type Resolver struct {
	db *gorm.DB

	mu  sync.RWMutex
	cfg config.TokenAuth
}

// NewResolver returns a resolver storing users in db.
func NewResolver(db *gorm.DB, cfg config.TokenAuth) (*Resolver, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	return &Resolver{db: db, cfg: cfg.WithDefaults()}, nil
}

// Reload replaces the group claim and migration settings.
func (r *Resolver) Reload(cfg config.TokenAuth) {
	r.mu.Lock()
	r.cfg = cfg.WithDefaults()
	r.mu.Unlock()
}

func (r *Resolver) settings() config.TokenAuth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.cfg
}

// ResolveUser resolves claims of a verified bearer token.
func (r *Resolver) ResolveUser(ctx context.Context, c claims.Claims) (*models.User, error) {
	return r.Resolve(ctx, c, ViaOIDC)
}

// Resolve returns the user of c, creating it on first sight.
//
// Creation races with a concurrent request for the same subject surface as a
// unique key violation, the whole step is then retried exactly once.
func (r *Resolver) Resolve(ctx context.Context, c claims.Claims, via Via) (*models.User, error) {
	id, err := SubjectUUID(c)
	if err != nil {
		return nil, err
	}

	cfg := r.settings()

	user, err := r.resolve(ctx, id, c, via, cfg)
	if err != nil && isDuplicateKey(err) {
		log.Debug().Err(err).Str("uuid", id.String()).Msg("concurrent user creation, retrying")

		return r.resolve(ctx, id, c, via, cfg)
	}

	return user, err
}

func (r *Resolver) resolve(
	ctx context.Context,
	id uuid.UUID,
	c claims.Claims,
	via Via,
	cfg config.TokenAuth,
) (*models.User, error) {
	var user models.User

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created := false

		err := tx.Where("uuid = ?", id).Take(&user).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			migrated, err := MigrateUser(tx, id, c, cfg)
			if err != nil {
				return err
			}

			if migrated != nil {
				user = *migrated

				break
			}

			username, err := freeUsername(tx, UUIDToUsername(id))
			if err != nil {
				return err
			}

			user = models.User{
				UUID:     id,
				Username: username,
				Password: models.UnusablePassword(),
				Active:   true,
			}
			created = true
		case err != nil:
			return fmt.Errorf("failed to query user: %w", err)
		}

		changed := decodeProfile(c).apply(&user)

		switch {
		case created:
			if err := tx.Create(&user).Error; err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}

			log.Info().Str("uuid", id.String()).Str("username", user.Username).Msg("user created from token")
		case changed:
			if err := tx.Save(&user).Error; err != nil {
				return fmt.Errorf("failed to update user: %w", err)
			}
		}

		groups, ok := claims.StringList(c[adGroupsField(cfg, via)])
		if !ok {
			return nil
		}

		return UpdateADGroups(tx, &user, groups)
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func adGroupsField(cfg config.TokenAuth, via Via) string {
	if via == ViaOIDC {
		return cfg.ADGroupsField
	}

	return config.DefaultADGroupsField
}

// freeUsername returns base, or base with the first free "-N" suffix when
// another user already holds it.
func freeUsername(tx *gorm.DB, base string) (string, error) {
	candidate := base

	for i := 1; i <= maxUsernameSuffix; i++ {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}

		if count == 0 {
			return candidate, nil
		}

		candidate = fmt.Sprintf("%s-%d", base, i)
	}

	return "", fmt.Errorf("%w: %s", ErrNoFreeUsername, base)
}

// isDuplicateKey reports a unique constraint violation. Drivers without
// gorm's error translation are matched on their messages.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	msg := err.Error()

	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}
