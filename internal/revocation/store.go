// Package revocation records OIDC back-channel logout events and answers
// whether the session of a token has been terminated.
package revocation

import (
	"context"
	"errors"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/claims"
)

var (
	// ErrStoreNil is returned when a nil store is used.
	ErrStoreNil = errors.New("revocation store is nil")
	// ErrIssuerEmpty is returned when an event without issuer is recorded.
	ErrIssuerEmpty = errors.New("logout event issuer cannot be empty")
)

// Store keeps logout events unique on (issuer, subject, session id).
// Record is idempotent: recording an existing event is a silent no-op.
type Store interface {
	Record(ctx context.Context, issuer, subject, sessionID string) error
	IsTerminated(ctx context.Context, issuer, sessionID string) (bool, error)
}

// Token is the part of a verified token revocation needs.
type Token interface {
	IssuerName() string
	ClaimSet() claims.Claims
}

// IsTokenTerminated reports whether the session the token belongs to was logged out.
// Only tokens with a non-empty sid claim can be terminated. A logout event that
// carried only sub never matches here.
func IsTokenTerminated(ctx context.Context, store Store, token Token) (bool, error) {
	if store == nil {
		return false, ErrStoreNil
	}

	sid, _ := token.ClaimSet().String("sid")
	if sid == "" {
		return false, nil
	}

	return store.IsTerminated(ctx, token.IssuerName(), sid)
}
