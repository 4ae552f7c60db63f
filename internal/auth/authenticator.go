package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/claims"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/config"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/models"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/revocation"
)

// ErrInvalidPayload is returned when a verified token has no subject.
var ErrInvalidPayload = errors.New("invalid payload: missing sub")

var authentications = promauto.NewCounterVec( //nolint:gochecknoglobals
	prometheus.CounterOpts{
		Name: "oidc_authentications_total",
		Help: "Bearer token authentication attempts by result.",
	},
	[]string{"result"},
)

// UserResolver maps verified claims onto a local principal.
type UserResolver interface {
	ResolveUser(ctx context.Context, c claims.Claims) (*models.User, error)
}

// UserResolverFunc adapts a function to UserResolver.
type UserResolverFunc func(ctx context.Context, c claims.Claims) (*models.User, error)

// ResolveUser calls f.
func (f UserResolverFunc) ResolveUser(ctx context.Context, c claims.Claims) (*models.User, error) {
	return f(ctx, c)
}

// Result is a successful authentication.
type Result struct {
	User          *models.User
	Authorization *Authorization
	Token         *VerifiedToken
}

type settings struct {
	scheme        string
	requireScope  bool
	scopeFields   []string
	scopePrefixes []string
	adGroupsField string
	leeway        time.Duration
}

func newSettings(cfg config.TokenAuth) settings {
	cfg = cfg.WithDefaults()

	return settings{
		scheme:        cfg.AuthScheme,
		requireScope:  cfg.RequireAPIScopeForAuthentication,
		scopeFields:   slices.Clone(cfg.APIAuthorizationField),
		scopePrefixes: slices.Clone(cfg.APIScopePrefix),
		adGroupsField: cfg.ADGroupsField,
		leeway:        cfg.LeewayDuration(),
	}
}

// Authenticator authenticates requests carrying a bearer JWT.
type Authenticator struct {
	registry    *Registry
	revocations revocation.Store
	users       UserResolver
	now         func() time.Time

	mu       sync.RWMutex
	settings settings
}

// NewAuthenticator wires the authentication pipeline.
func NewAuthenticator(
	cfg config.TokenAuth,
	registry *Registry,
	revocations revocation.Store,
	users UserResolver,
) *Authenticator {
	return &Authenticator{
		registry:    registry,
		revocations: revocations,
		users:       users,
		now:         time.Now,
		settings:    newSettings(cfg),
	}
}

// Reload applies new settings and rebuilds the issuer registry.
func (a *Authenticator) Reload(cfg config.TokenAuth) {
	s := newSettings(cfg)

	a.mu.Lock()
	a.settings = s
	a.mu.Unlock()

	a.registry.Reload(cfg)
}

func (a *Authenticator) current() settings {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.settings
}

// Registry returns the issuer registry.
func (a *Authenticator) Registry() *Registry {
	return a.registry
}

// AuthenticateHeader is the WWW-Authenticate challenge for 401 responses.
func (a *Authenticator) AuthenticateHeader() string {
	return a.current().scheme + ` realm="api"`
}

// CheckCredentials authenticates the header and returns only the principal.
func (a *Authenticator) CheckCredentials(ctx context.Context, header string) (*models.User, error) {
	res, err := a.Authenticate(ctx, header)
	if err != nil || res == nil {
		return nil, err
	}

	return res.User, nil
}

// Authenticate runs the pipeline for an Authorization header value.
//
// It returns (nil, nil) when the header is empty or uses another scheme so that a
// different mechanism can handle the request. Authentication failures are *AuthError.
// Any other error comes from the revocation store or the user resolver.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*Result, error) {
	s := a.current()

	parts := strings.Fields(header)
	if len(parts) == 0 || !strings.EqualFold(parts[0], s.scheme) {
		authentications.WithLabelValues("abstain").Inc()
		return nil, nil //nolint:nilnil
	}

	if len(parts) != 2 { //nolint:mnd
		return nil, a.fail("malformed_header", ErrMalformedHeader, nil)
	}

	token, err := a.verify(ctx, parts[1], nil, s.leeway)
	if err != nil {
		// issuer and audience problems reveal nothing secret and are reported as such
		switch {
		case errors.Is(err, ErrUnknownIssuer):
			return nil, a.fail("unknown_issuer", ErrUnknownIssuer, err)
		case errors.Is(err, ErrMissingClaim):
			return nil, a.fail("missing_issuer", ErrMissingClaim, err)
		case errors.Is(err, ErrInvalidAudience):
			return nil, a.fail("invalid_audience", ErrInvalidAudience, err)
		}

		if errors.Is(err, ErrKeyFetch) {
			log.Error().Err(err).Msg("signing keys unavailable")
		}

		return nil, a.fail("verification_failed", ErrVerificationFailed, err)
	}

	terminated, err := revocation.IsTokenTerminated(ctx, a.revocations, token)
	if err != nil {
		authentications.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("revocation check: %w", err)
	}

	if terminated {
		return nil, a.fail("session_revoked", ErrSessionRevoked, nil)
	}

	authz := NewAuthorization(token.Claims, s.scopeFields, s.adGroupsField)

	if s.requireScope && !authz.HasAnyAPIScopeWithPrefix(s.scopePrefixes...) {
		return nil, a.fail("scope_not_authorized", ErrScopeNotAuthorized, nil)
	}

	if sub, _ := token.Claims.String("sub"); sub == "" {
		return nil, a.fail("invalid_payload", ErrInvalidPayload, nil)
	}

	user, err := a.users.ResolveUser(ctx, token.Claims)
	if err != nil {
		authentications.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	authentications.WithLabelValues("success").Inc()
	log.Debug().Str("issuer", token.Issuer).Str("username", user.Username).Msg("token authenticated")

	return &Result{User: user, Authorization: authz, Token: token}, nil
}

// VerifyToken verifies a token issued by an accepted issuer for an accepted audience.
// requiredClaims nil means DefaultRequiredClaims. Errors are not normalized.
func (a *Authenticator) VerifyToken(ctx context.Context, encoded string, requiredClaims []string) (*VerifiedToken, error) {
	return a.verify(ctx, encoded, requiredClaims, a.current().leeway)
}

func (a *Authenticator) verify(
	ctx context.Context,
	encoded string,
	requiredClaims []string,
	leeway time.Duration,
) (*VerifiedToken, error) {
	unverified, err := Parse(encoded)
	if err != nil {
		return nil, err
	}

	issuer, err := Issuer(unverified)
	if err != nil {
		return nil, err
	}

	source, err := a.registry.Resolve(issuer)
	if err != nil {
		return nil, err
	}

	keys, err := source.Keys(ctx)
	if err != nil {
		return nil, err
	}

	return Verify(encoded, keys, a.registry.Audiences(), VerifyOptions{
		RequiredClaims: requiredClaims,
		Leeway:         leeway,
		Now:            a.now,
	})
}

func (a *Authenticator) fail(result string, kind, cause error) *AuthError {
	authentications.WithLabelValues(result).Inc()

	ev := log.Debug().Str("result", result)
	if cause != nil {
		ev = ev.Err(cause)
	}

	ev.Msg("bearer authentication failed")

	return &AuthError{Kind: kind, Cause: cause}
}
