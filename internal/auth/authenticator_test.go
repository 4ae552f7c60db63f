package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/claims"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/config"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/models"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/oidctest"
)

type memoryStore struct {
	mu       sync.Mutex
	sessions map[[2]string]bool
	err      error
}

func (s *memoryStore) Record(_ context.Context, issuer, _, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessions == nil {
		s.sessions = map[[2]string]bool{}
	}

	s.sessions[[2]string{issuer, sessionID}] = true

	return nil
}

func (s *memoryStore) IsTerminated(_ context.Context, issuer, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sessions[[2]string{issuer, sessionID}], s.err
}

type recordingResolver struct {
	calls int
}

func (r *recordingResolver) ResolveUser(_ context.Context, c claims.Claims) (*models.User, error) {
	r.calls++

	sub, _ := c.String("sub")

	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, err
	}

	return &models.User{UUID: id, Username: "u-" + sub}, nil
}

type fixture struct {
	provider      *oidctest.Provider
	authenticator *Authenticator
	store         *memoryStore
	resolver      *recordingResolver
	cfg           config.TokenAuth
}

func newFixture(t *testing.T, mutate func(*config.TokenAuth)) *fixture {
	t.Helper()

	provider := oidctest.NewProvider(t)

	cfg := config.TokenAuth{
		Audience: []string{testAudience},
		Issuer:   []string{provider.Issuer},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	store := &memoryStore{}
	resolver := &recordingResolver{}

	return &fixture{
		provider:      provider,
		authenticator: NewAuthenticator(cfg, NewRegistry(cfg, nil), store, resolver),
		store:         store,
		resolver:      resolver,
		cfg:           cfg,
	}
}

func (f *fixture) claims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss": f.provider.Issuer,
		"aud": testAudience,
		"exp": time.Now().Add(time.Minute).Unix(),
		"sub": testSubject,
		"sid": "session-1",
	}
}

func (f *fixture) bearer(t *testing.T, c jwt.MapClaims) string {
	t.Helper()

	return "Bearer " + f.provider.Sign(t, c)
}

func requireAuthError(t *testing.T, err error, kind error) *AuthError {
	t.Helper()

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.ErrorIs(t, err, kind)
	assert.Equal(t, kind.Error(), authErr.Error())

	return authErr
}

func TestAuthenticateSuccess(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.authenticator.Authenticate(context.Background(), f.bearer(t, f.claims()))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, uuid.MustParse(testSubject), res.User.UUID)
	assert.False(t, res.Authorization.ScopesKnown())
	assert.Empty(t, res.Authorization.Scopes())
	assert.Equal(t, f.provider.Issuer, res.Token.Issuer)
	assert.Equal(t, 1, f.resolver.calls)

	user, err := f.authenticator.CheckCredentials(context.Background(), f.bearer(t, f.claims()))
	require.NoError(t, err)
	assert.Equal(t, res.User.UUID, user.UUID)
}

func TestAuthenticateSchemeIsCaseInsensitive(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.authenticator.Authenticate(context.Background(), "bEaReR "+f.provider.Sign(t, f.claims()))
	require.NoError(t, err)
	require.NotNil(t, res)
}

func TestAuthenticateAbstains(t *testing.T) {
	f := newFixture(t, nil)

	for _, header := range []string{"", "   ", "Basic dXNlcjpwYXNz", "Basic a b c", "JWT token"} {
		res, err := f.authenticator.Authenticate(context.Background(), header)
		require.NoError(t, err, header)
		assert.Nil(t, res, header)
	}

	user, err := f.authenticator.CheckCredentials(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.Zero(t, f.resolver.calls)
}

func TestAuthenticateFailures(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*config.TokenAuth)
		header func(t *testing.T, f *fixture) string
		kind   error
		cause  error
	}{
		{
			name:   "scheme without credential",
			header: func(*testing.T, *fixture) string { return "Bearer" },
			kind:   ErrMalformedHeader,
		},
		{
			name:   "too many parts",
			header: func(*testing.T, *fixture) string { return "Bearer a b" },
			kind:   ErrMalformedHeader,
		},
		{
			name:   "not a jwt",
			header: func(*testing.T, *fixture) string { return "Bearer abc" },
			kind:   ErrVerificationFailed,
			cause:  ErrMalformedToken,
		},
		{
			name: "unknown issuer",
			header: func(t *testing.T, f *fixture) string {
				c := f.claims()
				c["iss"] = "https://unknown"
				return f.bearer(t, c)
			},
			kind: ErrUnknownIssuer,
		},
		{
			name: "missing issuer",
			header: func(t *testing.T, f *fixture) string {
				c := f.claims()
				delete(c, "iss")
				return f.bearer(t, c)
			},
			kind: ErrMissingClaim,
		},
		{
			name: "expired",
			header: func(t *testing.T, f *fixture) string {
				c := f.claims()
				c["exp"] = time.Now().Add(-time.Minute).Unix()
				return f.bearer(t, c)
			},
			kind:  ErrVerificationFailed,
			cause: ErrTokenExpired,
		},
		{
			name: "wrong audience",
			header: func(t *testing.T, f *fixture) string {
				c := f.claims()
				c["aud"] = []any{"other"}
				return f.bearer(t, c)
			},
			kind: ErrInvalidAudience,
		},
		{
			name: "missing exp",
			header: func(t *testing.T, f *fixture) string {
				c := f.claims()
				delete(c, "exp")
				return f.bearer(t, c)
			},
			kind:  ErrVerificationFailed,
			cause: ErrMissingRequiredClaim,
		},
		{
			name: "forged signature",
			header: func(t *testing.T, f *fixture) string {
				other := oidctest.NewProvider(t)
				return "Bearer " + oidctest.SignWith(t, other.Key, f.provider.KID, f.claims())
			},
			kind:  ErrVerificationFailed,
			cause: ErrInvalidSignature,
		},
		{
			name: "missing sub",
			header: func(t *testing.T, f *fixture) string {
				c := f.claims()
				delete(c, "sub")
				return f.bearer(t, c)
			},
			kind: ErrInvalidPayload,
		},
		{
			name: "scope required but absent",
			mutate: func(c *config.TokenAuth) {
				c.RequireAPIScopeForAuthentication = true
				c.APIScopePrefix = []string{"read"}
			},
			header: func(t *testing.T, f *fixture) string { return f.bearer(t, f.claims()) },
			kind:   ErrScopeNotAuthorized,
		},
		{
			name: "scope prefix without dot boundary",
			mutate: func(c *config.TokenAuth) {
				c.RequireAPIScopeForAuthentication = true
				c.APIAuthorizationField = []string{"authorization.permissions.scopes"}
				c.APIScopePrefix = []string{"read"}
			},
			header: func(t *testing.T, f *fixture) string {
				c := f.claims()
				c["authorization"] = map[string]any{
					"permissions": []any{map[string]any{"scopes": []any{"reader"}}},
				}
				return f.bearer(t, c)
			},
			kind: ErrScopeNotAuthorized,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.mutate)

			res, err := f.authenticator.Authenticate(context.Background(), tc.header(t, f))
			assert.Nil(t, res)
			requireAuthError(t, err, tc.kind)

			if tc.cause != nil {
				require.ErrorIs(t, err, tc.cause)
			}

			assert.Zero(t, f.resolver.calls, "no principal may be resolved for a rejected token")
		})
	}
}

func TestAuthenticateScopeRequired(t *testing.T) {
	f := newFixture(t, func(c *config.TokenAuth) {
		c.RequireAPIScopeForAuthentication = true
		c.APIAuthorizationField = []string{"authorization.permissions.scopes"}
		c.APIScopePrefix = []string{"write", "read"}
	})

	c := f.claims()
	c["authorization"] = map[string]any{
		"permissions": []any{map[string]any{"scopes": []any{"read.orders"}}},
	}

	res, err := f.authenticator.Authenticate(context.Background(), f.bearer(t, c))
	require.NoError(t, err)
	assert.True(t, res.Authorization.HasAPIScopeWithPrefix("read"))
	assert.Equal(t, []string{"read.orders"}, res.Authorization.Scopes())
}

func TestAuthenticateRevokedSession(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.store.Record(context.Background(), f.provider.Issuer, testSubject, "session-1"))

	_, err := f.authenticator.Authenticate(context.Background(), f.bearer(t, f.claims()))
	requireAuthError(t, err, ErrSessionRevoked)

	// another session of the same user is still fine
	c := f.claims()
	c["sid"] = "session-2"

	res, err := f.authenticator.Authenticate(context.Background(), f.bearer(t, c))
	require.NoError(t, err)
	require.NotNil(t, res)

	// tokens without sid cannot be matched against logout events
	delete(c, "sid")

	res, err = f.authenticator.Authenticate(context.Background(), f.bearer(t, c))
	require.NoError(t, err)
	require.NotNil(t, res)
}

func TestAuthenticateInfrastructureErrors(t *testing.T) {
	f := newFixture(t, nil)
	f.store.err = errors.New("db down") //nolint:goerr113

	_, err := f.authenticator.Authenticate(context.Background(), f.bearer(t, f.claims()))
	require.Error(t, err)

	var authErr *AuthError
	assert.False(t, errors.As(err, &authErr), "store failures are not authentication failures")

	f = newFixture(t, nil)
	f.provider.FailJWKS.Store(true)

	_, err = f.authenticator.Authenticate(context.Background(), f.bearer(t, f.claims()))
	requireAuthError(t, err, ErrVerificationFailed)
	require.ErrorIs(t, err, ErrKeyFetch)
}

func TestAuthenticatorReload(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.authenticator.Authenticate(context.Background(), f.bearer(t, f.claims()))
	require.NoError(t, err)

	cfg := f.cfg
	cfg.Issuer = []string{"https://other-idp"}
	cfg.AuthScheme = "JWT"
	f.authenticator.Reload(cfg)

	assert.Equal(t, []string{"https://other-idp"}, f.authenticator.Registry().Issuers())
	assert.Equal(t, `JWT realm="api"`, f.authenticator.AuthenticateHeader())

	res, err := f.authenticator.Authenticate(context.Background(), f.bearer(t, f.claims()))
	require.NoError(t, err)
	assert.Nil(t, res, "Bearer is no longer the configured scheme")

	_, err = f.authenticator.Authenticate(context.Background(), "JWT "+f.provider.Sign(t, f.claims()))
	requireAuthError(t, err, ErrUnknownIssuer)
}

func TestVerifyTokenForLogout(t *testing.T) {
	f := newFixture(t, nil)

	c := f.claims()
	delete(c, "exp")
	c["iat"] = time.Now().Unix()
	c["jti"] = "jti-1"

	_, err := f.authenticator.VerifyToken(context.Background(), f.provider.Sign(t, c), nil)
	require.ErrorIs(t, err, ErrMissingRequiredClaim)

	token, err := f.authenticator.VerifyToken(context.Background(), f.provider.Sign(t, c), []string{"aud", "iat", "jti"})
	require.NoError(t, err)
	assert.Equal(t, "jti-1", token.Claims["jti"])
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(config.TokenAuth{
		Issuer:   []string{"https://a", "https://b"},
		Audience: []string{"svc"},
	}, nil)

	source, err := r.Resolve("https://b")
	require.NoError(t, err)
	assert.Equal(t, "https://b", source.Issuer())

	_, err = r.Resolve("https://c")
	require.ErrorIs(t, err, ErrUnknownIssuer)

	assert.Equal(t, []string{"svc"}, r.Audiences())

	r.Reload(config.TokenAuth{Issuer: []string{"https://c"}, Audience: []string{"x", "y"}})

	_, err = r.Resolve("https://a")
	require.ErrorIs(t, err, ErrUnknownIssuer)

	_, err = r.Resolve("https://c")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, r.Audiences())
}
