package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/claims"
)

// signingMethods are the accepted JWS algorithms. Symmetric algorithms are
// excluded, keys come from a public JWKS.
var signingMethods = []string{ //nolint:gochecknoglobals
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
	"EdDSA",
}

// DefaultRequiredClaims must be present in every verified access token.
var DefaultRequiredClaims = []string{"aud", "exp"} //nolint:gochecknoglobals

// KeySet is the decoded JSON Web Key Set of an issuer.
type KeySet struct {
	set jose.JSONWebKeySet
}

// NewKeySet wraps already decoded keys.
func NewKeySet(keys ...jose.JSONWebKey) *KeySet {
	return &KeySet{set: jose.JSONWebKeySet{Keys: keys}}
}

// ParseKeySet decodes a JWKS document. Keys that cannot be decoded are skipped.
func ParseKeySet(raw []byte) (*KeySet, error) {
	var doc struct {
		Keys []json.RawMessage `json:"keys"`
	}

	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid jwks document: %w", err)
	}

	ks := &KeySet{}

	for _, rawKey := range doc.Keys {
		var key jose.JSONWebKey
		if err := key.UnmarshalJSON(rawKey); err != nil {
			log.Debug().Err(err).Msg("skipping undecodable jwk")
			continue
		}

		ks.set.Keys = append(ks.set.Keys, key)
	}

	return ks, nil
}

// Len returns the number of usable keys.
func (ks *KeySet) Len() int {
	if ks == nil {
		return 0
	}

	return len(ks.set.Keys)
}

// candidates returns the public keys that may have signed a token with kid and alg.
// Keys matching kid come first; without kid, or when no key carries it, every signing key is a candidate.
func (ks *KeySet) candidates(kid, alg string) []any {
	if ks == nil {
		return nil
	}

	keys := ks.set.Keys
	if kid != "" {
		if byKID := ks.set.Key(kid); len(byKID) > 0 {
			keys = byKID
		}
	}

	out := make([]any, 0, len(keys))

	for _, k := range keys {
		if k.Use != "" && k.Use != "sig" {
			continue
		}

		if k.Algorithm != "" && k.Algorithm != alg {
			continue
		}

		// symmetric keys have no public half and are dropped here
		if pub := k.Public(); pub.Key != nil {
			out = append(out, pub.Key)
		}
	}

	return out
}

// VerifiedToken is a token whose signature and required claims were checked.
type VerifiedToken struct {
	Issuer  string
	Encoded string
	Claims  claims.Claims
}

// IssuerName returns the accepted issuer.
func (t *VerifiedToken) IssuerName() string {
	return t.Issuer
}

// ClaimSet returns the verified claims.
func (t *VerifiedToken) ClaimSet() claims.Claims {
	return t.Claims
}

// VerifyOptions tune Verify. The zero value requires aud and exp with no leeway.
type VerifyOptions struct {
	// RequiredClaims replaces DefaultRequiredClaims when not nil.
	RequiredClaims []string
	// Leeway tolerated on exp and nbf.
	Leeway time.Duration
	// Now overrides the clock.
	Now func() time.Time
}

// Parse decodes the token without verifying it.
// Only use the result to pick verification keys.
func Parse(encoded string) (claims.Claims, error) {
	mc := jwt.MapClaims{}

	if _, _, err := jwt.NewParser().ParseUnverified(encoded, mc); err != nil {
		return nil, validationError(ErrMalformedToken, "%v", err)
	}

	return claims.Claims(mc), nil
}

// Issuer returns the iss claim.
func Issuer(c claims.Claims) (string, error) {
	iss, ok := c.String("iss")
	if !ok || iss == "" {
		return "", validationError(ErrMissingClaim, "iss")
	}

	return iss, nil
}

// Verify checks the signature of encoded against keys, then the temporal claims,
// the required claims and the audience.
// The audience check accepts aud as string or list and passes on any shared value.
func Verify(encoded string, keys *KeySet, audiences []string, opts VerifyOptions) (*VerifiedToken, error) {
	header, _, err := jwt.NewParser().ParseUnverified(encoded, jwt.MapClaims{})
	if err != nil {
		return nil, validationError(ErrMalformedToken, "%v", err)
	}

	kid, _ := header.Header["kid"].(string)

	candidates := keys.candidates(kid, header.Method.Alg())
	if len(candidates) == 0 {
		return nil, validationError(ErrInvalidSignature, "no signing key for kid %q and alg %s", kid, header.Method.Alg())
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(signingMethods),
		jwt.WithLeeway(opts.Leeway),
	}

	if opts.Now != nil {
		parserOpts = append(parserOpts, jwt.WithTimeFunc(opts.Now))
	}

	parser := jwt.NewParser(parserOpts...)

	var (
		mc      jwt.MapClaims
		lastErr error
	)

	for _, key := range candidates {
		mc = jwt.MapClaims{}

		_, lastErr = parser.ParseWithClaims(encoded, mc, func(*jwt.Token) (any, error) {
			return key, nil
		})
		if lastErr == nil || !errors.Is(lastErr, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}

	if lastErr != nil {
		return nil, classify(lastErr)
	}

	c := claims.Claims(mc)

	required := opts.RequiredClaims
	if required == nil {
		required = DefaultRequiredClaims
	}

	for _, name := range required {
		if !c.Has(name) {
			return nil, validationError(ErrMissingRequiredClaim, "%s", name)
		}
	}

	if c.Has("aud") {
		if err := checkAudience(c["aud"], audiences); err != nil {
			return nil, err
		}
	}

	iss, _ := c.String("iss")

	return &VerifiedToken{Issuer: iss, Encoded: encoded, Claims: c}, nil
}

func checkAudience(aud any, accepted []string) error {
	var values []string

	switch v := aud.(type) {
	case string:
		values = []string{v}
	case []any:
		var ok bool
		if values, ok = claims.StringList(v); !ok {
			return validationError(ErrInvalidClaim, "aud must be a string or a list of strings")
		}
	default:
		return validationError(ErrInvalidClaim, "aud must be a string or a list of strings")
	}

	if !intersects(values, accepted) {
		return validationError(ErrInvalidAudience, "none of %v accepted", values)
	}

	return nil
}

func intersects(a, b []string) bool {
	for _, v := range a {
		if slices.Contains(b, v) {
			return true
		}
	}

	return false
}

// classify maps jwt library errors onto the package error kinds.
func classify(err error) *ValidationError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return validationError(ErrMalformedToken, "%v", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return validationError(ErrTokenExpired, "%v", err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return validationError(ErrTokenNotYetValid, "%v", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return validationError(ErrInvalidSignature, "%v", err)
	case errors.Is(err, jwt.ErrTokenInvalidClaims):
		return validationError(ErrInvalidClaim, "%v", err)
	default:
		return validationError(ErrMalformedToken, "%v", err)
	}
}
