// Package oidctest runs a fake OpenID Connect provider for tests.
// It serves a discovery document and a JWKS and signs tokens with its key.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultKID is the key id of the provider's signing key.
const DefaultKID = "test-key"

// Provider is a running fake identity provider.
type Provider struct {
	Server *httptest.Server
	Issuer string
	Key    *rsa.PrivateKey
	KID    string

	// FailJWKS makes the JWKS endpoint answer 500.
	FailJWKS atomic.Bool

	discoveryHits atomic.Int64
	jwksHits      atomic.Int64
}

// NewProvider starts a provider and stops it when the test ends.
func NewProvider(t testing.TB) *Provider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048) //nolint:mnd
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	p := &Provider{Key: key, KID: DefaultKID}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		p.discoveryHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 p.Issuer,
			"jwks_uri":               p.Issuer + "/jwks",
			"authorization_endpoint": p.Issuer + "/auth",
			"token_endpoint":         p.Issuer + "/token",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, _ *http.Request) {
		p.jwksHits.Add(1)

		if p.FailJWKS.Load() {
			http.Error(w, "unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{p.PublicJWK()}})
	})

	p.Server = httptest.NewServer(mux)
	p.Issuer = p.Server.URL

	t.Cleanup(p.Server.Close)

	return p
}

// PublicJWK returns the public signing key as JWK.
func (p *Provider) PublicJWK() jose.JSONWebKey {
	return jose.JSONWebKey{Key: &p.Key.PublicKey, KeyID: p.KID, Algorithm: "RS256", Use: "sig"}
}

// Sign signs claims with the provider key.
func (p *Provider) Sign(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()

	return SignWith(t, p.Key, p.KID, claims)
}

// SignWith signs claims with an arbitrary RSA key. An empty kid omits the header.
func SignWith(t testing.TB, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}

	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	return s
}

// DiscoveryHits counts discovery document requests.
func (p *Provider) DiscoveryHits() int64 {
	return p.discoveryHits.Load()
}

// JWKSHits counts JWKS requests.
func (p *Provider) JWKSHits() int64 {
	return p.jwksHits.Load()
}
