package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
)

const (
	maxJWKSSize         = 1 << 20
	defaultFetchTimeout = 10 * time.Second
)

// keyCacheEntry is a fetched key set and the moment it goes stale.
type keyCacheEntry struct {
	keys      *KeySet
	expiresAt time.Time
}

// KeySource fetches and caches the signing keys of one issuer.
//
// Keys are looked up through {issuer}/.well-known/openid-configuration and its
// jwks_uri. A stale or missing entry is refreshed synchronously by the caller.
// Failed fetches are not cached.
type KeySource struct {
	issuer  string
	ttl     time.Duration
	timeout time.Duration
	client  *http.Client
	now     func() time.Time

	mu    sync.RWMutex
	entry *keyCacheEntry
}

// KeySourceOption configures a KeySource.
type KeySourceOption func(*KeySource)

// WithHTTPClient sets the client used for discovery and JWKS requests.
func WithHTTPClient(c *http.Client) KeySourceOption {
	return func(s *KeySource) {
		if c != nil {
			s.client = c
		}
	}
}

// WithFetchTimeout bounds each discovery and JWKS request.
func WithFetchTimeout(d time.Duration) KeySourceOption {
	return func(s *KeySource) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) KeySourceOption {
	return func(s *KeySource) {
		s.now = now
	}
}

// NewKeySource returns a KeySource for issuer caching keys for ttl.
func NewKeySource(issuer string, ttl time.Duration, opts ...KeySourceOption) *KeySource {
	s := &KeySource{
		issuer:  issuer,
		ttl:     ttl,
		timeout: defaultFetchTimeout,
		client:  http.DefaultClient,
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Issuer returns the issuer the keys belong to.
func (s *KeySource) Issuer() string {
	return s.issuer
}

// Keys returns the cached key set, fetching it when the entry is missing or stale.
// Concurrent refreshes may both fetch; the last one wins.
func (s *KeySource) Keys(ctx context.Context) (*KeySet, error) {
	now := s.now()

	s.mu.RLock()
	entry := s.entry
	s.mu.RUnlock()

	if entry != nil && now.Before(entry.expiresAt) {
		return entry.keys, nil
	}

	keys, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.entry = &keyCacheEntry{keys: keys, expiresAt: now.Add(s.ttl)}
	s.mu.Unlock()

	log.Debug().Str("issuer", s.issuer).Int("keys", keys.Len()).Msg("jwks refreshed")

	return keys, nil
}

// Invalidate drops the cached key set.
func (s *KeySource) Invalidate() {
	s.mu.Lock()
	s.entry = nil
	s.mu.Unlock()
}

func (s *KeySource) fetch(ctx context.Context) (*KeySet, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, s.client), s.issuer)
	if err != nil {
		return nil, fmt.Errorf("%w: discovery for %s: %w", ErrKeyFetch, s.issuer, err)
	}

	var meta struct {
		JWKSURI string `json:"jwks_uri"`
	}

	if err = provider.Claims(&meta); err != nil || meta.JWKSURI == "" {
		return nil, fmt.Errorf("%w: no jwks_uri in discovery document of %s", ErrKeyFetch, s.issuer)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.JWKSURI, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyFetch, err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrKeyFetch, meta.JWKSURI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", ErrKeyFetch, meta.JWKSURI, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrKeyFetch, meta.JWKSURI, err)
	}

	keys, err := ParseKeySet(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyFetch, err)
	}

	return keys, nil
}
