package auth

import (
	"net/http"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/config"
)

// Registry resolves accepted issuers to their KeySource and holds the accepted audiences.
type Registry struct {
	client *http.Client

	mu        sync.RWMutex
	sources   map[string]*KeySource
	issuers   []string
	audiences []string
}

// NewRegistry builds a registry from the token auth settings.
// client may be nil, http.DefaultClient is used then.
func NewRegistry(cfg config.TokenAuth, client *http.Client) *Registry {
	r := &Registry{client: client}
	r.Reload(cfg)

	return r
}

// Reload rebuilds issuers, audiences and key sources from cfg.
// Cached key sets of the previous configuration are discarded.
func (r *Registry) Reload(cfg config.TokenAuth) {
	cfg = cfg.WithDefaults()

	sources := make(map[string]*KeySource, len(cfg.Issuer))

	for _, issuer := range cfg.Issuer {
		sources[issuer] = NewKeySource(
			issuer,
			cfg.KeyCacheTTL(),
			WithHTTPClient(r.client),
			WithFetchTimeout(cfg.DiscoveryTimeoutDuration()),
		)
	}

	r.mu.Lock()
	r.sources = sources
	r.issuers = slices.Clone(cfg.Issuer)
	r.audiences = slices.Clone(cfg.Audience)
	r.mu.Unlock()

	log.Info().Strs("issuers", cfg.Issuer).Strs("audiences", cfg.Audience).Msg("issuer registry loaded")
}

// Resolve returns the KeySource of an accepted issuer.
func (r *Registry) Resolve(issuer string) (*KeySource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	source, ok := r.sources[issuer]
	if !ok {
		return nil, validationError(ErrUnknownIssuer, "%s", issuer)
	}

	return source, nil
}

// Audiences returns the accepted audiences.
func (r *Registry) Audiences() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.audiences)
}

// Issuers returns the accepted issuers in configuration order.
func (r *Registry) Issuers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Clone(r.issuers)
}
