// Package backchannel implements the OpenID Connect back-channel logout endpoint.
package backchannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"sync"

	"github.com/elnormous/contenttype"
	"github.com/rs/zerolog/log"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/auth"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/claims"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/config"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/revocation"
)

const (
	// LogoutEvent is the events member that marks a logout token.
	LogoutEvent = "http://schemas.openid.net/event/backchannel-logout"
	// TokenField is the form field carrying the logout token.
	TokenField = "logout_token"

	maxFormSize = 64 << 10
)

// RequiredClaims must be present in every logout token.
var RequiredClaims = []string{"aud", "iat", "jti"} //nolint:gochecknoglobals

var (
	// ErrUnknownCallback is returned when the configured callback was never registered.
	ErrUnknownCallback = errors.New("unknown back-channel logout callback")
	// ErrInvalidLogoutToken is returned for tokens that are not valid logout tokens.
	ErrInvalidLogoutToken = errors.New("invalid logout token")
)

var formMediaType = contenttype.NewMediaType("application/x-www-form-urlencoded") //nolint:gochecknoglobals

// Verifier verifies a token against the accepted issuers and audiences.
type Verifier interface {
	VerifyToken(ctx context.Context, encoded string, requiredClaims []string) (*auth.VerifiedToken, error)
}

// Handler serves back-channel logout requests.
type Handler struct {
	verifier Verifier
	store    revocation.Store

	mu       sync.RWMutex
	enabled  bool
	callback Callback
}

// New returns a logout handler. A disabled handler answers every request with 404.
func New(cfg config.BackChannelLogout, verifier Verifier, store revocation.Store) (*Handler, error) {
	if store == nil {
		return nil, revocation.ErrStoreNil
	}

	h := &Handler{verifier: verifier, store: store}
	if err := h.Reload(cfg); err != nil {
		return nil, err
	}

	return h, nil
}

// Reload applies cfg. On error the previous settings stay in place.
func (h *Handler) Reload(cfg config.BackChannelLogout) error {
	var cb Callback

	if cfg.Callback != "" {
		var ok bool
		if cb, ok = LookupCallback(cfg.Callback); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCallback, cfg.Callback)
		}
	}

	h.mu.Lock()
	h.enabled = cfg.Enabled
	h.callback = cb
	h.mu.Unlock()

	return nil
}

func (h *Handler) current() (bool, Callback) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.enabled, h.callback
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	noCache(w.Header())

	enabled, callback := h.current()
	if !enabled {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	token, err := h.validate(w, r)
	if err != nil {
		log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("rejected back-channel logout")
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	if callback != nil {
		if resp := callback(r, token); resp.IsError() {
			writeResponse(w, resp)
			return
		}
	}

	sub, _ := token.Claims.String("sub")
	sid, _ := token.Claims.String("sid")

	if err := h.store.Record(r.Context(), token.Issuer, sub, sid); err != nil {
		log.Error().Err(err).Str("issuer", token.Issuer).Msg("failed to record back-channel logout")
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	log.Info().Str("issuer", token.Issuer).Str("sub", sub).Str("sid", sid).Msg("back-channel logout recorded")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) (*auth.VerifiedToken, error) {
	if r.Method != http.MethodPost {
		return nil, fmt.Errorf("%w: method %s", ErrInvalidLogoutToken, r.Method)
	}

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(formMediaType) {
		return nil, fmt.Errorf("%w: content type", ErrInvalidLogoutToken)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLogoutToken, err)
	}

	encoded := r.PostForm.Get(TokenField)
	if encoded == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidLogoutToken, TokenField)
	}

	token, err := h.verifier.VerifyToken(r.Context(), encoded, RequiredClaims)
	if err != nil {
		return nil, err
	}

	if err := CheckClaims(token.Claims); err != nil {
		return nil, err
	}

	return token, nil
}

// CheckClaims applies the logout token profile on top of signature verification.
func CheckClaims(c claims.Claims) error {
	if !isNumber(c["iat"]) {
		return fmt.Errorf("%w: iat", ErrInvalidLogoutToken)
	}

	if _, ok := c["jti"].(string); !ok {
		return fmt.Errorf("%w: jti", ErrInvalidLogoutToken)
	}

	present := false

	for _, name := range []string{"sub", "sid"} {
		if !c.Has(name) {
			continue
		}

		if _, ok := c[name].(string); !ok {
			return fmt.Errorf("%w: %s", ErrInvalidLogoutToken, name)
		}

		present = true
	}

	if !present {
		return fmt.Errorf("%w: sub or sid required", ErrInvalidLogoutToken)
	}

	events, ok := c["events"].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: events", ErrInvalidLogoutToken)
	}

	if _, ok := events[LogoutEvent].(map[string]any); !ok {
		return fmt.Errorf("%w: %s", ErrInvalidLogoutToken, LogoutEvent)
	}

	if c.Has("nonce") {
		return fmt.Errorf("%w: nonce", ErrInvalidLogoutToken)
	}

	return nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64, json.Number:
		return true
	default:
		return false
	}
}

func writeResponse(w http.ResponseWriter, resp *Response) {
	maps.Copy(w.Header(), resp.Header)
	noCache(w.Header())
	w.WriteHeader(resp.Status)

	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

func noCache(h http.Header) {
	h.Set("Cache-Control", "no-cache, no-store")
	h.Set("Pragma", "no-cache")
}
