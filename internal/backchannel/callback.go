package backchannel

import (
	"net/http"
	"sync"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/auth"
)

// Response is what a Callback wants written back to the identity provider.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// IsError reports a 4xx or 5xx status.
func (r *Response) IsError() bool {
	return r != nil && r.Status >= http.StatusBadRequest && r.Status < 600 //nolint:mnd
}

// Callback runs after a logout token has been validated and before the logout
// is recorded. Returning an error Response aborts the logout and is sent as is,
// any other return value lets the logout proceed.
type Callback func(r *http.Request, token *auth.VerifiedToken) *Response

var (
	callbacksMu sync.RWMutex                //nolint:gochecknoglobals
	callbacks   = make(map[string]Callback) //nolint:gochecknoglobals
)

// RegisterCallback makes cb selectable by name in the configuration.
// Registering a name twice replaces the earlier callback.
func RegisterCallback(name string, cb Callback) {
	callbacksMu.Lock()
	defer callbacksMu.Unlock()

	callbacks[name] = cb
}

// LookupCallback returns the callback registered as name.
func LookupCallback(name string) (Callback, bool) {
	callbacksMu.RLock()
	defer callbacksMu.RUnlock()

	cb, ok := callbacks[name]

	return cb, ok
}
