package auth

import (
	"slices"
	"strings"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/claims"
)

// Authorization answers scope and AD group questions about verified claims.
// When the scope claims are missing or malformed the scope set is unknown and
// every scope check fails.
type Authorization struct {
	claims        claims.Claims
	scopes        []string
	scopesKnown   bool
	adGroupsField string
}

// NewAuthorization reads the scopes from the given claim fields.
func NewAuthorization(c claims.Claims, scopeFields []string, adGroupsField string) *Authorization {
	scopes, known := ScopesFromClaims(c, scopeFields)

	return &Authorization{
		claims:        c,
		scopes:        scopes,
		scopesKnown:   known,
		adGroupsField: adGroupsField,
	}
}

// ScopesFromClaims collects the scopes of every field.
// A field is looked up as a key first; a missing key containing a dot is read as a
// nested path with lists flattened. The result is known only if at least one field
// exists and everything collected is a non-empty string.
func ScopesFromClaims(c claims.Claims, fields []string) ([]string, bool) {
	var (
		collected []any
		present   bool
	)

	for _, field := range fields {
		value, ok := c[field]
		if !ok && strings.Contains(field, ".") {
			value = claims.GetNested(c, field)
			ok = value != nil
		}

		if !ok {
			continue
		}

		list, isList := value.([]any)
		if !isList {
			return nil, false
		}

		present = true
		collected = append(collected, claims.Flatten(list)...)
	}

	if !present {
		return nil, false
	}

	scopes, ok := claims.StringList(collected)
	if !ok {
		return nil, false
	}

	return scopes, true
}

// Claims returns the verified claims.
func (a *Authorization) Claims() claims.Claims {
	return a.claims
}

// Scopes returns the granted scopes, nil when unknown.
func (a *Authorization) Scopes() []string {
	return slices.Clone(a.scopes)
}

// ScopesKnown reports whether the scope claims were present and well formed.
func (a *Authorization) ScopesKnown() bool {
	return a.scopesKnown
}

// HasAPIScopes reports whether every given scope was granted.
func (a *Authorization) HasAPIScopes(scopes ...string) bool {
	if !a.scopesKnown {
		return false
	}

	for _, s := range scopes {
		if !slices.Contains(a.scopes, s) {
			return false
		}
	}

	return true
}

// HasAPIScopeWithPrefix reports whether a granted scope equals prefix or
// starts with prefix followed by a dot.
func (a *Authorization) HasAPIScopeWithPrefix(prefix string) bool {
	if !a.scopesKnown {
		return false
	}

	for _, s := range a.scopes {
		if s == prefix || strings.HasPrefix(s, prefix+".") {
			return true
		}
	}

	return false
}

// HasAnyAPIScopeWithPrefix reports whether any of the prefixes matches.
func (a *Authorization) HasAnyAPIScopeWithPrefix(prefixes ...string) bool {
	return slices.ContainsFunc(prefixes, a.HasAPIScopeWithPrefix)
}

// HasADGroups reports whether the token lists all of the groups, ignoring case.
// Tokens without a well formed group claim have no groups.
func (a *Authorization) HasADGroups(groups ...string) bool {
	have, ok := claims.StringList(a.claims[a.adGroupsField])
	if !ok {
		return false
	}

	for _, want := range groups {
		if !slices.ContainsFunc(have, func(g string) bool { return strings.EqualFold(g, want) }) {
			return false
		}
	}

	return true
}
