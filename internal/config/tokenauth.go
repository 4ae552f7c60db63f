package config

import "time"

const (
	// DefaultAPIAuthorizationField is the claim carrying API scopes when nothing else is configured.
	DefaultAPIAuthorizationField = "https://api.hel.fi/auth"
	// DefaultAuthScheme is the expected Authorization header scheme.
	DefaultAuthScheme = "Bearer"
	// DefaultOIDCConfigExpirationTime is the JWKS cache lifetime in seconds.
	DefaultOIDCConfigExpirationTime = 86400
	// DefaultDiscoveryTimeout bounds discovery and JWKS requests, in seconds.
	DefaultDiscoveryTimeout = 10
	// DefaultADGroupsField is the claim holding AD group names.
	DefaultADGroupsField = "ad_groups"
)

// TokenAuth holds the bearer token authentication settings.
// Audience, Issuer, APIAuthorizationField, APIScopePrefix and the migration
// allow-lists accept a single string or a list in the config file.
type TokenAuth struct {
	Audience                         []string `validate:"required,min=1,dive,required"`
	Issuer                           []string `validate:"required,min=1,dive,required"`
	RequireAPIScopeForAuthentication bool
	APIAuthorizationField            []string `validate:"dive,required"`
	APIScopePrefix                   []string
	AuthScheme                       string
	OIDCConfigExpirationTime         int `validate:"gte=0"`
	DiscoveryTimeout                 int `validate:"gte=0"`
	Leeway                           int `validate:"gte=0"`
	ADGroupsField                    string

	UserMigrateEnabled      bool
	UserMigrateAMRs         []string
	UserMigrateEmailDomains []string
}

// WithDefaults returns a copy with unset values replaced by their defaults.
func (t TokenAuth) WithDefaults() TokenAuth {
	if len(t.APIAuthorizationField) == 0 {
		t.APIAuthorizationField = []string{DefaultAPIAuthorizationField}
	}

	if t.AuthScheme == "" {
		t.AuthScheme = DefaultAuthScheme
	}

	if t.OIDCConfigExpirationTime == 0 {
		t.OIDCConfigExpirationTime = DefaultOIDCConfigExpirationTime
	}

	if t.DiscoveryTimeout == 0 {
		t.DiscoveryTimeout = DefaultDiscoveryTimeout
	}

	if t.ADGroupsField == "" {
		t.ADGroupsField = DefaultADGroupsField
	}

	return t
}

// KeyCacheTTL is OIDCConfigExpirationTime as a duration.
func (t TokenAuth) KeyCacheTTL() time.Duration {
	return time.Duration(t.OIDCConfigExpirationTime) * time.Second
}

// DiscoveryTimeoutDuration is DiscoveryTimeout as a duration.
func (t TokenAuth) DiscoveryTimeoutDuration() time.Duration {
	return time.Duration(t.DiscoveryTimeout) * time.Second
}

// LeewayDuration is Leeway as a duration.
func (t TokenAuth) LeewayDuration() time.Duration {
	return time.Duration(t.Leeway) * time.Second
}
