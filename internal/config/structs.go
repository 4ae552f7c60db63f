package config

import (
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode           bool // enable dev mode for development
	DB                DB
	Log               logger.Log
	Title             string
	Webserver         Webserver
	TokenAuth         TokenAuth         `toml:"tokenauth"`
	BackChannelLogout BackChannelLogout `toml:"backchannellogout"`
	Revocation        Revocation        `toml:"revocation"`
}

// Webserver implement webserver settings.
type Webserver struct {
	DisableRecover bool   // disable recover middleware
	Port           int    // listening port for the webserver
	ShutDownTime   int    // wait time for shutdown
	URL            string // base url for the webserver
}

// BackChannelLogout configures the OIDC back-channel logout endpoint.
type BackChannelLogout struct {
	Enabled bool
	// Callback is the name of a hook registered with backchannel.RegisterCallback.
	Callback string
}

// Revocation selects where logout events are stored.
type Revocation struct {
	// Backend is "db" (default) or "redis".
	Backend string `validate:"omitempty,oneof=db redis"`
	Redis   Redis
}

// Redis holds the connection settings of the redis revocation backend.
type Redis struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	// Retention in seconds, 0 keeps logout events forever.
	Retention int `validate:"gte=0"`
}
