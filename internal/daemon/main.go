// Package daemon wires storage, authentication and the web service together.
package daemon

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/auth"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/backchannel"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/config"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/dsn"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/models"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/identity"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/revocation"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/web"
)

const (
	// RevocationBackendDB stores logout events in the SQL database.
	RevocationBackendDB = "db"
	// RevocationBackendRedis stores logout events in redis.
	RevocationBackendRedis = "redis"
)

// Daemon represents the main application daemon.
type Daemon struct {
	cfg           *config.Config
	webService    *web.Service
	authenticator *auth.Authenticator
	resolver      *identity.Resolver
	logout        *backchannel.Handler
}

// Start starts the web service and blocks until it was shut down.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	return d.webService.Start(":" + strconv.Itoa(d.cfg.Webserver.Port))
}

// Reload applies a changed configuration to the running daemon.
// Database, revocation backend and webserver settings need a restart.
func (d *Daemon) Reload(cfg config.Config) {
	d.authenticator.Reload(cfg.TokenAuth)
	d.resolver.Reload(cfg.TokenAuth)

	if err := d.logout.Reload(cfg.BackChannelLogout); err != nil {
		log.Error().Err(err).Msg("back-channel logout settings not reloaded")
	}

	log.Info().Strs("issuers", d.authenticator.Registry().Issuers()).Msg("token auth settings reloaded")
}

// OpenDB connects to the configured database and migrates the schema.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := dsn.Dialector(cfg)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if err = db.AutoMigrate(models.All()...); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	return db, nil
}

// NewRevocationStore returns the logout event store selected by cfg.Revocation.Backend.
func NewRevocationStore(cfg *config.Config, db *gorm.DB) (revocation.Store, error) {
	switch cfg.Revocation.Backend {
	case "", RevocationBackendDB:
		return revocation.NewGormStore(db), nil
	case RevocationBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Revocation.Redis.Addr,
			Password: cfg.Revocation.Redis.Password,
			DB:       cfg.Revocation.Redis.DB,
		})

		retention := time.Duration(cfg.Revocation.Redis.Retention) * time.Second

		return revocation.NewRedisStore(client, cfg.Revocation.Redis.Prefix, retention), nil
	default:
		return nil, fmt.Errorf("unknown revocation backend %q", cfg.Revocation.Backend) //nolint:goerr113
	}
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}

	store, err := NewRevocationStore(cfg, db)
	if err != nil {
		return nil, err
	}

	resolver, err := identity.NewResolver(db, cfg.TokenAuth)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create user resolver")
	}

	authenticator := auth.NewAuthenticator(cfg.TokenAuth, auth.NewRegistry(cfg.TokenAuth, nil), store, resolver)

	logout, err := backchannel.New(cfg.BackChannelLogout, authenticator, store)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create back-channel logout handler")
	}

	log.Info().
		Str("db", cfg.DB.GormEngine).
		Str("revocation", cfg.Revocation.Backend).
		Strs("issuers", authenticator.Registry().Issuers()).
		Bool("backchannel_logout", cfg.BackChannelLogout.Enabled).
		Msg("daemon initialized")

	return &Daemon{
		cfg:           cfg,
		webService:    web.New(cfg, db, authenticator, logout),
		authenticator: authenticator,
		resolver:      resolver,
		logout:        logout,
	}, nil
}
