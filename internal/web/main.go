package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/config"
	fiberlogger "github.com/GoPowerDNS-Admin/go-oidc-users/internal/logger/adapter/fiber"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/web/handler"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/web/handler/adgroup"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/web/handler/me"
	authmiddleware "github.com/GoPowerDNS-Admin/go-oidc-users/internal/web/middleware/auth"
)

const (
	// CheckAlivePath answers load balancer health checks.
	CheckAlivePath = "/checkalive"
	// MetricsPath exposes Prometheus metrics.
	MetricsPath = "/metrics"
	// BackChannelLogoutPath receives OIDC back-channel logout tokens.
	BackChannelLogoutPath = "/logout/oidc/backchannel"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// Alive reports whether checkalive answers 200.
func (s *Service) Alive() bool {
	return s.alive.Load()
}

// New creates a new web service.
//
// authenticator guards the API routes, logout serves back-channel logout requests.
func New(
	cfg *config.Config,
	db *gorm.DB,
	authenticator authmiddleware.Authenticator,
	logout http.Handler,
) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	if authenticator == nil || logout == nil {
		panic("authenticator and logout handler cannot be nil")
	}

	appName := cfg.Title
	if appName == "" {
		appName = "go-oidc-users"
	}

	// create fiber app
	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        appName,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
		},
	)

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New())
	}

	checkAliveURI := ""
	if cfg.Log.DisableCheckAlive {
		checkAliveURI = CheckAlivePath
	}

	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: checkAliveURI,
		Principal:     authmiddleware.Principal,
	}))

	service := &Service{
		cfg: cfg,
		App: app,
	}
	service.alive.Store(true)

	app.Get(CheckAlivePath, func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.Status(fiber.StatusServiceUnavailable).SendString("shutting down")
		}

		return c.SendString("OK")
	})

	app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))

	// every method reaches the handler, it answers anything but POST with 400
	app.All(BackChannelLogoutPath, adaptor.HTTPHandler(logout))

	api := app.Group(handler.APIPath,
		authmiddleware.New(authenticator),
		authmiddleware.Require(authenticator),
	)

	me.Handler.Init(api, cfg, db)
	adgroup.Handler.Init(api, cfg, db)

	return service
}
