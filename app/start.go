package app

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/config"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/daemon"
	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/logger"
)

func init() { //nolint: gochecknoinits
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable dev mode")
	startCmd.Flags().BoolVar(&watchConfig, "watch", true, "Reload token auth settings when main.toml changes")

	rootCmd.AddCommand(startCmd)
}

var (
	configPath string // Path to the configuration directory

	cfg         config.Config
	devMode     bool
	watchConfig bool

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the go-oidc-users web service",
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			if devMode {
				cfg.DevMode = true
				cfg.ApplyDevMode()
			}

			return logger.Init(cfg.Log) //nolint:wrapcheck
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			d, err := daemon.New(&cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}

			if watchConfig {
				if err := config.Watch(configPath, d.Reload); err != nil {
					log.Warn().Err(err).Msg("config watch disabled")
				}
			}

			return d.Start() //nolint:wrapcheck
		},
	}
)

func loadConfig() error {
	var err error

	cfg, err = config.ReadConfig(configPath)

	return err //nolint:wrapcheck
}
