// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "go-oidc-users",
	Short: "go-oidc-users authenticates API requests with OpenID Connect bearer tokens",
	Long: `go-oidc-users verifies JWT bearer tokens issued by trusted OpenID Connect providers,
maps their claims onto local users and AD groups and honors back-channel logout.`,
	Args: cobra.OnlyValidArgs,
}

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./etc/", "Directory holding main.toml")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
