package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoPowerDNS-Admin/go-oidc-users/internal/daemon"
	adgroupctl "github.com/GoPowerDNS-Admin/go-oidc-users/internal/db/controller/adgroup"
)

func init() { //nolint: gochecknoinits
	adgroupMapCmd.Flags().BoolVar(&resync, "resync", true, "Resync group membership of users in the AD group")
	adgroupUnmapCmd.Flags().BoolVar(&resync, "resync", true, "Resync group membership of users in the AD group")

	adgroupCmd.AddCommand(adgroupMapCmd, adgroupUnmapCmd, adgroupListCmd)
	rootCmd.AddCommand(adgroupCmd)
}

var (
	resync bool

	adgroupCmd = &cobra.Command{
		Use:   "adgroup",
		Short: "Manage AD group to group mappings",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadConfig()
		},
	}

	adgroupMapCmd = &cobra.Command{
		Use:   "map <group> <ad-group>",
		Short: "Grant membership of group to every member of ad-group",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := daemon.OpenDB(&cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}

			if _, err := adgroupctl.CreateMapping(db, args[0], args[1]); err != nil {
				return err //nolint:wrapcheck
			}

			return printResync(cmd, func() (int, error) { return adgroupctl.ResyncMembers(db, args[1]) })
		},
	}

	adgroupUnmapCmd = &cobra.Command{
		Use:   "unmap <group> <ad-group>",
		Short: "Remove a mapping",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := daemon.OpenDB(&cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}

			if err := adgroupctl.DeleteMapping(db, args[0], args[1]); err != nil {
				return err //nolint:wrapcheck
			}

			return printResync(cmd, func() (int, error) { return adgroupctl.ResyncMembers(db, args[1]) })
		},
	}

	adgroupListCmd = &cobra.Command{
		Use:   "list",
		Short: "List mappings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := daemon.OpenDB(&cfg)
			if err != nil {
				return err //nolint:wrapcheck
			}

			mappings, err := adgroupctl.ListMappings(db)
			if err != nil {
				return err //nolint:wrapcheck
			}

			for _, m := range mappings {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", m.ADGroupName, m.GroupName)
			}

			return nil
		},
	}
)

func printResync(cmd *cobra.Command, run func() (int, error)) error {
	if !resync {
		return nil
	}

	n, err := run()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "resynced %d users\n", n)

	return nil
}
