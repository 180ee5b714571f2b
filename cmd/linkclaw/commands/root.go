// Package commands implements the LinkClaw CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root CLI command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "linkclaw",
		Short: "LinkClaw - rehosts short-lived CDN links posted in Discord",
		Long: `LinkClaw watches Discord messages for links to short-lived CDN hosts
and, per server policy, replaces the link with a locally re-hosted copy of
the file before the original expires — republished so it still looks like
the original author posted the attachment.

Examples:
  linkclaw serve
  linkclaw setup
  linkclaw policy list --guild 123456789
  linkclaw audit recent`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newSetupCmd(),
		newPolicyCmd(),
		newAuditCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
