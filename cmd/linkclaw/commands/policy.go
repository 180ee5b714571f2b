package commands

import (
	"fmt"
	"strings"

	"github.com/jholhewres/linkclaw/pkg/linkclaw/policy"
	"github.com/spf13/cobra"
)

// newPolicyCmd creates the `linkclaw policy` command group for inspecting
// the persisted allow-policies without going through Discord.
func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the persisted allow-policies",
	}
	cmd.AddCommand(newPolicyListCmd())
	return cmd
}

func newPolicyListCmd() *cobra.Command {
	var guildID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show allow-lists from the policy document",
		Long: `Shows the allowed domains and extensions stored in the policy
document. With --guild, shows one server; otherwise, all of them.

Examples:
  linkclaw policy list
  linkclaw policy list --guild 123456789`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			store := policy.NewStore(cfg.PolicyPath(), cfg.DefaultDomains, nil)
			doc := store.Load()

			if guildID != "" {
				pol, ok := doc[guildID]
				if !ok {
					return fmt.Errorf("no policy stored for guild %s", guildID)
				}
				printPolicy(guildID, pol)
				return nil
			}

			if len(doc) == 0 {
				fmt.Println("No policies stored yet.")
				return nil
			}
			for id, pol := range doc {
				printPolicy(id, pol)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&guildID, "guild", "", "guild id to show")
	return cmd
}

func printPolicy(guildID string, pol *policy.TenantPolicy) {
	fmt.Printf("guild %s\n", guildID)
	fmt.Printf("  domains:    %s\n", joinOrNone(pol.Domains))
	fmt.Printf("  extensions: %s\n", joinOrNone(pol.Extensions))
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}
