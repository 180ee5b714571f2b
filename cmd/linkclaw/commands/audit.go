package commands

import (
	"fmt"

	"github.com/jholhewres/linkclaw/pkg/linkclaw/audit"
	"github.com/spf13/cobra"
)

// newAuditCmd creates the `linkclaw audit` command group.
func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the rewrite history",
	}
	cmd.AddCommand(newAuditRecentCmd())
	return cmd
}

func newAuditRecentCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "Show the most recent rewrites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			log, err := audit.Open(cfg.AuditPath(), nil)
			if err != nil {
				return err
			}
			defer log.Close()

			entries, err := log.Recent(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No rewrites recorded yet.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("[%s] guild=%s channel=%s message=%s %s (%d bytes)\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"),
					e.TenantID, e.ChannelID, e.MessageID, e.SourceURL, e.SizeBytes)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}
