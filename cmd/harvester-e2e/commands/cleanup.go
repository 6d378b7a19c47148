package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/harvester-e2e/cmd/harvester-e2e/handlers"
)

// Cleanup returns the cleanup command.
func Cleanup(g *globals) *cobra.Command {
	var req handlers.CleanupRequest

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete resources leaked by earlier runs",
		Long: `Cleanup lists the resources whose names start with the run prefix and
deletes them in dependency order:
  - Rancher provisioning clusters and clusters
  - Cloud credentials and users
  - Harvester virtual machines, images and networks

Shared VLAN networks (vlan-network-<id>) are never touched.

Example:
  harvester-e2e cleanup --prefix hvst-e2e --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Cleanup(cmd.Context(), g.env(cmd), req)
		},
	}

	cmd.Flags().StringVar(&req.Prefix, "prefix", "", "Name prefix to sweep (default: the configured name prefix)")
	cmd.Flags().BoolVar(&req.DryRun, "dry-run", false, "List leaked resources without deleting them")

	return cmd
}
