package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/harvester-e2e/cmd/harvester-e2e/handlers"
)

// Wait returns the wait command.
//
// Optional flags:
//
//	--api: harvester (default) or rancher
//	--jsonpath/--equals: wait until the template renders the given value
//	--field: wait until a dotted field is set
//	--gone: wait until the resource answers 404
//	--timeout, --interval: override the configured cadence
func Wait(g *globals) *cobra.Command {
	var req handlers.WaitRequest

	cmd := &cobra.Command{
		Use:   "wait COLLECTION ID",
		Short: "Poll a resource until it reaches a condition",
		Long: `Wait fetches a resource at a fixed interval until a condition holds or the
timeout elapses. The last observed status and document are printed on
timeout.

COLLECTION is an alias (networks, images, vms, settings, clusternetworks,
vlanconfigs for Harvester; clusters, v3clusters, cloudcredentials, users,
secrets, settings, nodepools for Rancher) or a collection path.

Examples:
  # Wait for an image download to finish
  harvester-e2e wait images default/focal --jsonpath '{.status.progress}' --equals 100

  # Wait for a network to be deleted
  harvester-e2e wait networks default/vlan-network-100 --gone

  # Wait for a downstream cluster
  harvester-e2e wait clusters fleet-default/e2e-rke2 --api rancher --field status.ready`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Collection, req.ID = args[0], args[1]
			return handlers.Wait(cmd.Context(), g.env(cmd), req)
		},
	}

	cmd.Flags().StringVar(&req.API, "api", handlers.APIHarvester, "API serving the resource: harvester or rancher")
	cmd.Flags().StringVar(&req.JSONPath, "jsonpath", "", "JSONPath template to compare, e.g. '{.status.phase}'")
	cmd.Flags().StringVar(&req.Equals, "equals", "", "Expected value of --jsonpath")
	cmd.Flags().StringVar(&req.Field, "field", "", "Dotted field that must be set, e.g. status.ready")
	cmd.Flags().BoolVar(&req.Gone, "gone", false, "Wait until the resource is deleted")
	cmd.Flags().DurationVar(&req.Timeout, "timeout", 0, "Override the configured wait timeout")
	cmd.Flags().DurationVar(&req.Interval, "interval", 0, "Override the configured poll interval")
	cmd.MarkFlagsMutuallyExclusive("jsonpath", "field", "gone")
	cmd.MarkFlagsRequiredTogether("jsonpath", "equals")

	return cmd
}
