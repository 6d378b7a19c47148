// Package commands defines the CLI command structure and flag bindings.
//
// Command execution is delegated to handler functions in the handlers
// package.
package commands

import (
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/imamik/harvester-e2e/cmd/harvester-e2e/handlers"
	"github.com/imamik/harvester-e2e/internal/logging"
)

// globals are the persistent flags shared by every command.
type globals struct {
	configPath string
	zapOpts    *zap.Options
}

func (g *globals) env(cmd *cobra.Command) handlers.Env {
	return handlers.Env{
		ConfigPath: g.configPath,
		Log:        logging.New(os.Stderr, g.zapOpts),
		Out:        cmd.OutOrStdout(),
	}
}

// Root returns the root command for the harvester-e2e CLI.
func Root(info BuildInfo) *cobra.Command {
	g := &globals{zapOpts: logging.Options()}

	cmd := &cobra.Command{
		Use:           "harvester-e2e",
		Short:         "Tooling for the Harvester and Rancher end-to-end suites",
		Version:       info.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", os.Getenv("HARVESTER_E2E_CONFIG"),
		"Path to the options file (default: $HARVESTER_E2E_CONFIG)")
	logging.BindFlags(cmd.PersistentFlags(), g.zapOpts)

	cmd.AddCommand(Wait(g))
	cmd.AddCommand(Cleanup(g))
	cmd.AddCommand(Version(info))

	return cmd
}
