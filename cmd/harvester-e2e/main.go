// Command harvester-e2e waits on Harvester and Rancher resources from CI
// scripts and sweeps resources left behind by aborted suite runs.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/imamik/harvester-e2e/cmd/harvester-e2e/commands"
)

// Set with -ldflags "-X main.version=...".
var (
	version = ""
	commit  = "none"
	date    = "unknown"
)

func buildInfo() commands.BuildInfo {
	v := version
	if v == "" {
		v = "dev"
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			v = bi.Main.Version
		}
	}
	return commands.BuildInfo{Version: v, Commit: commit, Date: date}
}

func main() {
	if err := commands.Root(buildInfo()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "harvester-e2e: %v\n", err)
		os.Exit(1)
	}
}
