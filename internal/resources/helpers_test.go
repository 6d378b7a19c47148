package resources

import (
	"testing"
	"time"

	"github.com/go-logr/logr/testr"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/platform/harvester"
	"github.com/imamik/harvester-e2e/internal/platform/rancher"
	"github.com/imamik/harvester-e2e/internal/testing/fakeapi"
)

// fastOptions compresses the 5s/300s cadence used against real clusters.
func fastOptions(t *testing.T) Options {
	return Options{Interval: 5 * time.Millisecond, Timeout: 2 * time.Second, Logger: testr.New(t)}
}

func newHarvester(t *testing.T) (*fakeapi.Server, *harvester.Client) {
	t.Helper()
	srv := fakeapi.New(t)
	return srv, harvester.New(srv.Client(t))
}

func newRancher(t *testing.T) (*fakeapi.Server, *rancher.Client) {
	t.Helper()
	srv := fakeapi.New(t)
	return srv, rancher.New(srv.Client(t))
}

func seedVersion(srv *fakeapi.Server, version string) {
	srv.Collection(harvester.PathSettings, fakeapi.Behavior{})
	srv.Seed(harvester.PathSettings, document.Document{
		"metadata": map[string]any{"name": harvester.SettingServerVersion},
		"value":    version,
	})
}
