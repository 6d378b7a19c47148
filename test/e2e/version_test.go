//go:build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/imamik/harvester-e2e/internal/platform/harvester"
	"github.com/stretchr/testify/require"
)

func TestServerVersion(t *testing.T) {
	s := harvesterSession(t)

	version, err := s.Harvester.Version(context.Background())
	check(t, err, "read server version")
	require.NotEmpty(t, version)
	t.Logf("harvester %s, cluster networks supported: %t", version, harvester.HasClusterNetworks(version))
}
