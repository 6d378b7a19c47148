package resources

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/lifecycle"
	"github.com/imamik/harvester-e2e/internal/platform/harvester"
	"github.com/imamik/harvester-e2e/internal/platform/rancher"
	"github.com/imamik/harvester-e2e/internal/testing/fakeapi"
	"github.com/imamik/harvester-e2e/internal/util/naming"
)

func meta(ns, name string) document.Document {
	m := map[string]any{"name": name}
	if ns != "" {
		m["namespace"] = ns
	}
	return document.Document{"metadata": m}
}

func seedLeaks(hsrv, rsrv *fakeapi.Server) {
	for _, p := range []string{harvester.PathVMs, harvester.PathImages, harvester.PathNetworks} {
		hsrv.Collection(p, fakeapi.Behavior{})
	}
	hsrv.Seed(harvester.PathVMs, meta("default", "hvst-e2e-1a2b-rke2-pool1-abcde"))
	hsrv.Seed(harvester.PathVMs, meta("default", "someone-elses-vm"))
	hsrv.Seed(harvester.PathImages, meta("default", "hvst-e2e-1a2b-focal"))
	hsrv.Seed(harvester.PathNetworks, meta("default", naming.VLANNetwork(100)))
	hsrv.Seed(harvester.PathNetworks, meta("default", "hvst-e2e-1a2b-net"))

	for _, p := range []string{rancher.PathMgmtClusters, rancher.PathClusters, rancher.PathCloudCredentials, rancher.PathUsers} {
		rsrv.Collection(p, fakeapi.Behavior{})
	}
	rsrv.Seed(rancher.PathMgmtClusters, meta(rancher.FleetNamespace, "hvst-e2e-1a2b-rke2"))
	rsrv.Seed(rancher.PathClusters, document.Document{"name": "hvst-e2e-1a2b-rke1"})
	rsrv.Seed(rancher.PathClusters, document.Document{"name": "local"})
	rsrv.Seed(rancher.PathCloudCredentials, document.Document{"name": "hvst-e2e-1a2b"})
	rsrv.Seed(rancher.PathUsers, document.Document{"name": "u-x1y2z", "username": naming.User("hvst-e2e-1a2b")})
	rsrv.Seed(rancher.PathUsers, document.Document{"name": "user-admin", "username": "admin"})
}

func TestFindLeaks(t *testing.T) {
	t.Parallel()

	hsrv, hc := newHarvester(t)
	rsrv, rc := newRancher(t)
	seedLeaks(hsrv, rsrv)

	leaks, err := FindLeaks(context.Background(), hc, rc, "hvst-e2e")
	require.NoError(t, err)

	type kindID struct{ kind, id string }
	var got []kindID
	for _, l := range leaks {
		got = append(got, kindID{l.Kind, l.ID})
	}
	assert.Equal(t, []kindID{
		{"provisioning cluster", "fleet-default/hvst-e2e-1a2b-rke2"},
		{"cluster", "hvst-e2e-1a2b-rke1"},
		{"cloud credential", "hvst-e2e-1a2b"},
		{"user", "u-x1y2z"},
		{"virtual machine", "default/hvst-e2e-1a2b-rke2-pool1-abcde"},
		{"image", "default/hvst-e2e-1a2b-focal"},
		{"network", "default/hvst-e2e-1a2b-net"},
	}, got)
}

func TestFindLeaks_RequiresPrefix(t *testing.T) {
	t.Parallel()

	_, hc := newHarvester(t)
	_, err := FindLeaks(context.Background(), hc, nil, "")
	assert.Error(t, err)
}

func TestFindLeaks_ListRejected(t *testing.T) {
	t.Parallel()

	hsrv, hc := newHarvester(t)
	hsrv.Route("GET /"+harvester.PathVMs, func(w http.ResponseWriter, _ *http.Request) {
		fakeapi.WriteJSON(w, http.StatusForbidden, map[string]any{"code": "Forbidden"})
	})

	_, err := FindLeaks(context.Background(), hc, nil, "hvst-e2e")
	require.Error(t, err)
	assert.True(t, lifecycle.IsStatus(err))
}

func TestSweep(t *testing.T) {
	t.Parallel()

	hsrv, hc := newHarvester(t)
	rsrv, rc := newRancher(t)
	seedLeaks(hsrv, rsrv)

	leaks, err := Sweep(context.Background(), hc, rc, "hvst-e2e", fastOptions(t))
	require.NoError(t, err)
	assert.Len(t, leaks, 7)

	assert.Equal(t, 1, hsrv.Len(harvester.PathVMs), "foreign VM kept")
	assert.Equal(t, 1, hsrv.Len(harvester.PathNetworks), "shared VLAN network kept")
	assert.Equal(t, 0, hsrv.Len(harvester.PathImages))
	assert.Equal(t, 1, rsrv.Len(rancher.PathClusters), "local cluster kept")
	assert.Equal(t, 1, rsrv.Len(rancher.PathUsers), "admin kept")
	_, ok := hsrv.Object(harvester.PathNetworks, "default/"+naming.VLANNetwork(100))
	assert.True(t, ok)
}

func TestSweep_ContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	hsrv, hc := newHarvester(t)
	rsrv, rc := newRancher(t)
	seedLeaks(hsrv, rsrv)
	hsrv.Route("DELETE /"+harvester.PathImages+"/default/hvst-e2e-1a2b-focal", func(w http.ResponseWriter, _ *http.Request) {
		fakeapi.WriteJSON(w, http.StatusInternalServerError, map[string]any{"message": "boom"})
	})

	_, err := Sweep(context.Background(), hc, rc, "hvst-e2e", fastOptions(t))
	var ce *lifecycle.CleanupError
	require.ErrorAs(t, err, &ce)
	assert.Len(t, ce.Errors, 1)
	assert.Equal(t, 1, hsrv.Len(harvester.PathNetworks), "network deleted after the failed image")
}

func TestDeleteLeak_Unlisted(t *testing.T) {
	t.Parallel()

	err := DeleteLeak(context.Background(), Leak{Kind: "image", ID: "default/x"}, fastOptions(t))
	assert.Error(t, err)
}
