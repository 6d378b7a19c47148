package harvester

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/testing/fakeapi"
)

func TestHasClusterNetworks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		version string
		want    bool
	}{
		{"v1.0.2", false},
		{"v1.0.3", false},
		{"v1.0.4", true},
		{"v1.1.0-rc1", true},
		{"v1.2.1", true},
		{"master-0a1b2c-head", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, HasClusterNetworks(tt.version))
		})
	}
}

func TestVersionAndUpdateSetting(t *testing.T) {
	t.Parallel()

	srv := fakeapi.New(t)
	srv.Collection(PathSettings, fakeapi.Behavior{})
	srv.Seed(PathSettings, document.Document{"metadata": map[string]any{"name": SettingServerVersion}, "value": "v1.2.1"})
	srv.Seed(PathSettings, document.Document{"metadata": map[string]any{"name": SettingClusterRegistrationURL}, "value": ""})
	c := New(srv.Client(t))
	ctx := context.Background()

	v, err := c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1.2.1", v)

	code, _, err := c.UpdateSetting(ctx, SettingClusterRegistrationURL, "https://rancher.local/v3/import/abc.yaml")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	stored, ok := srv.Object(PathSettings, SettingClusterRegistrationURL)
	require.True(t, ok)
	assert.Equal(t, "https://rancher.local/v3/import/abc.yaml", stored.GetString("value"))
}

func TestUpdateSetting_Missing(t *testing.T) {
	t.Parallel()

	srv := fakeapi.New(t)
	srv.Collection(PathSettings, fakeapi.Behavior{})
	c := New(srv.Client(t))

	code, _, err := c.UpdateSetting(context.Background(), "nope", "x")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Zero(t, srv.Count(http.MethodPut, "/"+PathSettings+"/nope"))
}

func TestGenerateKubeconfig(t *testing.T) {
	t.Parallel()

	srv := fakeapi.New(t)
	srv.Collection(PathManagement, fakeapi.Behavior{
		Actions: map[string]fakeapi.ActionFunc{
			"generateKubeconfig": func(_, _ document.Document) (int, document.Document) {
				return http.StatusOK, document.Document{"config": "apiVersion: v1\nkind: Config\n"}
			},
		},
	})
	srv.Seed(PathManagement, document.Document{"metadata": map[string]any{"name": "local"}})

	cfg, err := New(srv.Client(t)).GenerateKubeconfig(context.Background())
	require.NoError(t, err)
	assert.Contains(t, cfg, "kind: Config")
}

func TestGenerateKubeconfig_Empty(t *testing.T) {
	t.Parallel()

	srv := fakeapi.New(t)
	srv.Collection(PathManagement, fakeapi.Behavior{
		Actions: map[string]fakeapi.ActionFunc{
			"generateKubeconfig": func(_, _ document.Document) (int, document.Document) {
				return http.StatusOK, document.Document{"config": " "}
			},
		},
	})
	srv.Seed(PathManagement, document.Document{"metadata": map[string]any{"name": "local"}})

	_, err := New(srv.Client(t)).GenerateKubeconfig(context.Background())
	assert.ErrorContains(t, err, "empty config")
}

func TestNetworkBody(t *testing.T) {
	t.Parallel()

	body, err := NetworkBody("vlan-network-100", DefaultNamespace, 100, "mgmt")
	require.NoError(t, err)

	assert.Equal(t, "vlan-network-100", body.Name())
	assert.Equal(t, "mgmt", body.Label(LabelClusterNetwork))
	assert.Equal(t, NetworkTypeL2VLAN, body.Label(LabelNetworkType))

	cfg, err := ParseBridgeConfig(body)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.VLAN)
	assert.Equal(t, "mgmt-br", cfg.Bridge)
	assert.Equal(t, "bridge", cfg.Type)
}

func TestParseBridgeConfig_Invalid(t *testing.T) {
	t.Parallel()

	_, err := ParseBridgeConfig(document.Document{"metadata": map[string]any{"name": "n"}})
	assert.ErrorContains(t, err, "no spec.config")

	_, err = ParseBridgeConfig(document.Document{"spec": map[string]any{"config": "{"}})
	assert.Error(t, err)
}

func TestEnableLegacyVLAN(t *testing.T) {
	t.Parallel()

	doc := EnableLegacyVLAN(document.Document{"id": "vlan", "enable": false}, "eth1")
	assert.True(t, doc.GetBool("enable"))
	assert.Equal(t, "eth1", doc.GetString("config.defaultPhysicalNIC"))

	doc = EnableLegacyVLAN(nil, "eth2")
	assert.Equal(t, "eth2", doc.GetString("config.defaultPhysicalNIC"))
}

func TestImageByURLBody(t *testing.T) {
	t.Parallel()

	body := ImageByURLBody("focal", DefaultNamespace, "https://cloud-images.ubuntu.com/focal.img")
	assert.Equal(t, "download", body.GetString("spec.sourceType"))
	assert.Equal(t, "https://cloud-images.ubuntu.com/focal.img", body.GetString("spec.url"))
	assert.Equal(t, "default", body.Namespace())
}

func TestParseKubeconfig(t *testing.T) {
	t.Parallel()

	cfg, err := ParseKubeconfig(`apiVersion: v1
kind: Config
clusters:
- name: local
  cluster:
    server: https://harvester.local/k8s/clusters/local
contexts:
- name: local
  context:
    cluster: local
current-context: local
`)
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.CurrentContext)
	assert.Equal(t, "https://harvester.local/k8s/clusters/local", cfg.Clusters["local"].Server)

	_, err = ParseKubeconfig("clusters: [unterminated")
	assert.ErrorContains(t, err, "invalid kubeconfig")
}
