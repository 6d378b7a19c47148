package harvester

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/platform/apiclient"
)

// Collection paths.
const (
	PathNetworks        = "v1/harvester/k8s.cni.cncf.io.network-attachment-definitions"
	PathImages          = "v1/harvester/harvesterhci.io.virtualmachineimages"
	PathVMs             = "v1/harvester/kubevirt.io.virtualmachines"
	PathSettings        = "v1/harvester/harvesterhci.io.settings"
	PathClusterNetworks = "v1/harvester/network.harvesterhci.io.clusternetworks"
	PathVLANConfigs     = "v1/harvester/network.harvesterhci.io.vlanconfigs"
	PathManagement      = "v1/management.cattle.io.clusters"
)

// DefaultNamespace is where the suites create namespaced resources.
const DefaultNamespace = "default"

// Setting names.
const (
	SettingServerVersion          = "server-version"
	SettingClusterRegistrationURL = "cluster-registration-url"
)

// LegacyVLANNetwork is the single cluster network used by Harvester up to
// v1.0.3.
const LegacyVLANNetwork = "vlan"

// clusterNetworksSince is the last release without per-NIC cluster
// networks and VLAN configs.
var clusterNetworksSince = semver.MustParse("v1.0.3")

// Client is the Harvester API.
type Client struct {
	api *apiclient.Client

	Networks        *apiclient.Resource
	Images          *apiclient.Resource
	VMs             *apiclient.Resource
	Settings        *apiclient.Resource
	ClusterNetworks *apiclient.Resource
	VLANConfigs     *apiclient.Resource
}

// New wraps an API client.
func New(api *apiclient.Client) *Client {
	return &Client{
		api:             api,
		Networks:        api.Resource(PathNetworks),
		Images:          api.Resource(PathImages),
		VMs:             api.Resource(PathVMs),
		Settings:        api.Resource(PathSettings),
		ClusterNetworks: api.Resource(PathClusterNetworks),
		VLANConfigs:     api.Resource(PathVLANConfigs),
	}
}

// API returns the underlying client.
func (c *Client) API() *apiclient.Client {
	return c.api
}

// ID joins a namespace and a name into an item id.
func ID(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "/" + name
}

// Version returns the raw server version, e.g. "v1.2.1" or
// "master-0a1b2c-head" for development builds.
func (c *Client) Version(ctx context.Context) (string, error) {
	code, doc, err := c.Settings.Get(ctx, SettingServerVersion)
	if err != nil {
		return "", fmt.Errorf("get server version: %w", err)
	}
	if code != http.StatusOK {
		return "", fmt.Errorf("get server version: unexpected status %d: %s", code, doc)
	}
	return doc.GetString("value"), nil
}

// HasClusterNetworks reports whether a server of the given version manages
// VLANs through cluster networks and VLAN configs. Versions that do not
// parse as semver are development builds and count as the newest release.
func HasClusterNetworks(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return true
	}
	return v.GreaterThan(clusterNetworksSince)
}

// UpdateSetting reads a setting, replaces its value and writes it back.
func (c *Client) UpdateSetting(ctx context.Context, name, value string) (int, document.Document, error) {
	code, doc, err := c.Settings.Get(ctx, name)
	if err != nil || code != http.StatusOK {
		return code, doc, err
	}
	doc["value"] = value
	return c.Settings.Update(ctx, name, doc)
}

// GenerateKubeconfig returns a kubeconfig for the embedded local cluster.
func (c *Client) GenerateKubeconfig(ctx context.Context) (string, error) {
	code, doc, err := c.api.Resource(PathManagement).Action(ctx, "local", "generateKubeconfig", nil)
	if err != nil {
		return "", fmt.Errorf("generate kubeconfig: %w", err)
	}
	if code != http.StatusOK {
		return "", fmt.Errorf("generate kubeconfig: unexpected status %d: %s", code, doc)
	}
	cfg := doc.GetString("config")
	if strings.TrimSpace(cfg) == "" {
		return "", fmt.Errorf("generate kubeconfig: empty config in response")
	}
	if _, err := ParseKubeconfig(cfg); err != nil {
		return "", fmt.Errorf("generate kubeconfig: %w", err)
	}
	return cfg, nil
}

// ParseKubeconfig checks that data is a loadable kubeconfig.
func ParseKubeconfig(data string) (*clientcmdapi.Config, error) {
	cfg, err := clientcmd.Load([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("invalid kubeconfig: %w", err)
	}
	return cfg, nil
}
