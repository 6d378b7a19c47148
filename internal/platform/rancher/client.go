package rancher

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"k8s.io/apimachinery/pkg/util/json"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/platform/apiclient"
)

// Collection paths.
const (
	PathMgmtClusters      = "v1/provisioning.cattle.io.clusters"
	PathSecrets           = "v1/secrets"
	PathHarvesterConfigs  = "v1/rke-machine-config.cattle.io.harvesterconfigs"
	PathClusters          = "v3/clusters"
	PathRegistrationToken = "v3/clusterregistrationtokens"
	PathSettings          = "v3/settings"
	PathUsers             = "v3/users"
	PathGlobalRoles       = "v3/globalrolebindings"
	PathCloudCredentials  = "v3/cloudcredentials"
	PathNodeTemplates     = "v3/nodetemplates"
	PathNodePools         = "v3/nodepools"
	PathProjects          = "v3/projects"
	PathProjectMembers    = "v3/projectroletemplatebindings"
)

// FleetNamespace holds provisioning clusters and their secrets.
const FleetNamespace = "fleet-default"

// Setting names.
const (
	SettingK8sVersionsCurrent    = "k8s-versions-current"
	SettingK8sVersionsDeprecated = "k8s-versions-deprecated"
)

// Client is the Rancher API.
type Client struct {
	api *apiclient.Client

	MgmtClusters       *apiclient.Resource
	Secrets            *apiclient.Resource
	HarvesterConfigs   *apiclient.Resource
	Clusters           *apiclient.Resource
	RegistrationTokens *apiclient.Resource
	Settings           *apiclient.Resource
	Users              *apiclient.Resource
	GlobalRoleBindings *apiclient.Resource
	CloudCredentials   *apiclient.Resource
	NodeTemplates      *apiclient.Resource
	NodePools          *apiclient.Resource
	Projects           *apiclient.Resource
	ProjectMembers     *apiclient.Resource
}

// New wraps an API client.
func New(api *apiclient.Client) *Client {
	return &Client{
		api:                api,
		MgmtClusters:       api.Resource(PathMgmtClusters),
		Secrets:            api.Resource(PathSecrets),
		HarvesterConfigs:   api.Resource(PathHarvesterConfigs),
		Clusters:           api.Resource(PathClusters),
		RegistrationTokens: api.Resource(PathRegistrationToken),
		Settings:           api.Resource(PathSettings),
		Users:              api.Resource(PathUsers),
		GlobalRoleBindings: api.Resource(PathGlobalRoles),
		CloudCredentials:   api.Resource(PathCloudCredentials),
		NodeTemplates:      api.Resource(PathNodeTemplates),
		NodePools:          api.Resource(PathNodePools),
		Projects:           api.Resource(PathProjects),
		ProjectMembers:     api.Resource(PathProjectMembers),
	}
}

// API returns the underlying client.
func (c *Client) API() *apiclient.Client {
	return c.api
}

// Login returns a client authenticated as another local user.
func (c *Client) Login(ctx context.Context, username, password string) (*Client, error) {
	api, err := c.api.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return New(api), nil
}

// FleetID returns the id of a provisioning cluster.
func FleetID(name string) string {
	return FleetNamespace + "/" + name
}

// RegistrationTokenID returns the id of a cluster's default registration
// token.
func RegistrationTokenID(clusterID string) string {
	return clusterID + ":default-token"
}

// Setting returns the value of a Rancher setting.
func (c *Client) Setting(ctx context.Context, name string) (string, error) {
	code, doc, err := c.Settings.Get(ctx, name)
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", name, err)
	}
	if code != http.StatusOK {
		return "", fmt.Errorf("get setting %s: unexpected status %d: %s", name, code, doc)
	}
	return doc.GetString("value"), nil
}

// AddGlobalRole binds a global role such as "user" to a user.
func (c *Client) AddGlobalRole(ctx context.Context, userID, role string) (int, document.Document, error) {
	return c.GlobalRoleBindings.Create(ctx, document.Document{
		"type":         "globalRoleBinding",
		"globalRoleId": role,
		"userId":       userID,
	})
}

// HarvesterKubeconfig asks the imported Harvester cluster for a kubeconfig
// bound to a cloud-provider service account named after the guest cluster.
// The proxy answers with a JSON string, which is returned decoded.
func (c *Client) HarvesterKubeconfig(ctx context.Context, harvesterClusterID, guestCluster string) (int, string, error) {
	path := fmt.Sprintf("k8s/clusters/%s/v1/harvester/kubeconfig", harvesterClusterID)
	code, raw, err := c.api.DoRaw(ctx, http.MethodPost, path, document.Document{
		"clusterRoleName":    "harvesterhci.io:cloudprovider",
		"namespace":          "default",
		"serviceAccountName": guestCluster,
	})
	if err != nil {
		return code, "", fmt.Errorf("create kubeconfig for %s: %w", guestCluster, err)
	}
	return code, decodeKubeconfig(raw), nil
}

func decodeKubeconfig(raw []byte) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// Older proxies return the quoted text with escaped newlines.
	text := strings.TrimSpace(string(raw))
	text = strings.TrimSuffix(strings.TrimPrefix(text, `"`), `"`)
	return strings.ReplaceAll(text, `\n`, "\n")
}
