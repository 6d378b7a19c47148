package resources

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/lifecycle"
	"github.com/imamik/harvester-e2e/internal/platform/harvester"
	"github.com/imamik/harvester-e2e/internal/platform/rancher"
)

// conditionInterval is the poll interval while an RKE1 cluster migrates
// its secrets.
const conditionInterval = 3 * time.Second

// ConditionRKESecretsMigrated marks an RKE1 cluster ready for node pools.
const ConditionRKESecretsMigrated = "RKESecretsMigrated"

// GuestCluster describes an RKE cluster whose machines run on Harvester.
type GuestCluster struct {
	// Name is the cluster name; machines are named "<Name>-...".
	Name string
	// ResourceName names the supporting objects (machine config, node
	// template, secret).
	ResourceName string
	K8sVersion   string

	Harvester         HarvesterCluster
	CloudCredentialID string
	Image             ImageRef
	NetworkID         string
	UserData          string
}

func (g GuestCluster) machine() rancher.MachineSpec {
	return rancher.DefaultMachineSpec(g.Image.ID, g.NetworkID, g.Image.SSHUser, g.UserData)
}

func (g GuestCluster) hostnamePrefix() string {
	return g.Name + "-"
}

// CreateRKE2Cluster provisions an RKE2 cluster: a cloud-provider
// kubeconfig from Harvester, the secret holding it, the machine config and
// finally the provisioning cluster, which is polled until status.ready.
func CreateRKE2Cluster(ctx context.Context, rc *rancher.Client, g GuestCluster, o Options) (document.Document, error) {
	log := o.logger().WithValues("cluster", g.Name)

	code, kubeconfig, err := rc.HarvesterKubeconfig(ctx, g.Harvester.ID, g.Name)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK || kubeconfig == "" {
		return nil, fmt.Errorf("create harvester kubeconfig for %s: status %d, empty=%t", g.Name, code, kubeconfig == "")
	}
	if _, err := harvester.ParseKubeconfig(kubeconfig); err != nil {
		return nil, fmt.Errorf("create harvester kubeconfig for %s: %w", g.Name, err)
	}

	secretBody, err := rancher.CloudProviderSecretBody(g.ResourceName, kubeconfig, g.Name)
	if err != nil {
		return nil, err
	}
	code, secret, err := rc.Secrets.Create(ctx, secretBody)
	if err != nil {
		return nil, fmt.Errorf("create secret %s: %w", g.ResourceName, err)
	}
	if err := lifecycle.ExpectStatus("create secret "+g.ResourceName, code, secret, http.StatusCreated); err != nil {
		return nil, err
	}
	log.V(1).Info("Created cloud provider secret", "id", secret.ID())

	code, cfg, err := rc.HarvesterConfigs.Create(ctx, rancher.HarvesterConfigBody(g.ResourceName, g.machine()))
	if err != nil {
		return nil, fmt.Errorf("create harvester config %s: %w", g.ResourceName, err)
	}
	if err := lifecycle.ExpectStatus("create harvester config "+g.ResourceName, code, cfg, http.StatusCreated); err != nil {
		return nil, err
	}

	doc, _, err := (&lifecycle.EnsureOperation{
		ResourceType: "mgmt-cluster",
		Name:         g.Name,
		Create: func(ctx context.Context) (int, document.Document, error) {
			return rc.MgmtClusters.Create(ctx, rancher.RKE2ClusterBody(rancher.RKE2Cluster{
				Name:                  g.Name,
				K8sVersion:            g.K8sVersion,
				CloudCredentialID:     g.CloudCredentialID,
				CloudProviderConfigID: rancher.SecretRef(secret),
				HarvesterConfigName:   g.ResourceName,
				HostnamePrefix:        g.hostnamePrefix(),
			}))
		},
		Wait: func(document.Document) *lifecycle.Wait {
			return o.wait(fmt.Sprintf("RKE2 cluster %s to become ready", g.Name),
				rc.MgmtClusters.Fetch(rancher.FleetID(g.Name)), StatusReady)
		},
		Logger: log,
	}).Execute(ctx)
	return doc, err
}

// DeleteRKE2Cluster deletes an RKE2 cluster and verifies that none of its
// VMs remain.
func DeleteRKE2Cluster(ctx context.Context, hc *harvester.Client, rc *rancher.Client, name string, o Options) error {
	if err := DeleteMgmtCluster(ctx, rc, name, o); err != nil {
		return err
	}
	n, err := RemainingVMs(ctx, hc, name+"-")
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("cluster %s deleted but %d VMs remain", name, n)
	}
	return nil
}

// RemainingVMs counts the VMs whose name starts with prefix.
func RemainingVMs(ctx context.Context, hc *harvester.Client, prefix string) (int, error) {
	code, list, err := hc.VMs.List(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("list VMs: %w", err)
	}
	if code != http.StatusOK {
		return 0, fmt.Errorf("list VMs: unexpected status %d: %s", code, list)
	}
	return lo.CountBy(list.Items(), func(vm document.Document) bool {
		return strings.HasPrefix(vm.Name(), prefix)
	}), nil
}

// CreateRKE1Cluster provisions an RKE1 cluster: node template, cluster,
// wait for secrets migration, node pool, then wait until the provisioning
// view of the cluster is ready. It returns the cluster id.
func CreateRKE1Cluster(ctx context.Context, rc *rancher.Client, g GuestCluster, o Options) (string, error) {
	log := o.logger().WithValues("cluster", g.Name)

	code, tmpl, err := rc.NodeTemplates.Create(ctx, rancher.NodeTemplateBody(g.ResourceName, g.CloudCredentialID, g.machine()))
	if err != nil {
		return "", fmt.Errorf("create node template %s: %w", g.ResourceName, err)
	}
	if err := lifecycle.ExpectStatus("create node template "+g.ResourceName, code, tmpl, http.StatusCreated); err != nil {
		return "", err
	}

	cluster, _, err := (&lifecycle.EnsureOperation{
		ResourceType: "cluster",
		Name:         g.Name,
		Create: func(ctx context.Context) (int, document.Document, error) {
			return rc.Clusters.Create(ctx, rancher.RKE1ClusterBody(g.Name, g.K8sVersion))
		},
		Wait: func(created document.Document) *lifecycle.Wait {
			w := o.wait(fmt.Sprintf("RKE1 cluster %s to migrate secrets", g.Name),
				rc.Clusters.Fetch(created.ID()), HasCondition(ConditionRKESecretsMigrated))
			w.Interval = min(intervalOrDefault(o.Interval), conditionInterval)
			return w
		},
		Logger: log,
	}).Execute(ctx)
	if err != nil {
		return "", err
	}
	clusterID := cluster.ID()

	code, pool, err := rc.NodePools.Create(ctx, rancher.NodePoolBody(clusterID, tmpl.ID(), g.hostnamePrefix()))
	if err != nil {
		return clusterID, fmt.Errorf("create node pool for %s: %w", clusterID, err)
	}
	if err := lifecycle.ExpectStatus("create node pool for "+clusterID, code, pool, http.StatusCreated); err != nil {
		return clusterID, err
	}

	_, err = o.wait(fmt.Sprintf("RKE1 cluster %s to become ready", clusterID),
		rc.MgmtClusters.Fetch(rancher.FleetID(clusterID)), StatusReady).
		Run(ctx, "mgmt-cluster", log)
	return clusterID, err
}

// FindRKE1Cluster returns the id of the cluster whose applied display name
// is name.
func FindRKE1Cluster(ctx context.Context, rc *rancher.Client, name string) (string, error) {
	code, list, err := rc.Clusters.List(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("list clusters: %w", err)
	}
	if code != http.StatusOK {
		return "", fmt.Errorf("list clusters: unexpected status %d: %s", code, list)
	}
	found, ok := lo.Find(list.Items(), func(c document.Document) bool {
		return c.GetString("appliedSpec.displayName") == name
	})
	if !ok {
		return "", fmt.Errorf("no cluster with display name %q", name)
	}
	return found.ID(), nil
}

// DeleteRKE1Cluster deletes an RKE1 cluster by display name. RKE1 VMs can
// linger in Terminating after the cluster is gone, so the wait ends only
// once the cluster answers 404 and no VM named "<name>-..." remains.
func DeleteRKE1Cluster(ctx context.Context, hc *harvester.Client, rc *rancher.Client, name string, o Options) error {
	clusterID, err := FindRKE1Cluster(ctx, rc, name)
	if err != nil {
		return err
	}

	if err := (&lifecycle.DeleteOperation{
		ResourceType: "mgmt-cluster",
		ID:           rancher.FleetID(clusterID),
		Delete: func(ctx context.Context) (int, document.Document, error) {
			return rc.MgmtClusters.Delete(ctx, rancher.FleetID(clusterID))
		},
		SuccessCodes: []int{http.StatusOK},
		Interval:     o.Interval,
		Timeout:      o.Timeout,
		Logger:       o.logger(),
	}).Execute(ctx); err != nil {
		return err
	}

	fetch := func(ctx context.Context) (int, document.Document, error) {
		code, doc, err := rc.Clusters.Get(ctx, clusterID)
		if err != nil || code != http.StatusNotFound {
			return code, doc, err
		}
		n, err := RemainingVMs(ctx, hc, name+"-")
		if err != nil {
			return code, doc, err
		}
		return code, document.Document{"remainingVMs": int64(n)}, nil
	}
	noVMs := func(code int, doc document.Document) (bool, error) {
		n, _ := doc.GetInt64("remainingVMs")
		return code == http.StatusNotFound && n == 0, nil
	}
	_, err = o.wait(fmt.Sprintf("RKE1 cluster %s and its VMs to be gone", clusterID), fetch, noVMs).
		Run(ctx, "cluster", o.logger())
	return err
}

var rkeSuffix = regexp.MustCompile(`\+rke(\d+)r(\d+)`)

// RKE1Version picks the RKE1 Kubernetes version. A configured version is
// used as is. Otherwise the RKE2 version is mapped to its RKE1 form
// (v1.24.11+rke2r1 becomes v1.24.11-rancher2-1) and used if Rancher lists
// it as current or deprecated; failing that the newest current version is
// returned.
func RKE1Version(ctx context.Context, rc *rancher.Client, k8sVersion, configured string, o Options) (string, error) {
	if configured != "" {
		return configured, nil
	}
	version := rkeSuffix.ReplaceAllString(k8sVersion, "-rancher$1-$2")

	current, err := rc.Setting(ctx, rancher.SettingK8sVersionsCurrent)
	if err != nil {
		return "", err
	}
	currentList := splitVersions(current)
	if slices.Contains(currentList, version) {
		return version, nil
	}

	deprecated, err := rc.Setting(ctx, rancher.SettingK8sVersionsDeprecated)
	if err != nil {
		return "", err
	}
	if slices.Contains(splitVersions(deprecated), version) {
		return version, nil
	}

	if len(currentList) == 0 {
		return "", fmt.Errorf("rancher lists no current kubernetes versions")
	}
	latest := currentList[len(currentList)-1]
	o.logger().Info("Kubernetes version not supported by RKE1, using latest instead",
		"requested", version, "latest", latest)
	return latest, nil
}

func splitVersions(s string) []string {
	return lo.Compact(lo.Map(strings.Split(s, ","), func(v string, _ int) string {
		return strings.TrimSpace(v)
	}))
}

func intervalOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return lifecycle.DefaultInterval
	}
	return d
}
