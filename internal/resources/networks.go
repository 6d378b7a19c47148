package resources

import (
	"context"
	"fmt"
	"net/http"

	"github.com/samber/lo"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/lifecycle"
	"github.com/imamik/harvester-e2e/internal/platform/harvester"
	"github.com/imamik/harvester-e2e/internal/util/naming"
)

// VLANNetworkName returns the conventional name of the network for a VLAN
// id. VLAN ids are unique per cluster, so the name doubles as the lookup
// key shared by concurrent runs.
func VLANNetworkName(vlanID int) string {
	return naming.VLANNetwork(vlanID)
}

// LookupNetworkByVLAN lists networks and returns those bridged on vlanID.
// Networks with an unreadable spec.config are skipped.
func LookupNetworkByVLAN(ctx context.Context, hc *harvester.Client, vlanID int) ([]document.Document, error) {
	code, list, err := hc.Networks.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("list networks: unexpected status %d: %s", code, list)
	}
	return lo.Filter(list.Items(), func(n document.Document, _ int) bool {
		cfg, err := harvester.ParseBridgeConfig(n)
		return err == nil && cfg.VLAN == vlanID
	}), nil
}

// EnsureVLANNetwork returns the network for vlanID, creating
// vlan-network-<id> on clusterNetwork when none exists and waiting until
// its view link answers 200. The returned document's id is the network
// name.
func EnsureVLANNetwork(ctx context.Context, hc *harvester.Client, vlanID int, clusterNetwork string, o Options) (document.Document, bool, error) {
	name := VLANNetworkName(vlanID)
	op := &lifecycle.EnsureOperation{
		ResourceType: "network",
		Name:         name,
		Lookup: func(ctx context.Context) ([]document.Document, error) {
			return LookupNetworkByVLAN(ctx, hc, vlanID)
		},
		Create: func(ctx context.Context) (int, document.Document, error) {
			body, err := harvester.NetworkBody(name, harvester.DefaultNamespace, vlanID, clusterNetwork)
			if err != nil {
				return 0, nil, err
			}
			return hc.Networks.Create(ctx, body)
		},
		Wait: func(created document.Document) *lifecycle.Wait {
			fetch := hc.Networks.Fetch(harvester.ID(harvester.DefaultNamespace, name))
			if view := created.GetString("links.view"); view != "" {
				fetch = hc.API().FetchURL(view)
			}
			return o.wait(
				fmt.Sprintf("network %s to become available", created.ID()),
				fetch,
				CodeIs(http.StatusOK),
			)
		},
		Logger: o.logger(),
	}

	doc, created, err := op.Execute(ctx)
	if doc != nil && (err == nil || created) {
		doc["id"] = doc.Name()
	}
	return doc, created, err
}

// DeleteNetwork deletes a network. Harvester refuses with 400 while a VM
// is still attached, so the delete is retried until it is accepted and
// then the network is polled until it is gone.
func DeleteNetwork(ctx context.Context, hc *harvester.Client, namespace, name string, o Options) error {
	if namespace == "" {
		namespace = harvester.DefaultNamespace
	}
	id := harvester.ID(namespace, name)
	return (&lifecycle.DeleteOperation{
		ResourceType: "network",
		ID:           id,
		Delete: func(ctx context.Context) (int, document.Document, error) {
			return hc.Networks.Delete(ctx, id)
		},
		Confirm:  hc.Networks.Fetch(id),
		Interval: o.Interval,
		Timeout:  o.Timeout,
		Logger:   o.logger(),
	}).Execute(ctx)
}

// VLANSetup records how VLAN networking was enabled so it can be undone.
type VLANSetup struct {
	ClusterNetwork string
	Legacy         bool

	// CreatedClusterNetwork and CreatedConfig are set when this run created
	// them. Pre-existing objects such as the built-in mgmt network are left
	// alone on teardown.
	CreatedClusterNetwork bool
	CreatedConfig         bool
}

// EnableVLAN makes VLAN networks on nic possible. Harvester after v1.0.3
// needs a cluster network and a VLAN config named after the NIC; older
// releases enable the single "vlan" cluster network instead.
func EnableVLAN(ctx context.Context, hc *harvester.Client, nic string, o Options) (VLANSetup, error) {
	version, err := hc.Version(ctx)
	if err != nil {
		return VLANSetup{}, err
	}
	log := o.logger().WithValues("nic", nic, "version", version)

	if !harvester.HasClusterNetworks(version) {
		log.Info("Enabling legacy VLAN cluster network")
		return VLANSetup{ClusterNetwork: harvester.LegacyVLANNetwork, Legacy: true}, enableLegacyVLAN(ctx, hc, nic, o)
	}

	setup := VLANSetup{ClusterNetwork: nic}
	_, setup.CreatedClusterNetwork, err = ensureByName(ctx, "cluster-network", nic,
		hc.ClusterNetworks.Get, func(ctx context.Context) (int, document.Document, error) {
			return hc.ClusterNetworks.Create(ctx, harvester.ClusterNetworkBody(nic))
		}, o)
	if err != nil {
		return setup, err
	}

	_, setup.CreatedConfig, err = ensureByName(ctx, "vlan-config", nic,
		hc.VLANConfigs.Get, func(ctx context.Context) (int, document.Document, error) {
			return hc.VLANConfigs.Create(ctx, harvester.VLANConfigBody(nic, nic, nic))
		}, o)
	return setup, err
}

// DisableVLAN removes what EnableVLAN created, VLAN config first.
func DisableVLAN(ctx context.Context, hc *harvester.Client, setup VLANSetup, o Options) error {
	if setup.Legacy {
		return nil
	}

	cleanup := &lifecycle.CleanupError{}
	if setup.CreatedConfig {
		cleanup.Add(deleteByName(ctx, "vlan-config", setup.ClusterNetwork, hc.VLANConfigs.Delete, hc.VLANConfigs.Get, o))
	}
	if setup.CreatedClusterNetwork {
		cleanup.Add(deleteByName(ctx, "cluster-network", setup.ClusterNetwork, hc.ClusterNetworks.Delete, hc.ClusterNetworks.Get, o))
	}
	if cleanup.HasErrors() {
		return cleanup
	}
	return nil
}

func enableLegacyVLAN(ctx context.Context, hc *harvester.Client, nic string, o Options) error {
	update := func(ctx context.Context) (int, document.Document, error) {
		code, current, err := hc.ClusterNetworks.Get(ctx, harvester.LegacyVLANNetwork)
		if err != nil || code != http.StatusOK {
			return code, current, err
		}
		return hc.ClusterNetworks.Update(ctx, harvester.LegacyVLANNetwork, harvester.EnableLegacyVLAN(current, nic))
	}
	_, err := o.wait("legacy VLAN network to be enabled", update, CodeIs(http.StatusOK)).
		Run(ctx, "cluster-network", o.logger())
	return err
}

// idCall issues a request against one item.
type idCall func(ctx context.Context, id string) (int, document.Document, error)

// ensureByName creates a cluster-scoped object unless one with that name
// exists.
func ensureByName(ctx context.Context, resourceType, name string, get idCall, create lifecycle.Call, o Options) (document.Document, bool, error) {
	return (&lifecycle.EnsureOperation{
		ResourceType: resourceType,
		Name:         name,
		Lookup: func(ctx context.Context) ([]document.Document, error) {
			code, doc, err := get(ctx, name)
			switch {
			case err != nil:
				return nil, err
			case code == http.StatusOK:
				return []document.Document{doc}, nil
			case code == http.StatusNotFound:
				return nil, nil
			default:
				return nil, fmt.Errorf("get %s %s: unexpected status %d: %s", resourceType, name, code, doc)
			}
		},
		Create: create,
		Logger: o.logger(),
	}).Execute(ctx)
}

func deleteByName(ctx context.Context, resourceType, name string, del, get idCall, o Options) error {
	return (&lifecycle.DeleteOperation{
		ResourceType: resourceType,
		ID:           name,
		Delete: func(ctx context.Context) (int, document.Document, error) {
			return del(ctx, name)
		},
		Confirm: func(ctx context.Context) (int, document.Document, error) {
			return get(ctx, name)
		},
		Interval: o.Interval,
		Timeout:  o.Timeout,
		Logger:   o.logger(),
	}).Execute(ctx)
}
