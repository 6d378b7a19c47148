package resources

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/lifecycle"
	"github.com/imamik/harvester-e2e/internal/platform/harvester"
	"github.com/imamik/harvester-e2e/internal/platform/rancher"
)

// HarvesterCluster is a Harvester cluster imported into Rancher.
type HarvesterCluster struct {
	// ID is the management cluster id (c-m-xxxx) used by the explorer and
	// registration tokens.
	ID string
	// Name is the provisioning cluster name.
	Name string
}

// ImportHarvester creates the provisioning cluster representing Harvester
// in Rancher and waits until Rancher assigns it a management cluster.
func ImportHarvester(ctx context.Context, rc *rancher.Client, name string, o Options) (HarvesterCluster, error) {
	doc, _, err := (&lifecycle.EnsureOperation{
		ResourceType: "mgmt-cluster",
		Name:         name,
		Create: func(ctx context.Context) (int, document.Document, error) {
			return rc.MgmtClusters.Create(ctx, rancher.HarvesterImportBody(name))
		},
		Wait: func(document.Document) *lifecycle.Wait {
			return o.wait(
				fmt.Sprintf("mgmt cluster %s to get a cluster name", name),
				rc.MgmtClusters.Fetch(rancher.FleetID(name)),
				FieldSet("status.clusterName"),
			)
		},
		Logger: o.logger(),
	}).Execute(ctx)
	if err != nil {
		return HarvesterCluster{Name: name}, err
	}
	return HarvesterCluster{ID: doc.GetString("status.clusterName"), Name: name}, nil
}

// RegistrationURL waits for the cluster's registration manifest URL.
func RegistrationURL(ctx context.Context, rc *rancher.Client, clusterID string, o Options) (string, error) {
	doc, err := o.wait(
		fmt.Sprintf("registration URL of %s", clusterID),
		rc.RegistrationTokens.Fetch(rancher.RegistrationTokenID(clusterID)),
		FieldSet("manifestUrl"),
	).Run(ctx, "registration-token", o.logger())
	if err != nil {
		return "", err
	}
	return doc.GetString("manifestUrl"), nil
}

// RegisterHarvester points Harvester at the registration URL and waits
// until Rancher reports the cluster active.
func RegisterHarvester(ctx context.Context, hc *harvester.Client, rc *rancher.Client, cluster HarvesterCluster, o Options) error {
	manifestURL, err := RegistrationURL(ctx, rc, cluster.ID, o)
	if err != nil {
		return err
	}

	code, doc, err := hc.UpdateSetting(ctx, harvester.SettingClusterRegistrationURL, manifestURL)
	if err != nil {
		return fmt.Errorf("update %s: %w", harvester.SettingClusterRegistrationURL, err)
	}
	if err := lifecycle.ExpectStatus("update setting "+harvester.SettingClusterRegistrationURL, code, doc, http.StatusOK); err != nil {
		return err
	}

	_, err = AwaitClusterActive(ctx, rc, cluster.Name, o)
	return err
}

// AwaitClusterActive waits until a provisioning cluster is active.
func AwaitClusterActive(ctx context.Context, rc *rancher.Client, name string, o Options) (document.Document, error) {
	return o.wait(
		fmt.Sprintf("mgmt cluster %s to become active", name),
		rc.MgmtClusters.Fetch(rancher.FleetID(name)),
		StateActive,
	).Run(ctx, "mgmt-cluster", o.logger())
}

// RemoveHarvester deletes the imported cluster and clears Harvester's
// registration URL. Both steps run even if the first fails.
func RemoveHarvester(ctx context.Context, hc *harvester.Client, rc *rancher.Client, cluster HarvesterCluster, o Options) error {
	deleteErr := DeleteMgmtCluster(ctx, rc, cluster.Name, o)

	code, doc, err := hc.UpdateSetting(ctx, harvester.SettingClusterRegistrationURL, "")
	if err != nil {
		err = fmt.Errorf("reset %s: %w", harvester.SettingClusterRegistrationURL, err)
	} else {
		err = lifecycle.ExpectStatus("reset setting "+harvester.SettingClusterRegistrationURL, code, doc, http.StatusOK)
	}
	return errors.Join(deleteErr, err)
}

// DeleteMgmtCluster deletes a provisioning cluster and waits until it is
// gone.
func DeleteMgmtCluster(ctx context.Context, rc *rancher.Client, name string, o Options) error {
	id := rancher.FleetID(name)
	return (&lifecycle.DeleteOperation{
		ResourceType: "mgmt-cluster",
		ID:           id,
		Delete: func(ctx context.Context) (int, document.Document, error) {
			return rc.MgmtClusters.Delete(ctx, id)
		},
		SuccessCodes: []int{http.StatusOK},
		Confirm:      rc.MgmtClusters.Fetch(id),
		Interval:     o.Interval,
		Timeout:      o.Timeout,
		Logger:       o.logger(),
	}).Execute(ctx)
}

// CreateCloudCredential stores a Harvester kubeconfig as a Rancher cloud
// credential and reads it back.
func CreateCloudCredential(ctx context.Context, hc *harvester.Client, rc *rancher.Client, name, harvesterClusterID string, o Options) (document.Document, error) {
	kubeconfig, err := hc.GenerateKubeconfig(ctx)
	if err != nil {
		return nil, err
	}

	doc, _, err := (&lifecycle.EnsureOperation{
		ResourceType: "cloud-credential",
		Name:         name,
		Create: func(ctx context.Context) (int, document.Document, error) {
			return rc.CloudCredentials.Create(ctx, rancher.CloudCredentialBody(name, kubeconfig, harvesterClusterID))
		},
		Logger: o.logger(),
	}).Execute(ctx)
	if err != nil {
		return doc, err
	}

	code, got, err := rc.CloudCredentials.Get(ctx, doc.ID())
	if err != nil {
		return doc, fmt.Errorf("get cloud credential %s: %w", doc.ID(), err)
	}
	if err := lifecycle.ExpectStatus("get cloud credential "+doc.ID(), code, got, http.StatusOK); err != nil {
		return doc, err
	}
	return got, nil
}

// DeleteCloudCredential deletes a cloud credential by id.
func DeleteCloudCredential(ctx context.Context, rc *rancher.Client, id string, o Options) error {
	return deleteNorman(ctx, "cloud-credential", id, rc.CloudCredentials.Delete, o)
}
