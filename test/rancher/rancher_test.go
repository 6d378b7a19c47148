//go:build e2e

package rancher

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/harvester-e2e/internal/platform/harvester"
	"github.com/imamik/harvester-e2e/internal/resources"
	"github.com/imamik/harvester-e2e/internal/util/naming"
)

var _ = Describe("Rancher with Harvester", Ordered, func() {
	var (
		cluster    resources.HarvesterCluster
		credential string
		image      resources.ImageRef
		networkID  string
		userData   string
	)

	BeforeAll(func() {
		if !sess.Options.VLANEnabled() {
			Skip("downstream clusters need a VLAN network (E2E_VLAN_ID)")
		}
		o := sess.ResourceOptions()

		By("enabling VLAN and creating the guest network")
		setup, err := resources.EnableVLAN(ctx, sess.Harvester, sess.Options.VLANNIC, o)
		must(err)
		scope.Defer("disable VLAN", func(ctx context.Context) error {
			return resources.DisableVLAN(ctx, sess.Harvester, setup, o)
		})

		network, created, err := resources.EnsureVLANNetwork(ctx, sess.Harvester, sess.Options.VLANID, setup.ClusterNetwork, o)
		if created {
			scope.Defer("delete network "+network.ID(), func(ctx context.Context) error {
				return resources.DeleteNetwork(ctx, sess.Harvester, network.Namespace(), network.Name(), o)
			})
		}
		must(err)
		networkID = harvester.ID(network.Namespace(), network.Name())

		By("uploading the guest image")
		name := sess.Name("focal")
		pending := resources.ImageRef{ID: harvester.ID(harvester.DefaultNamespace, name), Name: name, Namespace: harvester.DefaultNamespace}
		scope.Defer("delete image "+pending.ID, func(ctx context.Context) error {
			return resources.DeleteImage(ctx, sess.Harvester, pending, o)
		})
		image, _, err = resources.CreateImageByURL(ctx, sess.Harvester, name, resources.FocalImageURL(sess.Options.ImageCacheURL), o)
		must(err)

		userData, err = resources.DefaultCloudConfig().Render()
		Expect(err).NotTo(HaveOccurred())
	})

	It("imports Harvester into Rancher", func() {
		ro := sess.RancherOptions()

		name := naming.HarvesterMgmtCluster(sess.RunID)
		scope.Defer("remove harvester "+name, func(ctx context.Context) error {
			return resources.RemoveHarvester(ctx, sess.Harvester, sess.Rancher, resources.HarvesterCluster{Name: name}, sess.ResourceOptions())
		})

		var err error
		cluster, err = resources.ImportHarvester(ctx, sess.Rancher, name, sess.ResourceOptions())
		must(err)

		must(resources.RegisterHarvester(ctx, sess.Harvester, sess.Rancher, cluster, ro))

		cred, err := resources.CreateCloudCredential(ctx, sess.Harvester, sess.Rancher, sess.Name("cred"), cluster.ID, sess.ResourceOptions())
		if id := cred.ID(); id != "" {
			scope.Defer("delete cloud credential "+id, func(ctx context.Context) error {
				return resources.DeleteCloudCredential(ctx, sess.Rancher, id, sess.ResourceOptions())
			})
		}
		must(err)
		credential = cred.ID()
	})

	It("gives a new project owner access to exactly one project", func() {
		owner, err := resources.AddProjectOwner(ctx, sess.Rancher, cluster.ID,
			naming.User(sess.RunID), naming.UniqueName("e2e-password"), sess.ResourceOptions())
		must(err)
		must(resources.RemoveProjectOwner(ctx, sess.Rancher, owner, sess.ResourceOptions()))
	})

	Context("RKE2", Ordered, func() {
		var guest resources.GuestCluster

		BeforeAll(func() {
			name := naming.RKE2Cluster(sess.RunID)
			guest = resources.GuestCluster{
				Name:              name,
				ResourceName:      name,
				K8sVersion:        sess.Options.K8sVersion,
				Harvester:         cluster,
				CloudCredentialID: credential,
				Image:             image,
				NetworkID:         networkID,
				UserData:          userData,
			}
			scope.Defer("delete RKE2 cluster "+name, func(ctx context.Context) error {
				return resources.DeleteRKE2Cluster(ctx, sess.Harvester, sess.Rancher, name, sess.RancherOptions())
			})
		})

		var guestClusterID string

		It("provisions a cluster", func() {
			doc, err := resources.CreateRKE2Cluster(ctx, sess.Rancher, guest, sess.RancherOptions())
			must(err)
			guestClusterID = doc.GetString("status.clusterName")
			Expect(guestClusterID).NotTo(BeEmpty())
		})

		It("binds a PVC on the default storage class", func() {
			e := sess.Rancher.Explore(guestClusterID)
			name := sess.Name("pvc")

			res, err := resources.CreatePVC(ctx, e, name, "1Gi", sess.ResourceOptions())
			must(err)
			Expect(res.PVC.GetString("status.phase")).To(Equal("Bound"))
			must(resources.DeletePVC(ctx, e, name, sess.ResourceOptions()))
		})

		It("deletes the cluster and its machines", func() {
			must(resources.DeleteRKE2Cluster(ctx, sess.Harvester, sess.Rancher, guest.Name, sess.RancherOptions()))

			remaining, err := resources.RemainingVMs(ctx, sess.Harvester, naming.HostnamePrefix(guest.Name))
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).To(BeZero())
		})
	})

	Context("RKE1", Ordered, func() {
		It("provisions and deletes a cluster", func() {
			version, err := resources.RKE1Version(ctx, sess.Rancher, sess.Options.K8sVersion, sess.Options.RKE1Version, sess.ResourceOptions())
			must(err)

			name := naming.RKE1Cluster(sess.RunID)
			deleted := false
			scope.Defer("delete RKE1 cluster "+name, func(ctx context.Context) error {
				if deleted {
					return nil
				}
				return resources.DeleteRKE1Cluster(ctx, sess.Harvester, sess.Rancher, name, sess.RancherOptions())
			})

			clusterID, err := resources.CreateRKE1Cluster(ctx, sess.Rancher, resources.GuestCluster{
				Name:              name,
				ResourceName:      name,
				K8sVersion:        version,
				Harvester:         cluster,
				CloudCredentialID: credential,
				Image:             image,
				NetworkID:         networkID,
				UserData:          userData,
			}, sess.RancherOptions())
			must(err)

			found, err := resources.FindRKE1Cluster(ctx, sess.Rancher, name)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(Equal(clusterID))

			must(resources.DeleteRKE1Cluster(ctx, sess.Harvester, sess.Rancher, name, sess.RancherOptions()))
			deleted = true
		})
	})
})
