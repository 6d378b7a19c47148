package rancher

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/harvester-e2e/internal/document"
)

// Annotations that let a provisioning cluster use and later delete a
// cloud-provider secret.
const (
	AnnotationAuthorizedForCluster = "v2prov-secret-authorized-for-cluster"
	AnnotationDeletesOnRemoval     = "v2prov-authorized-secret-deletes-on-cluster-removal"
	LabelProvider                  = "provider.cattle.io"
)

// MachineSpec sizes the guest VMs of an RKE cluster on Harvester.
type MachineSpec struct {
	CPUs      string
	MemoryGiB string
	DiskGiB   string
	ImageID   string
	NetworkID string
	SSHUser   string
	UserData  string
	Namespace string
}

// DefaultMachineSpec returns 2 CPUs, 4 GiB memory and a 40 GiB disk.
func DefaultMachineSpec(imageID, networkID, sshUser, userData string) MachineSpec {
	return MachineSpec{
		CPUs:      "2",
		MemoryGiB: "4",
		DiskGiB:   "40",
		ImageID:   imageID,
		NetworkID: networkID,
		SSHUser:   sshUser,
		UserData:  userData,
		Namespace: "default",
	}
}

func (m MachineSpec) fields() map[string]any {
	return map[string]any{
		"cpuCount":    m.CPUs,
		"memorySize":  m.MemoryGiB,
		"diskSize":    m.DiskGiB,
		"imageName":   m.ImageID,
		"networkName": m.NetworkID,
		"sshUser":     m.SSHUser,
		"userData":    m.UserData,
		"vmNamespace": m.Namespace,
	}
}

// HarvesterImportBody builds the provisioning cluster that represents an
// imported Harvester cluster in Virtualization Management.
func HarvesterImportBody(name string) document.Document {
	return document.Document{
		"type": "provisioning.cattle.io.cluster",
		"metadata": map[string]any{
			"name":      name,
			"namespace": FleetNamespace,
			"labels":    map[string]any{LabelProvider: "harvester"},
		},
		"spec": map[string]any{"agentEnvVars": []any{}},
	}
}

// CloudCredentialBody builds a Harvester cloud credential.
func CloudCredentialBody(name, kubeconfig, harvesterClusterID string) document.Document {
	return document.Document{
		"type": "provisioning.cattle.io/cloud-credential",
		"metadata": map[string]any{
			"generateName": "cc-",
			"namespace":    FleetNamespace,
		},
		"_name":       name,
		"annotations": map[string]any{"provisioning.cattle.io/driver": "harvester"},
		"harvestercredentialConfig": map[string]any{
			"clusterId":         harvesterClusterID,
			"clusterType":       "imported",
			"kubeconfigContent": kubeconfig,
		},
	}
}

// CloudProviderSecretBody builds the secret carrying the guest cluster's
// cloud-provider kubeconfig.
func CloudProviderSecretBody(name, kubeconfig, guestCluster string) (document.Document, error) {
	secret := corev1.Secret{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: FleetNamespace,
			Annotations: map[string]string{
				AnnotationAuthorizedForCluster: guestCluster,
				AnnotationDeletesOnRemoval:     "true",
			},
		},
		Data: map[string][]byte{"credential": []byte(kubeconfig)},
		Type: corev1.SecretTypeOpaque,
	}
	doc, err := document.From(&secret)
	if err != nil {
		return nil, fmt.Errorf("encode secret %s: %w", name, err)
	}
	doc["type"] = "secret"
	return doc, nil
}

// SecretRef returns the "namespace:name" reference used by
// cloud-provider-config.
func SecretRef(secret document.Document) string {
	return secret.Namespace() + ":" + secret.Name()
}

// HarvesterConfigBody builds the RKE2 machine config.
func HarvesterConfigBody(name string, m MachineSpec) document.Document {
	doc := document.Document(m.fields())
	doc["type"] = "rke-machine-config.cattle.io.harvesterconfig"
	doc["metadata"] = map[string]any{"name": name, "namespace": FleetNamespace}
	return doc
}

// RKE2Cluster describes a guest RKE2 cluster provisioned on Harvester.
type RKE2Cluster struct {
	Name                  string
	K8sVersion            string
	CloudCredentialID     string
	CloudProviderConfigID string
	HarvesterConfigName   string
	HostnamePrefix        string
}

// RKE2ClusterBody builds the provisioning cluster for c with a single
// all-roles machine pool.
func RKE2ClusterBody(c RKE2Cluster) document.Document {
	return document.Document{
		"type": "provisioning.cattle.io.cluster",
		"metadata": map[string]any{
			"name":      c.Name,
			"namespace": FleetNamespace,
		},
		"spec": map[string]any{
			"kubernetesVersion":         c.K8sVersion,
			"cloudCredentialSecretName": c.CloudCredentialID,
			"localClusterAuthEndpoint":  map[string]any{"enabled": false},
			"rkeConfig": map[string]any{
				"chartValues": map[string]any{
					"harvester-cloud-provider": map[string]any{
						"clusterName":     c.Name,
						"cloudConfigPath": "/var/lib/rancher/rke2/etc/config-files/cloud-provider-config",
					},
				},
				"machineGlobalConfig": map[string]any{
					"cni":                 "calico",
					"disable-kube-proxy":  false,
					"etcd-expose-metrics": false,
				},
				"machineSelectorConfig": []any{
					map[string]any{
						"config": map[string]any{
							"cloud-provider-config":   "secret://" + c.CloudProviderConfigID,
							"cloud-provider-name":     "harvester",
							"protect-kernel-defaults": false,
						},
					},
				},
				"machinePools": []any{
					map[string]any{
						"name":                 "pool1",
						"etcdRole":             true,
						"controlPlaneRole":     true,
						"workerRole":           true,
						"hostnamePrefix":       c.HostnamePrefix,
						"quantity":             int64(1),
						"unhealthyNodeTimeout": "0m",
						"machineConfigRef": map[string]any{
							"kind": "HarvesterConfig",
							"name": c.HarvesterConfigName,
						},
					},
				},
			},
		},
	}
}

// NodeTemplateBody builds an RKE1 node template.
func NodeTemplateBody(name, cloudCredentialID string, m MachineSpec) document.Document {
	return document.Document{
		"type":              "nodeTemplate",
		"name":              name,
		"driver":            "harvester",
		"cloudCredentialId": cloudCredentialID,
		"engineInstallURL":  "https://releases.rancher.com/install-docker/20.10.sh",
		"harvesterConfig":   m.fields(),
	}
}

// RKE1ClusterBody builds an RKE1 cluster using the Harvester cloud
// provider.
func RKE1ClusterBody(name, k8sVersion string) document.Document {
	return document.Document{
		"type":                "cluster",
		"name":                name,
		"dockerRootDir":       "/var/lib/docker",
		"enableNetworkPolicy": false,
		"rancherKubernetesEngineConfig": map[string]any{
			"kubernetesVersion": k8sVersion,
			"network":           map[string]any{"plugin": "canal"},
			"cloudProvider": map[string]any{
				"type": "cloudProvider",
				"name": "harvester",
			},
		},
	}
}

// NodePoolBody builds a single-node, all-roles RKE1 node pool.
func NodePoolBody(clusterID, nodeTemplateID, hostnamePrefix string) document.Document {
	return document.Document{
		"type":           "nodePool",
		"clusterId":      clusterID,
		"nodeTemplateId": nodeTemplateID,
		"hostnamePrefix": hostnamePrefix,
		"quantity":       int64(1),
		"controlPlane":   true,
		"etcd":           true,
		"worker":         true,
	}
}

// UserBody builds a local user.
func UserBody(username, password string) document.Document {
	return document.Document{
		"type":               "user",
		"username":           username,
		"password":           password,
		"enabled":            true,
		"mustChangePassword": false,
	}
}

// ProjectMemberBody binds a principal to a project with roleTemplate, e.g.
// "project-owner".
func ProjectMemberBody(projectID, principalID, roleTemplate string) document.Document {
	return document.Document{
		"type":            "projectroletemplatebinding",
		"projectId":       projectID,
		"userPrincipalId": principalID,
		"roleTemplateId":  roleTemplate,
	}
}
