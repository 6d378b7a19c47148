package rancher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/platform/apiclient"
)

// AnnotationDefaultStorageClass marks the default storage class.
const AnnotationDefaultStorageClass = "storageclass.kubernetes.io/is-default-class"

// Explorer reaches the Kubernetes API of a managed cluster.
type Explorer struct {
	rancher   *Client
	ClusterID string

	PVCs           *apiclient.Resource
	PVs            *apiclient.Resource
	StorageClasses *apiclient.Resource
}

// Explore returns an explorer for clusterID.
func (c *Client) Explore(clusterID string) *Explorer {
	base := fmt.Sprintf("k8s/clusters/%s/v1", clusterID)
	return &Explorer{
		rancher:        c,
		ClusterID:      clusterID,
		PVCs:           c.api.Resource(base + "/persistentvolumeclaims"),
		PVs:            c.api.Resource(base + "/persistentvolumes"),
		StorageClasses: c.api.Resource(base + "/storage.k8s.io.storageclasses"),
	}
}

// Projects lists the projects of the cluster visible to the caller.
func (e *Explorer) Projects(ctx context.Context) (int, []document.Document, error) {
	code, doc, err := e.rancher.Projects.List(ctx, url.Values{"clusterId": {e.ClusterID}})
	if err != nil || code != http.StatusOK {
		return code, nil, err
	}
	return code, doc.Items(), nil
}

// ProjectByName finds a project such as "Default".
func (e *Explorer) ProjectByName(ctx context.Context, name string) (document.Document, error) {
	code, projects, err := e.Projects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects of %s: %w", e.ClusterID, err)
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("list projects of %s: unexpected status %d", e.ClusterID, code)
	}
	for _, p := range projects {
		if p.GetString("name") == name || p.GetString("spec.displayName") == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("project %q not found in cluster %s", name, e.ClusterID)
}

// PVCBody builds a ReadWriteOnce filesystem claim of size in namespace,
// leaving the storage class to the cluster default.
func PVCBody(name, namespace string, size resource.Quantity) (document.Document, error) {
	mode := corev1.PersistentVolumeFilesystem
	pvc := corev1.PersistentVolumeClaim{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolumeClaim"},
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec: corev1.PersistentVolumeClaimSpec{
			AccessModes: []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			VolumeMode:  &mode,
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: size},
			},
		},
	}
	doc, err := document.From(&pvc)
	if err != nil {
		return nil, fmt.Errorf("encode pvc %s: %w", name, err)
	}
	doc["type"] = "persistentvolumeclaim"
	return doc, nil
}
