package resources

import (
	"context"
	"fmt"
	"net/http"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/lifecycle"
	"github.com/imamik/harvester-e2e/internal/platform/harvester"
	"github.com/imamik/harvester-e2e/internal/platform/rancher"
)

// PVCResult is a bound claim together with its volume and storage class.
type PVCResult struct {
	PVC          document.Document
	PV           document.Document
	StorageClass document.Document
}

// CreatePVC creates a claim of size in the default namespace of the
// explored cluster, waits until it is Bound and verifies that the bound
// volume has exactly the requested capacity and that the claim landed on
// the default storage class.
func CreatePVC(ctx context.Context, e *rancher.Explorer, name, size string, o Options) (PVCResult, error) {
	requested, err := resource.ParseQuantity(size)
	if err != nil {
		return PVCResult{}, fmt.Errorf("parse size %q: %w", size, err)
	}
	id := harvester.ID(harvester.DefaultNamespace, name)

	pvc, _, err := (&lifecycle.EnsureOperation{
		ResourceType: "pvc",
		Name:         name,
		Create: func(ctx context.Context) (int, document.Document, error) {
			body, err := rancher.PVCBody(name, harvester.DefaultNamespace, requested)
			if err != nil {
				return 0, nil, err
			}
			return e.PVCs.Create(ctx, body)
		},
		Wait: func(document.Document) *lifecycle.Wait {
			return o.wait(fmt.Sprintf("pvc %s to be bound", id), e.PVCs.Fetch(id), PhaseIs(string(corev1.ClaimBound)))
		},
		Logger: o.logger(),
	}).Execute(ctx)
	if err != nil {
		return PVCResult{}, err
	}
	result := PVCResult{PVC: pvc}

	volumeName := pvc.GetString("spec.volumeName")
	code, pvDoc, err := e.PVs.Get(ctx, volumeName)
	if err != nil {
		return result, fmt.Errorf("get pv %s of pvc %s: %w", volumeName, id, err)
	}
	if err := lifecycle.ExpectStatus("get pv "+volumeName, code, pvDoc, http.StatusOK); err != nil {
		return result, err
	}
	result.PV = pvDoc

	var pv corev1.PersistentVolume
	if err := pvDoc.Into(&pv); err != nil {
		return result, fmt.Errorf("decode pv %s: %w", volumeName, err)
	}
	capacity := pv.Spec.Capacity[corev1.ResourceStorage]
	if capacity.Cmp(requested) != 0 {
		return result, fmt.Errorf("pv %s has capacity %s, pvc %s requested %s", volumeName, capacity.String(), id, requested.String())
	}

	scName := pvc.GetString("spec.storageClassName")
	code, sc, err := e.StorageClasses.Get(ctx, scName)
	if err != nil {
		return result, fmt.Errorf("get storage class %s: %w", scName, err)
	}
	if err := lifecycle.ExpectStatus("get storage class "+scName, code, sc, http.StatusOK); err != nil {
		return result, err
	}
	result.StorageClass = sc

	if sc.Annotation(rancher.AnnotationDefaultStorageClass) != "true" {
		return result, fmt.Errorf("storage class %s of pvc %s is not the default", scName, id)
	}
	return result, nil
}

// DeletePVC deletes a claim and waits until it is gone.
func DeletePVC(ctx context.Context, e *rancher.Explorer, name string, o Options) error {
	id := harvester.ID(harvester.DefaultNamespace, name)
	return (&lifecycle.DeleteOperation{
		ResourceType: "pvc",
		ID:           id,
		Delete: func(ctx context.Context) (int, document.Document, error) {
			return e.PVCs.Delete(ctx, id)
		},
		Confirm:  e.PVCs.Fetch(id),
		Interval: o.Interval,
		Timeout:  o.Timeout,
		Logger:   o.logger(),
	}).Execute(ctx)
}
