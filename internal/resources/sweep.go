package resources

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/lifecycle"
	"github.com/imamik/harvester-e2e/internal/platform/apiclient"
	"github.com/imamik/harvester-e2e/internal/platform/harvester"
	"github.com/imamik/harvester-e2e/internal/platform/rancher"
	"github.com/imamik/harvester-e2e/internal/util/naming"
)

// Leak is a resource left behind by an earlier run, identified by its name
// prefix.
type Leak struct {
	Kind string
	ID   string
	Name string

	res *apiclient.Resource
}

// Leak kinds.
const (
	LeakProvisioningCluster = "provisioning cluster"
	LeakCluster             = "cluster"
	LeakCloudCredential     = "cloud credential"
	LeakUser                = "user"
	LeakVM                  = "virtual machine"
	LeakImage               = "image"
	LeakNetwork             = "network"
)

// Downstream reports whether deleting the leak tears down a downstream
// cluster, which takes as long as the cluster's VMs.
func (l Leak) Downstream() bool {
	return l.Kind == LeakProvisioningCluster || l.Kind == LeakCluster
}

type sweepTarget struct {
	kind string
	res  *apiclient.Resource
	name func(document.Document) string
}

// sweepTargets lists collections in deletion order: downstream clusters
// before the credentials they use, VMs before their images and networks.
func sweepTargets(hc *harvester.Client, rc *rancher.Client) []sweepTarget {
	byName := func(d document.Document) string { return d.Name() }

	var targets []sweepTarget
	if rc != nil {
		targets = append(targets,
			sweepTarget{LeakProvisioningCluster, rc.MgmtClusters, byName},
			sweepTarget{LeakCluster, rc.Clusters, byName},
			sweepTarget{LeakCloudCredential, rc.CloudCredentials, byName},
			sweepTarget{LeakUser, rc.Users, func(d document.Document) string {
				return strings.TrimPrefix(d.GetString("username"), naming.User(""))
			}},
		)
	}
	if hc != nil {
		targets = append(targets,
			sweepTarget{LeakVM, hc.VMs, byName},
			sweepTarget{LeakImage, hc.Images, byName},
			sweepTarget{LeakNetwork, hc.Networks, byName},
		)
	}
	return targets
}

// FindLeaks lists every resource whose name was derived from prefix. Either
// client may be nil.
func FindLeaks(ctx context.Context, hc *harvester.Client, rc *rancher.Client, prefix string) ([]Leak, error) {
	if prefix == "" {
		return nil, fmt.Errorf("refusing to sweep without a name prefix")
	}

	var leaks []Leak
	for _, t := range sweepTargets(hc, rc) {
		code, list, err := t.res.List(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("list %ss: %w", t.kind, err)
		}
		if err := lifecycle.ExpectStatus("list "+t.kind+"s", code, list, http.StatusOK); err != nil {
			return nil, err
		}

		owned := lo.Filter(list.Items(), func(d document.Document, _ int) bool {
			return naming.BelongsTo(t.name(d), prefix)
		})
		leaks = append(leaks, lo.Map(owned, func(d document.Document, _ int) Leak {
			return Leak{Kind: t.kind, ID: d.ID(), Name: t.name(d), res: t.res}
		})...)
	}
	return leaks, nil
}

// DeleteLeak deletes a leaked resource and waits until it is gone.
func DeleteLeak(ctx context.Context, l Leak, o Options) error {
	if l.res == nil {
		return fmt.Errorf("%s %s was not returned by FindLeaks", l.Kind, l.ID)
	}
	return (&lifecycle.DeleteOperation{
		ResourceType: l.Kind,
		ID:           l.ID,
		Delete: func(ctx context.Context) (int, document.Document, error) {
			return l.res.Delete(ctx, l.ID)
		},
		Confirm:  l.res.Fetch(l.ID),
		Interval: o.Interval,
		Timeout:  o.Timeout,
		Logger:   o.logger(),
	}).Execute(ctx)
}

// Sweep deletes every leak under prefix. It keeps going after a failure
// and returns all failures as a *lifecycle.CleanupError.
func Sweep(ctx context.Context, hc *harvester.Client, rc *rancher.Client, prefix string, o Options) ([]Leak, error) {
	leaks, err := FindLeaks(ctx, hc, rc, prefix)
	if err != nil {
		return nil, err
	}

	cleanupErrs := &lifecycle.CleanupError{}
	for _, l := range leaks {
		cleanupErrs.Add(DeleteLeak(ctx, l, o))
	}
	if cleanupErrs.HasErrors() {
		return leaks, cleanupErrs
	}
	return leaks, nil
}
