package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/imamik/harvester-e2e/internal/metrics"
	"github.com/imamik/harvester-e2e/internal/platform/apiclient"
	"github.com/imamik/harvester-e2e/internal/resources"
	"github.com/imamik/harvester-e2e/internal/session"
	"github.com/imamik/harvester-e2e/internal/ui"
	"github.com/imamik/harvester-e2e/internal/util/converge"
)

// APIs served by wait.
const (
	APIHarvester = "harvester"
	APIRancher   = "rancher"
)

// WaitRequest holds the wait command arguments.
type WaitRequest struct {
	API        string
	Collection string
	ID         string

	JSONPath string
	Equals   string
	Field    string
	Gone     bool

	Timeout  time.Duration
	Interval time.Duration
}

// Predicate returns the condition named by the request. Without a
// condition flag the resource only has to exist.
func (r WaitRequest) Predicate() (converge.Predicate, string) {
	switch {
	case r.Gone:
		return resources.Gone, "to be gone"
	case r.JSONPath != "":
		return resources.JSONPathEquals(r.JSONPath, r.Equals), fmt.Sprintf("%s == %q", r.JSONPath, r.Equals)
	case r.Field != "":
		return resources.FieldSet(r.Field), r.Field + " to be set"
	default:
		return resources.CodeIs(http.StatusOK), "to exist"
	}
}

// Wait handles the wait command.
func Wait(ctx context.Context, env Env, req WaitRequest) error {
	s, err := env.connect(ctx)
	if err != nil {
		return err
	}

	res, err := collection(s, req.API, req.Collection)
	if err != nil {
		return err
	}

	o := s.ResourceOptions()
	if req.API == APIRancher {
		o = s.RancherOptions()
	}
	if req.Timeout > 0 {
		o.Timeout = req.Timeout
	}
	if req.Interval > 0 {
		o.Interval = req.Interval
	}

	pred, what := req.Predicate()
	desc := fmt.Sprintf("%s %s", req.ID, what)
	out := converge.New(o.Interval, o.Timeout,
		converge.WithDescription(desc),
		converge.WithLogger(s.Log),
		converge.WithObserver(metrics.PollObserver{Resource: req.Collection}),
	).Poll(ctx, res.Fetch(req.ID), pred)

	p := ui.NewPrinter(env.Out)
	extra := fmt.Sprintf("%s after %d attempts in %s", out.Kind, out.Attempts, out.Elapsed.Round(time.Millisecond))
	if out.Err == nil {
		p.OK(desc, extra)
		return nil
	}

	p.Fail(desc, extra)
	if out.Code != 0 {
		fmt.Fprintf(env.Out, "\nlast status %d:\n%s\n", out.Code, out.Doc)
	}
	_ = s.Recorder.Record("wait "+req.Collection+" "+req.ID, out.Err)
	if ferr := s.Finish(ctx); ferr != nil {
		s.Log.Error(ferr, "Failed to publish artifacts")
	}
	return out.Err
}

var (
	harvesterAliases = map[string]func(s *session.Session) *apiclient.Resource{
		"networks":        func(s *session.Session) *apiclient.Resource { return s.Harvester.Networks },
		"images":          func(s *session.Session) *apiclient.Resource { return s.Harvester.Images },
		"vms":             func(s *session.Session) *apiclient.Resource { return s.Harvester.VMs },
		"settings":        func(s *session.Session) *apiclient.Resource { return s.Harvester.Settings },
		"clusternetworks": func(s *session.Session) *apiclient.Resource { return s.Harvester.ClusterNetworks },
		"vlanconfigs":     func(s *session.Session) *apiclient.Resource { return s.Harvester.VLANConfigs },
	}
	rancherAliases = map[string]func(s *session.Session) *apiclient.Resource{
		"clusters":         func(s *session.Session) *apiclient.Resource { return s.Rancher.MgmtClusters },
		"v3clusters":       func(s *session.Session) *apiclient.Resource { return s.Rancher.Clusters },
		"cloudcredentials": func(s *session.Session) *apiclient.Resource { return s.Rancher.CloudCredentials },
		"users":            func(s *session.Session) *apiclient.Resource { return s.Rancher.Users },
		"secrets":          func(s *session.Session) *apiclient.Resource { return s.Rancher.Secrets },
		"settings":         func(s *session.Session) *apiclient.Resource { return s.Rancher.Settings },
		"nodepools":        func(s *session.Session) *apiclient.Resource { return s.Rancher.NodePools },
	}
)

// collection resolves an alias or a raw collection path.
func collection(s *session.Session, api, name string) (*apiclient.Resource, error) {
	switch api {
	case APIHarvester:
		if s.Harvester == nil {
			return nil, fmt.Errorf("harvester endpoint is not configured")
		}
		if f, ok := harvesterAliases[name]; ok {
			return f(s), nil
		}
		if strings.Contains(name, "/") {
			return s.Harvester.API().Resource(name), nil
		}
	case APIRancher:
		if s.Rancher == nil {
			return nil, fmt.Errorf("rancher endpoint is not configured")
		}
		if f, ok := rancherAliases[name]; ok {
			return f(s), nil
		}
		if strings.Contains(name, "/") {
			return s.Rancher.API().Resource(name), nil
		}
	default:
		return nil, fmt.Errorf("unknown api %q, want %s or %s", api, APIHarvester, APIRancher)
	}
	return nil, fmt.Errorf("unknown %s collection %q", api, name)
}
