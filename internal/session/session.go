// Package session connects the suites and the CLI to the configured
// Harvester and Rancher endpoints and carries the per-run state: run id,
// poll cadence, failure recorder and teardown scope.
package session

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/imamik/harvester-e2e/internal/config"
	"github.com/imamik/harvester-e2e/internal/diagnostics"
	"github.com/imamik/harvester-e2e/internal/lifecycle"
	"github.com/imamik/harvester-e2e/internal/platform/apiclient"
	"github.com/imamik/harvester-e2e/internal/platform/harvester"
	"github.com/imamik/harvester-e2e/internal/platform/rancher"
	"github.com/imamik/harvester-e2e/internal/resources"
	"github.com/imamik/harvester-e2e/internal/util/naming"
)

// Session is one run against the configured endpoints. Harvester and
// Rancher are nil when the endpoint is not configured.
type Session struct {
	Options  *config.Options
	Log      logr.Logger
	RunID    string
	Recorder *diagnostics.Recorder

	Harvester *harvester.Client
	Rancher   *rancher.Client

	clientOpts []apiclient.Option
}

// Connect builds clients for every configured endpoint. Endpoints without a
// token are logged into with username and password.
func Connect(ctx context.Context, opts *config.Options, log logr.Logger, extra ...apiclient.Option) (*Session, error) {
	runID := naming.UniqueName(opts.NamePrefix)
	s := &Session{
		Options:  opts,
		Log:      log.WithValues("run", runID),
		RunID:    runID,
		Recorder: diagnostics.NewRecorder(runID),
		clientOpts: append([]apiclient.Option{
			apiclient.WithInsecureSkipVerify(!opts.SSLVerify),
			apiclient.WithLogger(log.WithName("api")),
		}, extra...),
	}

	if opts.RequireHarvester() == nil {
		api, err := s.connect(ctx, opts.HarvesterEndpoint, opts.HarvesterToken, opts.HarvesterUsername, opts.HarvesterPassword)
		if err != nil {
			return nil, fmt.Errorf("connect to harvester: %w", err)
		}
		s.Harvester = harvester.New(api)
	}
	if opts.RequireRancher() == nil {
		api, err := s.connect(ctx, opts.RancherEndpoint, opts.RancherToken, opts.RancherUsername, opts.RancherPassword)
		if err != nil {
			return nil, fmt.Errorf("connect to rancher: %w", err)
		}
		s.Rancher = rancher.New(api)
	}
	return s, nil
}

func (s *Session) connect(ctx context.Context, endpoint, token, username, password string) (*apiclient.Client, error) {
	api, err := apiclient.New(endpoint, append(s.clientOpts, apiclient.WithToken(token))...)
	if err != nil {
		return nil, err
	}
	if token != "" {
		return api, nil
	}
	return api.Login(ctx, username, password)
}

// ResourceOptions is the cadence for Harvester resources.
func (s *Session) ResourceOptions() resources.Options {
	return resources.Options{
		Interval: s.Options.PollInterval,
		Timeout:  s.Options.WaitTimeout,
		Logger:   s.Log,
	}
}

// RancherOptions is the cadence for Rancher-provisioned clusters.
func (s *Session) RancherOptions() resources.Options {
	return resources.Options{
		Interval: s.Options.PollInterval,
		Timeout:  s.Options.RancherWaitTimeout,
		Logger:   s.Log,
	}
}

// Name returns a resource name unique to this run.
func (s *Session) Name(kind string) string {
	return naming.UniqueName(s.RunID + "-" + kind)
}

// NewScope returns a teardown scope that honours DoNotCleanup.
func (s *Session) NewScope() *lifecycle.Scope {
	return lifecycle.NewScope(s.Log, s.Options.DoNotCleanup)
}

// Finish publishes the failure report and metrics of the run.
func (s *Session) Finish(ctx context.Context) error {
	up, err := diagnostics.NewUploader(ctx, s.Options)
	if err != nil {
		return err
	}
	_, err = diagnostics.Publish(ctx, s.Log, s.Recorder.Snapshot(), diagnostics.TargetFromOptions(s.Options, up))
	return err
}
