package handlers

import (
	"context"
	"fmt"

	"github.com/imamik/harvester-e2e/internal/lifecycle"
	"github.com/imamik/harvester-e2e/internal/resources"
	"github.com/imamik/harvester-e2e/internal/ui"
)

// CleanupRequest holds the cleanup command arguments.
type CleanupRequest struct {
	Prefix string
	DryRun bool
}

// Cleanup handles the cleanup command.
//
// Every leaked resource is attempted even if an earlier delete failed.
func Cleanup(ctx context.Context, env Env, req CleanupRequest) error {
	s, err := env.connect(ctx)
	if err != nil {
		return err
	}
	if s.Harvester == nil && s.Rancher == nil {
		return fmt.Errorf("neither harvester nor rancher is configured")
	}

	prefix := req.Prefix
	if prefix == "" {
		prefix = s.Options.NamePrefix
	}

	leaks, err := resources.FindLeaks(ctx, s.Harvester, s.Rancher, prefix)
	if err != nil {
		return err
	}

	p := ui.NewPrinter(env.Out)
	p.Title(fmt.Sprintf("Resources named %s-*", prefix))
	if len(leaks) == 0 {
		p.OK("nothing to clean up", "")
		return nil
	}

	if req.DryRun {
		for _, l := range leaks {
			p.Skip(l.ID, l.Kind)
		}
		fmt.Fprintf(env.Out, "\n%d resources would be deleted\n", len(leaks))
		return nil
	}

	cleanupErrs := &lifecycle.CleanupError{}
	deleted := 0
	for _, l := range leaks {
		o := s.ResourceOptions()
		if l.Downstream() {
			o = s.RancherOptions()
		}
		if err := resources.DeleteLeak(ctx, l, o); err != nil {
			p.Fail(l.ID, l.Kind)
			cleanupErrs.Add(err)
			continue
		}
		p.OK(l.ID, l.Kind)
		deleted++
	}
	p.Summary(deleted, len(cleanupErrs.Errors), "deleted")

	if cleanupErrs.HasErrors() {
		return cleanupErrs
	}
	return nil
}
