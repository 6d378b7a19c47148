package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/harvester-e2e/internal/metrics"
)

// TB is the subset of testing.TB (and ginkgo's GinkgoT) used by Attach.
type TB interface {
	Helper()
	Cleanup(func())
	Errorf(format string, args ...any)
}

type step struct {
	name string
	fn   func(ctx context.Context) error
}

// Scope is an ordered registry of teardown steps.
type Scope struct {
	mu    sync.Mutex
	steps []step
	skip  bool
	log   logr.Logger
}

// NewScope returns an empty scope. With skip set, Close only logs the
// steps it would have run, leaving resources behind for debugging.
func NewScope(log logr.Logger, skip bool) *Scope {
	if log.GetSink() == nil {
		log = logr.Discard()
	}
	return &Scope{log: log.WithName("cleanup"), skip: skip}
}

// Defer registers a teardown step. Steps run in reverse registration order.
func (s *Scope) Defer(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, step{name: name, fn: fn})
}

// Len returns the number of pending steps.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}

// Close runs every pending step, most recent first. A failing step does
// not stop the remaining ones; all failures are returned as a
// *CleanupError. Close is idempotent.
func (s *Scope) Close(ctx context.Context) error {
	s.mu.Lock()
	steps := s.steps
	s.steps = nil
	s.mu.Unlock()

	cleanupErrs := &CleanupError{}
	for i := len(steps) - 1; i >= 0; i-- {
		st := steps[i]
		if s.skip {
			s.log.Info("Skipping cleanup step", "step", st.name)
			metrics.RecordOperation("scope", "cleanup", metrics.ResultSkipped, 0)
			continue
		}

		start := time.Now()
		s.log.Info("Running cleanup step", "step", st.name)
		if err := st.fn(ctx); err != nil {
			s.log.Error(err, "Cleanup step failed", "step", st.name)
			cleanupErrs.Add(fmt.Errorf("%s: %w", st.name, err))
			metrics.RecordOperation("scope", "cleanup", metrics.ResultError, time.Since(start).Seconds())
			continue
		}
		metrics.RecordOperation("scope", "cleanup", metrics.ResultSuccess, time.Since(start).Seconds())
	}

	if cleanupErrs.HasErrors() {
		return cleanupErrs
	}
	return nil
}

// Attach runs Close when the test ends and reports failures on t.
func (s *Scope) Attach(t TB) {
	t.Helper()
	t.Cleanup(func() {
		if err := s.Close(context.Background()); err != nil {
			t.Errorf("cleanup failed: %v", err)
		}
	})
}
