package lifecycle

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/metrics"
	"github.com/imamik/harvester-e2e/internal/util/converge"
)

// Defaults used when an operation leaves Interval or Timeout unset.
const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 300 * time.Second
)

// Call issues one request and returns its status code and document.
type Call func(ctx context.Context) (int, document.Document, error)

// Wait describes a convergence to await after a mutation.
type Wait struct {
	Description string
	Fetch       converge.Fetch
	Predicate   converge.Predicate
	Interval    time.Duration
	Timeout     time.Duration
}

// Run polls until the predicate holds.
func (w Wait) Run(ctx context.Context, resourceType string, log logr.Logger) (document.Document, error) {
	interval, timeout := w.Interval, w.Timeout
	if interval == 0 {
		interval = DefaultInterval
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return converge.New(interval, timeout,
		converge.WithDescription(w.Description),
		converge.WithLogger(log),
		converge.WithObserver(metrics.PollObserver{Resource: resourceType}),
	).Await(ctx, w.Fetch, w.Predicate)
}

// EnsureOperation encapsulates get-or-create logic keyed by a natural key.
//
// Usage example:
//
//	doc, created, err := (&EnsureOperation{
//	    ResourceType: "network",
//	    Name:         "vlan-network-100",
//	    Lookup:       lookupByVLAN,
//	    Create:       createNetwork,
//	    Wait: func(doc document.Document) *Wait {
//	        return &Wait{Fetch: client.FetchURL(doc.GetString("links.view")), Predicate: CodeIs(200)}
//	    },
//	}).Execute(ctx)
type EnsureOperation struct {
	ResourceType string
	Name         string

	// Lookup returns existing resources matching the natural key (optional).
	Lookup func(ctx context.Context) ([]document.Document, error)

	// Create creates the resource.
	Create Call

	// CreateCodes are the accepted create status codes (default 201).
	CreateCodes []int

	// Wait builds the convergence to await after create (optional).
	Wait func(created document.Document) *Wait

	// WaitOnReuse also awaits convergence for a resource found by Lookup.
	WaitOnReuse bool

	Logger logr.Logger
}

// Execute returns the existing or newly created resource. created reports
// whether this call created it.
func (op *EnsureOperation) Execute(ctx context.Context) (doc document.Document, created bool, err error) {
	start := time.Now()
	log := op.logger().WithValues("resource", op.ResourceType, "name", op.Name)
	result := metrics.ResultError
	defer func() {
		metrics.RecordOperation(op.ResourceType, "ensure", result, time.Since(start).Seconds())
	}()

	if op.Lookup != nil {
		found, err := op.Lookup(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("failed to look up %s %q: %w", op.ResourceType, op.Name, err)
		}
		switch len(found) {
		case 0:
		case 1:
			log.Info("Reusing existing resource", "id", found[0].ID())
			doc = found[0]
			if op.WaitOnReuse && op.Wait != nil {
				ready, err := op.await(ctx, doc, log)
				if err != nil {
					return doc, false, err
				}
				doc = ready
			}
			result = metrics.ResultReused
			return doc, false, nil
		default:
			ids := make([]string, 0, len(found))
			for _, f := range found {
				ids = append(ids, f.ID())
			}
			return nil, false, fmt.Errorf("%s %q: %w: %v", op.ResourceType, op.Name, ErrDuplicate, ids)
		}
	}

	code, doc, err := op.Create(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create %s %q: %w", op.ResourceType, op.Name, err)
	}
	expected := op.CreateCodes
	if len(expected) == 0 {
		expected = []int{http.StatusCreated}
	}
	if err := ExpectStatus(fmt.Sprintf("create %s %q", op.ResourceType, op.Name), code, doc, expected...); err != nil {
		return doc, false, err
	}
	log.Info("Created resource", "id", doc.ID())

	// A failed wait still returns the created object so the caller can
	// tear it down; the last observation is on the error.
	if op.Wait != nil {
		ready, err := op.await(ctx, doc, log)
		if err != nil {
			return doc, true, err
		}
		doc = ready
	}

	result = metrics.ResultSuccess
	return doc, true, nil
}

func (op *EnsureOperation) await(ctx context.Context, doc document.Document, log logr.Logger) (document.Document, error) {
	w := op.Wait(doc)
	if w == nil {
		return doc, nil
	}
	if w.Description == "" {
		w.Description = fmt.Sprintf("%s %s to become ready", op.ResourceType, doc.ID())
	}
	return w.Run(ctx, op.ResourceType, log)
}

func (op *EnsureOperation) logger() logr.Logger {
	if op.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return op.Logger
}

// DeleteOperation issues a delete inside a converge loop.
//
// Success codes (and 404, already gone) end the loop. Blocked codes, by
// default 400 as returned while a network is still attached to a VM, are
// retried every Interval until Timeout. Any other code fails immediately
// with a StatusError.
type DeleteOperation struct {
	ResourceType string
	ID           string

	// Delete issues the delete request.
	Delete Call

	// SuccessCodes default to 200, 202 and 204.
	SuccessCodes []int

	// BlockedCodes default to 400.
	BlockedCodes []int

	// Confirm, when set, is polled after the delete until it returns 404.
	Confirm converge.Fetch

	Interval time.Duration
	Timeout  time.Duration
	Logger   logr.Logger
}

// Execute deletes the resource. It is idempotent: a resource that is
// already gone is a success.
func (op *DeleteOperation) Execute(ctx context.Context) error {
	start := time.Now()
	log := op.logger().WithValues("resource", op.ResourceType, "id", op.ID)
	result := metrics.ResultError
	defer func() {
		metrics.RecordOperation(op.ResourceType, "delete", result, time.Since(start).Seconds())
	}()

	success := op.SuccessCodes
	if len(success) == 0 {
		success = []int{http.StatusOK, http.StatusAccepted, http.StatusNoContent}
	}
	blocked := op.BlockedCodes
	if len(blocked) == 0 {
		blocked = []int{http.StatusBadRequest}
	}

	opName := fmt.Sprintf("delete %s %s", op.ResourceType, op.ID)
	deleted := func(code int, doc document.Document) (bool, error) {
		switch {
		case code == http.StatusNotFound || slices.Contains(success, code):
			return true, nil
		case slices.Contains(blocked, code):
			log.V(1).Info("Delete blocked, retrying", "code", code)
			return false, nil
		default:
			return false, &StatusError{Op: opName, Code: code, Expected: success, Doc: doc}
		}
	}

	_, err := Wait{
		Description: opName,
		Fetch:       converge.Fetch(op.Delete),
		Predicate:   deleted,
		Interval:    op.Interval,
		Timeout:     op.Timeout,
	}.Run(ctx, op.ResourceType, log)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", op.ResourceType, op.ID, err)
	}

	if op.Confirm != nil {
		_, err := Wait{
			Description: fmt.Sprintf("%s %s to be gone", op.ResourceType, op.ID),
			Fetch:       op.Confirm,
			Predicate:   gone,
			Interval:    op.Interval,
			Timeout:     op.Timeout,
		}.Run(ctx, op.ResourceType, log)
		if err != nil {
			return fmt.Errorf("failed to confirm deletion of %s %s: %w", op.ResourceType, op.ID, err)
		}
	}

	log.Info("Deleted resource")
	result = metrics.ResultSuccess
	return nil
}

func (op *DeleteOperation) logger() logr.Logger {
	if op.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return op.Logger
}

func gone(code int, _ document.Document) (bool, error) {
	return code == http.StatusNotFound, nil
}
