package converge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/imamik/harvester-e2e/internal/document"
)

// Fetch retrieves the current representation of a resource.
type Fetch func(ctx context.Context) (code int, doc document.Document, err error)

// Predicate decides whether a fetched representation is the target state.
// Returning an error ends polling immediately.
type Predicate func(code int, doc document.Document) (bool, error)

// Kind classifies how a poll ended.
type Kind int

const (
	Ready Kind = iota
	TimedOut
	Failed
)

func (k Kind) String() string {
	switch k {
	case Ready:
		return "ready"
	case TimedOut:
		return "timeout"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Outcome is the result of a poll. Code and Doc hold the last successful
// observation.
type Outcome struct {
	Kind     Kind
	Code     int
	Doc      document.Document
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// Observer receives poll events, typically for metrics.
type Observer interface {
	ObserveAttempt(description string, code int, err error)
	ObserveOutcome(description string, outcome Outcome)
}

// Poller holds the polling parameters. It carries no state between polls
// and may be reused.
type Poller struct {
	Interval    time.Duration
	Timeout     time.Duration
	Description string
	Logger      logr.Logger
	Observer    Observer
}

// Option configures a Poller.
type Option func(*Poller)

// WithDescription names the awaited condition in logs and errors.
func WithDescription(desc string) Option {
	return func(p *Poller) {
		p.Description = desc
	}
}

// WithLogger sets the logger. Attempts are logged at V(1).
func WithLogger(l logr.Logger) Option {
	return func(p *Poller) {
		p.Logger = l
	}
}

// WithObserver sets the observer notified of attempts and outcomes.
func WithObserver(o Observer) Option {
	return func(p *Poller) {
		p.Observer = o
	}
}

// New returns a Poller with a fixed interval and overall timeout.
func New(interval, timeout time.Duration, opts ...Option) *Poller {
	p := &Poller{
		Interval:    interval,
		Timeout:     timeout,
		Description: "condition",
		Logger:      logr.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AwaitCondition polls fetch every interval until predicate holds and
// returns the document that satisfied it.
func AwaitCondition(ctx context.Context, fetch Fetch, predicate Predicate, interval, timeout time.Duration) (document.Document, error) {
	return New(interval, timeout).Await(ctx, fetch, predicate)
}

// Await is Poll returning the last document and the outcome error.
func (p *Poller) Await(ctx context.Context, fetch Fetch, predicate Predicate) (document.Document, error) {
	out := p.Poll(ctx, fetch, predicate)
	return out.Doc, out.Err
}

// Poll runs fetch immediately and then every Interval until predicate holds,
// predicate fails, or Timeout elapses.
func (p *Poller) Poll(ctx context.Context, fetch Fetch, predicate Predicate) Outcome {
	var (
		out     Outcome
		lastErr error
		condErr error
	)
	start := time.Now()
	log := p.Logger.WithValues("condition", p.Description)

	finish := func(kind Kind, err error) Outcome {
		out.Kind = kind
		out.Err = err
		out.Elapsed = time.Since(start)
		if p.Observer != nil {
			p.Observer.ObserveOutcome(p.Description, out)
		}
		return out
	}

	if p.Interval <= 0 {
		return finish(Failed, fmt.Errorf("waiting for %s: poll interval must be positive, got %s", p.Description, p.Interval))
	}

	cond := func(ctx context.Context) (bool, error) {
		out.Attempts++
		code, doc, err := fetch(ctx)
		if p.Observer != nil {
			p.Observer.ObserveAttempt(p.Description, code, err)
		}
		if err != nil {
			if IsStop(err) {
				condErr = err
				return false, err
			}
			if ctx.Err() != nil {
				// Cut short by the poll's own deadline, not an observation.
				return false, nil
			}
			lastErr = err
			log.V(1).Info("Fetch failed, retrying", "attempt", out.Attempts, "error", err.Error())
			return false, nil
		}

		out.Code, out.Doc, lastErr = code, doc, nil
		ok, err := predicate(code, doc)
		if err != nil {
			condErr = err
			return false, err
		}
		log.V(1).Info("Polled", "attempt", out.Attempts, "code", code, "done", ok)
		return ok, nil
	}

	err := wait.PollUntilContextTimeout(ctx, p.Interval, p.Timeout, true, cond)
	switch {
	case err == nil:
		return finish(Ready, nil)

	case condErr != nil:
		return finish(Failed, &FailedError{
			Description: p.Description,
			Code:        out.Code,
			Doc:         out.Doc,
			Err:         unwrapStop(condErr),
		})

	case ctx.Err() != nil:
		// The caller's context ended, not our deadline.
		return finish(Failed, fmt.Errorf("waiting for %s: %w", p.Description, ctx.Err()))

	case wait.Interrupted(err):
		log.Info("Timed out", "attempts", out.Attempts, "timeout", p.Timeout.String(), "lastCode", out.Code)
		return finish(TimedOut, &TimeoutError{
			Description: p.Description,
			Timeout:     p.Timeout,
			Attempts:    out.Attempts,
			Code:        out.Code,
			Doc:         out.Doc,
			LastErr:     lastErr,
		})

	default:
		return finish(Failed, fmt.Errorf("waiting for %s: %w", p.Description, err))
	}
}

// stopError marks a fetch error as terminal.
type stopError struct {
	err error
}

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

// Stop marks err as terminal: polling ends with a FailedError instead of
// retrying.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

// IsStop reports whether err was marked with Stop.
func IsStop(err error) bool {
	var s *stopError
	return errors.As(err, &s)
}

func unwrapStop(err error) error {
	var s *stopError
	if errors.As(err, &s) {
		return s.err
	}
	return err
}
