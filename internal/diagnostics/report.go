package diagnostics

import (
	"errors"
	"sync"
	"time"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/lifecycle"
	"github.com/imamik/harvester-e2e/internal/util/converge"
)

// Failure kinds.
const (
	KindTimeout = "timeout"
	KindFailed  = "failed"
	KindStatus  = "status"
	KindCleanup = "cleanup"
	KindError   = "error"
)

// Failure is one failed step of a test.
type Failure struct {
	Test        string            `json:"test"`
	Kind        string            `json:"kind"`
	Message     string            `json:"message"`
	Description string            `json:"description,omitempty"`
	Code        int               `json:"code,omitempty"`
	Attempts    int               `json:"attempts,omitempty"`
	Timeout     string            `json:"timeout,omitempty"`
	Document    document.Document `json:"document,omitempty"`
	Causes      []Failure         `json:"causes,omitempty"`
	Time        time.Time         `json:"time"`
}

// FromError classifies err. The last observation of timed out or failed
// polls is kept so the report shows what the API returned.
func FromError(test string, err error) Failure {
	f := Failure{Test: test, Kind: KindError, Message: err.Error(), Time: time.Now().UTC()}

	var (
		te *converge.TimeoutError
		fe *converge.FailedError
		se *lifecycle.StatusError
		ce *lifecycle.CleanupError
	)
	switch {
	case errors.As(err, &ce):
		f.Kind = KindCleanup
		for _, e := range ce.Errors {
			f.Causes = append(f.Causes, FromError(test, e))
		}
	case errors.As(err, &te):
		f.Kind = KindTimeout
		f.Description = te.Description
		f.Code = te.Code
		f.Attempts = te.Attempts
		f.Timeout = te.Timeout.String()
		f.Document = te.Doc
	case errors.As(err, &fe):
		f.Kind = KindFailed
		f.Description = fe.Description
		f.Code = fe.Code
		f.Document = fe.Doc
	case errors.As(err, &se):
		f.Kind = KindStatus
		f.Description = se.Op
		f.Code = se.Code
		f.Document = se.Doc
	}
	return f
}

// Report is the failure report of one run.
type Report struct {
	RunID    string    `json:"runID"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitempty"`
	Failures []Failure `json:"failures"`
}

// Recorder accumulates failures. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	report Report
}

// NewRecorder starts a report for runID.
func NewRecorder(runID string) *Recorder {
	return &Recorder{report: Report{RunID: runID, Started: time.Now().UTC(), Failures: []Failure{}}}
}

// Record adds err to the report and returns it unchanged. A nil error is
// ignored.
func (r *Recorder) Record(test string, err error) error {
	if err == nil {
		return nil
	}
	f := FromError(test, err)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Failures = append(r.report.Failures, f)
	return err
}

// Len returns the number of recorded failures.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.report.Failures)
}

// Snapshot returns a copy of the report, stamped with the current time.
func (r *Recorder) Snapshot() Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep := r.report
	rep.Failures = append([]Failure{}, r.report.Failures...)
	rep.Finished = time.Now().UTC()
	return rep
}
