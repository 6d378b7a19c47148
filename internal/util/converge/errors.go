package converge

import (
	"errors"
	"fmt"
	"time"

	"github.com/imamik/harvester-e2e/internal/document"
)

// TimeoutError is returned when the condition did not hold within the
// timeout. It carries the last observed response.
type TimeoutError struct {
	Description string
	Timeout     time.Duration
	Attempts    int
	Code        int
	Doc         document.Document
	LastErr     error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s (%d attempts)", e.Timeout, e.Description, e.Attempts)
	if e.Code != 0 {
		msg += fmt.Sprintf(": last status %d: %s", e.Code, e.Doc)
	}
	if e.LastErr != nil {
		msg += fmt.Sprintf(": last error: %v", e.LastErr)
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}

// IsTimeout reports whether err is or wraps a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// FailedError is returned when the predicate, or a fetch wrapped with Stop,
// ended polling.
type FailedError struct {
	Description string
	Code        int
	Doc         document.Document
	Err         error
}

func (e *FailedError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("waiting for %s: %v (status %d: %s)", e.Description, e.Err, e.Code, e.Doc)
	}
	return fmt.Sprintf("waiting for %s: %v", e.Description, e.Err)
}

func (e *FailedError) Unwrap() error {
	return e.Err
}

// IsFailed reports whether err is or wraps a FailedError.
func IsFailed(err error) bool {
	var fe *FailedError
	return errors.As(err, &fe)
}
