package lifecycle

import (
	"errors"
	"fmt"
	"slices"

	"github.com/imamik/harvester-e2e/internal/document"
)

// ErrDuplicate is returned when a lookup by natural key matches more than
// one resource.
var ErrDuplicate = errors.New("multiple resources match")

// StatusError reports an unexpected status code from a mutating call. It is
// never retried.
type StatusError struct {
	Op       string
	Code     int
	Expected []int
	Doc      document.Document
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d (expected %v): %s", e.Op, e.Code, e.Expected, e.Doc)
}

// ExpectStatus returns a StatusError unless code is one of expected.
func ExpectStatus(op string, code int, doc document.Document, expected ...int) error {
	if slices.Contains(expected, code) {
		return nil
	}
	return &StatusError{Op: op, Code: code, Expected: expected, Doc: doc}
}

// IsStatus reports whether err is or wraps a StatusError.
func IsStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// CleanupError represents accumulated errors from teardown steps.
type CleanupError struct {
	Errors []error
}

func (e *CleanupError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("cleanup encountered %d errors: %v", len(e.Errors), e.Errors)
}

func (e *CleanupError) Unwrap() error {
	if len(e.Errors) == 1 {
		return e.Errors[0]
	}
	return errors.Join(e.Errors...)
}

// Add records err if it is not nil.
func (e *CleanupError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors reports whether any error was recorded.
func (e *CleanupError) HasErrors() bool {
	return len(e.Errors) > 0
}
