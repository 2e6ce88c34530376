package testpipe

import (
	"errors"
	"fmt"

	"github.com/testpipe/testpipe/exitcodes"
)

// RuntimeError marks operational failures (spawn errors, bad configuration)
// that should exit with code 2 rather than read as test failures.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// TestFailureError reports that the run completed but some identities failed
// or errored (exit code 1).
type TestFailureError struct {
	Failed  int
	Errored int
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %d failed, %d errored", e.Failed, e.Errored)
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var testErr *TestFailureError
	return err != nil && errors.As(err, &testErr)
}

// ExitCodeForError maps an error from RunTests to a process exit code.
func ExitCodeForError(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case IsRuntimeError(err):
		return exitcodes.RuntimeErr
	case IsTestFailureError(err):
		return exitcodes.TestFailure
	default:
		return exitcodes.RuntimeErr
	}
}
