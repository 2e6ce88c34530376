package testpipe

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/testpipe/testpipe/exitcodes"
)

func TestErrorClassification(t *testing.T) {
	runtime := NewRuntimeError(errors.New("boom"))
	failure := &TestFailureError{Failed: 2, Errored: 1}

	assert.True(t, IsRuntimeError(runtime))
	assert.False(t, IsRuntimeError(failure))
	assert.True(t, IsTestFailureError(failure))
	assert.False(t, IsTestFailureError(runtime))

	wrapped := fmt.Errorf("outer: %w", runtime)
	assert.True(t, IsRuntimeError(wrapped))
	assert.ErrorIs(t, wrapped, runtime)
}

func TestExitCodeForError(t *testing.T) {
	assert.Equal(t, exitcodes.Success, ExitCodeForError(nil))
	assert.Equal(t, exitcodes.RuntimeErr, ExitCodeForError(NewRuntimeError(errors.New("x"))))
	assert.Equal(t, exitcodes.TestFailure, ExitCodeForError(&TestFailureError{Failed: 1}))
	assert.Equal(t, exitcodes.RuntimeErr, ExitCodeForError(errors.New("unclassified")))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "runtime error: boom", NewRuntimeError(errors.New("boom")).Error())
	assert.Equal(t, "test failure: 2 failed, 1 errored", (&TestFailureError{Failed: 2, Errored: 1}).Error())
}
