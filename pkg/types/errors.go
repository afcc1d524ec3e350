package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTreeFrozen is returned for declarations made after the tree was built.
	ErrTreeFrozen = errors.New("tree is frozen: declarations are not allowed after Build")
	// ErrStepTimeout is wrapped by steps that exceeded their deadline.
	ErrStepTimeout = errors.New("step exceeded its deadline")
	// ErrDoneAndPromise is returned when a callback both takes done and returns a promise.
	ErrDoneAndPromise = errors.New("test functions cannot both take a 'done' callback and return something")
	// ErrRunCancelled is the cause of tests that never ran because the run was cancelled.
	ErrRunCancelled = errors.New("run cancelled")
	// ErrBailed is the cause of tests that never ran because the failure limit was reached.
	ErrBailed = errors.New("run stopped after reaching the failure limit")
)

// HookError represents a failure inside a hook.
type HookError struct {
	Kind      HookKind
	GroupPath []string
	TestName  string // empty for beforeAll/afterAll
	Message   string
	Cause     error
}

// Error implements the error interface.
func (e *HookError) Error() string {
	scope := "root"
	if len(e.GroupPath) > 0 {
		scope = strings.Join(e.GroupPath, " > ")
	}
	if e.TestName != "" {
		return fmt.Sprintf("[%s hook in %q for test %q] %s: %v", e.Kind, scope, e.TestName, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s hook in %q] %s: %v", e.Kind, scope, e.Message, e.Cause)
}

// Unwrap returns the underlying error.
func (e *HookError) Unwrap() error {
	return e.Cause
}

// NewHookError creates a new HookError.
func NewHookError(kind HookKind, groupPath []string, testName, message string, cause error) *HookError {
	return &HookError{
		Kind:      kind,
		GroupPath: groupPath,
		TestName:  testName,
		Message:   message,
		Cause:     cause,
	}
}

// IsHookError checks if err is or wraps a HookError.
func IsHookError(err error) bool {
	var he *HookError
	return errors.As(err, &he)
}
