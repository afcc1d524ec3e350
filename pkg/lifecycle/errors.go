package lifecycle

import (
	"errors"

	"yqhp/hookrunner/pkg/types"
)

var (
	// ErrTreeFrozen is reported for declarations made after Build.
	ErrTreeFrozen = types.ErrTreeFrozen
	// ErrStepTimeout is wrapped by steps that missed their deadline.
	ErrStepTimeout = types.ErrStepTimeout
	// ErrRunCancelled is the cause of tests that did not run because the context was cancelled.
	ErrRunCancelled = types.ErrRunCancelled
	// ErrBailed is the cause of tests that did not run because the failure limit was reached.
	ErrBailed = types.ErrBailed

	// ErrMissingAction is returned by Build for a runnable test or a hook without an action.
	ErrMissingAction = errors.New("missing action")
	// ErrInvalidHookKind is returned by Build for a hook with an unknown kind.
	ErrInvalidHookKind = errors.New("invalid hook kind")
)
