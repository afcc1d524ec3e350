package types

import "time"

// StepResult is the outcome of one executed hook or test body.
type StepResult struct {
	// Kind is empty for a test body.
	Kind      HookKind
	GroupPath []string
	TestName  string
	Status    ResultStatus
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Error     error
}

// IsBody reports whether the step was a test body rather than a hook.
func (r *StepResult) IsBody() bool {
	return r.Kind == ""
}

// Failed reports whether the step did not succeed.
func (r *StepResult) Failed() bool {
	return r.Status != ResultStatusSuccess
}
