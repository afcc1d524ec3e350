package hook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"yqhp/hookrunner/pkg/logger"
	"yqhp/hookrunner/pkg/types"
)

// Step describes one action to run.
type Step struct {
	// Kind is empty for a test body.
	Kind      types.HookKind
	GroupPath []string
	TestName  string
	Action    func(ctx context.Context) error
	// Timeout overrides the executor default when positive.
	Timeout time.Duration
}

// Name returns a short label used in logs.
func (s Step) Name() string {
	if s.Kind == "" {
		return "test " + s.TestName
	}
	if s.TestName != "" {
		return string(s.Kind) + " for " + s.TestName
	}
	return string(s.Kind)
}

// Executor runs steps with a deadline and panic recovery.
type Executor struct {
	timeout time.Duration
	log     *zap.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithDefaultTimeout sets the deadline used by steps without their own timeout.
// Zero means no deadline.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithLogger sets the executor logger.
func WithLogger(l *zap.Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// NewExecutor creates a new Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{log: logger.Named("hook")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultTimeout returns the deadline applied to steps without their own timeout.
func (e *Executor) DefaultTimeout() time.Duration {
	return e.timeout
}

// Execute runs a single step and returns its result. It never returns nil.
func (e *Executor) Execute(ctx context.Context, step Step) *types.StepResult {
	startTime := time.Now()
	result := &types.StepResult{
		Kind:      step.Kind,
		GroupPath: step.GroupPath,
		TestName:  step.TestName,
		StartTime: startTime,
	}

	status, err := e.run(ctx, step)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	result.Status = status

	if err != nil {
		if step.Kind != "" {
			err = types.NewHookError(step.Kind, step.GroupPath, step.TestName, hookMessage(status), err)
		}
		result.Error = err
		e.log.Debug("step failed",
			zap.String("step", step.Name()),
			zap.String("status", string(status)),
			zap.Duration("duration", result.Duration),
			zap.Error(err))
	}

	return result
}

func (e *Executor) run(ctx context.Context, step Step) (types.ResultStatus, error) {
	if err := ctx.Err(); err != nil {
		return types.ResultStatusCancelled, fmt.Errorf("%w: %v", types.ErrRunCancelled, err)
	}
	if step.Action == nil {
		return types.ResultStatusSuccess, nil
	}

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}

	stepCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	done := make(chan error, 1)
	safeGo(e.log, step.Name(), func() {
		done <- step.Action(stepCtx)
	}, func(perr *PanicError) {
		done <- perr
	})

	var err error
	select {
	case err = <-done:
	case <-stepCtx.Done():
		// the action may have finished at the same instant
		select {
		case err = <-done:
		default:
			err = stepCtx.Err()
		}
	}

	if err == nil {
		return types.ResultStatusSuccess, nil
	}
	if stepCtx.Err() != nil && errors.Is(err, stepCtx.Err()) {
		if ctx.Err() != nil {
			return types.ResultStatusCancelled, fmt.Errorf("%w: %v", types.ErrRunCancelled, ctx.Err())
		}
		return types.ResultStatusTimeout, fmt.Errorf("%w after %s", types.ErrStepTimeout, timeout)
	}
	if errors.Is(err, types.ErrStepTimeout) {
		return types.ResultStatusTimeout, err
	}
	return types.ResultStatusFailed, err
}

func hookMessage(status types.ResultStatus) string {
	switch status {
	case types.ResultStatusTimeout:
		return "hook timed out"
	case types.ResultStatusCancelled:
		return "hook cancelled"
	default:
		return "hook failed"
	}
}
