package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"yqhp/hookrunner/internal/hook"
	"yqhp/hookrunner/pkg/logger"
	"yqhp/hookrunner/pkg/types"
)

// DefaultTeardownGrace bounds afterEach and afterAll hooks that run after the
// run context was cancelled.
const DefaultTeardownGrace = 5 * time.Second

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout sets the default per-step deadline. Zero means none.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithBail stops running tests after n failures. Zero means never.
func WithBail(n int) RunnerOption {
	return func(r *Runner) {
		r.bail = n
	}
}

// WithObserver adds an observer. It may be given more than once.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// WithLogger sets the runner logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithTeardownGrace sets the deadline for teardown hooks after cancellation.
func WithTeardownGrace(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.grace = d
	}
}

// Runner executes trees. A Runner holds no per-run state and may run the same
// tree any number of times.
type Runner struct {
	timeout   time.Duration
	bail      int
	grace     time.Duration
	observers observers
	log       *zap.Logger
	exec      *hook.Executor
}

// NewRunner creates a new Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		grace: DefaultTeardownGrace,
		log:   logger.Named("lifecycle"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.exec = hook.NewExecutor(hook.WithDefaultTimeout(r.timeout), hook.WithLogger(r.log))
	return r
}

// Run executes every runnable test of tree and returns one verdict per declared
// test, in declaration order.
func (r *Runner) Run(ctx context.Context, tree *Tree) *types.FileReport {
	s := &run{
		Runner: r,
		ctx:    ctx,
		tree:   tree,
		report: &types.FileReport{
			Path:      tree.Source(),
			Verdicts:  make([]types.Verdict, 0, tree.NumTests()),
			StartTime: time.Now(),
		},
	}

	r.log.Debug("run started",
		zap.String("source", tree.Source()),
		zap.Int("tests", tree.NumTests()),
		zap.Bool("focused", tree.Focused()))

	s.group(tree.Root(), nil)

	s.report.Duration = time.Since(s.report.StartTime)
	s.report.Tally()

	r.log.Debug("run finished",
		zap.String("source", tree.Source()),
		zap.Int("passed", s.report.Totals.Passed),
		zap.Int("failed", s.report.Totals.Failed),
		zap.Int("skipped", s.report.Totals.Skipped),
		zap.Duration("duration", s.report.Duration))

	return s.report
}

// run is the state of one Run call.
type run struct {
	*Runner
	ctx      context.Context
	tree     *Tree
	report   *types.FileReport
	failures int
}

// halted returns the reason no further test may start, or nil.
func (s *run) halted() error {
	if s.ctx.Err() != nil {
		return ErrRunCancelled
	}
	if s.bail > 0 && s.failures >= s.bail {
		return ErrBailed
	}
	return nil
}

// teardownCtx keeps teardown hooks running after cancellation, within the grace period.
func (s *run) teardownCtx() (context.Context, context.CancelFunc) {
	if s.ctx.Err() == nil {
		return s.ctx, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(s.ctx), s.grace)
}

// group runs g. blocked is the failure of an enclosing beforeAll, if any.
func (s *run) group(g *Group, blocked error) {
	entered := false
	setupErr := blocked

	enter := func() {
		if entered || blocked != nil {
			return
		}
		entered = true
		setupErr = s.beforeAll(g)
	}

	for _, c := range g.children {
		switch n := c.(type) {
		case *Test:
			if !s.tree.Runnable(n) {
				s.notRun(n)
				continue
			}
			if setupErr == nil {
				if reason := s.halted(); reason != nil {
					s.stopped(n, reason)
					continue
				}
				enter()
			}
			if setupErr != nil {
				s.blocked(n, setupErr)
				continue
			}
			s.test(n)
		case *Group:
			if s.tree.RunnableCount(n) > 0 && setupErr == nil && s.halted() == nil {
				enter()
			}
			s.group(n, setupErr)
		}
	}

	if entered {
		s.afterAll(g)
	}
}

func (s *run) beforeAll(g *Group) error {
	var first error
	for _, h := range g.hooks[types.HookBeforeAll] {
		res := s.step(s.ctx, h, "")
		if res.Error != nil && first == nil {
			first = res.Error
		}
	}
	return first
}

func (s *run) afterAll(g *Group) {
	ctx, cancel := s.teardownCtx()
	defer cancel()
	for _, h := range g.hooks[types.HookAfterAll] {
		res := s.step(ctx, h, "")
		if res.Error != nil {
			s.teardownError(res, "")
		}
	}
}

// test runs the beforeEach chain, the body and the afterEach chain of t.
func (s *run) test(t *Test) {
	start := time.Now()
	chain := t.parent.chain()
	var failure error

	for _, g := range chain {
		for _, h := range g.hooks[types.HookBeforeEach] {
			res := s.step(s.ctx, h, t.name)
			if res.Error != nil && failure == nil {
				failure = res.Error
			}
		}
	}

	if failure == nil {
		res := s.exec.Execute(s.ctx, hook.Step{
			GroupPath: t.Path(),
			TestName:  t.name,
			Action:    t.action,
			Timeout:   t.timeout,
		})
		s.observers.StepFinished(res)
		failure = res.Error
	}

	var teardown []string
	ctx, cancel := s.teardownCtx()
	for i := len(chain) - 1; i >= 0; i-- {
		for _, h := range chain[i].hooks[types.HookAfterEach] {
			res := s.step(ctx, h, t.name)
			if res.Error != nil {
				teardown = append(teardown, res.Error.Error())
				s.teardownError(res, t.name)
			}
		}
	}
	cancel()

	v := s.verdict(t, types.TestStatusPassed, failure)
	v.Duration = time.Since(start)
	v.TeardownErrors = teardown
	if failure != nil {
		v.Status = types.TestStatusFailed
		if errors.Is(failure, ErrRunCancelled) {
			v.Status = types.TestStatusSkipped
		}
	}
	s.finish(v)
}

func (s *run) step(ctx context.Context, h *Hook, testName string) *types.StepResult {
	res := s.exec.Execute(ctx, hook.Step{
		Kind:      h.kind,
		GroupPath: h.group.Path(),
		TestName:  testName,
		Action:    h.action,
		Timeout:   h.timeout,
	})
	s.observers.StepFinished(res)
	return res
}

func (s *run) teardownError(res *types.StepResult, testName string) {
	s.report.TeardownErrors = append(s.report.TeardownErrors, types.TeardownError{
		Kind:     res.Kind,
		Path:     res.GroupPath,
		TestName: testName,
		Message:  res.Error.Error(),
	})
	s.log.Warn("teardown hook failed",
		zap.String("kind", string(res.Kind)),
		zap.Strings("group", res.GroupPath),
		zap.String("test", testName),
		zap.Error(res.Error))
}

// notRun reports a test excluded by skip, todo or focus.
func (s *run) notRun(t *Test) {
	status := types.TestStatusSkipped
	if t.mode == types.ModeTodo {
		status = types.TestStatusTodo
	}
	s.finish(s.verdict(t, status, nil))
}

// stopped reports a runnable test that did not start because of cancellation or bail.
func (s *run) stopped(t *Test, reason error) {
	s.finish(s.verdict(t, types.TestStatusSkipped, reason))
}

// blocked reports a runnable test whose enclosing beforeAll failed.
func (s *run) blocked(t *Test, cause error) {
	s.finish(s.verdict(t, types.TestStatusFailed, fmt.Errorf("beforeAll failed: %w", cause)))
}

func (s *run) verdict(t *Test, status types.TestStatus, cause error) types.Verdict {
	v := types.Verdict{
		Name:     t.name,
		Path:     t.Path(),
		Status:   status,
		Cause:    cause,
		Location: t.loc,
	}
	if cause != nil {
		v.Error = cause.Error()
	}
	return v
}

func (s *run) finish(v types.Verdict) {
	if v.Status == types.TestStatusFailed {
		s.failures++
		s.log.Debug("test failed", zap.String("test", v.FullName()), zap.Error(v.Cause))
	}
	s.report.Verdicts = append(s.report.Verdicts, v)
	s.observers.TestFinished(v)
}
