package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/hookrunner/pkg/types"
)

func TestRunner_NestedBeforeEachOrder(t *testing.T) {
	rec := &recorder{}
	b := NewBuilder()
	b.Describe("A", func(a *GroupBuilder) {
		a.BeforeEach(rec.act("a"))
		a.Test("t1", rec.act("t1"))
		a.Describe("B", func(bg *GroupBuilder) {
			bg.BeforeEach(rec.act("b"))
			bg.Test("t2", rec.act("t2"))
		})
	})

	report := newTestRunner().Run(context.Background(), mustBuild(t, b))

	assert.Equal(t, []string{"a", "t1", "a", "b", "t2"}, rec.get())
	assert.True(t, report.Success())
	assert.Equal(t, types.Totals{Tests: 2, Passed: 2}, report.Totals)
}

func TestRunner_BeforeAllOnce(t *testing.T) {
	rec := &recorder{}
	b := NewBuilder()
	b.BeforeAll(rec.act("X"))
	b.AfterAll(rec.act("Y"))
	b.Test("t1", rec.act("t1"))
	b.Test("t2", rec.act("t2"))

	newTestRunner().Run(context.Background(), mustBuild(t, b))

	assert.Equal(t, []string{"X", "t1", "t2", "Y"}, rec.get())
}

// The canonical setup and teardown example: scoped hooks print their nesting level.
func TestRunner_ScopedHookOrder(t *testing.T) {
	rec := &recorder{}
	b := NewBuilder()
	b.BeforeAll(rec.act("1 - beforeAll"))
	b.AfterAll(rec.act("1 - afterAll"))
	b.BeforeEach(rec.act("1 - beforeEach"))
	b.AfterEach(rec.act("1 - afterEach"))
	b.Test("", rec.act("1 - test"))
	b.Describe("Scoped / Nested block", func(g *GroupBuilder) {
		g.BeforeAll(rec.act("2 - beforeAll"))
		g.AfterAll(rec.act("2 - afterAll"))
		g.BeforeEach(rec.act("2 - beforeEach"))
		g.AfterEach(rec.act("2 - afterEach"))
		g.Test("", rec.act("2 - test"))
	})

	newTestRunner().Run(context.Background(), mustBuild(t, b))

	assert.Equal(t, []string{
		"1 - beforeAll",
		"1 - beforeEach",
		"1 - test",
		"1 - afterEach",
		"2 - beforeAll",
		"1 - beforeEach",
		"2 - beforeEach",
		"2 - test",
		"2 - afterEach",
		"1 - afterEach",
		"2 - afterAll",
		"1 - afterAll",
	}, rec.get())
}

func TestRunner_MixedDeclarationOrder(t *testing.T) {
	rec := &recorder{}
	b := NewBuilder()
	b.Describe("outer", func(g *GroupBuilder) {
		g.Describe("describe inner 1", func(g *GroupBuilder) {
			g.Test("test 1", rec.act("test 1"))
		})
		g.Test("test 2", rec.act("test 2"))
		g.Describe("describe inner 2", func(g *GroupBuilder) {
			g.Test("test 3", rec.act("test 3"))
		})
	})

	report := newTestRunner().Run(context.Background(), mustBuild(t, b))

	assert.Equal(t, []string{"test 1", "test 2", "test 3"}, rec.get())
	assert.Equal(t, []string{"test 1", "test 2", "test 3"}, names(report))
	assert.Equal(t, []string{"outer", "describe inner 1"}, report.Verdicts[0].Path)
}

func TestRunner_AfterEachDeclarationOrderInsideGroup(t *testing.T) {
	rec := &recorder{}
	b := NewBuilder()
	b.AfterEach(rec.act("root 1"))
	b.AfterEach(rec.act("root 2"))
	b.Describe("g", func(g *GroupBuilder) {
		g.AfterEach(rec.act("g 1"))
		g.AfterEach(rec.act("g 2"))
		g.Test("t", rec.act("t"))
	})

	newTestRunner().Run(context.Background(), mustBuild(t, b))

	assert.Equal(t, []string{"t", "g 1", "g 2", "root 1", "root 2"}, rec.get())
}

func TestRunner_FailurePolicy(t *testing.T) {
	t.Run("failing beforeEach skips the body only", func(t *testing.T) {
		rec := &recorder{}
		b := NewBuilder()
		b.BeforeEach(rec.fail("before 1"))
		b.BeforeEach(rec.act("before 2"))
		b.AfterEach(rec.act("after"))
		b.Test("t", rec.act("body"))
		b.Test("u", rec.act("body u"))

		report := newTestRunner().Run(context.Background(), mustBuild(t, b))

		assert.Equal(t, []string{
			"before 1", "before 2", "after",
			"before 1", "before 2", "after",
		}, rec.get())
		assert.Equal(t, types.TestStatusFailed, report.Verdicts[0].Status)
		assert.True(t, types.IsHookError(report.Verdicts[0].Cause))
		assert.Equal(t, 2, report.Totals.Failed)
	})

	t.Run("failing body still runs afterEach and later tests", func(t *testing.T) {
		rec := &recorder{}
		b := NewBuilder()
		b.AfterEach(rec.act("after"))
		b.Test("bad", rec.fail("bad"))
		b.Test("good", rec.act("good"))

		report := newTestRunner().Run(context.Background(), mustBuild(t, b))

		assert.Equal(t, []string{"bad", "after", "good", "after"}, rec.get())
		assert.Equal(t, map[string]types.TestStatus{"bad": types.TestStatusFailed, "good": types.TestStatusPassed}, statuses(report))
		assert.Equal(t, "bad failed", report.Verdicts[0].Error)
	})

	t.Run("failing afterEach does not un-pass the test", func(t *testing.T) {
		rec := &recorder{}
		b := NewBuilder()
		b.AfterEach(rec.act("root after"))
		b.Describe("g", func(g *GroupBuilder) {
			g.AfterEach(rec.fail("inner after 1"))
			g.AfterEach(rec.act("inner after 2"))
			g.Test("t", rec.act("t"))
		})

		report := newTestRunner().Run(context.Background(), mustBuild(t, b))

		assert.Equal(t, []string{"t", "inner after 1", "inner after 2", "root after"}, rec.get())
		require.Len(t, report.Verdicts, 1)
		assert.Equal(t, types.TestStatusPassed, report.Verdicts[0].Status)
		assert.Len(t, report.Verdicts[0].TeardownErrors, 1)
		require.Len(t, report.TeardownErrors, 1)
		assert.Equal(t, types.HookAfterEach, report.TeardownErrors[0].Kind)
		assert.Equal(t, "t", report.TeardownErrors[0].TestName)
		assert.True(t, report.Success())
	})

	t.Run("failing beforeAll fails the subtree and still runs afterAll", func(t *testing.T) {
		rec := &recorder{}
		b := NewBuilder()
		b.Describe("db", func(g *GroupBuilder) {
			g.BeforeAll(rec.fail("connect"))
			g.BeforeAll(rec.act("seed"))
			g.AfterAll(rec.act("disconnect"))
			g.BeforeEach(rec.act("each"))
			g.Test("reads", rec.act("reads"))
			g.Describe("nested", func(g *GroupBuilder) {
				g.BeforeAll(rec.act("nested beforeAll"))
				g.AfterAll(rec.act("nested afterAll"))
				g.Test("writes", rec.act("writes"))
			})
			g.TestSkip("skipped", rec.act("skipped"))
		})
		b.Test("independent", rec.act("independent"))

		report := newTestRunner().Run(context.Background(), mustBuild(t, b))

		assert.Equal(t, []string{"connect", "seed", "disconnect", "independent"}, rec.get())
		assert.Equal(t, map[string]types.TestStatus{
			"reads":       types.TestStatusFailed,
			"writes":      types.TestStatusFailed,
			"skipped":     types.TestStatusSkipped,
			"independent": types.TestStatusPassed,
		}, statuses(report))

		var hookErr *types.HookError
		require.True(t, errors.As(report.Verdicts[1].Cause, &hookErr))
		assert.Equal(t, types.HookBeforeAll, hookErr.Kind)
		assert.Equal(t, []string{"db"}, hookErr.GroupPath)
	})

	t.Run("failing afterAll is a teardown error", func(t *testing.T) {
		rec := &recorder{}
		b := NewBuilder()
		b.AfterAll(rec.fail("close 1"))
		b.AfterAll(rec.act("close 2"))
		b.Test("t", rec.act("t"))

		report := newTestRunner().Run(context.Background(), mustBuild(t, b))

		assert.Equal(t, []string{"t", "close 1", "close 2"}, rec.get())
		assert.Equal(t, types.TestStatusPassed, report.Verdicts[0].Status)
		require.Len(t, report.TeardownErrors, 1)
		assert.Equal(t, types.HookAfterAll, report.TeardownErrors[0].Kind)
		assert.Empty(t, report.TeardownErrors[0].TestName)
	})

	t.Run("panicking body fails only that test", func(t *testing.T) {
		b := NewBuilder()
		b.Test("panics", func(ctx context.Context) error { panic("boom") })
		b.Test("fine", func(ctx context.Context) error { return nil })

		report := newTestRunner().Run(context.Background(), mustBuild(t, b))

		assert.Equal(t, map[string]types.TestStatus{"panics": types.TestStatusFailed, "fine": types.TestStatusPassed}, statuses(report))
	})
}

func TestRunner_SkipFocusTodo(t *testing.T) {
	t.Run("skipped and todo run no hooks", func(t *testing.T) {
		rec := &recorder{}
		b := NewBuilder()
		b.Describe("all skipped", func(g *GroupBuilder) {
			g.BeforeAll(rec.act("beforeAll"))
			g.AfterAll(rec.act("afterAll"))
			g.BeforeEach(rec.act("beforeEach"))
			g.TestSkip("s", rec.act("s"))
			g.TestTodo("todo")
		})

		report := newTestRunner().Run(context.Background(), mustBuild(t, b))

		assert.Empty(t, rec.get())
		assert.Equal(t, types.Totals{Tests: 2, Skipped: 1, Todo: 1}, report.Totals)
	})

	t.Run("empty group runs no hooks", func(t *testing.T) {
		rec := &recorder{}
		b := NewBuilder()
		b.Describe("empty", func(g *GroupBuilder) {
			g.BeforeAll(rec.act("beforeAll"))
			g.AfterAll(rec.act("afterAll"))
		})
		b.Test("t", rec.act("t"))

		newTestRunner().Run(context.Background(), mustBuild(t, b))

		assert.Equal(t, []string{"t"}, rec.get())
	})

	t.Run("focused test excludes the rest", func(t *testing.T) {
		rec := &recorder{}
		b := NewBuilder()
		b.BeforeEach(rec.act("each"))
		b.Test("plain", rec.act("plain"))
		b.TestOnly("only", rec.act("only"))
		b.Describe("group", func(g *GroupBuilder) {
			g.BeforeAll(rec.act("group beforeAll"))
			g.Test("nested", rec.act("nested"))
		})

		report := newTestRunner().Run(context.Background(), mustBuild(t, b))

		assert.Equal(t, []string{"each", "only"}, rec.get())
		assert.Equal(t, map[string]types.TestStatus{
			"plain":  types.TestStatusSkipped,
			"only":   types.TestStatusPassed,
			"nested": types.TestStatusSkipped,
		}, statuses(report))
	})
}

func TestRunner_Timeout(t *testing.T) {
	rec := &recorder{}
	release := make(chan struct{})
	defer close(release)

	b := NewBuilder()
	b.AfterEach(rec.act("after"))
	b.Test("hangs", func(ctx context.Context) error {
		<-release
		return nil
	}, Timeout(20*time.Millisecond))
	b.Test("next", rec.act("next"))

	report := newTestRunner(WithTimeout(time.Minute)).Run(context.Background(), mustBuild(t, b))

	assert.Equal(t, []string{"after", "next", "after"}, rec.get())
	assert.Equal(t, types.TestStatusFailed, report.Verdicts[0].Status)
	assert.ErrorIs(t, report.Verdicts[0].Cause, ErrStepTimeout)
	assert.Equal(t, types.TestStatusPassed, report.Verdicts[1].Status)
}

func TestRunner_Bail(t *testing.T) {
	rec := &recorder{}
	b := NewBuilder()
	b.AfterAll(rec.act("afterAll"))
	b.Test("f1", rec.fail("f1"))
	b.Test("f2", rec.fail("f2"))
	b.Test("later", rec.act("later"))

	report := newTestRunner(WithBail(2)).Run(context.Background(), mustBuild(t, b))

	assert.Equal(t, []string{"f1", "f2", "afterAll"}, rec.get())
	assert.Equal(t, types.TestStatusSkipped, report.Verdicts[2].Status)
	assert.ErrorIs(t, report.Verdicts[2].Cause, ErrBailed)
}

func TestRunner_Cancelled(t *testing.T) {
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBuilder()
	b.Describe("g", func(g *GroupBuilder) {
		g.AfterAll(func(ctx context.Context) error {
			rec.record("afterAll")
			return ctx.Err()
		})
		g.Test("first", rec.act("first"))
		g.Test("never", rec.act("never"))
	})

	cancelAfterFirst := ObserverFuncs{OnTest: func(v types.Verdict) {
		if v.Name == "first" {
			cancel()
		}
	}}
	report := newTestRunner(WithObserver(cancelAfterFirst)).Run(ctx, mustBuild(t, b))

	assert.Equal(t, []string{"first", "afterAll"}, rec.get())
	assert.Equal(t, types.TestStatusPassed, report.Verdicts[0].Status)
	assert.Equal(t, types.TestStatusSkipped, report.Verdicts[1].Status)
	assert.ErrorIs(t, report.Verdicts[1].Cause, ErrRunCancelled)
	assert.Empty(t, report.TeardownErrors, "afterAll runs with a live context after cancellation")
}

func TestRunner_Idempotent(t *testing.T) {
	rec := &recorder{}
	b := NewBuilder()
	b.BeforeAll(rec.act("setup"))
	b.Describe("g", func(g *GroupBuilder) {
		g.BeforeEach(rec.act("each"))
		g.Test("a", rec.act("a"))
		g.Test("b", rec.fail("b"))
	})
	b.TestTodo("c")
	tree := mustBuild(t, b)
	runner := newTestRunner()

	first := runner.Run(context.Background(), tree)
	firstEvents := rec.get()
	rec.reset()
	second := runner.Run(context.Background(), tree)

	assert.Equal(t, firstEvents, rec.get())
	require.Len(t, second.Verdicts, len(first.Verdicts))
	for i := range first.Verdicts {
		assert.Equal(t, first.Verdicts[i].Name, second.Verdicts[i].Name)
		assert.Equal(t, first.Verdicts[i].Status, second.Verdicts[i].Status)
	}
}

func TestRunner_Observer(t *testing.T) {
	var steps []string
	var tests []string
	obs := ObserverFuncs{
		OnStep: func(r *types.StepResult) {
			if r.IsBody() {
				steps = append(steps, "body:"+r.TestName)
				return
			}
			steps = append(steps, fmt.Sprintf("%s:%s", r.Kind, r.TestName))
		},
		OnTest: func(v types.Verdict) {
			tests = append(tests, fmt.Sprintf("%s=%s", v.Name, v.Status))
		},
	}

	b := NewBuilder()
	b.BeforeAll(func(context.Context) error { return nil })
	b.BeforeEach(func(context.Context) error { return nil })
	b.Test("t", func(context.Context) error { return nil })
	b.TestTodo("todo")

	newTestRunner(WithObserver(obs)).Run(context.Background(), mustBuild(t, b))

	assert.Equal(t, []string{"beforeAll:", "beforeEach:t", "body:t"}, steps)
	assert.Equal(t, []string{"t=passed", "todo=todo"}, tests)
}
