package outline

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"yqhp/hookrunner/pkg/lifecycle"
	"yqhp/hookrunner/pkg/types"
)

// StepLabel names an executed step the same way for planned and real runs.
func StepLabel(res *types.StepResult) string {
	scope := "<root>"
	if len(res.GroupPath) > 0 {
		scope = strings.Join(res.GroupPath, " > ")
	}
	if res.IsBody() {
		if len(res.GroupPath) == 0 {
			return "test: " + res.TestName
		}
		return "test: " + scope + " > " + res.TestName
	}
	if res.Kind.IsOnce() {
		return fmt.Sprintf("%s: %s", res.Kind, scope)
	}
	return fmt.Sprintf("%s: %s (%s)", res.Kind, scope, res.TestName)
}

// Trace records step labels in execution order. It is a lifecycle.Observer.
type Trace struct {
	mu     sync.Mutex
	labels []string
}

func (t *Trace) StepFinished(res *types.StepResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.labels = append(t.labels, StepLabel(res))
}

func (t *Trace) TestFinished(types.Verdict) {}

// Labels returns the recorded labels.
func (t *Trace) Labels() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.labels...)
}

func noop(context.Context) error { return nil }

// Plan builds a scheduler tree from o whose actions do nothing.
func Plan(o *types.Outline) (*lifecycle.Tree, error) {
	b := lifecycle.NewBuilder(lifecycle.WithSource(o.Path))
	declare(b.GroupBuilder, &o.Root)
	return b.Build()
}

func declare(gb *lifecycle.GroupBuilder, n *types.OutlineNode) {
	for _, h := range n.Hooks {
		gb.Hook(h.Kind, noop, lifecycle.At(h.Location))
	}
	for i := range n.Children {
		child := &n.Children[i]
		opts := []lifecycle.DeclOption{lifecycle.At(child.Location)}
		if child.Kind == types.NodeGroup {
			body := func(g *lifecycle.GroupBuilder) { declare(g, child) }
			switch child.Mode {
			case types.ModeFocused:
				gb.DescribeOnly(child.Name, body, opts...)
			case types.ModeSkipped:
				gb.DescribeSkip(child.Name, body, opts...)
			default:
				gb.Describe(child.Name, body, opts...)
			}
			continue
		}
		switch child.Mode {
		case types.ModeFocused:
			gb.TestOnly(child.Name, noop, opts...)
		case types.ModeSkipped:
			gb.TestSkip(child.Name, noop, opts...)
		case types.ModeTodo:
			gb.TestTodo(child.Name, opts...)
		default:
			gb.Test(child.Name, noop, opts...)
		}
	}
}

// PlanOrder returns the labels of the steps a run of o would execute, in order,
// together with the predicted verdicts.
func PlanOrder(ctx context.Context, o *types.Outline) ([]string, *types.FileReport, error) {
	tree, err := Plan(o)
	if err != nil {
		return nil, nil, err
	}
	trace := &Trace{}
	runner := lifecycle.NewRunner(lifecycle.WithObserver(trace), lifecycle.WithLogger(zap.NewNop()))
	report := runner.Run(ctx, tree)
	return trace.Labels(), report, nil
}
