package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"yqhp/hookrunner/pkg/types"
)

// recorder records the order in which actions run.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// act returns an action that records label.
func (r *recorder) act(label string) Action {
	return func(ctx context.Context) error {
		r.record(label)
		return nil
	}
}

// fail returns an action that records label and fails.
func (r *recorder) fail(label string) Action {
	return func(ctx context.Context) error {
		r.record(label)
		return errors.New(label + " failed")
	}
}

func newTestRunner(opts ...RunnerOption) *Runner {
	return NewRunner(append([]RunnerOption{WithLogger(zap.NewNop())}, opts...)...)
}

func mustBuild(t *testing.T, b *Builder) *Tree {
	t.Helper()
	tree, err := b.Build()
	require.NoError(t, err)
	return tree
}

func statuses(report *types.FileReport) map[string]types.TestStatus {
	out := make(map[string]types.TestStatus, len(report.Verdicts))
	for _, v := range report.Verdicts {
		out[v.Name] = v.Status
	}
	return out
}

func names(report *types.FileReport) []string {
	out := make([]string, 0, len(report.Verdicts))
	for _, v := range report.Verdicts {
		out = append(out, v.Name)
	}
	return out
}
