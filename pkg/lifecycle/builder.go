package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"yqhp/hookrunner/pkg/types"
)

// DeclOption configures a declared test, hook or group.
type DeclOption func(*decl)

type decl struct {
	timeout time.Duration
	loc     *types.Location
}

// Timeout sets the deadline of a test or hook. It overrides the runner default.
func Timeout(d time.Duration) DeclOption {
	return func(o *decl) {
		o.timeout = d
	}
}

// At records where the declaration appears in source.
func At(loc types.Location) DeclOption {
	return func(o *decl) {
		o.loc = &loc
	}
}

func applyDecl(opts []DeclOption) decl {
	var o decl
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithSource names the file the declarations come from.
func WithSource(path string) BuilderOption {
	return func(b *Builder) {
		b.state.source = path
	}
}

type buildState struct {
	mu     sync.Mutex
	source string
	frozen bool
	errs   []error
	late   error
}

// declare runs fn unless the tree is frozen.
func (s *buildState) declare(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		if s.late == nil {
			s.late = ErrTreeFrozen
		}
		return
	}
	fn()
}

func (s *buildState) invalid(format string, args ...any) {
	s.errs = append(s.errs, fmt.Errorf(format, args...))
}

// GroupBuilder declares the contents of one group.
type GroupBuilder struct {
	group *Group
	state *buildState
}

// Builder collects declarations and freezes them into a Tree. It is also the
// GroupBuilder of the root group.
type Builder struct {
	*GroupBuilder
}

// NewBuilder creates a Builder with an empty root group.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		GroupBuilder: &GroupBuilder{
			group: newGroup("", types.ModeNormal, nil),
			state: &buildState{},
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build freezes the declarations. Later declarations are ignored and reported
// by Err. A second call returns ErrTreeFrozen.
func (b *Builder) Build() (*Tree, error) {
	s := b.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frozen {
		return nil, ErrTreeFrozen
	}
	s.frozen = true

	if len(s.errs) > 0 {
		return nil, errors.Join(s.errs...)
	}
	return newTree(s.source, b.group), nil
}

// Err reports declarations attempted after Build.
func (b *Builder) Err() error {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()
	return b.state.late
}

// Frozen reports whether Build has been called.
func (b *Builder) Frozen() bool {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()
	return b.state.frozen
}

// Group returns the group being declared.
func (gb *GroupBuilder) Group() *Group {
	return gb.group
}

// Describe declares a child group and runs body with its builder before returning.
func (gb *GroupBuilder) Describe(name string, body func(*GroupBuilder), opts ...DeclOption) {
	gb.describe(name, types.ModeNormal, body, opts)
}

// DescribeOnly declares a focused child group.
func (gb *GroupBuilder) DescribeOnly(name string, body func(*GroupBuilder), opts ...DeclOption) {
	gb.describe(name, types.ModeFocused, body, opts)
}

// DescribeSkip declares a skipped child group. Its body is still collected.
func (gb *GroupBuilder) DescribeSkip(name string, body func(*GroupBuilder), opts ...DeclOption) {
	gb.describe(name, types.ModeSkipped, body, opts)
}

func (gb *GroupBuilder) describe(name string, mode types.Mode, body func(*GroupBuilder), opts []DeclOption) {
	var child *GroupBuilder
	gb.state.declare(func() {
		g := newGroup(name, mode, gb.group)
		g.loc = applyDecl(opts).loc
		gb.group.children = append(gb.group.children, g)
		child = &GroupBuilder{group: g, state: gb.state}
	})
	// body runs outside the lock so it can declare
	if child != nil && body != nil {
		body(child)
	}
}

// Test declares a test.
func (gb *GroupBuilder) Test(name string, action Action, opts ...DeclOption) {
	gb.test(name, types.ModeNormal, action, opts)
}

// It is an alias of Test.
func (gb *GroupBuilder) It(name string, action Action, opts ...DeclOption) {
	gb.test(name, types.ModeNormal, action, opts)
}

// TestOnly declares a focused test.
func (gb *GroupBuilder) TestOnly(name string, action Action, opts ...DeclOption) {
	gb.test(name, types.ModeFocused, action, opts)
}

// TestSkip declares a skipped test. The action may be nil.
func (gb *GroupBuilder) TestSkip(name string, action Action, opts ...DeclOption) {
	gb.test(name, types.ModeSkipped, action, opts)
}

// TestTodo declares a placeholder test without a body.
func (gb *GroupBuilder) TestTodo(name string, opts ...DeclOption) {
	gb.test(name, types.ModeTodo, nil, opts)
}

func (gb *GroupBuilder) test(name string, mode types.Mode, action Action, opts []DeclOption) {
	gb.state.declare(func() {
		o := applyDecl(opts)
		if action == nil && mode != types.ModeTodo && mode != types.ModeSkipped {
			gb.state.invalid("test %q in %s: %w", name, scopeName(gb.group), ErrMissingAction)
		}
		gb.group.children = append(gb.group.children, &Test{
			name:    name,
			action:  action,
			mode:    mode,
			timeout: o.timeout,
			loc:     o.loc,
			parent:  gb.group,
		})
	})
}

// BeforeAll declares a hook that runs once before the first runnable test of the group.
func (gb *GroupBuilder) BeforeAll(action Action, opts ...DeclOption) {
	gb.Hook(types.HookBeforeAll, action, opts...)
}

// AfterAll declares a hook that runs once after the last runnable test of the group.
func (gb *GroupBuilder) AfterAll(action Action, opts ...DeclOption) {
	gb.Hook(types.HookAfterAll, action, opts...)
}

// BeforeEach declares a hook that runs before every runnable test of the group.
func (gb *GroupBuilder) BeforeEach(action Action, opts ...DeclOption) {
	gb.Hook(types.HookBeforeEach, action, opts...)
}

// AfterEach declares a hook that runs after every runnable test of the group.
func (gb *GroupBuilder) AfterEach(action Action, opts ...DeclOption) {
	gb.Hook(types.HookAfterEach, action, opts...)
}

// Hook declares a hook of the given kind.
func (gb *GroupBuilder) Hook(kind types.HookKind, action Action, opts ...DeclOption) {
	gb.state.declare(func() {
		if !kind.Valid() {
			gb.state.invalid("hook %q in %s: %w", kind, scopeName(gb.group), ErrInvalidHookKind)
			return
		}
		if action == nil {
			gb.state.invalid("%s hook in %s: %w", kind, scopeName(gb.group), ErrMissingAction)
			return
		}
		o := applyDecl(opts)
		gb.group.hooks[kind] = append(gb.group.hooks[kind], &Hook{
			kind:    kind,
			action:  action,
			timeout: o.timeout,
			loc:     o.loc,
			group:   gb.group,
		})
	})
}

func scopeName(g *Group) string {
	if g.IsRoot() {
		return "root"
	}
	return fmt.Sprintf("%q", strings.Join(g.path, " > "))
}
