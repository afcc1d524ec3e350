package lifecycle

import (
	"context"
	"time"

	"yqhp/hookrunner/pkg/types"
)

// Action is the body of a test or a hook. The context carries the step deadline.
type Action func(ctx context.Context) error

// Node is a child of a group: either a *Group or a *Test.
type Node interface {
	Name() string
	Mode() types.Mode
	Location() *types.Location
	Parent() *Group
	node()
}

// Hook is a setup or teardown action attached to a group.
type Hook struct {
	kind    types.HookKind
	action  Action
	timeout time.Duration
	loc     *types.Location
	group   *Group
}

func (h *Hook) Kind() types.HookKind        { return h.kind }
func (h *Hook) Timeout() time.Duration      { return h.timeout }
func (h *Hook) Location() *types.Location   { return h.loc }
func (h *Hook) Group() *Group               { return h.group }
func (h *Hook) Run(ctx context.Context) error { return h.action(ctx) }

// Test is a leaf unit of the tree.
type Test struct {
	name    string
	action  Action
	mode    types.Mode
	timeout time.Duration
	loc     *types.Location
	parent  *Group
}

func (t *Test) Name() string              { return t.name }
func (t *Test) Mode() types.Mode          { return t.mode }
func (t *Test) Timeout() time.Duration    { return t.timeout }
func (t *Test) Location() *types.Location { return t.loc }
func (t *Test) Parent() *Group            { return t.parent }
func (t *Test) node()                     {}

// Path returns the names of the enclosing groups, outermost first.
func (t *Test) Path() []string {
	return t.parent.Path()
}

// Group is a named scope of tests, nested groups and hooks.
type Group struct {
	name     string
	mode     types.Mode
	loc      *types.Location
	parent   *Group
	path     []string
	children []Node
	hooks    map[types.HookKind][]*Hook
}

func newGroup(name string, mode types.Mode, parent *Group) *Group {
	g := &Group{
		name:   name,
		mode:   mode,
		parent: parent,
		hooks:  make(map[types.HookKind][]*Hook, len(types.HookKinds)),
	}
	if parent != nil {
		g.path = append(append([]string{}, parent.path...), name)
	}
	return g
}

func (g *Group) Name() string              { return g.name }
func (g *Group) Mode() types.Mode          { return g.mode }
func (g *Group) Location() *types.Location { return g.loc }
func (g *Group) Parent() *Group            { return g.parent }
func (g *Group) node()                     {}

// IsRoot reports whether g is the unnamed top-level group.
func (g *Group) IsRoot() bool {
	return g.parent == nil
}

// Path returns the names from the outermost named group down to g.
// The root group has an empty path.
func (g *Group) Path() []string {
	return append([]string(nil), g.path...)
}

// Children returns the tests and groups of g in declaration order.
func (g *Group) Children() []Node {
	return append([]Node(nil), g.children...)
}

// Hooks returns the hooks of the given kind in declaration order.
func (g *Group) Hooks(kind types.HookKind) []*Hook {
	return append([]*Hook(nil), g.hooks[kind]...)
}

// chain returns the groups from the root down to g.
func (g *Group) chain() []*Group {
	var out []*Group
	for cur := g; cur != nil; cur = cur.parent {
		out = append(out, cur)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Tree is the frozen result of the collection phase. Running never mutates it.
type Tree struct {
	source   string
	root     *Group
	focused  bool
	runnable map[*Test]bool
	counts   map[*Group]int
	tests    int
}

func newTree(source string, root *Group) *Tree {
	t := &Tree{
		source:   source,
		root:     root,
		runnable: make(map[*Test]bool),
		counts:   make(map[*Group]int),
	}
	t.focused = hasFocus(root)
	t.mark(root, false, false)
	return t
}

func hasFocus(g *Group) bool {
	if g.mode == types.ModeFocused {
		return true
	}
	for _, c := range g.children {
		switch n := c.(type) {
		case *Test:
			if n.mode == types.ModeFocused {
				return true
			}
		case *Group:
			if hasFocus(n) {
				return true
			}
		}
	}
	return false
}

// mark records which tests run and how many runnable tests each group holds.
func (t *Tree) mark(g *Group, skipped, focused bool) int {
	skipped = skipped || g.mode == types.ModeSkipped
	focused = focused || g.mode == types.ModeFocused

	count := 0
	for _, c := range g.children {
		switch n := c.(type) {
		case *Test:
			t.tests++
			run := !skipped && n.mode != types.ModeSkipped && n.mode != types.ModeTodo
			if run && t.focused {
				run = focused || n.mode == types.ModeFocused
			}
			if run {
				t.runnable[n] = true
				count++
			}
		case *Group:
			count += t.mark(n, skipped, focused)
		}
	}
	t.counts[g] = count
	return count
}

// Source returns the file the tree was collected from, if any.
func (t *Tree) Source() string { return t.source }

// Root returns the unnamed top-level group.
func (t *Tree) Root() *Group { return t.root }

// Focused reports whether any test or group was declared with only.
func (t *Tree) Focused() bool { return t.focused }

// NumTests returns the number of declared tests, runnable or not.
func (t *Tree) NumTests() int { return t.tests }

// Runnable reports whether test will run under the focus and skip rules.
func (t *Tree) Runnable(test *Test) bool { return t.runnable[test] }

// RunnableCount returns the number of runnable tests at or below g.
func (t *Tree) RunnableCount(g *Group) int { return t.counts[g] }

// Walk visits every group and test in declaration order, pre-order.
// Returning false from fn skips the children of a group.
func (t *Tree) Walk(fn func(n Node, depth int) bool) {
	var walk func(g *Group, depth int)
	walk = func(g *Group, depth int) {
		for _, c := range g.children {
			if !fn(c, depth) {
				continue
			}
			if child, ok := c.(*Group); ok {
				walk(child, depth+1)
			}
		}
	}
	walk(t.root, 0)
}

// Tests returns every test in declaration order.
func (t *Tree) Tests() []*Test {
	var out []*Test
	t.Walk(func(n Node, _ int) bool {
		if test, ok := n.(*Test); ok {
			out = append(out, test)
		}
		return true
	})
	return out
}
