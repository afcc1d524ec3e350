package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/hookrunner/pkg/types"
)

func TestBuilder_DeclarationOrder(t *testing.T) {
	rec := &recorder{}
	b := NewBuilder(WithSource("math.test.js"))
	b.BeforeAll(rec.act("root beforeAll"))
	b.Test("first", rec.act("first"))
	b.Describe("outer", func(g *GroupBuilder) {
		g.BeforeEach(rec.act("outer beforeEach 1"))
		g.BeforeEach(rec.act("outer beforeEach 2"))
		g.It("inner test", rec.act("inner test"))
		g.Describe("inner", func(g *GroupBuilder) {
			g.TestTodo("later")
		})
	})
	b.Test("last", rec.act("last"))

	tree := mustBuild(t, b)

	assert.Equal(t, "math.test.js", tree.Source())
	assert.Empty(t, rec.get(), "collection runs no action")
	assert.Equal(t, 4, tree.NumTests())

	root := tree.Root()
	assert.True(t, root.IsRoot())
	assert.Empty(t, root.Path())
	children := root.Children()
	require.Len(t, children, 3)
	assert.Equal(t, "first", children[0].Name())
	assert.Equal(t, "outer", children[1].Name())
	assert.Equal(t, "last", children[2].Name())

	outer := children[1].(*Group)
	assert.Len(t, outer.Hooks(types.HookBeforeEach), 2)
	assert.Empty(t, outer.Hooks(types.HookAfterAll))
	inner := outer.Children()[1].(*Group)
	assert.Equal(t, []string{"outer", "inner"}, inner.Path())
	assert.Same(t, outer, inner.Parent())

	var walked []string
	tree.Walk(func(n Node, depth int) bool {
		walked = append(walked, n.Name())
		return true
	})
	assert.Equal(t, []string{"first", "outer", "inner test", "inner", "later", "last"}, walked)
}

func TestBuilder_Options(t *testing.T) {
	b := NewBuilder()
	loc := types.Location{File: "a.test.js", StartLine: 3, EndLine: 5}
	b.Test("slow", func(ctx context.Context) error { return nil }, Timeout(time.Second), At(loc))
	b.AfterAll(func(ctx context.Context) error { return nil }, Timeout(2*time.Second))

	tree := mustBuild(t, b)
	test := tree.Tests()[0]
	assert.Equal(t, time.Second, test.Timeout())
	require.NotNil(t, test.Location())
	assert.Equal(t, 3, test.Location().StartLine)
	assert.Equal(t, 2*time.Second, tree.Root().Hooks(types.HookAfterAll)[0].Timeout())
}

func TestBuilder_Invalid(t *testing.T) {
	t.Run("missing test action", func(t *testing.T) {
		b := NewBuilder()
		b.Describe("g", func(g *GroupBuilder) {
			g.Test("no body", nil)
		})
		_, err := b.Build()
		assert.ErrorIs(t, err, ErrMissingAction)
		assert.Contains(t, err.Error(), `"no body"`)
	})

	t.Run("skipped and todo tests need no action", func(t *testing.T) {
		b := NewBuilder()
		b.TestSkip("skipped", nil)
		b.TestTodo("todo")
		_, err := b.Build()
		assert.NoError(t, err)
	})

	t.Run("unknown hook kind", func(t *testing.T) {
		b := NewBuilder()
		b.Hook("beforeSuite", func(ctx context.Context) error { return nil })
		_, err := b.Build()
		assert.ErrorIs(t, err, ErrInvalidHookKind)
	})

	t.Run("nil hook action", func(t *testing.T) {
		b := NewBuilder()
		b.BeforeEach(nil)
		_, err := b.Build()
		assert.ErrorIs(t, err, ErrMissingAction)
	})
}

func TestBuilder_Frozen(t *testing.T) {
	b := NewBuilder()
	b.Test("t", func(ctx context.Context) error { return nil })
	tree := mustBuild(t, b)
	assert.True(t, b.Frozen())
	assert.NoError(t, b.Err())

	b.Test("late", func(ctx context.Context) error { return nil })
	b.BeforeEach(func(ctx context.Context) error { return nil })
	ran := false
	b.Describe("late group", func(g *GroupBuilder) { ran = true })

	assert.ErrorIs(t, b.Err(), ErrTreeFrozen)
	assert.False(t, ran, "a frozen builder does not evaluate group bodies")
	assert.Equal(t, 1, tree.NumTests())
	assert.Empty(t, tree.Root().Hooks(types.HookBeforeEach))

	_, err := b.Build()
	assert.ErrorIs(t, err, ErrTreeFrozen)
}

func TestTree_Runnable(t *testing.T) {
	noop := func(ctx context.Context) error { return nil }

	t.Run("skip and todo", func(t *testing.T) {
		b := NewBuilder()
		b.Test("runs", noop)
		b.TestSkip("skipped", noop)
		b.TestTodo("todo")
		b.DescribeSkip("skipped group", func(g *GroupBuilder) {
			g.Test("inside skipped", noop)
		})
		tree := mustBuild(t, b)

		runnable := map[string]bool{}
		for _, test := range tree.Tests() {
			runnable[test.Name()] = tree.Runnable(test)
		}
		assert.Equal(t, map[string]bool{"runs": true, "skipped": false, "todo": false, "inside skipped": false}, runnable)
		assert.Equal(t, 1, tree.RunnableCount(tree.Root()))
		assert.False(t, tree.Focused())
	})

	t.Run("focus", func(t *testing.T) {
		b := NewBuilder()
		b.Test("unfocused", noop)
		b.TestOnly("focused", noop)
		b.DescribeOnly("focused group", func(g *GroupBuilder) {
			g.Test("inside focused", noop)
			g.TestSkip("skipped inside focused", noop)
		})
		b.Describe("plain group", func(g *GroupBuilder) {
			g.Test("plain", noop)
		})
		tree := mustBuild(t, b)

		runnable := map[string]bool{}
		for _, test := range tree.Tests() {
			runnable[test.Name()] = tree.Runnable(test)
		}
		assert.True(t, tree.Focused())
		assert.Equal(t, map[string]bool{
			"unfocused":              false,
			"focused":                true,
			"inside focused":         true,
			"skipped inside focused": false,
			"plain":                  false,
		}, runnable)
	})
}
