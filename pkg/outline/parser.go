package outline

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"yqhp/hookrunner/pkg/types"
)

// ErrSyntax is returned for files the grammar cannot parse cleanly.
var ErrSyntax = errors.New("syntax error")

// maxDepth bounds recursion on pathological trees.
const maxDepth = 1000

// Parse reads the groups, tests and hooks declared in source.
func Parse(ctx context.Context, filename string, source []byte) (*types.Outline, error) {
	lang := DetectLanguage(filename)

	tree, err := parseTree(ctx, lang, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%s: %w", filename, errorLocation(root, filename))
	}

	w := &walker{source: source, filename: filename}
	out := &types.Outline{
		Path:     filename,
		Language: string(lang),
		Root: types.OutlineNode{
			Kind:     types.NodeGroup,
			Location: location(root, filename),
		},
	}
	w.walk(root, &out.Root, false, 0)
	return out, nil
}

// errorLocation points at the first ERROR or MISSING node.
func errorLocation(root *sitter.Node, filename string) error {
	var found *sitter.Node
	var find func(n *sitter.Node, depth int)
	find = func(n *sitter.Node, depth int) {
		if found != nil || depth > maxDepth {
			return
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			found = n
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			find(n.Child(i), depth+1)
		}
	}
	find(root, 0)
	if found == nil {
		return ErrSyntax
	}
	loc := location(found, filename)
	return fmt.Errorf("%w at line %d, column %d", ErrSyntax, loc.StartLine, loc.StartCol+1)
}

type walker struct {
	source   []byte
	filename string
}

// walk visits the statements below node, adding declarations to group.
// dynamic is set inside loops and array iterators.
func (w *walker) walk(node *sitter.Node, group *types.OutlineNode, dynamic bool, depth int) {
	if depth > maxDepth {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "expression_statement":
			if call := childByType(child, "call_expression"); call != nil {
				w.call(call, group, dynamic, depth+1)
			} else if await := childByType(child, "await_expression"); await != nil {
				w.walk(await, group, dynamic, depth+1)
			}
		case "call_expression":
			w.call(child, group, dynamic, depth+1)
		case "for_statement", "for_in_statement", "while_statement", "do_statement":
			if body := child.ChildByFieldName("body"); body != nil {
				w.walk(body, group, true, depth+1)
			}
		default:
			w.walk(child, group, dynamic, depth+1)
		}
	}
}

func (w *walker) call(node *sitter.Node, group *types.OutlineNode, dynamic bool, depth int) {
	fn := node.ChildByFieldName("function")
	args := node.ChildByFieldName("arguments")
	if fn == nil || args == nil {
		return
	}

	// test.each(table)(name, fn)
	if fn.Type() == "call_expression" {
		w.eachCall(node, fn, args, group, depth)
		return
	}

	// cases.forEach((c) => test(...))
	if fn.Type() == "member_expression" {
		if prop := fn.ChildByFieldName("property"); prop != nil {
			switch nodeText(prop, w.source) {
			case "forEach", "map":
				if cb := callback(args); cb != nil {
					if body := cb.ChildByFieldName("body"); body != nil {
						w.walk(body, group, true, depth+1)
					}
				}
				return
			}
		}
	}

	name, mode, _ := functionName(fn, w.source)
	switch name {
	case funcDescribe:
		w.group(node, args, group, mode, dynamic, depth)
	case funcTest, funcIt:
		w.test(node, args, group, mode, dynamic)
	case string(types.HookBeforeAll), string(types.HookAfterAll), string(types.HookBeforeEach), string(types.HookAfterEach):
		if mode != types.ModeNormal {
			return
		}
		group.Hooks = append(group.Hooks, types.OutlineHook{
			Kind:     types.HookKind(name),
			Location: location(node, w.filename),
		})
	case "":
		return
	default:
		// wrappers such as describeIf(cond, 'name', () => {...})
		if cb := lastCallback(args); cb != nil {
			if body := cb.ChildByFieldName("body"); body != nil {
				w.walk(body, group, dynamic, depth+1)
			}
		}
	}
}

func (w *walker) group(node, args *sitter.Node, parent *types.OutlineNode, mode types.Mode, dynamic bool, depth int) {
	name := title(args, w.source)
	if name == "" {
		return
	}
	if dynamic {
		name += DynamicCasesSuffix
	}
	g := types.OutlineNode{
		Kind:     types.NodeGroup,
		Name:     name,
		Mode:     mode,
		Location: location(node, w.filename),
	}
	if cb := callback(args); cb != nil {
		if body := cb.ChildByFieldName("body"); body != nil {
			w.walk(body, &g, dynamic, depth+1)
		}
	}
	parent.Children = append(parent.Children, g)
}

func (w *walker) test(node, args *sitter.Node, parent *types.OutlineNode, mode types.Mode, dynamic bool) {
	name := title(args, w.source)
	if name == "" {
		return
	}
	if dynamic {
		name += DynamicCasesSuffix
	}
	parent.Children = append(parent.Children, types.OutlineNode{
		Kind:     types.NodeTest,
		Name:     name,
		Mode:     mode,
		Location: location(node, w.filename),
	})
}

// eachCall handles describe.each(table)(name, fn) and test.each(table)(name, fn).
// Each is counted once since the cases are only known at runtime.
func (w *walker) eachCall(outer, inner, outerArgs *sitter.Node, group *types.OutlineNode, depth int) {
	innerFn := inner.ChildByFieldName("function")
	if innerFn == nil {
		return
	}
	name, mode, each := functionName(innerFn, w.source)
	if !each {
		return
	}
	switch name {
	case funcDescribe:
		w.group(outer, outerArgs, group, mode, true, depth)
	case funcTest, funcIt:
		w.test(outer, outerArgs, group, mode, true)
	}
}
