package outline

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"yqhp/hookrunner/pkg/types"
)

const (
	funcDescribe = "describe"
	funcIt       = "it"
	funcTest     = "test"

	modifierConcurrent = "concurrent"
	modifierEach       = "each"
	modifierOnly       = "only"
	modifierSkip       = "skip"
	modifierTodo       = "todo"

	// DynamicCasesSuffix marks a test or group generated at runtime, counted once.
	DynamicCasesSuffix = " (dynamic cases)"
	// DynamicNamePlaceholder replaces a title that is not a string literal.
	DynamicNamePlaceholder = "(dynamic)"
)

var skippedAliases = map[string]string{
	"xdescribe": funcDescribe,
	"xit":       funcIt,
	"xtest":     funcTest,
}

var focusedAliases = map[string]string{
	"fdescribe": funcDescribe,
	"fit":       funcIt,
}

func modifierMode(modifier string) types.Mode {
	switch modifier {
	case modifierSkip:
		return types.ModeSkipped
	case modifierTodo:
		return types.ModeTodo
	case modifierOnly:
		return types.ModeFocused
	default:
		return types.ModeNormal
	}
}

// nodeText returns the source text of node, or "" when it lies outside source.
func nodeText(node *sitter.Node, source []byte) (text string) {
	start, end := node.StartByte(), node.EndByte()
	if start > uint32(len(source)) || end > uint32(len(source)) {
		return ""
	}
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	return node.Content(source)
}

// location converts node positions to 1-based lines.
func location(node *sitter.Node, filename string) types.Location {
	start, end := node.StartPoint(), node.EndPoint()
	return types.Location{
		File:      filename,
		StartLine: int(start.Row) + 1,
		EndLine:   int(end.Row) + 1,
		StartCol:  int(start.Column),
		EndCol:    int(end.Column),
	}
}

func childByType(node *sitter.Node, nodeType string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child.Type() == nodeType {
			return child
		}
	}
	return nil
}

// unquote decodes a JS string or template literal.
func unquote(text string) string {
	if len(text) < 2 {
		return text
	}
	if text[0] == '`' && text[len(text)-1] == '`' {
		return text[1 : len(text)-1]
	}
	if text[0] == '\'' && text[len(text)-1] == '\'' {
		inner := strings.ReplaceAll(text[1:len(text)-1], `\'`, `'`)
		if s, err := strconv.Unquote(`"` + strings.ReplaceAll(inner, `"`, `\"`) + `"`); err == nil {
			return s
		}
		return text
	}
	if s, err := strconv.Unquote(text); err == nil {
		return s
	}
	return text
}

// title extracts the first argument of a describe or test call.
func title(args *sitter.Node, source []byte) string {
	for i := 0; i < int(args.ChildCount()); i++ {
		child := args.Child(i)
		switch child.Type() {
		case "string", "template_string":
			return unquote(nodeText(child, source))
		case "identifier", "binary_expression", "call_expression", "member_expression":
			return DynamicNamePlaceholder
		}
	}
	return ""
}

// callback returns the first function argument.
func callback(args *sitter.Node) *sitter.Node {
	for i := 0; i < int(args.ChildCount()); i++ {
		switch child := args.Child(i); child.Type() {
		case "arrow_function", "function_expression", "function":
			return child
		}
	}
	return nil
}

// lastCallback returns the last function argument, for wrappers like describeIf(cond, name, fn).
func lastCallback(args *sitter.Node) *sitter.Node {
	var last *sitter.Node
	for i := 0; i < int(args.ChildCount()); i++ {
		switch child := args.Child(i); child.Type() {
		case "arrow_function", "function_expression", "function":
			last = child
		}
	}
	return last
}

// functionName resolves the callee of a call to a base name and a mode.
// each reports a .each call.
func functionName(node *sitter.Node, source []byte) (name string, mode types.Mode, each bool) {
	switch node.Type() {
	case "identifier":
		name = nodeText(node, source)
		if base, ok := skippedAliases[name]; ok {
			return base, types.ModeSkipped, false
		}
		if base, ok := focusedAliases[name]; ok {
			return base, types.ModeFocused, false
		}
		return name, types.ModeNormal, false
	case "member_expression":
		obj := node.ChildByFieldName("object")
		prop := node.ChildByFieldName("property")
		if obj == nil || prop == nil {
			return "", types.ModeNormal, false
		}
		propName := nodeText(prop, source)
		if obj.Type() == "member_expression" {
			// describe.only.each, test.concurrent.skip
			innerObj := obj.ChildByFieldName("object")
			innerProp := obj.ChildByFieldName("property")
			if innerObj == nil || innerProp == nil {
				return "", types.ModeNormal, false
			}
			base := nodeText(innerObj, source)
			middle := nodeText(innerProp, source)
			if middle == modifierConcurrent {
				if propName == modifierEach {
					return base, types.ModeNormal, true
				}
				return base, modifierMode(propName), false
			}
			if propName == modifierEach {
				return base, modifierMode(middle), true
			}
			return "", types.ModeNormal, false
		}
		base := nodeText(obj, source)
		switch propName {
		case modifierConcurrent:
			return base, types.ModeNormal, false
		case modifierEach:
			return base, types.ModeNormal, true
		case modifierOnly, modifierSkip, modifierTodo:
			return base, modifierMode(propName), false
		}
		return "", types.ModeNormal, false
	case "parenthesized_expression":
		for i := 0; i < int(node.ChildCount()); i++ {
			switch child := node.Child(i); child.Type() {
			case "identifier", "member_expression", "parenthesized_expression":
				return functionName(child, source)
			}
		}
	}
	return "", types.ModeNormal, false
}
