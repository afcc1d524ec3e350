package types

// NodeKind distinguishes outline groups from outline tests.
type NodeKind string

const (
	NodeGroup NodeKind = "group"
	NodeTest  NodeKind = "test"
)

// OutlineHook is a hook call found in source.
type OutlineHook struct {
	Kind     HookKind `json:"kind"`
	Location Location `json:"location"`
}

// OutlineNode is a describe block or a test found in source, without executing it.
type OutlineNode struct {
	Kind     NodeKind      `json:"kind"`
	Name     string        `json:"name"`
	Mode     Mode          `json:"mode,omitempty"`
	Location Location      `json:"location"`
	Hooks    []OutlineHook `json:"hooks,omitempty"`
	Children []OutlineNode `json:"children,omitempty"`
}

// CountTests returns the number of tests at or below n.
func (n *OutlineNode) CountTests() int {
	if n.Kind == NodeTest {
		return 1
	}
	count := 0
	for i := range n.Children {
		count += n.Children[i].CountTests()
	}
	return count
}

// Outline is the static structure of one test file.
type Outline struct {
	Path     string      `json:"path"`
	Language string      `json:"language"`
	Root     OutlineNode `json:"root"`
}

// CountTests returns the total number of tests in the outline.
func (o *Outline) CountTests() int {
	return o.Root.CountTests()
}
