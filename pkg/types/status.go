package types

import "fmt"

// HookKind identifies when a hook runs.
type HookKind string

const (
	// HookBeforeAll runs once before the first test of its group.
	HookBeforeAll HookKind = "beforeAll"
	// HookAfterAll runs once after the last test of its group.
	HookAfterAll HookKind = "afterAll"
	// HookBeforeEach runs before every test of its group, outermost group first.
	HookBeforeEach HookKind = "beforeEach"
	// HookAfterEach runs after every test of its group, innermost group first.
	HookAfterEach HookKind = "afterEach"
)

// HookKinds lists every kind in declaration-table order.
var HookKinds = []HookKind{HookBeforeAll, HookAfterAll, HookBeforeEach, HookAfterEach}

// Valid reports whether k is one of the four hook kinds.
func (k HookKind) Valid() bool {
	switch k {
	case HookBeforeAll, HookAfterAll, HookBeforeEach, HookAfterEach:
		return true
	}
	return false
}

// IsSetup reports whether the hook runs before tests.
func (k HookKind) IsSetup() bool {
	return k == HookBeforeAll || k == HookBeforeEach
}

// IsOnce reports whether the hook runs once per group rather than once per test.
func (k HookKind) IsOnce() bool {
	return k == HookBeforeAll || k == HookAfterAll
}

// ParseHookKind converts a hook function name to a HookKind.
func ParseHookKind(s string) (HookKind, error) {
	k := HookKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown hook kind %q", s)
	}
	return k, nil
}

// Mode is the declaration modifier of a group or test.
type Mode string

const (
	ModeNormal  Mode = ""
	ModeFocused Mode = "focused"
	ModeSkipped Mode = "skipped"
	ModeTodo    Mode = "todo"
)

// TestStatus is the final verdict of a test.
type TestStatus string

const (
	TestStatusPassed  TestStatus = "passed"
	TestStatusFailed  TestStatus = "failed"
	TestStatusSkipped TestStatus = "skipped"
	TestStatusTodo    TestStatus = "todo"
)

// ResultStatus represents the status of a single executed step.
type ResultStatus string

const (
	// ResultStatusSuccess indicates successful execution.
	ResultStatusSuccess ResultStatus = "success"
	// ResultStatusFailed indicates failed execution.
	ResultStatusFailed ResultStatus = "failed"
	// ResultStatusTimeout indicates the step exceeded its deadline.
	ResultStatusTimeout ResultStatus = "timeout"
	// ResultStatusCancelled indicates the run was cancelled while the step was pending.
	ResultStatusCancelled ResultStatus = "cancelled"
)
