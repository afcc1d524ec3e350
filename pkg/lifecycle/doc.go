// Package lifecycle declares and runs trees of test groups, tests and hooks.
//
// A run has two phases. During collection a Builder records groups, tests and
// hooks in declaration order; Build freezes them into an immutable Tree. During
// execution a Runner walks the Tree depth first and runs:
//   - beforeAll hooks once per group, before its first runnable test
//   - beforeEach hooks of every enclosing group, outermost group first
//   - the test body
//   - afterEach hooks of every enclosing group, innermost group first
//   - afterAll hooks once per group, after its last runnable test
//
// Hooks of the same kind in the same group always run in declaration order.
//
// The scheduler guarantees ordering only. State shared between tests through
// hook closures is the caller's responsibility; nothing is reset between tests.
package lifecycle
