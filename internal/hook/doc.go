// Package hook runs single lifecycle steps: one hook or one test body.
//
// Every step runs on its own goroutine under a deadline:
//   - The effective deadline is the step timeout, else the executor default
//   - Panics are recovered and reported as step failures
//   - A step that misses its deadline is reported as a timeout and abandoned
//   - Hook failures are wrapped in *types.HookError
//
// Ordering is not this package's concern; pkg/lifecycle decides which step
// runs next.
package hook
