// Package script evaluates Jest-style test files on an embedded JavaScript
// engine and feeds their declarations to the lifecycle scheduler.
//
// A Runtime owns one goja VM and one go-eventloop goroutine. Every call into
// the VM happens on that loop: file evaluation, test and hook callbacks, timer
// callbacks and promise continuations. Callbacks scheduled by a test belong to
// it: an exception they throw fails that test, and they are dropped once the
// test has timed out.
//
// Supported globals:
//   - describe, describe.only, describe.skip, fdescribe, xdescribe
//   - test, it, test.only, test.skip, test.todo, test.each, fit, xit, xtest
//   - beforeAll, afterAll, beforeEach, afterEach
//   - console.log, console.info, console.warn, console.error
//   - setTimeout, setInterval, setImmediate, queueMicrotask and their clear functions
//
// Test and hook callbacks may return a promise, accept a done callback, or
// finish synchronously. Throwing fails the step.
package script
