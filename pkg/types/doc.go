// Package types defines the core data structures shared by the scheduler, the
// JavaScript front end, the reporters and the CLI.
//
// This package contains:
//   - Hook kinds and declaration modes (focused, skipped, todo)
//   - Step and test statuses
//   - Verdicts, per-file and per-run reports
//   - Static outlines of test files
//   - Hook errors
package types
