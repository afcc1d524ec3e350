package types

import (
	"strings"
	"time"
)

// Location represents a position in source code. Lines are 1-based.
type Location struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	StartCol  int    `json:"startCol,omitempty"`
	EndCol    int    `json:"endCol,omitempty"`
}

// Verdict is the outcome of one test.
type Verdict struct {
	Name           string        `json:"name"`
	Path           []string      `json:"path,omitempty"`
	Status         TestStatus    `json:"status"`
	Duration       time.Duration `json:"duration"`
	Error          string        `json:"error,omitempty"`
	Cause          error         `json:"-"`
	TeardownErrors []string      `json:"teardownErrors,omitempty"`
	Location       *Location     `json:"location,omitempty"`
}

// FullName joins the group path and the test name the way Jest prints them.
func (v Verdict) FullName() string {
	if len(v.Path) == 0 {
		return v.Name
	}
	return strings.Join(v.Path, " > ") + " > " + v.Name
}

// TeardownError records a failing afterEach or afterAll hook.
type TeardownError struct {
	Kind     HookKind `json:"kind"`
	Path     []string `json:"path,omitempty"`
	TestName string   `json:"testName,omitempty"`
	Message  string   `json:"message"`
}

// Totals counts verdicts by status.
type Totals struct {
	Tests   int `json:"tests"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Todo    int `json:"todo"`
}

// Add counts one verdict.
func (t *Totals) Add(status TestStatus) {
	t.Tests++
	switch status {
	case TestStatusPassed:
		t.Passed++
	case TestStatusFailed:
		t.Failed++
	case TestStatusSkipped:
		t.Skipped++
	case TestStatusTodo:
		t.Todo++
	}
}

// Merge adds other into t.
func (t *Totals) Merge(other Totals) {
	t.Tests += other.Tests
	t.Passed += other.Passed
	t.Failed += other.Failed
	t.Skipped += other.Skipped
	t.Todo += other.Todo
}

// FileReport is the result of running one tree, usually one test file.
type FileReport struct {
	Path           string          `json:"path"`
	Verdicts       []Verdict       `json:"tests"`
	TeardownErrors []TeardownError `json:"teardownErrors,omitempty"`
	ConsoleLogs    []string        `json:"consoleLogs,omitempty"`
	Error          string          `json:"error,omitempty"`
	LoadErr        error           `json:"-"`
	Skipped        bool            `json:"skipped,omitempty"`
	Totals         Totals          `json:"totals"`
	StartTime      time.Time       `json:"startTime"`
	Duration       time.Duration   `json:"duration"`
}

// Tally recomputes Totals from Verdicts.
func (r *FileReport) Tally() {
	r.Totals = Totals{}
	for _, v := range r.Verdicts {
		r.Totals.Add(v.Status)
	}
}

// Success reports whether the file loaded and no test failed.
// Teardown errors do not affect success.
func (r *FileReport) Success() bool {
	return r.Error == "" && r.Totals.Failed == 0
}

// Failed returns the failed verdicts in execution order.
func (r *FileReport) Failed() []Verdict {
	var out []Verdict
	for _, v := range r.Verdicts {
		if v.Status == TestStatusFailed {
			out = append(out, v)
		}
	}
	return out
}

// DurationStats summarises test durations.
type DurationStats struct {
	Count int64         `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P90   time.Duration `json:"p90"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

// RunReport aggregates the file reports of one invocation.
type RunReport struct {
	ID             string        `json:"id"`
	Root           string        `json:"root"`
	StartTime      time.Time     `json:"startTime"`
	Duration       time.Duration `json:"duration"`
	Files          []FileReport  `json:"files"`
	Totals         Totals        `json:"totals"`
	FilesFailed    int           `json:"filesFailed"`
	TeardownErrors int           `json:"teardownErrors"`
	Durations      DurationStats `json:"durations"`
}

// Success reports whether every file loaded and no test failed.
func (r *RunReport) Success() bool {
	return r.FilesFailed == 0 && r.Totals.Failed == 0
}

// Tally recomputes the run totals from the file reports.
func (r *RunReport) Tally() {
	r.Totals = Totals{}
	r.FilesFailed = 0
	r.TeardownErrors = 0
	for i := range r.Files {
		f := &r.Files[i]
		r.Totals.Merge(f.Totals)
		if f.Error != "" {
			r.FilesFailed++
		}
		r.TeardownErrors += len(f.TeardownErrors)
	}
}
