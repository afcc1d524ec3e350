package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookKind(t *testing.T) {
	t.Run("valid kinds", func(t *testing.T) {
		for _, k := range HookKinds {
			assert.True(t, k.Valid(), k)
			parsed, err := ParseHookKind(string(k))
			require.NoError(t, err)
			assert.Equal(t, k, parsed)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := ParseHookKind("beforeSuite")
		assert.Error(t, err)
		assert.False(t, HookKind("").Valid())
	})

	t.Run("classification", func(t *testing.T) {
		assert.True(t, HookBeforeAll.IsSetup())
		assert.True(t, HookBeforeEach.IsSetup())
		assert.False(t, HookAfterEach.IsSetup())
		assert.True(t, HookAfterAll.IsOnce())
		assert.False(t, HookBeforeEach.IsOnce())
	})
}

func TestHookError(t *testing.T) {
	cause := errors.New("connection refused")

	t.Run("with test name", func(t *testing.T) {
		err := NewHookError(HookBeforeEach, []string{"outer", "inner"}, "adds", "hook failed", cause)
		assert.Equal(t, `[beforeEach hook in "outer > inner" for test "adds"] hook failed: connection refused`, err.Error())
		assert.ErrorIs(t, err, cause)
	})

	t.Run("root scope", func(t *testing.T) {
		err := NewHookError(HookAfterAll, nil, "", "hook failed", cause)
		assert.Equal(t, `[afterAll hook in "root"] hook failed: connection refused`, err.Error())
	})

	t.Run("wrapped", func(t *testing.T) {
		err := fmt.Errorf("setup: %w", NewHookError(HookBeforeAll, nil, "", "hook failed", cause))
		assert.True(t, IsHookError(err))
		assert.False(t, IsHookError(cause))
	})
}

func TestFileReport_Tally(t *testing.T) {
	r := &FileReport{
		Verdicts: []Verdict{
			{Name: "a", Status: TestStatusPassed},
			{Name: "b", Status: TestStatusFailed},
			{Name: "c", Status: TestStatusSkipped},
			{Name: "d", Status: TestStatusTodo},
			{Name: "e", Status: TestStatusPassed, TeardownErrors: []string{"afterEach failed"}},
		},
		TeardownErrors: []TeardownError{{Kind: HookAfterEach, TestName: "e", Message: "afterEach failed"}},
	}
	r.Tally()

	assert.Equal(t, Totals{Tests: 5, Passed: 2, Failed: 1, Skipped: 1, Todo: 1}, r.Totals)
	assert.False(t, r.Success())
	require.Len(t, r.Failed(), 1)
	assert.Equal(t, "b", r.Failed()[0].Name)
}

func TestRunReport_Tally(t *testing.T) {
	run := &RunReport{Files: []FileReport{
		{Path: "a.test.js", Totals: Totals{Tests: 2, Passed: 2}, TeardownErrors: []TeardownError{{Kind: HookAfterAll}}},
		{Path: "b.test.js", Error: "SyntaxError"},
	}}
	run.Tally()

	assert.Equal(t, 2, run.Totals.Tests)
	assert.Equal(t, 1, run.FilesFailed)
	assert.Equal(t, 1, run.TeardownErrors)
	assert.False(t, run.Success(), "a file that failed to load fails the run")
}

func TestVerdict_FullName(t *testing.T) {
	assert.Equal(t, "adds", Verdict{Name: "adds"}.FullName())
	assert.Equal(t, "math > sum > adds", Verdict{Name: "adds", Path: []string{"math", "sum"}}.FullName())
}

func TestFileReport_JSONShape(t *testing.T) {
	r := FileReport{Path: "x.test.js", Verdicts: []Verdict{{Name: "t", Status: TestStatusFailed, Cause: errors.New("boom"), Error: "boom"}}}
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	tests, ok := decoded["tests"].([]any)
	require.True(t, ok)
	require.Len(t, tests, 1)
	first := tests[0].(map[string]any)
	assert.Equal(t, "failed", first["status"])
	assert.Equal(t, "t", first["name"])
	assert.NotContains(t, first, "Cause")
}

func TestOutline_CountTests(t *testing.T) {
	o := Outline{Root: OutlineNode{Kind: NodeGroup, Children: []OutlineNode{
		{Kind: NodeTest, Name: "a"},
		{Kind: NodeGroup, Name: "g", Children: []OutlineNode{
			{Kind: NodeTest, Name: "b"},
			{Kind: NodeTest, Name: "c"},
		}},
		{Kind: NodeGroup, Name: "empty"},
	}}}
	assert.Equal(t, 3, o.CountTests())
}
