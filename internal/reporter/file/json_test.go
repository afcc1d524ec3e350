package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/hookrunner/pkg/types"
)

func TestJSONReporterWritesReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.json")
	r := NewJSONReporter(&JSONConfig{FilePath: path, Pretty: true})
	require.NoError(t, r.Init(context.Background(), nil))

	report := &types.RunReport{
		ID: "run-42",
		Files: []types.FileReport{{
			Path:     "a.test.js",
			Verdicts: []types.Verdict{{Name: "works", Status: types.TestStatusPassed}},
		}},
	}
	report.Files[0].Tally()
	report.Tally()
	require.NoError(t, r.Report(context.Background(), report))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "{\n  \"id\": \"run-42\""))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	files := decoded["files"].([]any)
	tests := files[0].(map[string]any)["tests"].([]any)
	assert.Equal(t, "passed", tests[0].(map[string]any)["status"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed")
}

func TestJSONReporterOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	r := NewJSONReporter(&JSONConfig{FilePath: path})
	require.NoError(t, r.Init(context.Background(), nil))

	require.NoError(t, r.Report(context.Background(), &types.RunReport{ID: "first"}))
	require.NoError(t, r.Report(context.Background(), &types.RunReport{ID: "second"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"second"`)
	assert.NotContains(t, string(data), "first")
}

func TestJSONFactory(t *testing.T) {
	r, err := NewJSONFactory()(map[string]any{"file_path": "out.json", "pretty": false})
	require.NoError(t, err)
	assert.Equal(t, "json", r.Name())
	assert.Equal(t, "out.json", r.FilePath())
	assert.False(t, r.config.Pretty)

	r, err = NewJSONFactory()(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultJSONConfig().FilePath, r.FilePath())
}

func TestJSONReporterRequiresPath(t *testing.T) {
	r := NewJSONReporter(&JSONConfig{})
	assert.Error(t, r.Init(context.Background(), nil))
}
