package script

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"yqhp/hookrunner/pkg/lifecycle"
	"yqhp/hookrunner/pkg/types"
)

// RunFile reads, loads and runs one test file.
func RunFile(ctx context.Context, path string, opts ...lifecycle.RunnerOption) *types.FileReport {
	source, err := os.ReadFile(path)
	if err != nil {
		return loadFailure(path, time.Now(), fmt.Errorf("read %s: %w", path, err))
	}
	return RunSource(ctx, path, string(source), opts...)
}

// RunSource loads and runs source as if it were the file filename.
func RunSource(ctx context.Context, filename, source string, opts ...lifecycle.RunnerOption) *types.FileReport {
	start := time.Now()

	rt, err := New()
	if err != nil {
		return loadFailure(filename, start, err)
	}
	defer rt.Close()

	if err := rt.Load(ctx, filename, source); err != nil {
		report := loadFailure(filename, start, err)
		report.ConsoleLogs = rt.ConsoleLogs()
		return report
	}

	tree, err := rt.Build()
	if err != nil {
		report := loadFailure(filename, start, err)
		report.ConsoleLogs = rt.ConsoleLogs()
		return report
	}

	report := lifecycle.NewRunner(opts...).Run(ctx, tree)
	report.StartTime = start
	report.Duration = time.Since(start)
	report.ConsoleLogs = rt.ConsoleLogs()

	if err := rt.LateDeclarations(); err != nil {
		rt.log.Warn("declarations made while tests were running were ignored",
			zap.String("file", filename), zap.Error(err))
	}
	return report
}

func loadFailure(path string, start time.Time, err error) *types.FileReport {
	return &types.FileReport{
		Path:      path,
		Verdicts:  []types.Verdict{},
		Error:     err.Error(),
		LoadErr:   err,
		StartTime: start,
		Duration:  time.Since(start),
	}
}
