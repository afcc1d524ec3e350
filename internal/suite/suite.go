// Package suite runs many test files with bounded parallelism.
package suite

import (
	"context"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"yqhp/hookrunner/internal/metrics"
	"yqhp/hookrunner/pkg/lifecycle"
	"yqhp/hookrunner/pkg/logger"
	"yqhp/hookrunner/pkg/script"
	"yqhp/hookrunner/pkg/types"
)

// MaxWorkers caps the number of files run at once.
const MaxWorkers = 256

// FileFunc runs one file. path is the absolute or root-joined path.
type FileFunc func(ctx context.Context, path string, opts ...lifecycle.RunnerOption) *types.FileReport

// Options configures a Runner.
type Options struct {
	Workers       int
	Timeout       time.Duration
	TeardownGrace time.Duration
	// Bail stops starting new files after the first failed test; inside a file
	// it stops at the first failure as well.
	Bail bool
	// OnFile is called once per finished file, possibly from several goroutines.
	OnFile func(*types.FileReport)
	// RunFile defaults to script.RunFile.
	RunFile FileFunc
	Logger  *zap.Logger
}

// Runner executes test files. Each file gets its own runtime and tree, so files
// never share state and tests inside a file stay sequential.
type Runner struct {
	opts Options
	log  *zap.Logger
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Workers > MaxWorkers {
		opts.Workers = MaxWorkers
	}
	if opts.RunFile == nil {
		opts.RunFile = script.RunFile
	}
	log := opts.Logger
	if log == nil {
		log = logger.Named("suite")
	}
	return &Runner{opts: opts, log: log}
}

// Run executes files, given relative to root, and aggregates their reports.
// A file that fails to load becomes a failed entry; it never aborts the run.
func (r *Runner) Run(ctx context.Context, root string, files []string) *types.RunReport {
	report := &types.RunReport{
		ID:        uuid.NewString(),
		Root:      root,
		StartTime: time.Now(),
		Files:     make([]types.FileReport, len(files)),
	}
	r.log.Info("run started",
		zap.String("id", report.ID),
		zap.Int("files", len(files)),
		zap.Int("workers", r.opts.Workers))

	var (
		durations = metrics.NewDurationRecorder()
		sem       = semaphore.NewWeighted(int64(r.opts.Workers))
		bailed    atomic.Bool
		notify    sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)

	for i, rel := range files {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				report.Files[i] = skippedFile(rel)
				return nil
			}
			defer sem.Release(1)

			var fr *types.FileReport
			if bailed.Load() || ctx.Err() != nil {
				fr = ptr(skippedFile(rel))
			} else {
				fr = r.runFile(ctx, root, rel)
				durations.RecordReport(fr)
				if r.opts.Bail && !fr.Success() {
					bailed.Store(true)
				}
			}
			report.Files[i] = *fr

			if r.opts.OnFile != nil {
				notify.Lock()
				r.opts.OnFile(fr)
				notify.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(report.Files, func(a, b int) bool {
		return report.Files[a].Path < report.Files[b].Path
	})
	report.Tally()
	report.Durations = durations.Snapshot()
	report.Duration = time.Since(report.StartTime)

	r.log.Info("run finished",
		zap.String("id", report.ID),
		zap.Int("passed", report.Totals.Passed),
		zap.Int("failed", report.Totals.Failed),
		zap.Int("skipped", report.Totals.Skipped),
		zap.Int("filesFailed", report.FilesFailed),
		zap.Duration("duration", report.Duration))
	return report
}

func (r *Runner) runFile(ctx context.Context, root, rel string) *types.FileReport {
	opts := []lifecycle.RunnerOption{
		lifecycle.WithTimeout(r.opts.Timeout),
		lifecycle.WithLogger(r.log.Named("lifecycle").With(zap.String("file", rel))),
	}
	if r.opts.TeardownGrace > 0 {
		opts = append(opts, lifecycle.WithTeardownGrace(r.opts.TeardownGrace))
	}
	if r.opts.Bail {
		opts = append(opts, lifecycle.WithBail(1))
	}

	r.log.Debug("file started", zap.String("file", rel))
	fr := r.opts.RunFile(ctx, filepath.Join(root, rel), opts...)
	fr.Path = rel
	if fr.Error != "" {
		r.log.Warn("file failed to load", zap.String("file", rel), zap.String("error", fr.Error))
	}
	return fr
}

func skippedFile(rel string) types.FileReport {
	return types.FileReport{Path: rel, Verdicts: []types.Verdict{}, Skipped: true}
}

func ptr[T any](v T) *T { return &v }
