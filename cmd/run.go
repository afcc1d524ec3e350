package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yqhp/hookrunner/internal/config"
	"yqhp/hookrunner/internal/discovery"
	"yqhp/hookrunner/internal/reporter"
	"yqhp/hookrunner/internal/suite"
	"yqhp/hookrunner/pkg/logger"
)

type runOptions struct {
	*globalOptions
	root      string
	timeout   time.Duration
	workers   int
	bail      bool
	patterns  []string
	excludes  []string
	reporters []string
	showLogs  bool
	verbose   bool
	noColor   bool
}

func newRunCommand(g *globalOptions) *cobra.Command {
	o := &runOptions{globalOptions: g}

	c := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Discover and run test files",
		Long: `Discover test files under the given paths (or the root directory) and run them.

Each file is loaded into its own JavaScript runtime; files run in parallel while
the tests inside one file run strictly one after another.`,
		Example: `  # run everything under the current directory
  hookrunner run

  # run one directory, stop at the first failure
  hookrunner run --bail src/

  # write a JSON report and post it to CI
  hookrunner run --reporter console --reporter json=report.json --reporter webhook=https://ci/hook`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}

	f := c.Flags()
	f.StringVar(&o.root, "root", ".", "project root that relative paths are resolved against")
	f.DurationVar(&o.timeout, "timeout", 0, "default deadline of each hook and test")
	f.IntVarP(&o.workers, "workers", "w", 0, "number of files run in parallel")
	f.BoolVar(&o.bail, "bail", false, "stop after the first failed test")
	f.StringArrayVar(&o.patterns, "pattern", nil, "test file glob (repeatable)")
	f.StringArrayVar(&o.excludes, "exclude", nil, "glob of files or directories to ignore (repeatable)")
	f.StringArrayVarP(&o.reporters, "reporter", "r", nil, "reporter: console, json=<path>, webhook=<url> (repeatable)")
	f.BoolVar(&o.showLogs, "show-logs", false, "print console output captured from test files")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "list every test")
	f.BoolVar(&o.noColor, "no-color", false, "disable coloured output")
	return c
}

// overrides maps the flags that were set onto config paths.
func (o *runOptions) overrides(cmd *cobra.Command) (map[string]string, error) {
	m := make(map[string]string)
	f := cmd.Flags()
	if f.Changed("timeout") {
		m["run.timeout"] = o.timeout.String()
	}
	if f.Changed("workers") {
		m["run.workers"] = strconv.Itoa(o.workers)
	}
	if f.Changed("bail") {
		m["run.bail"] = strconv.FormatBool(o.bail)
	}
	if f.Changed("pattern") {
		m["run.patterns"] = strings.Join(o.patterns, ",")
	}
	if f.Changed("exclude") {
		m["run.excludes"] = strings.Join(o.excludes, ",")
	}
	if f.Changed("show-logs") {
		m["reporters.console.show_logs"] = strconv.FormatBool(o.showLogs)
	}
	if f.Changed("reporter") {
		m["reporters.console.enabled"] = "false"
		for _, sel := range o.reporters {
			kind, arg, _ := strings.Cut(sel, "=")
			switch reporter.ReporterType(kind) {
			case reporter.ReporterTypeConsole:
				m["reporters.console.enabled"] = "true"
			case reporter.ReporterTypeJSON:
				if arg == "" {
					return nil, fmt.Errorf("reporter %q needs a path: json=<path>", sel)
				}
				m["reporters.json.path"] = arg
			case reporter.ReporterTypeWebhook:
				if arg == "" {
					return nil, fmt.Errorf("reporter %q needs a URL: webhook=<url>", sel)
				}
				m["reporters.webhook.url"] = arg
			default:
				return nil, fmt.Errorf("unknown reporter %q", kind)
			}
		}
	}
	return m, nil
}

func (o *runOptions) run(cmd *cobra.Command, args []string) error {
	overrides, err := o.overrides(cmd)
	if err != nil {
		return err
	}
	cfg, err := o.loadConfig(overrides)
	if err != nil {
		return err
	}
	log := logger.Named("cmd")

	root, err := filepath.Abs(o.root)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nInterrupted, running teardown hooks...")
			cancel()
		case <-ctx.Done():
		}
	}()

	files, err := discovery.Resolve(ctx, root, args, discovery.Options{
		Patterns: cfg.Run.Patterns,
		Excludes: cfg.Run.Excludes,
	})
	if err != nil {
		if files == nil {
			return err
		}
		log.Warn("some paths could not be searched", zap.Error(err))
	}
	if len(files) == 0 {
		return fmt.Errorf("no test files found under %s matching %s", root, strings.Join(cfg.Run.Patterns, ", "))
	}

	manager, err := o.reporterManager(ctx, cmd, cfg)
	if err != nil {
		return err
	}

	runner := suite.New(suite.Options{
		Workers:       cfg.Run.Workers,
		Timeout:       cfg.Run.Timeout,
		TeardownGrace: cfg.Run.TeardownGrace,
		Bail:          cfg.Run.Bail,
		OnFile:        manager.FileFinished,
	})
	report := runner.Run(ctx, root, files)

	// Reports are delivered even after an interrupt.
	rctx := context.WithoutCancel(ctx)
	if err := manager.Report(rctx, report); err != nil {
		log.Error("reporting failed", zap.Error(err))
	}
	if err := manager.Flush(rctx); err != nil {
		log.Error("flushing reporters failed", zap.Error(err))
	}
	if err := manager.Close(rctx); err != nil {
		log.Error("closing reporters failed", zap.Error(err))
	}

	if !report.Success() {
		return ErrTestsFailed
	}
	return nil
}

func (o *runOptions) reporterManager(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*reporter.Manager, error) {
	registry, err := reporter.NewDefaultRegistry()
	if err != nil {
		return nil, err
	}
	manager := reporter.NewManager(registry)

	rc := cfg.Reporters
	configs := []*reporter.ReporterConfig{
		{
			Type:    reporter.ReporterTypeConsole,
			Enabled: rc.Console.Enabled,
			Config: map[string]any{
				"verbose":      o.verbose,
				"show_logs":    rc.Console.ShowLogs,
				"quiet":        rc.Console.Quiet,
				"color_output": !o.noColor && os.Getenv("NO_COLOR") == "",
				"writer":       cmd.OutOrStdout(),
			},
		},
		{
			Type:    reporter.ReporterTypeJSON,
			Enabled: rc.JSON.Path != "",
			Config:  map[string]any{"file_path": rc.JSON.Path, "pretty": true},
		},
		{
			Type:    reporter.ReporterTypeWebhook,
			Enabled: rc.Webhook.URL != "",
			Config: map[string]any{
				"url":            rc.Webhook.URL,
				"method":         rc.Webhook.Method,
				"headers":        rc.Webhook.Headers,
				"retry_attempts": rc.Webhook.Retries,
				"retry_delay":    rc.Webhook.RetryDelay,
				"timeout":        rc.Webhook.Timeout,
			},
		},
	}
	for _, c := range configs {
		if err := manager.AddReporterFromConfig(ctx, c); err != nil {
			return nil, err
		}
	}
	return manager, nil
}
