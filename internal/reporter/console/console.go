// Package console prints run reports to a terminal.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"yqhp/hookrunner/pkg/types"
)

// Config holds configuration for the console reporter.
type Config struct {
	// Verbose lists every test, not only those of failing files.
	Verbose bool `yaml:"verbose"`
	// ShowLogs prints captured console output under each file.
	ShowLogs bool `yaml:"show_logs"`
	// Quiet prints only failures and the summary.
	Quiet       bool      `yaml:"quiet"`
	ColorOutput bool      `yaml:"color_output"`
	Writer      io.Writer `yaml:"-"`
}

// DefaultConfig returns the default console reporter configuration.
func DefaultConfig() *Config {
	return &Config{
		ColorOutput: true,
		Writer:      os.Stdout,
	}
}

// Reporter writes human readable results.
type Reporter struct {
	config *Config
	writer io.Writer
	seen   map[string]bool
	mu     sync.Mutex
}

// New creates a console reporter.
func New(config *Config) *Reporter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Writer == nil {
		config.Writer = os.Stdout
	}
	return &Reporter{
		config: config,
		writer: config.Writer,
		seen:   make(map[string]bool),
	}
}

// NewFactory returns a factory reading the keys of Config from a generic map.
func NewFactory() func(config map[string]any) (*Reporter, error) {
	return func(config map[string]any) (*Reporter, error) {
		cfg := DefaultConfig()
		if v, ok := config["verbose"].(bool); ok {
			cfg.Verbose = v
		}
		if v, ok := config["show_logs"].(bool); ok {
			cfg.ShowLogs = v
		}
		if v, ok := config["quiet"].(bool); ok {
			cfg.Quiet = v
		}
		if v, ok := config["color_output"].(bool); ok {
			cfg.ColorOutput = v
		}
		if v, ok := config["writer"].(io.Writer); ok {
			cfg.Writer = v
		}
		return New(cfg), nil
	}
}

// Name returns the reporter name.
func (r *Reporter) Name() string {
	return "console"
}

// Init resets the reporter.
func (r *Reporter) Init(ctx context.Context, config map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = make(map[string]bool)
	return nil
}

// FileFinished prints one file as soon as it completes.
func (r *Reporter) FileFinished(fr *types.FileReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printFile(fr)
}

// Report prints files not yet shown, the failures and the summary.
func (r *Reporter) Report(ctx context.Context, report *types.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range report.Files {
		r.printFile(&report.Files[i])
	}
	r.printFailures(report)
	r.printSummary(report)
	return nil
}

// Flush is a no-op; output is unbuffered.
func (r *Reporter) Flush(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (r *Reporter) Close(ctx context.Context) error {
	return nil
}

func (r *Reporter) printFile(fr *types.FileReport) {
	if r.seen[fr.Path] {
		return
	}
	r.seen[fr.Path] = true
	if r.config.Quiet {
		return
	}

	var badge string
	switch {
	case fr.Skipped:
		badge = r.colorize(" SKIP ", colorYellow)
	case fr.Success():
		badge = r.colorize(" PASS ", colorGreen)
	default:
		badge = r.colorize(" FAIL ", colorRed)
	}
	r.writeLine(fmt.Sprintf("%s %s %s", badge, fr.Path, r.colorize("("+formatDuration(fr.Duration)+")", colorWhite)))

	if fr.Error != "" {
		r.writeLine("  " + r.colorize(fr.Error, colorRed))
	}
	if r.config.Verbose || !fr.Success() {
		r.printTests(fr)
	}
	if r.config.ShowLogs && len(fr.ConsoleLogs) > 0 {
		r.writeLine("  " + r.colorize("console:", colorCyan))
		for _, line := range fr.ConsoleLogs {
			r.writeLine("    " + line)
		}
	}
}

// printTests lists verdicts nested under their group headers.
func (r *Reporter) printTests(fr *types.FileReport) {
	var open []string
	for _, v := range fr.Verdicts {
		common := 0
		for common < len(open) && common < len(v.Path) && open[common] == v.Path[common] {
			common++
		}
		for d := common; d < len(v.Path); d++ {
			r.writeLine(indent(d+1) + v.Path[d])
		}
		open = v.Path

		r.writeLine(indent(len(v.Path)+1) + r.verdictLine(v))
	}
}

func (r *Reporter) verdictLine(v types.Verdict) string {
	switch v.Status {
	case types.TestStatusPassed:
		return fmt.Sprintf("%s %s (%s)", r.colorize("✓", colorGreen), v.Name, formatDuration(v.Duration))
	case types.TestStatusFailed:
		return fmt.Sprintf("%s %s (%s)", r.colorize("✕", colorRed), v.Name, formatDuration(v.Duration))
	case types.TestStatusTodo:
		return fmt.Sprintf("%s todo %s", r.colorize("✎", colorBlue), v.Name)
	default:
		return fmt.Sprintf("%s skipped %s", r.colorize("○", colorYellow), v.Name)
	}
}

func (r *Reporter) printFailures(report *types.RunReport) {
	var lines []string
	for _, f := range report.Files {
		for _, v := range f.Failed() {
			lines = append(lines, r.colorize("● "+v.FullName(), colorRed), "    "+v.Error)
			if v.Location != nil {
				lines = append(lines, fmt.Sprintf("      at %s:%d", v.Location.File, v.Location.StartLine))
			}
			lines = append(lines, "")
		}
		for _, te := range f.TeardownErrors {
			scope := strings.Join(te.Path, " > ")
			if scope == "" {
				scope = "<root>"
			}
			lines = append(lines, r.colorize(fmt.Sprintf("● %s: %s hook in %s", f.Path, te.Kind, scope), colorYellow), "    "+te.Message, "")
		}
	}
	if len(lines) == 0 {
		return
	}
	r.writeLine("")
	r.writeLine(r.colorize("Failures:", colorRed))
	r.writeLine("")
	for _, l := range lines {
		r.writeLine(l)
	}
}

func (r *Reporter) printSummary(report *types.RunReport) {
	t := report.Totals
	var parts []string
	if t.Failed > 0 {
		parts = append(parts, r.colorize(fmt.Sprintf("%d failed", t.Failed), colorRed))
	}
	if t.Skipped > 0 {
		parts = append(parts, r.colorize(fmt.Sprintf("%d skipped", t.Skipped), colorYellow))
	}
	if t.Todo > 0 {
		parts = append(parts, r.colorize(fmt.Sprintf("%d todo", t.Todo), colorBlue))
	}
	if t.Passed > 0 {
		parts = append(parts, r.colorize(fmt.Sprintf("%d passed", t.Passed), colorGreen))
	}
	parts = append(parts, fmt.Sprintf("%d total", t.Tests))

	filesFailed := 0
	for _, f := range report.Files {
		if !f.Success() {
			filesFailed++
		}
	}

	r.writeLine("")
	r.writeLine(fmt.Sprintf("Files:     %d failed, %d total", filesFailed, len(report.Files)))
	r.writeLine(fmt.Sprintf("Tests:     %s", strings.Join(parts, ", ")))
	if report.TeardownErrors > 0 {
		r.writeLine(fmt.Sprintf("Teardown:  %s", r.colorize(fmt.Sprintf("%d errors", report.TeardownErrors), colorYellow)))
	}
	if d := report.Durations; d.Count > 0 {
		r.writeLine(fmt.Sprintf("Durations: p50=%s p90=%s p95=%s p99=%s max=%s",
			formatDuration(d.P50), formatDuration(d.P90), formatDuration(d.P95),
			formatDuration(d.P99), formatDuration(d.Max)))
	}
	r.writeLine(fmt.Sprintf("Time:      %s", formatDuration(report.Duration)))
}

func (r *Reporter) writeLine(s string) {
	fmt.Fprintln(r.writer, s)
}

func indent(depth int) string {
	return strings.Repeat("  ", depth)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
)

func (r *Reporter) colorize(s string, color string) string {
	if !r.config.ColorOutput {
		return s
	}
	return color + s + colorReset
}
