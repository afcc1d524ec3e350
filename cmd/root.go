// Package cmd implements the hookrunner command line.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"yqhp/hookrunner/internal/config"
	"yqhp/hookrunner/pkg/logger"
)

const (
	// Version is the hookrunner release.
	Version = "0.1.0"
	Banner  = `
  hookrunner %s
  Jest-style lifecycle runner for JavaScript test files
`
)

// ErrTestsFailed is returned by run when any test failed or a file did not load.
var ErrTestsFailed = errors.New("tests failed")

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	cfgFile string
	debug   bool
	quiet   bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "hookrunner",
		Short: "Run Jest-style test files with describe/test and lifecycle hooks",
		Long: `hookrunner loads JavaScript test files that declare describe blocks, tests and
beforeAll/afterAll/beforeEach/afterEach hooks, and runs them in Jest order.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file path (YAML)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "print only failures and the summary")

	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate(fmt.Sprintf(Banner, Version) + "\n")

	root.AddCommand(
		newRunCommand(opts),
		newPlanCommand(opts),
		newListCommand(opts),
		newQueryCommand(),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return execute(NewRootCommand(), os.Args[1:], os.Stderr)
}

func execute(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	logger.Sync()
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrTestsFailed):
		return 1
	default:
		fmt.Fprintln(stderr, "Error:", err)
		return 2
	}
}

// loadConfig resolves the configuration and initialises logging from it.
func (o *globalOptions) loadConfig(overrides map[string]string) (*config.Config, error) {
	if o.quiet {
		overrides["reporters.console.quiet"] = "true"
	}
	if o.debug {
		overrides["logging.level"] = "debug"
	}
	cfg, err := config.NewLoader().
		WithConfigPath(o.cfgFile).
		WithCmdArgs(overrides).
		Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Logging.Logger())
	return cfg, nil
}
