package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"yqhp/hookrunner/pkg/lifecycle"
	"yqhp/hookrunner/pkg/outline"
	"yqhp/hookrunner/pkg/script"
	"yqhp/hookrunner/pkg/types"
)

type planOptions struct {
	*globalOptions
	exec bool
}

func newPlanCommand(g *globalOptions) *cobra.Command {
	o := &planOptions{globalOptions: g}
	c := &cobra.Command{
		Use:   "plan <file>",
		Short: "Print the order in which hooks and tests of a file would run",
		Long: `Print the hook and test order of one file.

By default the order is predicted from the syntax tree without running any code.
With --exec the file is run and the order actually observed is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	c.Flags().BoolVar(&o.exec, "exec", false, "run the file and print the observed order")
	return c
}

func (o *planOptions) run(cmd *cobra.Command, path string) error {
	cfg, err := o.loadConfig(map[string]string{})
	if err != nil {
		return err
	}

	var (
		labels []string
		report *types.FileReport
	)
	if o.exec {
		trace := &outline.Trace{}
		report = script.RunFile(cmd.Context(), path,
			lifecycle.WithObserver(trace),
			lifecycle.WithTimeout(cfg.Run.Timeout),
			lifecycle.WithTeardownGrace(cfg.Run.TeardownGrace))
		if report.Error != "" {
			return fmt.Errorf("%s: %s", path, report.Error)
		}
		labels = trace.Labels()
	} else {
		source, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		ol, err := outline.Parse(cmd.Context(), path, source)
		if err != nil {
			return err
		}
		labels, report, err = outline.PlanOrder(cmd.Context(), ol)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for i, l := range labels {
		fmt.Fprintf(out, "%3d  %s\n", i+1, l)
	}
	t := report.Totals
	fmt.Fprintf(out, "\n%d tests: %d run, %d skipped, %d todo\n", t.Tests, t.Passed+t.Failed, t.Skipped, t.Todo)
	return nil
}
