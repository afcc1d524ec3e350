package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"yqhp/hookrunner/internal/query"
)

func newQueryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "query <report.json> [jsonpath]",
		Short: "Evaluate a JSONPath expression against a saved JSON report",
		Example: `  # names of failed tests
  hookrunner query report.json "$.files[*].tests[?(@.status == 'failed')].name"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			expr := query.FailedTests
			if len(args) == 2 {
				expr = args[1]
			}
			results, err := query.QueryFile(args[0], expr)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				line, err := json.Marshal(r)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(line))
			}
			return nil
		},
	}
}
