// Package query evaluates JSONPath expressions over saved run reports.
package query

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"yqhp/hookrunner/pkg/types"
)

// Query parses data as JSON and returns every match of expr.
func Query(data []byte, expr string) ([]any, error) {
	path, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath expression %q: %w", expr, err)
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return path.Get(doc), nil
}

// QueryFile runs Query on the contents of path.
func QueryFile(path, expr string) ([]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Query(data, expr)
}

// QueryReport runs Query on the JSON form of an in-memory report.
func QueryReport(report *types.RunReport, expr string) ([]any, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return Query(data, expr)
}

// FailedTests is the expression selecting failed test names.
const FailedTests = "$.files[*].tests[?(@.status == 'failed')].name"
