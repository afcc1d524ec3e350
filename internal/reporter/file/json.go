// Package file writes run reports to disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"yqhp/hookrunner/pkg/types"
)

// JSONConfig holds configuration for the JSON reporter.
type JSONConfig struct {
	FilePath string `yaml:"file_path"`
	Pretty   bool   `yaml:"pretty"`
}

// DefaultJSONConfig returns the default JSON reporter configuration.
func DefaultJSONConfig() *JSONConfig {
	return &JSONConfig{
		FilePath: "hookrunner-report.json",
		Pretty:   true,
	}
}

// JSONReporter writes the whole run report as one JSON document.
type JSONReporter struct {
	config *JSONConfig
	mu     sync.Mutex
}

// NewJSONReporter creates a JSON reporter.
func NewJSONReporter(config *JSONConfig) *JSONReporter {
	if config == nil {
		config = DefaultJSONConfig()
	}
	return &JSONReporter{config: config}
}

// NewJSONFactory returns a factory reading file_path and pretty.
func NewJSONFactory() func(config map[string]any) (*JSONReporter, error) {
	return func(config map[string]any) (*JSONReporter, error) {
		cfg := DefaultJSONConfig()
		if v, ok := config["file_path"].(string); ok && v != "" {
			cfg.FilePath = v
		}
		if v, ok := config["pretty"].(bool); ok {
			cfg.Pretty = v
		}
		return NewJSONReporter(cfg), nil
	}
}

// Name returns the reporter name.
func (r *JSONReporter) Name() string {
	return "json"
}

// Init creates the output directory.
func (r *JSONReporter) Init(ctx context.Context, config map[string]any) error {
	if r.config.FilePath == "" {
		return errors.New("file path is required")
	}
	if dir := filepath.Dir(r.config.FilePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	return nil
}

// Report writes report, replacing any previous file atomically.
func (r *JSONReporter) Report(ctx context.Context, report *types.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		data []byte
		err  error
	)
	if r.config.Pretty {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.config.FilePath), ".hookrunner-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return os.Rename(tmp.Name(), r.config.FilePath)
}

// Flush is a no-op; Report writes synchronously.
func (r *JSONReporter) Flush(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (r *JSONReporter) Close(ctx context.Context) error {
	return nil
}

// FilePath returns the output path.
func (r *JSONReporter) FilePath() string {
	return r.config.FilePath
}
