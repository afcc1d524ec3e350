// Package reporter delivers run reports to one or more sinks.
package reporter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"yqhp/hookrunner/pkg/types"
)

// Reporter is a sink for run reports.
type Reporter interface {
	Name() string
	Init(ctx context.Context, config map[string]any) error
	Report(ctx context.Context, report *types.RunReport) error
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

// FileObserver is implemented by reporters that show progress while files finish.
type FileObserver interface {
	FileFinished(report *types.FileReport)
}

// ReporterType names a built-in reporter.
type ReporterType string

const (
	ReporterTypeConsole ReporterType = "console"
	ReporterTypeJSON    ReporterType = "json"
	ReporterTypeWebhook ReporterType = "webhook"
)

// ReporterConfig selects one reporter and its settings.
type ReporterConfig struct {
	Type    ReporterType   `yaml:"type"`
	Enabled bool           `yaml:"enabled"`
	Config  map[string]any `yaml:"config,omitempty"`
}

// ReporterFactory creates a reporter of one type.
type ReporterFactory func(config map[string]any) (Reporter, error)

// Registry maps reporter types to factories.
type Registry struct {
	factories map[ReporterType]ReporterFactory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[ReporterType]ReporterFactory),
	}
}

// Register adds a factory. Registering a type twice is an error.
func (r *Registry) Register(reporterType ReporterType, factory ReporterFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[reporterType]; exists {
		return fmt.Errorf("reporter type already registered: %s", reporterType)
	}
	r.factories[reporterType] = factory
	return nil
}

// Unregister removes a factory.
func (r *Registry) Unregister(reporterType ReporterType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, reporterType)
}

// Create builds a reporter of the given type.
func (r *Registry) Create(reporterType ReporterType, config map[string]any) (Reporter, error) {
	r.mu.RLock()
	factory, exists := r.factories[reporterType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown reporter type: %s", reporterType)
	}
	return factory(config)
}

// ListTypes returns the registered types, sorted.
func (r *Registry) ListTypes() []ReporterType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ReporterType, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasType reports whether a factory is registered for reporterType.
func (r *Registry) HasType(reporterType ReporterType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[reporterType]
	return exists
}
