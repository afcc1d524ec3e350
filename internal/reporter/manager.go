package reporter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"yqhp/hookrunner/pkg/logger"
	"yqhp/hookrunner/pkg/types"
)

// Manager fans a run out to several reporters.
type Manager struct {
	registry  *Registry
	reporters []Reporter
	mu        sync.RWMutex
	log       *zap.Logger
}

// NewManager creates a manager backed by registry.
func NewManager(registry *Registry) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Manager{
		registry: registry,
		log:      logger.Named("reporter"),
	}
}

// AddReporter adds an initialised reporter.
func (m *Manager) AddReporter(r Reporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporters = append(m.reporters, r)
}

// AddReporterFromConfig creates, initialises and adds a reporter.
// Disabled configs are ignored.
func (m *Manager) AddReporterFromConfig(ctx context.Context, config *ReporterConfig) error {
	if !config.Enabled {
		return nil
	}

	r, err := m.registry.Create(config.Type, config.Config)
	if err != nil {
		return fmt.Errorf("create reporter %s: %w", config.Type, err)
	}
	if err := r.Init(ctx, config.Config); err != nil {
		return fmt.Errorf("init reporter %s: %w", config.Type, err)
	}
	m.AddReporter(r)
	return nil
}

func (m *Manager) snapshot() []Reporter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Reporter(nil), m.reporters...)
}

// FileFinished forwards a finished file to reporters that observe progress.
func (m *Manager) FileFinished(fr *types.FileReport) {
	for _, r := range m.snapshot() {
		if o, ok := r.(FileObserver); ok {
			o.FileFinished(fr)
		}
	}
}

// Report sends report to every reporter. A failing reporter does not stop the others.
func (m *Manager) Report(ctx context.Context, report *types.RunReport) error {
	var errs []error
	for _, r := range m.snapshot() {
		if err := r.Report(ctx, report); err != nil {
			m.log.Warn("reporter failed", zap.String("reporter", r.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Flush flushes every reporter.
func (m *Manager) Flush(ctx context.Context) error {
	var errs []error
	for _, r := range m.snapshot() {
		if err := r.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every reporter and forgets them.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	reporters := m.reporters
	m.reporters = nil
	m.mu.Unlock()

	var errs []error
	for _, r := range reporters {
		if err := r.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Reporters returns the current reporters.
func (m *Manager) Reporters() []Reporter {
	return m.snapshot()
}
