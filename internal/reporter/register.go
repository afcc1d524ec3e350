package reporter

import (
	"yqhp/hookrunner/internal/reporter/console"
	"yqhp/hookrunner/internal/reporter/file"
	"yqhp/hookrunner/internal/reporter/webhook"
)

// RegisterBuiltinReporters registers the console, json and webhook reporters.
func RegisterBuiltinReporters(registry *Registry) error {
	if err := registry.Register(ReporterTypeConsole, func(config map[string]any) (Reporter, error) {
		return console.NewFactory()(config)
	}); err != nil {
		return err
	}

	if err := registry.Register(ReporterTypeJSON, func(config map[string]any) (Reporter, error) {
		return file.NewJSONFactory()(config)
	}); err != nil {
		return err
	}

	return registry.Register(ReporterTypeWebhook, func(config map[string]any) (Reporter, error) {
		return webhook.NewFactory()(config)
	})
}

// NewDefaultRegistry creates a registry with the built-in reporters.
func NewDefaultRegistry() (*Registry, error) {
	registry := NewRegistry()
	if err := RegisterBuiltinReporters(registry); err != nil {
		return nil, err
	}
	return registry, nil
}
