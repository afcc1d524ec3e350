package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration values.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Validate checks cfg and returns ValidationErrors when anything is wrong.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = nil

	v.validateRun(&cfg.Run)
	v.validateReporters(&cfg.Reporters)
	v.validateLogging(&cfg.Logging)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateRun(cfg *RunConfig) {
	if cfg.Timeout <= 0 {
		v.addError("run.timeout", "must be positive")
	}
	if cfg.TeardownGrace <= 0 {
		v.addError("run.teardown_grace", "must be positive")
	}
	if cfg.Workers < 1 {
		v.addError("run.workers", "must be at least 1")
	}
	if len(cfg.Patterns) == 0 {
		v.addError("run.patterns", "at least one pattern is required")
	}
	for _, p := range cfg.Patterns {
		if !doublestar.ValidatePattern(p) {
			v.addError("run.patterns", fmt.Sprintf("invalid pattern %q", p))
		}
	}
	for _, p := range cfg.Excludes {
		if !doublestar.ValidatePattern(p) {
			v.addError("run.excludes", fmt.Sprintf("invalid pattern %q", p))
		}
	}
}

func (v *Validator) validateReporters(cfg *ReportersConfig) {
	w := &cfg.Webhook
	if w.URL != "" {
		u, err := url.Parse(w.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			v.addError("reporters.webhook.url", "must be an absolute http(s) URL")
		}
	}
	if !slices.Contains([]string{"POST", "PUT"}, strings.ToUpper(w.Method)) {
		v.addError("reporters.webhook.method", "must be POST or PUT")
	}
	if w.Timeout <= 0 {
		v.addError("reporters.webhook.timeout", "must be positive")
	}
	if w.Retries < 0 {
		v.addError("reporters.webhook.retries", "cannot be negative")
	}
	if w.RetryDelay < 0 {
		v.addError("reporters.webhook.retry_delay", "cannot be negative")
	}
}

func (v *Validator) validateLogging(cfg *LoggingConfig) {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(cfg.Level)) {
		v.addError("logging.level", "must be one of debug, info, warn, error")
	}
	if !slices.Contains([]string{"json", "console"}, cfg.Format) {
		v.addError("logging.format", "must be json or console")
	}
	switch cfg.Output {
	case "stdout", "stderr":
	case "file", "both":
		if cfg.FilePath == "" {
			v.addError("logging.file_path", "required when output is file or both")
		}
	default:
		v.addError("logging.output", "must be one of stdout, stderr, file, both")
	}
}
