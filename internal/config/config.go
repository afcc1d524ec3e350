// Package config loads hookrunner settings.
//
// Precedence, lowest first: defaults, YAML file, environment, command-line overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"yqhp/hookrunner/pkg/logger"
)

// DefaultEnvPrefix is prepended to every env tag.
const DefaultEnvPrefix = "HR_"

// Config is the full hookrunner configuration.
type Config struct {
	Run       RunConfig       `yaml:"run"`
	Reporters ReportersConfig `yaml:"reporters"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RunConfig controls discovery and execution.
type RunConfig struct {
	Timeout       time.Duration `yaml:"timeout" env:"RUN_TIMEOUT"`
	TeardownGrace time.Duration `yaml:"teardown_grace" env:"RUN_TEARDOWN_GRACE"`
	Workers       int           `yaml:"workers" env:"RUN_WORKERS"`
	Bail          bool          `yaml:"bail" env:"RUN_BAIL"`
	Patterns      []string      `yaml:"patterns" env:"RUN_PATTERNS"`
	Excludes      []string      `yaml:"excludes" env:"RUN_EXCLUDES"`
}

// ReportersConfig selects and configures report sinks.
type ReportersConfig struct {
	Console ConsoleConfig `yaml:"console"`
	JSON    JSONConfig    `yaml:"json"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// ConsoleConfig configures the terminal reporter.
type ConsoleConfig struct {
	Enabled  bool `yaml:"enabled" env:"REPORT_CONSOLE"`
	ShowLogs bool `yaml:"show_logs" env:"REPORT_SHOW_LOGS"`
	Quiet    bool `yaml:"quiet" env:"REPORT_QUIET"`
}

// JSONConfig configures the JSON file reporter. Empty path disables it.
type JSONConfig struct {
	Path string `yaml:"path" env:"REPORT_JSON_PATH"`
}

// WebhookConfig configures the HTTP reporter. Empty URL disables it.
type WebhookConfig struct {
	URL        string            `yaml:"url" env:"REPORT_WEBHOOK_URL"`
	Method     string            `yaml:"method" env:"REPORT_WEBHOOK_METHOD"`
	Headers    map[string]string `yaml:"headers" env:"REPORT_WEBHOOK_HEADERS"`
	Timeout    time.Duration     `yaml:"timeout" env:"REPORT_WEBHOOK_TIMEOUT"`
	Retries    int               `yaml:"retries" env:"REPORT_WEBHOOK_RETRIES"`
	RetryDelay time.Duration     `yaml:"retry_delay" env:"REPORT_WEBHOOK_RETRY_DELAY"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePath   string `yaml:"file_path" env:"LOG_FILE"`
	MaxSize    int    `yaml:"max_size" env:"LOG_MAX_SIZE"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS"`
	MaxAge     int    `yaml:"max_age" env:"LOG_MAX_AGE"`
}

// Logger converts the section for logger.Init.
func (c LoggingConfig) Logger() *logger.Config {
	return &logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		Output:     c.Output,
		FilePath:   c.FilePath,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAge,
	}
}

// DefaultPatterns are the doublestar globs used when none are configured.
var DefaultPatterns = []string{
	"**/*.test.{js,mjs,cjs,ts}",
	"**/*.spec.{js,mjs,cjs,ts}",
	"**/__tests__/**/*.{js,ts}",
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			Timeout:       5 * time.Second,
			TeardownGrace: 5 * time.Second,
			Workers:       4,
			Patterns:      append([]string(nil), DefaultPatterns...),
		},
		Reporters: ReportersConfig{
			Console: ConsoleConfig{Enabled: true},
			Webhook: WebhookConfig{
				Method:     "POST",
				Timeout:    10 * time.Second,
				Retries:    3,
				RetryDelay: time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:      "warn",
			Format:     "console",
			Output:     "stderr",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
	}
}

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envPrefix  string
	cmdArgs    map[string]string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
		cmdArgs:   make(map[string]string),
	}
}

// WithConfigPath sets the YAML file to read.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithCmdArgs sets overrides keyed by dot path, e.g. "run.workers".
func (l *Loader) WithCmdArgs(args map[string]string) *Loader {
	for k, v := range args {
		l.cmdArgs[k] = v
	}
	return l
}

// Load builds the configuration and validates it.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := l.applyEnvToStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := l.applyCmdOverrides(cfg); err != nil {
		return nil, fmt.Errorf("apply flag overrides: %w", err)
	}

	if err := NewValidator().Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// A missing file is not an error.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", l.configPath, err)
	}
	return nil
}

func (l *Loader) applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		tag := fieldType.Tag.Get("env")
		if tag == "" {
			continue
		}
		name := l.envPrefix + tag
		value, ok := os.LookupEnv(name)
		if !ok || value == "" {
			continue
		}
		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (l *Loader) applyCmdOverrides(cfg *Config) error {
	for key, value := range l.cmdArgs {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a field by its dot-separated yaml path.
func setConfigValue(cfg *Config, path, value string) error {
	parts := strings.Split(path, ".")
	v := reflect.ValueOf(cfg).Elem()

	for i, part := range parts {
		field, ok := fieldByYAMLName(v, part)
		if !ok {
			return fmt.Errorf("unknown config path %q", path)
		}
		if i == len(parts)-1 {
			return setFieldValue(field, value)
		}
		if field.Kind() != reflect.Struct {
			return fmt.Errorf("%s is a %s, not a section", part, field.Kind())
		}
		v = field
	}
	return nil
}

func fieldByYAMLName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if tag == name || strings.EqualFold(t.Field(i).Name, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return errors.New("field cannot be set")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type().Elem().Kind())
		}
		field.Set(reflect.ValueOf(splitList(value)))

	case reflect.Map:
		if field.Type().Key().Kind() != reflect.String || field.Type().Elem().Kind() != reflect.String {
			return errors.New("unsupported map type")
		}
		m := make(map[string]string)
		for _, pair := range strings.Split(value, ",") {
			k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if ok {
				m[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
		}
		field.Set(reflect.ValueOf(m))

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}

// splitList splits a comma separated list, ignoring commas inside glob
// alternations and classes such as "*.{js,ts}".
func splitList(value string) []string {
	var (
		out   []string
		depth int
		start int
	)
	add := func(part string) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	for i, r := range value {
		switch r {
		case '{', '[':
			depth++
		case '}', ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				add(value[start:i])
				start = i + 1
			}
		}
	}
	add(value[start:])
	return out
}

// Serialize renders the configuration as YAML.
func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig parses YAML on top of the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file path.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	data, _ := c.Serialize()
	clone := &Config{}
	_ = yaml.Unmarshal(data, clone)
	return clone
}
