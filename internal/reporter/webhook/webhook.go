// Package webhook posts run reports to an HTTP endpoint.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"yqhp/hookrunner/pkg/logger"
	"yqhp/hookrunner/pkg/types"
)

// Config holds configuration for the webhook reporter.
type Config struct {
	URL           string            `yaml:"url"`
	Method        string            `yaml:"method"`
	Headers       map[string]string `yaml:"headers,omitempty"`
	RetryAttempts int               `yaml:"retry_attempts"`
	// RetryDelay grows linearly with each attempt.
	RetryDelay time.Duration `yaml:"retry_delay"`
	Timeout    time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default webhook reporter configuration.
func DefaultConfig() *Config {
	return &Config{
		Method:        fasthttp.MethodPost,
		Headers:       make(map[string]string),
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		Timeout:       10 * time.Second,
	}
}

// Payload is the request body.
type Payload struct {
	Event   string           `json:"event"`
	Success bool             `json:"success"`
	Report  *types.RunReport `json:"report"`
}

// Reporter sends the run report once per Report call.
type Reporter struct {
	config *Config
	client *fasthttp.Client
	log    *zap.Logger
	mu     sync.Mutex
}

// New creates a webhook reporter.
func New(config *Config) *Reporter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Method == "" {
		config.Method = fasthttp.MethodPost
	}
	return &Reporter{
		config: config,
		client: &fasthttp.Client{
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
		log: logger.Named("webhook"),
	}
}

// NewFactory returns a factory reading the keys of Config from a generic map.
func NewFactory() func(config map[string]any) (*Reporter, error) {
	return func(config map[string]any) (*Reporter, error) {
		cfg := DefaultConfig()
		if v, ok := config["url"].(string); ok {
			cfg.URL = v
		}
		if v, ok := config["method"].(string); ok && v != "" {
			cfg.Method = v
		}
		switch v := config["headers"].(type) {
		case map[string]string:
			for k, val := range v {
				cfg.Headers[k] = val
			}
		case map[string]any:
			for k, val := range v {
				if s, ok := val.(string); ok {
					cfg.Headers[k] = s
				}
			}
		}
		if v, ok := config["retry_attempts"].(int); ok {
			cfg.RetryAttempts = v
		}
		if d, ok := duration(config["retry_delay"]); ok {
			cfg.RetryDelay = d
		}
		if d, ok := duration(config["timeout"]); ok {
			cfg.Timeout = d
		}
		return New(cfg), nil
	}
}

func duration(v any) (time.Duration, bool) {
	switch d := v.(type) {
	case time.Duration:
		return d, true
	case string:
		parsed, err := time.ParseDuration(d)
		return parsed, err == nil
	}
	return 0, false
}

// Name returns the reporter name.
func (r *Reporter) Name() string {
	return "webhook"
}

// Init checks the configuration.
func (r *Reporter) Init(ctx context.Context, config map[string]any) error {
	if r.config.URL == "" {
		return errors.New("webhook URL is required")
	}
	return nil
}

// Report posts report, retrying on transport errors and non-2xx responses.
func (r *Reporter) Report(ctx context.Context, report *types.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	body, err := json.Marshal(&Payload{
		Event:   "run.finished",
		Success: report.Success(),
		Report:  report,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return r.sendWithRetry(ctx, body)
}

func (r *Reporter) sendWithRetry(ctx context.Context, body []byte) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(r.config.RetryDelay * time.Duration(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := r.send(body)
		if err == nil {
			return nil
		}
		lastErr = err
		r.log.Debug("webhook attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	return fmt.Errorf("failed after %d attempts: %w", r.config.RetryAttempts+1, lastErr)
}

func (r *Reporter) send(body []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.config.URL)
	req.Header.SetMethod(r.config.Method)
	req.Header.SetContentType("application/json")
	for k, v := range r.config.Headers {
		req.Header.Set(k, v)
	}
	req.SetBody(body)

	if err := r.client.DoTimeout(req, resp, r.config.Timeout); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return fmt.Errorf("request timed out after %s", r.config.Timeout)
		}
		return fmt.Errorf("send request: %w", err)
	}

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return fmt.Errorf("webhook returned status %d: %s", code, string(resp.Body()))
	}
	return nil
}

// Flush is a no-op; Report sends synchronously.
func (r *Reporter) Flush(ctx context.Context) error {
	return nil
}

// Close releases idle connections.
func (r *Reporter) Close(ctx context.Context) error {
	r.client.CloseIdleConnections()
	return nil
}
