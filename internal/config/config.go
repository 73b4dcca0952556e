// Package config provides configuration management for folio.
// Settings merge from defaults, a folio.yaml file, FOLIO_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/lindenau-systems/folio/internal/batch"
	"github.com/lindenau-systems/folio/internal/output"
	"github.com/lindenau-systems/folio/internal/pdf"
	"github.com/lindenau-systems/folio/internal/pipeline"
	"github.com/lindenau-systems/folio/internal/recognize"
)

// Cancellation mode names accepted in configuration.
const (
	CancelModeGraceful = "graceful"
	CancelModeHard     = "hard"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Verbose:  false,
		API: APIConfig{
			Region: recognize.RegionBeijing,
			Model:  recognize.ModelFlash,
		},
		Recognition: RecognitionConfig{
			Mode:        string(recognize.ModeText),
			TimeoutSec:  60,
			MaxAttempts: pipeline.DefaultMaxAttempts,
			RetryBaseMS: 1000,
			RetryMaxMS:  30000,
		},
		Pipeline: PipelineConfig{
			Concurrency:   pipeline.DefaultConcurrency,
			DPI:           300,
			MaxImageSide:  recognize.DefaultMaxImageSide,
			CancelMode:    CancelModeGraceful,
			DrainGraceSec: 120,
		},
		Output: OutputConfig{
			Format: string(output.FormatText),
		},
		Batch: BatchConfig{
			ShowStats: true,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      300,
			ShutdownTimeout: 30,
			RateLimitPerMin: 60,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log_level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.Recognition.Prompt == "" {
		if _, err := recognize.PromptFor(recognize.Mode(c.Recognition.Mode)); err != nil {
			return fmt.Errorf("invalid recognition.mode: %w", err)
		}
	}

	if c.API.BaseURL == "" {
		if _, err := recognize.EndpointFor(c.API.Region); err != nil {
			return fmt.Errorf("invalid api.region: %w", err)
		}
	}

	if _, err := output.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("invalid output.format: %w", err)
	}

	if c.Recognition.TimeoutSec <= 0 {
		return fmt.Errorf("recognition.timeout_sec must be positive, got %d", c.Recognition.TimeoutSec)
	}

	if c.Recognition.MaxAttempts < 1 {
		return fmt.Errorf("recognition.max_attempts must be at least 1, got %d", c.Recognition.MaxAttempts)
	}

	if c.Recognition.RetryBaseMS <= 0 {
		return fmt.Errorf("recognition.retry_base_ms must be positive, got %d", c.Recognition.RetryBaseMS)
	}

	if c.Recognition.RetryMaxMS < c.Recognition.RetryBaseMS {
		return fmt.Errorf("recognition.retry_max_ms must be >= retry_base_ms, got %d < %d",
			c.Recognition.RetryMaxMS, c.Recognition.RetryBaseMS)
	}

	if c.Pipeline.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1, got %d", c.Pipeline.Concurrency)
	}

	if c.Pipeline.DPI < 36 || c.Pipeline.DPI > 1200 {
		return fmt.Errorf("pipeline.dpi must be between 36 and 1200, got %d", c.Pipeline.DPI)
	}

	if c.Pipeline.CancelMode != CancelModeGraceful && c.Pipeline.CancelMode != CancelModeHard {
		return fmt.Errorf("invalid pipeline.cancel_mode: %s (must be graceful or hard)", c.Pipeline.CancelMode)
	}

	if c.Pipeline.DrainGraceSec < 0 {
		return fmt.Errorf("pipeline.drain_grace_sec must not be negative, got %d", c.Pipeline.DrainGraceSec)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be at least 1, got %d", c.Server.MaxUploadMB)
	}

	return nil
}

// APIKey returns the configured API key, falling back to the
// DASHSCOPE_API_KEY environment variable.
func (c *Config) APIKey() string {
	if c.API.Key != "" {
		return c.API.Key
	}
	return os.Getenv("DASHSCOPE_API_KEY")
}

// Prompt returns the effective recognition prompt: an explicit override
// when set, otherwise the template for the configured mode.
func (c *Config) Prompt() (string, error) {
	if c.Recognition.Prompt != "" {
		return c.Recognition.Prompt, nil
	}
	return recognize.PromptFor(recognize.Mode(c.Recognition.Mode))
}

// ToClientConfig converts the configuration to a recognition client config.
func (c *Config) ToClientConfig() recognize.Config {
	return recognize.Config{
		APIKey:       c.APIKey(),
		BaseURL:      c.API.BaseURL,
		Region:       c.API.Region,
		Model:        c.API.Model,
		MaxImageSide: c.Pipeline.MaxImageSide,
	}
}

// ToRequest converts the configuration to a per-call recognition request.
func (c *Config) ToRequest() (recognize.Request, error) {
	prompt, err := c.Prompt()
	if err != nil {
		return recognize.Request{}, err
	}
	return recognize.Request{
		Prompt:  prompt,
		Model:   c.API.Model,
		Timeout: time.Duration(c.Recognition.TimeoutSec) * time.Second,
	}, nil
}

// ToPipelineOptions converts the configuration to page pipeline options.
func (c *Config) ToPipelineOptions() (pipeline.Options, error) {
	req, err := c.ToRequest()
	if err != nil {
		return pipeline.Options{}, err
	}

	mode := pipeline.CancelGraceful
	if c.Pipeline.CancelMode == CancelModeHard {
		mode = pipeline.CancelHard
	}

	return pipeline.Options{
		Concurrency: c.Pipeline.Concurrency,
		MaxAttempts: c.Recognition.MaxAttempts,
		BaseDelay:   time.Duration(c.Recognition.RetryBaseMS) * time.Millisecond,
		MaxDelay:    time.Duration(c.Recognition.RetryMaxMS) * time.Millisecond,
		DPI:         c.Pipeline.DPI,
		Request:     req,
		CancelMode:  mode,
		DrainGrace:  time.Duration(c.Pipeline.DrainGraceSec) * time.Second,
	}, nil
}

// ToBatchConfig converts the configuration to a batch processor config.
func (c *Config) ToBatchConfig() (batch.Config, error) {
	opts, err := c.ToPipelineOptions()
	if err != nil {
		return batch.Config{}, err
	}

	format, err := output.ParseFormat(c.Output.Format)
	if err != nil {
		return batch.Config{}, err
	}

	return batch.Config{
		Pipeline:  opts,
		Mode:      recognize.Mode(c.Recognition.Mode),
		Model:     c.API.Model,
		Pages:     c.PDF.Pages,
		Format:    format,
		OutputDir: c.Output.Dir,
		Credentials: pdf.Credentials{
			UserPassword:  c.PDF.UserPassword,
			OwnerPassword: c.PDF.OwnerPassword,
		},
		SkipExisting:    c.Batch.SkipExisting,
		Recursive:       c.Batch.Recursive,
		IncludePatterns: c.Batch.IncludePatterns,
		ExcludePatterns: c.Batch.ExcludePatterns,
		Quiet:           c.Batch.Quiet,
		ShowStats:       c.Batch.ShowStats,
	}, nil
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
