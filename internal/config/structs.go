package config

// Config is the complete configuration of the folio application. It is
// assembled from configuration files, environment variables (FOLIO_*
// plus DASHSCOPE_API_KEY for the key itself) and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Recognition service access
	API APIConfig `mapstructure:"api" yaml:"api" json:"api"`

	// Per-call recognition behavior
	Recognition RecognitionConfig `mapstructure:"recognition" yaml:"recognition" json:"recognition"`

	// Page pipeline behavior
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// PDF handling
	PDF PDFConfig `mapstructure:"pdf" yaml:"pdf" json:"pdf"`

	// Result output
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Multi-document batch settings
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// APIConfig locates the recognition service.
type APIConfig struct {
	// Key authenticates against the service. Empty falls back to the
	// DASHSCOPE_API_KEY environment variable.
	Key string `mapstructure:"key" yaml:"key" json:"key"`

	// Region selects the service endpoint (beijing, singapore). Ignored
	// when BaseURL is set explicitly.
	Region  string `mapstructure:"region" yaml:"region" json:"region"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`

	// Model is an alias (flash, plus, ocr) or a literal model identifier.
	Model string `mapstructure:"model" yaml:"model" json:"model"`
}

// RecognitionConfig shapes individual recognition calls and their retries.
type RecognitionConfig struct {
	Mode        string `mapstructure:"mode" yaml:"mode" json:"mode"`
	Prompt      string `mapstructure:"prompt" yaml:"prompt" json:"prompt"`
	TimeoutSec  int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	MaxAttempts int    `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	RetryBaseMS int    `mapstructure:"retry_base_ms" yaml:"retry_base_ms" json:"retry_base_ms"`
	RetryMaxMS  int    `mapstructure:"retry_max_ms" yaml:"retry_max_ms" json:"retry_max_ms"`
}

// PipelineConfig bounds the page pipeline.
type PipelineConfig struct {
	Concurrency   int    `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency"`
	DPI           int    `mapstructure:"dpi" yaml:"dpi" json:"dpi"`
	MaxImageSide  int    `mapstructure:"max_image_side" yaml:"max_image_side" json:"max_image_side"`
	CancelMode    string `mapstructure:"cancel_mode" yaml:"cancel_mode" json:"cancel_mode"`
	DrainGraceSec int    `mapstructure:"drain_grace_sec" yaml:"drain_grace_sec" json:"drain_grace_sec"`
}

// PDFConfig contains PDF page selection and decryption settings.
type PDFConfig struct {
	Pages         string `mapstructure:"pages" yaml:"pages" json:"pages"`
	UserPassword  string `mapstructure:"user_password" yaml:"user_password" json:"user_password"`
	OwnerPassword string `mapstructure:"owner_password" yaml:"owner_password" json:"owner_password"`
}

// OutputConfig controls result rendering and persistence.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
	Dir    string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

// BatchConfig contains multi-document processing settings.
type BatchConfig struct {
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	IncludePatterns []string `mapstructure:"include" yaml:"include" json:"include"`
	ExcludePatterns []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	SkipExisting    bool     `mapstructure:"skip_existing" yaml:"skip_existing" json:"skip_existing"`
	ShowStats       bool     `mapstructure:"show_stats" yaml:"show_stats" json:"show_stats"`
	Quiet           bool     `mapstructure:"quiet" yaml:"quiet" json:"quiet"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimitPerMin int    `mapstructure:"rate_limit_per_min" yaml:"rate_limit_per_min" json:"rate_limit_per_min"`
}
