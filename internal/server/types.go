// Package server exposes the recognition pipeline over HTTP. It accepts
// document uploads, runs them through the page pipeline against the
// configured remote service and returns rendered results, with a
// WebSocket variant that streams per-page progress.
package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/lindenau-systems/folio/internal/output"
	"github.com/lindenau-systems/folio/internal/pipeline"
	"github.com/lindenau-systems/folio/internal/recognize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	CORSOrigin string

	// MaxUploadMB bounds uploaded document size.
	MaxUploadMB int64

	// TimeoutSec bounds one recognition request end to end.
	TimeoutSec int

	// RateLimitPerMin enables per-client rate limiting when positive.
	RateLimitPerMin int

	// Client performs the remote recognition calls. Required.
	Client recognize.Client

	// Pipeline configures every run started by the server. The request
	// prompt and model are overridden per upload.
	Pipeline pipeline.Options

	// Mode and Model are the defaults when an upload specifies none.
	Mode  recognize.Mode
	Model string

	Logger *slog.Logger
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	client      recognize.Client
	opts        pipeline.Options
	mode        recognize.Mode
	model       string
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// Response types for API endpoints.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

type ModelInfo struct {
	Alias string `json:"alias"`
	ID    string `json:"id"`
}

type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
	Modes  []string    `json:"modes"`
	Count  int         `json:"count"`
}

type RecognizeResponse struct {
	Success bool                   `json:"success"`
	Result  *output.DocumentResult `json:"result,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// NewServer creates a new recognition server instance.
func NewServer(config Config) (*Server, error) {
	if config.Client == nil {
		return nil, errors.New("server: recognition client is required")
	}

	mode := config.Mode
	if mode == "" {
		mode = recognize.ModeText
	}
	model := config.Model
	if model == "" {
		model = recognize.ModelFlash
	}
	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 50
	}
	timeout := config.TimeoutSec
	if timeout <= 0 {
		timeout = 300
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *RateLimiter
	if config.RateLimitPerMin > 0 {
		limiter = NewRateLimiter(config.RateLimitPerMin, 0)
	}

	return &Server{
		client:      config.Client,
		opts:        config.Pipeline,
		mode:        mode,
		model:       model,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: maxUpload,
		timeoutSec:  timeout,
		rateLimiter: limiter,
		logger:      logger,
	}, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/models", s.corsMiddleware(s.modelsHandler))
	mux.HandleFunc("/v1/recognize", s.corsMiddleware(s.rateLimitMiddleware(s.recognizeHandler)))
	mux.HandleFunc("/ws/recognize", s.rateLimitMiddleware(s.recognizeWebSocketHandler))
	mux.Handle("/metrics", promhttp.Handler())
}
