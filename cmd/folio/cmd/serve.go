package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lindenau-systems/folio/internal/recognize"
	"github.com/lindenau-systems/folio/internal/server"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recognition HTTP server",
	Long: `Start an HTTP server that recognizes uploaded documents.

The server provides the following endpoints:
  POST /v1/recognize  - Recognize an uploaded PDF or image
  GET  /ws/recognize  - WebSocket recognition with streaming progress
  GET  /health        - Health check endpoint
  GET  /models        - List models and recognition modes
  GET  /metrics       - Prometheus metrics

Examples:
  folio serve
  folio serve --port 8080
  folio serve --host 0.0.0.0 --port 3000 --rate-limit 30`,
	RunE: runServeCommand,
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	// Extract server configuration with CLI flag overrides
	host := cfg.Server.Host
	if cmd.Flags().Changed("host") {
		host, _ = cmd.Flags().GetString("host")
	}

	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port, _ = cmd.Flags().GetInt("port")
	}

	corsOrigin := cfg.Server.CORSOrigin
	if cmd.Flags().Changed("cors-origin") {
		corsOrigin, _ = cmd.Flags().GetString("cors-origin")
	}

	maxUploadMB := cfg.Server.MaxUploadMB
	if cmd.Flags().Changed("max-upload-size") {
		maxUploadMB, _ = cmd.Flags().GetInt("max-upload-size")
	}

	timeout := cfg.Server.TimeoutSec
	if cmd.Flags().Changed("timeout") {
		timeout, _ = cmd.Flags().GetInt("timeout")
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if cmd.Flags().Changed("shutdown-timeout") {
		shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}

	rateLimit := cfg.Server.RateLimitPerMin
	if cmd.Flags().Changed("rate-limit") {
		rateLimit, _ = cmd.Flags().GetInt("rate-limit")
	}

	if cmd.Flags().Changed("model") {
		cfg.API.Model, _ = cmd.Flags().GetString("model")
	}
	if cmd.Flags().Changed("mode") {
		cfg.Recognition.Mode, _ = cmd.Flags().GetString("mode")
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.APIKey() == "" {
		return errors.New("no API key configured (set FOLIO_API_KEY or DASHSCOPE_API_KEY)")
	}

	client, err := recognize.NewHTTPClient(cfg.ToClientConfig())
	if err != nil {
		return fmt.Errorf("failed to create recognition client: %w", err)
	}

	opts, err := cfg.ToPipelineOptions()
	if err != nil {
		return err
	}

	srv, err := server.NewServer(server.Config{
		Host:            host,
		Port:            port,
		CORSOrigin:      corsOrigin,
		MaxUploadMB:     int64(maxUploadMB),
		TimeoutSec:      timeout,
		RateLimitPerMin: rateLimit,
		Client:          client,
		Pipeline:        opts,
		Mode:            recognize.Mode(cfg.Recognition.Mode),
		Model:           cfg.API.Model,
		Logger:          slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(timeout) * time.Second,
		WriteTimeout:      time.Duration(timeout) * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		slog.Info("Starting recognition server", "host", host, "port", port,
			"model", recognize.ResolveModel(cfg.API.Model))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(shutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server shutdown completed")
	}

	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "0.0.0.0", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 300, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 30, "shutdown timeout in seconds")
	serveCmd.Flags().Int("rate-limit", 60, "requests per minute per client (0 disables limiting)")
	serveCmd.Flags().StringP("model", "m", "flash", "default model for uploads that specify none")
	serveCmd.Flags().String("mode", "text", "default recognition mode for uploads")
}
