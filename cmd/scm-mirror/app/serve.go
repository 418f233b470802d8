package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/scm-mirror/internal/app"
	"github.com/stacklok/scm-mirror/internal/config"
	"github.com/stacklok/scm-mirror/internal/logging"
	"github.com/stacklok/scm-mirror/internal/telemetry"
	"github.com/stacklok/scm-mirror/internal/versions"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mirror API server",
	Long: `Start the mirror API server.

Settings come from an optional configuration file (--config) and from
SCM_MIRROR_* environment variables, which take precedence over the file:
- Storage backend (memory or database) and database connection
- GitHub API endpoint and sync limits
- Background job workers, logging and telemetry`,
	RunE: runServe,
}

const telemetryShutdownTimeout = 5 * time.Second

func init() {
	serveCmd.Flags().String("address", "", "Address to listen on (overrides server.address)")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format)")

	if err := viper.BindPFlag("address", serveCmd.Flags().Lookup("address")); err != nil {
		slog.Error("Failed to bind address flag", "error", err)
	}
	if err := viper.BindPFlag("config", serveCmd.Flags().Lookup("config")); err != nil {
		slog.Error("Failed to bind config flag", "error", err)
	}
}

// loadServeConfig loads the configuration, applying the --address override.
func loadServeConfig(configPath, address string) (*config.Config, error) {
	var opts []config.Option
	if configPath != "" {
		opts = append(opts, config.WithConfigPath(configPath))
	}

	cfg, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if address != "" {
		cfg.Server.Address = address
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	configPath := viper.GetString("config")
	cfg, err := loadServeConfig(configPath, viper.GetString("address"))
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Install()
	defer func() { _ = logger.Close() }()

	slog.Info("Starting scm-mirror server",
		"version", versions.Version,
		"config", configPath,
		"storage", cfg.Storage,
		"address", cfg.Server.Address)

	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	mirrorApp, err := app.NewMirrorApp(ctx,
		app.WithConfig(cfg),
		app.WithMeterProvider(tel.MeterProvider()),
		app.WithTracerProvider(tel.TracerProvider()),
	)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- mirrorApp.Start()
	}()

	// Wait for interrupt signal or a server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var serveErr error
	select {
	case sig := <-quit:
		slog.Info("Received signal", "signal", sig.String())
	case serveErr = <-errChan:
		if serveErr != nil {
			slog.Error("Server stopped unexpectedly", "error", serveErr)
		}
	}

	if err := mirrorApp.Stop(0); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
		if serveErr == nil {
			serveErr = err
		}
	}
	return serveErr
}
