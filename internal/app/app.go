// Package app provides application lifecycle management for the mirror server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/stacklok/scm-mirror/internal/config"
)

// MirrorApp encapsulates all components needed to run the mirror API server
// It provides lifecycle management and graceful shutdown capabilities
type MirrorApp struct {
	config          *config.Config
	components      *AppComponents
	httpServer      *http.Server
	shutdownTimeout time.Duration

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
	stopOnce   sync.Once
	stopErr    error
}

// Start starts the HTTP server.
// This method blocks until the HTTP server stops or encounters an error
func (app *MirrorApp) Start() error {
	slog.Info("Server listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application with the given timeout; a zero
// timeout uses the configured shutdown timeout. HTTP traffic is drained
// first, then running jobs, then storage is released. Stop is idempotent.
func (app *MirrorApp) Stop(timeout time.Duration) error {
	app.stopOnce.Do(func() {
		app.stopErr = app.stop(timeout)
	})
	return app.stopErr
}

func (app *MirrorApp) stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")
	if timeout <= 0 {
		timeout = app.shutdownTimeout
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	if app.components != nil && app.components.Jobs != nil {
		if err := app.components.Jobs.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("background jobs did not finish: %w", err))
		}
	}

	// Cancel the application context and release storage
	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *MirrorApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server (useful for testing to get the actual port)
func (app *MirrorApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// Components returns the wired application components
func (app *MirrorApp) Components() *AppComponents {
	return app.components
}
