// Package main is the entry point for the SCM mirror server.
package main

import (
	"os"

	"github.com/stacklok/scm-mirror/cmd/scm-mirror/app"
	"github.com/stacklok/scm-mirror/internal/config"
	"github.com/stacklok/scm-mirror/internal/logging"
)

func main() {
	// Logs go to stderr so stdout stays clean for commands that print data
	// (e.g. version --format json). serve replaces this logger once the
	// configuration is loaded.
	logger, err := logging.New(config.LoggingConfig{Level: logging.LevelFromEnv().String()}, os.Stderr)
	if err != nil {
		os.Exit(1)
	}
	logger.Install()

	err = app.NewRootCmd().Execute()
	_ = logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
