// Package storage provides factory functions for creating the store backend.
// The factory is the single decision point between in-memory and PostgreSQL
// storage and owns the backend's lifecycle.
package storage

import (
	"context"
	"fmt"

	"github.com/stacklok/scm-mirror/internal/config"
	"github.com/stacklok/scm-mirror/internal/store"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks -source=factory.go Factory

// Factory creates the store used by every component of the server.
type Factory interface {
	// CreateStore returns the store. Repeated calls return the same instance.
	CreateStore(ctx context.Context) (store.Store, error)

	// Cleanup releases any resources held by this factory.
	// For database factories, this closes the connection pool.
	// Should be called when the application shuts down.
	Cleanup()
}

// NewStorageFactory creates a storage factory based on the configured storage type.
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...DatabaseFactoryOption) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch cfg.Storage {
	case config.StorageDatabase:
		return NewDatabaseFactory(ctx, cfg, opts...)
	case config.StorageMemory, "":
		return NewMemoryFactory(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage)
	}
}
