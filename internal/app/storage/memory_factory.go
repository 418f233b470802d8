package storage

import (
	"context"
	"log/slog"

	"github.com/stacklok/scm-mirror/internal/store"
	"github.com/stacklok/scm-mirror/internal/store/memory"
)

// MemoryFactory creates an in-process store. State is lost on restart.
type MemoryFactory struct {
	store *memory.Store
}

var _ Factory = (*MemoryFactory)(nil)

// NewMemoryFactory creates a new in-memory storage factory.
func NewMemoryFactory() *MemoryFactory {
	slog.Info("Creating in-memory storage factory")
	return &MemoryFactory{store: memory.New()}
}

// CreateStore returns the in-memory store.
func (f *MemoryFactory) CreateStore(_ context.Context) (store.Store, error) {
	return f.store, nil
}

// Cleanup is a no-op for the in-memory store.
func (*MemoryFactory) Cleanup() {}
