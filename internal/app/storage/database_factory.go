package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/scm-mirror/internal/config"
	"github.com/stacklok/scm-mirror/internal/db"
	"github.com/stacklok/scm-mirror/internal/store"
	"github.com/stacklok/scm-mirror/internal/store/postgres"
)

// DatabaseFactory creates the PostgreSQL-backed store.
type DatabaseFactory struct {
	config *config.Config
	pool   *pgxpool.Pool
	tracer trace.Tracer

	once  sync.Once
	store *postgres.Store
	err   error
}

var _ Factory = (*DatabaseFactory)(nil)

// DatabaseFactoryOption is a functional option for configuring the DatabaseFactory
type DatabaseFactoryOption func(*DatabaseFactory)

// WithTracer sets the OpenTelemetry tracer for the database store.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) DatabaseFactoryOption {
	return func(f *DatabaseFactory) {
		f.tracer = tracer
	}
}

// withPool injects an already connected pool.
func withPool(pool *pgxpool.Pool) DatabaseFactoryOption {
	return func(f *DatabaseFactory) {
		f.pool = pool
	}
}

// NewDatabaseFactory creates a new database-backed storage factory.
// It establishes a connection pool to the configured PostgreSQL database.
func NewDatabaseFactory(ctx context.Context, cfg *config.Config, opts ...DatabaseFactoryOption) (*DatabaseFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is required for database storage type")
	}

	slog.Info("Creating database-backed storage factory")

	factory := &DatabaseFactory{config: cfg}
	for _, opt := range opts {
		opt(factory)
	}

	if factory.pool == nil {
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to create database connection pool: %w", err)
		}
		factory.pool = pool
	}

	return factory, nil
}

// CreateStore returns the PostgreSQL store over the factory's pool.
func (d *DatabaseFactory) CreateStore(_ context.Context) (store.Store, error) {
	d.once.Do(func() {
		slog.Debug("Creating database-backed store")
		opts := []postgres.Option{postgres.WithConnectionPool(d.pool)}
		if d.tracer != nil {
			opts = append(opts, postgres.WithTracer(d.tracer))
			slog.Debug("Database store tracing enabled")
		}
		d.store, d.err = postgres.New(opts...)
	})
	if d.err != nil {
		return nil, d.err
	}
	return d.store, nil
}

// Cleanup releases resources held by the database factory.
// This closes the database connection pool and any active connections.
func (d *DatabaseFactory) Cleanup() {
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}
