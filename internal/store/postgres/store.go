// Package postgres is the PostgreSQL store backend built on pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/scm-mirror/internal/store"
	"github.com/stacklok/scm-mirror/internal/txn"
)

const (
	// TracerName is the name used for the postgres store tracer
	TracerName = "github.com/stacklok/scm-mirror/store/postgres"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// options holds configuration options for the postgres store
type options struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

// Option is a functional option for configuring the postgres store
type Option func(*options) error

// WithConnectionPool sets the pgx pool. The store takes ownership and closes
// it in Close.
func WithConnectionPool(pool *pgxpool.Pool) Option {
	return func(o *options) error {
		if pool == nil {
			return fmt.Errorf("pgx pool is required")
		}
		o.pool = pool
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for transactions.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// Store is the PostgreSQL implementation of store.Store.
type Store struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
}

var _ store.Store = (*Store)(nil)

// New creates a postgres store
func New(opts ...Option) (*Store, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	return &Store{pool: o.pool, tracer: o.tracer}, nil
}

// q returns the transaction bound to ctx, or the pool.
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// InTx runs fn inside a database transaction. A nested call joins the
// transaction already bound to ctx.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	ctx, span := s.startSpan(ctx, "store.InTx")
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	ctx, scope, owner := txn.Begin(ctx)
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
		if owner {
			scope.Complete(committed)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		recordError(span, err)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		recordError(span, err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// Ping checks the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *Store) Close() {
	s.pool.Close()
}

// Users implements store.Store
func (s *Store) Users() store.Users { return users{s} }

// Organizations implements store.Store
func (s *Store) Organizations() store.Organizations { return organizations{s} }

// Memberships implements store.Store
func (s *Store) Memberships() store.Memberships { return memberships{s} }

// Repositories implements store.Store
func (s *Store) Repositories() store.Repositories { return repositories{s} }

// SyncStatuses implements store.Store
func (s *Store) SyncStatuses() store.SyncStatuses { return syncStatuses{s} }

// PullRequests implements store.Store
func (s *Store) PullRequests() store.PullRequests { return pullRequests{s} }

// PullRequestFiles implements store.Store
func (s *Store) PullRequestFiles() store.PullRequestFiles { return pullRequestFiles{s} }

// Commits implements store.Store
func (s *Store) Commits() store.Commits { return commits{s} }

// CommitFiles implements store.Store
func (s *Store) CommitFiles() store.CommitFiles { return commitFiles{s} }

// startSpan starts a span carrying the db.system attribute.
// If the tracer is nil, it returns a no-op span from the context.
func (s *Store) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name, trace.WithAttributes(semconv.DBSystemPostgreSQL))
}

func recordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}

type scanner interface {
	Scan(dest ...any) error
}

// findOne runs a single-row query, mapping pgx.ErrNoRows to store.ErrNotFound.
func findOne[T any](ctx context.Context, q querier, scan func(scanner) (T, error), sql string, args ...any) (*T, error) {
	v, err := scan(q.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// findMany runs a query and collects every row. No rows yields an empty slice.
func findMany[T any](ctx context.Context, q querier, scan func(scanner) (T, error), sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (T, error) {
		return scan(row)
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// insert runs an INSERT ... RETURNING id, created_at, updated_at.
func insert(ctx context.Context, q querier, rec *store.Record, sql string, args ...any) error {
	return q.QueryRow(ctx, sql, args...).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

// update runs an UPDATE ... WHERE id = $1 RETURNING updated_at.
func update(ctx context.Context, q querier, rec *store.Record, sql string, args ...any) error {
	err := q.QueryRow(ctx, sql, args...).Scan(&rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
