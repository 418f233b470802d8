// Package lock provides mutual exclusion keyed by string. Each key gets its
// own lock entry which lives only while somebody holds or waits for it.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/stacklok/scm-mirror/internal/txn"
)

// ErrEmptyKey is returned when a lock is requested for an empty key.
var ErrEmptyKey = errors.New("lock key must not be empty")

type entry struct {
	sem  chan struct{}
	refs int
}

// Manager hands out exclusive access per key. The zero value is not usable;
// create one with NewManager.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// OrganizationKey is the lock key guarding one organization.
func OrganizationKey(id int64) string {
	return fmt.Sprintf("organization:%d", id)
}

// RepositoryKey is the lock key guarding one repository.
func RepositoryKey(id int64) string {
	return fmt.Sprintf("repository:%d", id)
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{entries: make(map[string]*entry)}
}

// Run executes fn while holding the lock for key.
//
// If ctx carries an active unit of work (see package txn), the lock is kept
// until that unit of work commits or rolls back rather than released when fn
// returns, so a second caller never observes uncommitted state.
func (m *Manager) Run(ctx context.Context, key string, fn func(context.Context) error) error {
	_, err := Call(ctx, m, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Call is like Run but returns the value produced by fn.
func Call[T any](ctx context.Context, m *Manager, key string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if key == "" {
		return zero, ErrEmptyKey
	}

	e, err := m.acquire(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	defer m.releaseFor(ctx, key, e)

	return fn(ctx)
}

// Len reports the number of live lock entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Manager) acquire(ctx context.Context, key string) (*entry, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return e, nil
	case <-ctx.Done():
		m.drop(key, e)
		return nil, ctx.Err()
	}
}

func (m *Manager) releaseFor(ctx context.Context, key string, e *entry) {
	if scope := txn.FromContext(ctx); scope != nil {
		slog.Debug("Deferring lock release until unit of work completes", "key", key)
		scope.AfterCompletion(func(bool) {
			m.release(key, e)
		})
		return
	}
	m.release(key, e)
}

func (m *Manager) release(key string, e *entry) {
	<-e.sem
	m.drop(key, e)
}

func (m *Manager) drop(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}
