// Package txn carries a unit of work through a context.Context so that
// other packages can defer work until the enclosing transaction completes.
package txn

import (
	"context"
	"sync"
)

type scopeKey struct{}

// Scope is an active unit of work.
type Scope struct {
	mu        sync.Mutex
	callbacks []func(committed bool)
	completed bool
	committed bool
}

// FromContext returns the active scope, or nil when ctx carries none.
func FromContext(ctx context.Context) *Scope {
	scope, _ := ctx.Value(scopeKey{}).(*Scope)
	return scope
}

// Begin opens a unit of work. When ctx already carries a scope the outer scope
// is joined: the returned context is ctx itself and owner is false, meaning the
// caller must not complete it.
func Begin(ctx context.Context) (_ context.Context, scope *Scope, owner bool) {
	if existing := FromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	scope = &Scope{}
	return context.WithValue(ctx, scopeKey{}, scope), scope, true
}

// AfterCompletion registers fn to run once the scope commits or rolls back.
// Callbacks run in registration order. If the scope has already completed,
// fn runs immediately.
func (s *Scope) AfterCompletion(fn func(committed bool)) {
	s.mu.Lock()
	if s.completed {
		committed := s.committed
		s.mu.Unlock()
		fn(committed)
		return
	}
	s.callbacks = append(s.callbacks, fn)
	s.mu.Unlock()
}

// Complete marks the scope finished and runs the registered callbacks.
// Calls after the first are ignored.
func (s *Scope) Complete(committed bool) {
	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return
	}
	s.completed = true
	s.committed = committed
	callbacks := s.callbacks
	s.callbacks = nil
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn(committed)
	}
}

// Completed reports whether Complete has been called.
func (s *Scope) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}
