// Package reconcile converges a set of local rows onto an upstream snapshot.
//
// Rows are matched by key. Matched rows are updated, unmatched upstream items
// are inserted and local rows that no longer appear upstream are tombstoned.
package reconcile

import (
	"context"
	"errors"
	"fmt"
)

// Spec describes how to match and mutate one kind of row.
type Spec[L, R any, K comparable] struct {
	// LocalKey returns the key of an existing row. Rows without a key are
	// never touched.
	LocalKey func(L) (K, bool)
	// RemoteKey returns the key of an upstream item. Items without a key are
	// skipped.
	RemoteKey func(R) (K, bool)
	// Update applies an upstream item to the row it matched.
	Update func(ctx context.Context, row L, item R) error
	// Insert creates a row for an upstream item with no match.
	Insert func(ctx context.Context, item R) error
	// Tombstone soft-deletes a row absent from the upstream snapshot.
	Tombstone func(ctx context.Context, row L) error
}

// Result counts what a reconciliation did.
type Result struct {
	Inserted   int
	Updated    int
	Tombstoned int
	Skipped    int
}

// Changed reports whether any row was written.
func (r Result) Changed() bool {
	return r.Inserted+r.Updated+r.Tombstoned > 0
}

// Add sums two results.
func (r Result) Add(other Result) Result {
	return Result{
		Inserted:   r.Inserted + other.Inserted,
		Updated:    r.Updated + other.Updated,
		Tombstoned: r.Tombstoned + other.Tombstoned,
		Skipped:    r.Skipped + other.Skipped,
	}
}

func (s Spec[L, R, K]) validate() error {
	var errs []error
	if s.LocalKey == nil {
		errs = append(errs, errors.New("LocalKey is required"))
	}
	if s.RemoteKey == nil {
		errs = append(errs, errors.New("RemoteKey is required"))
	}
	if s.Update == nil {
		errs = append(errs, errors.New("Update is required"))
	}
	if s.Insert == nil {
		errs = append(errs, errors.New("Insert is required"))
	}
	if s.Tombstone == nil {
		errs = append(errs, errors.New("Tombstone is required"))
	}
	return errors.Join(errs...)
}

// Run reconciles existing, the active local rows of one parent, against
// incoming, the full upstream snapshot for that parent. It stops at the first
// callback error.
//
// Each key ends up with at most one active row. When existing holds several
// rows for one key, the first is kept and the rest are tombstoned. When
// incoming repeats a key, only the first occurrence is applied.
func Run[L, R any, K comparable](ctx context.Context, spec Spec[L, R, K], existing []L, incoming []R) (Result, error) {
	var res Result
	if err := spec.validate(); err != nil {
		return res, fmt.Errorf("invalid reconcile spec: %w", err)
	}

	index := make(map[K]L, len(existing))
	var stale []L
	for _, row := range existing {
		key, ok := spec.LocalKey(row)
		if !ok {
			continue
		}
		if _, dup := index[key]; dup {
			stale = append(stale, row)
			continue
		}
		index[key] = row
	}

	seen := make(map[K]struct{}, len(incoming))
	for _, item := range incoming {
		key, ok := spec.RemoteKey(item)
		if !ok {
			res.Skipped++
			continue
		}
		if _, dup := seen[key]; dup {
			res.Skipped++
			continue
		}
		seen[key] = struct{}{}

		if row, found := index[key]; found {
			delete(index, key)
			if err := spec.Update(ctx, row, item); err != nil {
				return res, fmt.Errorf("failed to update row for key %v: %w", key, err)
			}
			res.Updated++
			continue
		}

		if err := spec.Insert(ctx, item); err != nil {
			return res, fmt.Errorf("failed to insert row for key %v: %w", key, err)
		}
		res.Inserted++
	}

	// Iterate existing again so tombstoning follows the caller's order.
	for _, row := range existing {
		key, ok := spec.LocalKey(row)
		if !ok {
			continue
		}
		if _, unclaimed := index[key]; !unclaimed {
			continue
		}
		delete(index, key)
		if err := spec.Tombstone(ctx, row); err != nil {
			return res, fmt.Errorf("failed to tombstone row for key %v: %w", key, err)
		}
		res.Tombstoned++
	}
	for _, row := range stale {
		if err := spec.Tombstone(ctx, row); err != nil {
			return res, fmt.Errorf("failed to tombstone duplicate row: %w", err)
		}
		res.Tombstoned++
	}

	return res, nil
}
