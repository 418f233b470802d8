package memory

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stacklok/scm-mirror/internal/store"
)

type txKey struct{}

// tx buffers writes per table until commit.
type tx struct {
	writes map[string]map[int64]any
}

func txFrom(ctx context.Context) *tx {
	t, _ := ctx.Value(txKey{}).(*tx)
	return t
}

// applier lets the store commit a transaction's overlay without knowing row types.
type applier interface {
	name() string
	apply(rows map[int64]any)
}

// table stores value copies of T keyed by id. All tables of a store share mu
// so that a commit is atomic across tables.
type table[T any] struct {
	tableName string
	mu        *sync.RWMutex
	seq       atomic.Int64
	rows      map[int64]T
	rec       func(*T) *store.Record
	now       func() time.Time
}

func newTable[T any](name string, mu *sync.RWMutex, now func() time.Time, rec func(*T) *store.Record) *table[T] {
	return &table[T]{
		tableName: name,
		mu:        mu,
		rows:      make(map[int64]T),
		rec:       rec,
		now:       now,
	}
}

func (t *table[T]) name() string {
	return t.tableName
}

// apply is called with mu held for writing.
func (t *table[T]) apply(rows map[int64]any) {
	for id, v := range rows {
		t.rows[id] = v.(T)
	}
}

func (t *table[T]) get(ctx context.Context, id int64) (*T, error) {
	if tx := txFrom(ctx); tx != nil {
		if v, ok := tx.writes[t.tableName][id]; ok {
			row := v.(T)
			return &row, nil
		}
	}
	t.mu.RLock()
	row, ok := t.rows[id]
	t.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return &row, nil
}

// list returns copies of every row matching keep, ordered by id.
func (t *table[T]) list(ctx context.Context, keep func(*T) bool) []T {
	merged := make(map[int64]T)
	t.mu.RLock()
	for id, row := range t.rows {
		merged[id] = row
	}
	t.mu.RUnlock()
	if tx := txFrom(ctx); tx != nil {
		for id, v := range tx.writes[t.tableName] {
			merged[id] = v.(T)
		}
	}

	ids := make([]int64, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make([]T, 0, len(ids))
	for _, id := range ids {
		row := merged[id]
		if keep == nil || keep(&row) {
			out = append(out, row)
		}
	}
	return out
}

// find returns the lowest-id row matching keep.
func (t *table[T]) find(ctx context.Context, keep func(*T) bool) (*T, error) {
	rows := t.list(ctx, keep)
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}
	return &rows[0], nil
}

// save inserts row when its id is zero, otherwise replaces the stored copy.
// The caller's struct receives the assigned id and timestamps.
func (t *table[T]) save(ctx context.Context, row *T) error {
	rec := t.rec(row)
	now := t.now()
	if rec.ID == 0 {
		rec.ID = t.seq.Add(1)
		rec.CreatedAt = now
	} else if _, err := t.get(ctx, rec.ID); err != nil {
		return err
	}
	rec.UpdatedAt = now

	if tx := txFrom(ctx); tx != nil {
		if tx.writes[t.tableName] == nil {
			tx.writes[t.tableName] = make(map[int64]any)
		}
		tx.writes[t.tableName][rec.ID] = *row
		return nil
	}

	t.mu.Lock()
	t.rows[rec.ID] = *row
	t.mu.Unlock()
	return nil
}

func active(r *store.Record) bool {
	return !r.IsDeleted()
}
