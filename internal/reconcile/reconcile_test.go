package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	id      int
	key     string
	value   string
	deleted bool
}

type item struct {
	key   string
	value string
}

// table is a tiny fake store recording every callback.
type table struct {
	rows    []*row
	nextID  int
	calls   []string
	failOn  string
	failErr error
}

func (tb *table) active() []*row {
	var out []*row
	for _, r := range tb.rows {
		if !r.deleted {
			out = append(out, r)
		}
	}
	return out
}

func (tb *table) spec() Spec[*row, item, string] {
	return Spec[*row, item, string]{
		LocalKey: func(r *row) (string, bool) { return r.key, r.key != "" },
		RemoteKey: func(i item) (string, bool) {
			return i.key, i.key != ""
		},
		Update: func(_ context.Context, r *row, i item) error {
			tb.calls = append(tb.calls, "update:"+i.key)
			if tb.failOn == "update:"+i.key {
				return tb.failErr
			}
			r.value = i.value
			return nil
		},
		Insert: func(_ context.Context, i item) error {
			tb.calls = append(tb.calls, "insert:"+i.key)
			if tb.failOn == "insert:"+i.key {
				return tb.failErr
			}
			tb.nextID++
			tb.rows = append(tb.rows, &row{id: tb.nextID, key: i.key, value: i.value})
			return nil
		},
		Tombstone: func(_ context.Context, r *row) error {
			tb.calls = append(tb.calls, "tombstone:"+r.key)
			r.deleted = true
			return nil
		},
	}
}

func (tb *table) seed(keys ...string) {
	for _, k := range keys {
		tb.nextID++
		tb.rows = append(tb.rows, &row{id: tb.nextID, key: k, value: "old-" + k})
	}
}

func TestRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		seed       []string
		incoming   []item
		want       Result
		wantActive map[string]string
	}{
		{
			name:       "empty everything",
			want:       Result{},
			wantActive: map[string]string{},
		},
		{
			name:       "inserts into empty table",
			incoming:   []item{{"a", "1"}, {"b", "2"}},
			want:       Result{Inserted: 2},
			wantActive: map[string]string{"a": "1", "b": "2"},
		},
		{
			name:       "updates, inserts and tombstones",
			seed:       []string{"a", "b", "c"},
			incoming:   []item{{"b", "2"}, {"d", "4"}},
			want:       Result{Inserted: 1, Updated: 1, Tombstoned: 2},
			wantActive: map[string]string{"b": "2", "d": "4"},
		},
		{
			name:       "empty snapshot tombstones every row",
			seed:       []string{"a", "b"},
			want:       Result{Tombstoned: 2},
			wantActive: map[string]string{},
		},
		{
			name:       "items without key are skipped",
			seed:       []string{"a"},
			incoming:   []item{{"", "x"}, {"a", "1"}},
			want:       Result{Updated: 1, Skipped: 1},
			wantActive: map[string]string{"a": "1"},
		},
		{
			name:       "repeated upstream key applies first occurrence",
			incoming:   []item{{"a", "1"}, {"a", "2"}},
			want:       Result{Inserted: 1, Skipped: 1},
			wantActive: map[string]string{"a": "1"},
		},
		{
			name:       "duplicate local rows collapse to one",
			seed:       []string{"a", "a"},
			incoming:   []item{{"a", "1"}},
			want:       Result{Updated: 1, Tombstoned: 1},
			wantActive: map[string]string{"a": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tb := &table{}
			tb.seed(tt.seed...)

			got, err := Run(context.Background(), tb.spec(), tb.active(), tt.incoming)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			active := map[string]string{}
			for _, r := range tb.active() {
				active[r.key] = r.value
			}
			assert.Equal(t, tt.wantActive, active)
		})
	}
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	tb := &table{}
	tb.seed("a", "b")
	incoming := []item{{"b", "2"}, {"c", "3"}}

	_, err := Run(context.Background(), tb.spec(), tb.active(), incoming)
	require.NoError(t, err)
	rowsAfterFirst := len(tb.rows)

	second, err := Run(context.Background(), tb.spec(), tb.active(), incoming)
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 2}, second)
	assert.Len(t, tb.rows, rowsAfterFirst)
}

func TestRunLeavesRowsWithoutKey(t *testing.T) {
	t.Parallel()

	tb := &table{}
	tb.rows = []*row{{id: 1, key: "", value: "orphan"}}

	got, err := Run(context.Background(), tb.spec(), tb.active(), nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, got)
	assert.False(t, tb.rows[0].deleted)
}

func TestRunStopsAtFirstError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tb := &table{failOn: "insert:b", failErr: boom}
	tb.seed("z")

	got, err := Run(context.Background(), tb.spec(), tb.active(), []item{{"a", "1"}, {"b", "2"}, {"c", "3"}})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Result{Inserted: 1}, got)
	assert.Equal(t, []string{"insert:a", "insert:b"}, tb.calls)
	assert.False(t, tb.rows[0].deleted, "tombstoning must not run after a failure")
}

func TestRunRejectsIncompleteSpec(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), Spec[*row, item, string]{}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LocalKey is required")
	assert.Contains(t, err.Error(), "Tombstone is required")
}

func TestResult(t *testing.T) {
	t.Parallel()

	assert.False(t, Result{Skipped: 3}.Changed())
	assert.True(t, Result{Tombstoned: 1}.Changed())
	assert.Equal(t, Result{Inserted: 2, Updated: 1, Tombstoned: 1, Skipped: 1},
		Result{Inserted: 1, Updated: 1}.Add(Result{Inserted: 1, Tombstoned: 1, Skipped: 1}))
}
