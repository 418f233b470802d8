package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/scm-mirror/internal/txn"
)

func TestRunSerializesSameKey(t *testing.T) {
	t.Parallel()

	m := NewManager()
	var active, peak atomic.Int32
	var wg sync.WaitGroup

	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Run(context.Background(), "organization:1", func(context.Context) error {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	assert.Equal(t, 0, m.Len())
}

func TestRunDistinctKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	m := NewManager()
	held := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = m.Run(context.Background(), "organization:1", func(context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	err := m.Run(context.Background(), "organization:2", func(context.Context) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
	close(done)
}

func TestCallReturnsValueAndError(t *testing.T) {
	t.Parallel()

	m := NewManager()

	v, err := Call(context.Background(), m, "k", func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	_, err = Call(context.Background(), m, "k", func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Len())
}

func TestEmptyKey(t *testing.T) {
	t.Parallel()

	err := NewManager().Run(context.Background(), "", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestReleaseOnPanic(t *testing.T) {
	t.Parallel()

	m := NewManager()
	assert.Panics(t, func() {
		_ = m.Run(context.Background(), "k", func(context.Context) error {
			panic("boom")
		})
	})
	assert.Equal(t, 0, m.Len())

	require.NoError(t, m.Run(context.Background(), "k", func(context.Context) error { return nil }))
}

func TestWaiterHonoursCancellation(t *testing.T) {
	t.Parallel()

	m := NewManager()
	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = m.Run(context.Background(), "k", func(context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := m.Run(ctx, "k", func(context.Context) error {
		t.Error("must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(done)
	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, time.Millisecond)
}

func TestReleaseDeferredUntilScopeCompletes(t *testing.T) {
	t.Parallel()

	m := NewManager()
	ctx, scope, _ := txn.Begin(context.Background())

	require.NoError(t, m.Run(ctx, "k", func(context.Context) error { return nil }))
	assert.Equal(t, 1, m.Len())

	acquired := make(chan struct{})
	go func() {
		_ = m.Run(context.Background(), "k", func(context.Context) error {
			close(acquired)
			return nil
		})
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired before the unit of work completed")
	case <-time.After(20 * time.Millisecond):
	}

	scope.Complete(true)
	<-acquired
	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, time.Millisecond)
}

func TestKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "organization:7", OrganizationKey(7))
	assert.Equal(t, "repository:42", RepositoryKey(42))
}
