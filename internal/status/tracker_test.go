package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/scm-mirror/internal/store"
	"github.com/stacklok/scm-mirror/internal/store/memory"
)

func setup(t *testing.T) (*Tracker, store.Store, *store.Repository) {
	t.Helper()

	st := memory.New()
	repo := &store.Repository{OrganizationID: 1, GitHubID: 10, Name: "api"}
	require.NoError(t, st.Repositories().Save(context.Background(), repo))
	return NewTracker(st), st, repo
}

func TestMarkSynced(t *testing.T) {
	t.Parallel()

	tr, st, repo := setup(t)
	ctx := context.Background()
	t1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	require.NoError(t, tr.MarkSynced(ctx, repo, t1, "abc"))
	got, err := st.SyncStatuses().FindByRepository(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.LastSyncedCommitSHA)
	assert.Equal(t, t1, *got.LastSyncedAt)

	require.NoError(t, tr.MarkSynced(ctx, repo, t2, ""))
	got, err = st.SyncStatuses().FindByRepository(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.LastSyncedCommitSHA, "empty sha must keep the watermark")
	assert.Equal(t, t2, *got.LastSyncedAt)
}

func TestMarkFailureKeepsWatermark(t *testing.T) {
	t.Parallel()

	tr, st, repo := setup(t)
	ctx := context.Background()
	synced := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	attempt := synced.Add(time.Hour)

	require.NoError(t, tr.MarkSynced(ctx, repo, synced, "abc"))
	require.NoError(t, tr.MarkFailure(ctx, repo, attempt, "rate limited"))

	got, err := st.SyncStatuses().FindByRepository(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.LastSyncedCommitSHA)
	assert.Equal(t, "rate limited", got.ErrorMessage)
	assert.Equal(t, attempt, *got.LastSyncedAt)

	require.NoError(t, tr.MarkSynced(ctx, repo, attempt.Add(time.Minute), "def"))
	got, err = st.SyncStatuses().FindByRepository(ctx, repo.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ErrorMessage)
	assert.Equal(t, "def", got.LastSyncedCommitSHA)
}

func TestMarkDeletedAndRevive(t *testing.T) {
	t.Parallel()

	tr, st, repo := setup(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, tr.MarkDeleted(ctx, repo, now), "untracked repository is a no-op")
	_, err := st.SyncStatuses().FindByRepository(ctx, repo.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, tr.MarkSynced(ctx, repo, now, "abc"))
	require.NoError(t, tr.MarkDeleted(ctx, repo, now))

	active, err := tr.FindActiveByOrganization(ctx, repo.OrganizationID)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, tr.MarkFailure(ctx, repo, now, "boom"))
	active, err = tr.FindActiveByOrganization(ctx, repo.OrganizationID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "boom", active[0].ErrorMessage)
}

func TestUnsavedRepositoryIsRejected(t *testing.T) {
	t.Parallel()

	tr, _, _ := setup(t)
	err := tr.MarkSynced(context.Background(), &store.Repository{}, time.Now(), "abc")
	require.Error(t, err)
}
