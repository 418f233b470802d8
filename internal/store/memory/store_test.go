package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/scm-mirror/internal/store"
	"github.com/stacklok/scm-mirror/internal/txn"
)

func TestSaveAssignsIDsAndTimestamps(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	u := &store.User{GitHubID: 1, Login: "alice"}
	require.NoError(t, s.Users().Save(ctx, u))
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, now, u.CreatedAt)
	assert.Equal(t, now, u.UpdatedAt)

	now = now.Add(time.Hour)
	u.Name = "Alice"
	require.NoError(t, s.Users().Save(ctx, u))
	assert.Equal(t, int64(1), u.ID)

	got, err := s.Users().FindByGitHubID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
	assert.Equal(t, now, got.UpdatedAt)
	assert.NotEqual(t, got.CreatedAt, got.UpdatedAt)

	_, err = s.Users().FindByGitHubID(ctx, 2)
	assert.ErrorIs(t, err, store.ErrNotFound)

	missing := &store.User{Record: store.Record{ID: 99}}
	assert.ErrorIs(t, s.Users().Save(ctx, missing), store.ErrNotFound)
}

func TestReturnedRowsAreCopies(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	repo := &store.Repository{OrganizationID: 1, GitHubID: 10, Name: "api"}
	require.NoError(t, s.Repositories().Save(ctx, repo))

	got, err := s.Repositories().FindByID(ctx, repo.ID)
	require.NoError(t, err)
	got.Name = "changed"

	again, err := s.Repositories().FindByID(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, "api", again.Name)
}

func TestInTx(t *testing.T) {
	t.Parallel()

	t.Run("commit makes writes visible", func(t *testing.T) {
		t.Parallel()

		s := New()
		ctx := context.Background()

		err := s.InTx(ctx, func(ctx context.Context) error {
			org := &store.Organization{GitHubID: 1, Login: "acme"}
			require.NoError(t, s.Organizations().Save(ctx, org))

			inside, err := s.Organizations().FindByGitHubID(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, org.ID, inside.ID)

			_, err = s.Organizations().FindByGitHubID(context.Background(), 1)
			assert.ErrorIs(t, err, store.ErrNotFound, "uncommitted write leaked")
			return nil
		})
		require.NoError(t, err)

		_, err = s.Organizations().FindByGitHubID(ctx, 1)
		require.NoError(t, err)
	})

	t.Run("error rolls back", func(t *testing.T) {
		t.Parallel()

		s := New()
		ctx := context.Background()
		boom := errors.New("boom")

		err := s.InTx(ctx, func(ctx context.Context) error {
			require.NoError(t, s.Users().Save(ctx, &store.User{GitHubID: 1}))
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = s.Users().FindByGitHubID(ctx, 1)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("panic rolls back and completes the scope", func(t *testing.T) {
		t.Parallel()

		s := New()
		var completed, committed bool

		assert.Panics(t, func() {
			_ = s.InTx(context.Background(), func(ctx context.Context) error {
				txn.FromContext(ctx).AfterCompletion(func(c bool) {
					completed = true
					committed = c
				})
				require.NoError(t, s.Users().Save(ctx, &store.User{GitHubID: 1}))
				panic("boom")
			})
		})

		assert.True(t, completed)
		assert.False(t, committed)
		_, err := s.Users().FindByGitHubID(context.Background(), 1)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("nested call joins outer unit of work", func(t *testing.T) {
		t.Parallel()

		s := New()
		ctx := context.Background()
		var callbacks []bool

		err := s.InTx(ctx, func(ctx context.Context) error {
			outer := txn.FromContext(ctx)
			return s.InTx(ctx, func(ctx context.Context) error {
				assert.Same(t, outer, txn.FromContext(ctx))
				txn.FromContext(ctx).AfterCompletion(func(c bool) { callbacks = append(callbacks, c) })
				return s.Users().Save(ctx, &store.User{GitHubID: 5})
			})
		})
		require.NoError(t, err)
		assert.Equal(t, []bool{true}, callbacks)
	})
}

func TestActiveQueries(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	deletedAt := time.Now()

	org := &store.Organization{GitHubID: 1, Login: "acme"}
	other := &store.Organization{GitHubID: 2, Login: "other"}
	require.NoError(t, s.Organizations().Save(ctx, org))
	require.NoError(t, s.Organizations().Save(ctx, other))

	alice := &store.User{GitHubID: 10, Login: "alice"}
	require.NoError(t, s.Users().Save(ctx, alice))
	require.NoError(t, s.Memberships().Save(ctx, &store.Membership{OrganizationID: org.ID, UserID: alice.ID, Role: store.RoleAdmin}))
	gone := &store.Membership{OrganizationID: other.ID, UserID: alice.ID, Role: store.RoleMember}
	gone.Tombstone(deletedAt)
	require.NoError(t, s.Memberships().Save(ctx, gone))

	orgs, err := s.Organizations().ListActiveByUser(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "acme", orgs[0].Login)

	found, err := s.Memberships().Find(ctx, other.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, found.IsDeleted())

	live := &store.Repository{OrganizationID: org.ID, GitHubID: 100, Name: "live"}
	dead := &store.Repository{OrganizationID: org.ID, GitHubID: 101, Name: "dead"}
	dead.Tombstone(deletedAt)
	require.NoError(t, s.Repositories().Save(ctx, live))
	require.NoError(t, s.Repositories().Save(ctx, dead))

	repos, err := s.Repositories().ListActiveByOrganization(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, repos, 1)
	assert.Equal(t, "live", repos[0].Name)

	require.NoError(t, s.SyncStatuses().Save(ctx, &store.RepositorySyncStatus{RepositoryID: dead.ID}))
	require.NoError(t, s.SyncStatuses().Save(ctx, &store.RepositorySyncStatus{RepositoryID: live.ID, LastSyncedCommitSHA: "abc"}))
	statuses, err := s.SyncStatuses().ListActiveByOrganization(ctx, org.ID)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "abc", statuses[0].LastSyncedCommitSHA)
}

func TestFeeds(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	repo := &store.Repository{OrganizationID: 1, GitHubID: 100, Name: "api"}
	foreign := &store.Repository{OrganizationID: 2, GitHubID: 200, Name: "elsewhere"}
	require.NoError(t, s.Repositories().Save(ctx, repo))
	require.NoError(t, s.Repositories().Save(ctx, foreign))

	var ids []int64
	for i := range 5 {
		pr := &store.PullRequest{RepositoryID: repo.ID, GitHubID: int64(1000 + i), Number: i + 1}
		require.NoError(t, s.PullRequests().Save(ctx, pr))
		ids = append(ids, pr.ID)
	}
	require.NoError(t, s.PullRequests().Save(ctx, &store.PullRequest{RepositoryID: foreign.ID, GitHubID: 9999}))
	hidden := &store.PullRequest{RepositoryID: repo.ID, GitHubID: 2000}
	hidden.Tombstone(time.Now())
	require.NoError(t, s.PullRequests().Save(ctx, hidden))

	page, err := s.PullRequests().Feed(ctx, 1, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	page, err = s.PullRequests().Feed(ctx, 1, page[1].ID, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, ids[0], page[2].ID)

	c := &store.Commit{RepositoryID: repo.ID, SHA: "abc"}
	require.NoError(t, s.Commits().Save(ctx, c))
	commits, err := s.Commits().Feed(ctx, 1, 0, 10)
	require.NoError(t, err)
	require.Len(t, commits, 1)

	bySHA, err := s.Commits().FindBySHA(ctx, repo.ID, "abc")
	require.NoError(t, err)
	assert.Equal(t, c.ID, bySHA.ID)

	byNumber, err := s.PullRequests().FindByNumber(ctx, repo.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, ids[2], byNumber.ID)
	_, err = s.PullRequests().FindByNumber(ctx, foreign.ID, 3)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFiles(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	f := &store.PullRequestFile{PullRequestID: 1, FileChange: store.FileChange{Path: "a.go", Extension: "go"}}
	require.NoError(t, s.PullRequestFiles().Save(ctx, f))
	f.Tombstone(time.Now())
	require.NoError(t, s.PullRequestFiles().Save(ctx, f))

	listed, err := s.PullRequestFiles().ListActiveByPullRequest(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, listed)

	found, err := s.PullRequestFiles().FindByPath(ctx, 1, "a.go")
	require.NoError(t, err)
	assert.True(t, found.IsDeleted())

	cf := &store.CommitFile{CommitID: 7, FileChange: store.FileChange{Path: "b.md"}}
	require.NoError(t, s.CommitFiles().Save(ctx, cf))
	active, err := s.CommitFiles().ListActiveByCommit(ctx, 7)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "b.md", active[0].Path)
}

func TestRecordHelpers(t *testing.T) {
	t.Parallel()

	var r store.Record
	assert.False(t, r.IsDeleted())

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.Tombstone(first)
	r.Tombstone(first.Add(time.Hour))
	require.NotNil(t, r.DeletedAt)
	assert.Equal(t, first, *r.DeletedAt)

	r.Revive()
	assert.False(t, r.IsDeleted())
}
