// Package memory is an in-process store backend. Data does not survive a
// restart; it is the default backend and the one used by unit tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/stacklok/scm-mirror/internal/store"
	"github.com/stacklok/scm-mirror/internal/txn"
)

// Store is the in-memory implementation of store.Store.
type Store struct {
	mu       sync.RWMutex
	appliers map[string]applier

	users        *table[store.User]
	orgs         *table[store.Organization]
	memberships  *table[store.Membership]
	repos        *table[store.Repository]
	statuses     *table[store.RepositorySyncStatus]
	pullRequests *table[store.PullRequest]
	prFiles      *table[store.PullRequestFile]
	commits      *table[store.Commit]
	commitFiles  *table[store.CommitFile]
}

var _ store.Store = (*Store)(nil)

// Option configures a memory Store
type Option func(*Store)

// New creates an empty memory store
func New(opts ...Option) *Store {
	s := &Store{}
	now := time.Now
	s.users = newTable("users", &s.mu, now, func(r *store.User) *store.Record { return &r.Record })
	s.orgs = newTable("organizations", &s.mu, now, func(r *store.Organization) *store.Record { return &r.Record })
	s.memberships = newTable("memberships", &s.mu, now, func(r *store.Membership) *store.Record { return &r.Record })
	s.repos = newTable("repositories", &s.mu, now, func(r *store.Repository) *store.Record { return &r.Record })
	s.statuses = newTable("repository_sync_statuses", &s.mu, now,
		func(r *store.RepositorySyncStatus) *store.Record { return &r.Record })
	s.pullRequests = newTable("pull_requests", &s.mu, now, func(r *store.PullRequest) *store.Record { return &r.Record })
	s.prFiles = newTable("pull_request_files", &s.mu, now,
		func(r *store.PullRequestFile) *store.Record { return &r.Record })
	s.commits = newTable("commits", &s.mu, now, func(r *store.Commit) *store.Record { return &r.Record })
	s.commitFiles = newTable("commit_files", &s.mu, now, func(r *store.CommitFile) *store.Record { return &r.Record })

	s.appliers = make(map[string]applier)
	for _, a := range []applier{
		s.users, s.orgs, s.memberships, s.repos, s.statuses,
		s.pullRequests, s.prFiles, s.commits, s.commitFiles,
	} {
		s.appliers[a.name()] = a
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithClock overrides the time source used for CreatedAt/UpdatedAt
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.users.now = now
		s.orgs.now = now
		s.memberships.now = now
		s.repos.now = now
		s.statuses.now = now
		s.pullRequests.now = now
		s.prFiles.now = now
		s.commits.now = now
		s.commitFiles.now = now
	}
}

// InTx runs fn against a private overlay that is applied on success and
// discarded on error or panic.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	ctx, scope, owner := txn.Begin(ctx)
	t := &tx{writes: make(map[string]map[int64]any)}
	ctx = context.WithValue(ctx, txKey{}, t)

	committed := false
	if owner {
		defer func() { scope.Complete(committed) }()
	}

	if err := fn(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	for name, rows := range t.writes {
		s.appliers[name].apply(rows)
	}
	s.mu.Unlock()
	committed = true
	return nil
}

// Ping always succeeds.
func (*Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (*Store) Close() {}

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

type users struct{ s *Store }

func (r users) FindByID(ctx context.Context, id int64) (*store.User, error) {
	return r.s.users.get(ctx, id)
}

func (r users) FindByGitHubID(ctx context.Context, githubID int64) (*store.User, error) {
	return r.s.users.find(ctx, func(u *store.User) bool { return u.GitHubID == githubID })
}

func (r users) Save(ctx context.Context, u *store.User) error {
	return r.s.users.save(ctx, u)
}

type organizations struct{ s *Store }

func (r organizations) FindByID(ctx context.Context, id int64) (*store.Organization, error) {
	return r.s.orgs.get(ctx, id)
}

func (r organizations) FindByGitHubID(ctx context.Context, githubID int64) (*store.Organization, error) {
	return r.s.orgs.find(ctx, func(o *store.Organization) bool { return o.GitHubID == githubID })
}

func (r organizations) ListActiveByUser(ctx context.Context, userID int64) ([]store.Organization, error) {
	member := make(map[int64]bool)
	for _, m := range r.s.memberships.list(ctx, func(m *store.Membership) bool {
		return m.UserID == userID && active(&m.Record)
	}) {
		member[m.OrganizationID] = true
	}
	return r.s.orgs.list(ctx, func(o *store.Organization) bool {
		return member[o.ID] && active(&o.Record)
	}), nil
}

func (r organizations) Save(ctx context.Context, o *store.Organization) error {
	return r.s.orgs.save(ctx, o)
}

type memberships struct{ s *Store }

func (r memberships) Find(ctx context.Context, orgID, userID int64) (*store.Membership, error) {
	return r.s.memberships.find(ctx, func(m *store.Membership) bool {
		return m.OrganizationID == orgID && m.UserID == userID
	})
}

func (r memberships) ListActiveByOrganization(ctx context.Context, orgID int64) ([]store.Membership, error) {
	return r.s.memberships.list(ctx, func(m *store.Membership) bool {
		return m.OrganizationID == orgID && active(&m.Record)
	}), nil
}

func (r memberships) Save(ctx context.Context, m *store.Membership) error {
	return r.s.memberships.save(ctx, m)
}

type repositories struct{ s *Store }

func (r repositories) FindByID(ctx context.Context, id int64) (*store.Repository, error) {
	return r.s.repos.get(ctx, id)
}

func (r repositories) FindByGitHubID(ctx context.Context, githubID int64) (*store.Repository, error) {
	return r.s.repos.find(ctx, func(repo *store.Repository) bool { return repo.GitHubID == githubID })
}

func (r repositories) ListActiveByOrganization(ctx context.Context, orgID int64) ([]store.Repository, error) {
	return r.s.activeRepos(ctx, orgID), nil
}

func (r repositories) Save(ctx context.Context, repo *store.Repository) error {
	return r.s.repos.save(ctx, repo)
}

func (s *Store) activeRepos(ctx context.Context, orgID int64) []store.Repository {
	return s.repos.list(ctx, func(repo *store.Repository) bool {
		return repo.OrganizationID == orgID && active(&repo.Record)
	})
}

func (s *Store) activeRepoIDs(ctx context.Context, orgID int64) map[int64]bool {
	ids := make(map[int64]bool)
	for _, repo := range s.activeRepos(ctx, orgID) {
		ids[repo.ID] = true
	}
	return ids
}

type syncStatuses struct{ s *Store }

func (r syncStatuses) FindByRepository(ctx context.Context, repoID int64) (*store.RepositorySyncStatus, error) {
	return r.s.statuses.find(ctx, func(st *store.RepositorySyncStatus) bool { return st.RepositoryID == repoID })
}

func (r syncStatuses) ListActiveByOrganization(ctx context.Context, orgID int64) ([]store.RepositorySyncStatus, error) {
	repoIDs := r.s.activeRepoIDs(ctx, orgID)
	out := r.s.statuses.list(ctx, func(st *store.RepositorySyncStatus) bool {
		return repoIDs[st.RepositoryID] && active(&st.Record)
	})
	slices.SortStableFunc(out, func(a, b store.RepositorySyncStatus) int {
		return cmp.Compare(a.RepositoryID, b.RepositoryID)
	})
	return out, nil
}

func (r syncStatuses) Save(ctx context.Context, st *store.RepositorySyncStatus) error {
	return r.s.statuses.save(ctx, st)
}

type pullRequests struct{ s *Store }

func (r pullRequests) FindByNumber(ctx context.Context, repoID int64, number int) (*store.PullRequest, error) {
	return r.s.pullRequests.find(ctx, func(pr *store.PullRequest) bool {
		return pr.RepositoryID == repoID && pr.Number == number
	})
}

func (r pullRequests) Feed(ctx context.Context, orgID, beforeID int64, limit int) ([]store.PullRequest, error) {
	repoIDs := r.s.activeRepoIDs(ctx, orgID)
	rows := r.s.pullRequests.list(ctx, func(pr *store.PullRequest) bool {
		return repoIDs[pr.RepositoryID] && active(&pr.Record) && (beforeID <= 0 || pr.ID < beforeID)
	})
	return newestFirst(rows, limit), nil
}

func (r pullRequests) Save(ctx context.Context, pr *store.PullRequest) error {
	return r.s.pullRequests.save(ctx, pr)
}

type pullRequestFiles struct{ s *Store }

func (r pullRequestFiles) FindByPath(ctx context.Context, prID int64, path string) (*store.PullRequestFile, error) {
	return r.s.prFiles.find(ctx, func(f *store.PullRequestFile) bool {
		return f.PullRequestID == prID && f.Path == path
	})
}

func (r pullRequestFiles) ListActiveByPullRequest(ctx context.Context, prID int64) ([]store.PullRequestFile, error) {
	return r.s.prFiles.list(ctx, func(f *store.PullRequestFile) bool {
		return f.PullRequestID == prID && active(&f.Record)
	}), nil
}

func (r pullRequestFiles) Save(ctx context.Context, f *store.PullRequestFile) error {
	return r.s.prFiles.save(ctx, f)
}

type commits struct{ s *Store }

func (r commits) FindBySHA(ctx context.Context, repoID int64, sha string) (*store.Commit, error) {
	return r.s.commits.find(ctx, func(c *store.Commit) bool { return c.RepositoryID == repoID && c.SHA == sha })
}

func (r commits) Feed(ctx context.Context, orgID, beforeID int64, limit int) ([]store.Commit, error) {
	repoIDs := r.s.activeRepoIDs(ctx, orgID)
	rows := r.s.commits.list(ctx, func(c *store.Commit) bool {
		return repoIDs[c.RepositoryID] && active(&c.Record) && (beforeID <= 0 || c.ID < beforeID)
	})
	return newestFirst(rows, limit), nil
}

func (r commits) Save(ctx context.Context, c *store.Commit) error {
	return r.s.commits.save(ctx, c)
}

type commitFiles struct{ s *Store }

func (r commitFiles) FindByPath(ctx context.Context, commitID int64, path string) (*store.CommitFile, error) {
	return r.s.commitFiles.find(ctx, func(f *store.CommitFile) bool {
		return f.CommitID == commitID && f.Path == path
	})
}

func (r commitFiles) ListActiveByCommit(ctx context.Context, commitID int64) ([]store.CommitFile, error) {
	return r.s.commitFiles.list(ctx, func(f *store.CommitFile) bool {
		return f.CommitID == commitID && active(&f.Record)
	}), nil
}

func (r commitFiles) Save(ctx context.Context, f *store.CommitFile) error {
	return r.s.commitFiles.save(ctx, f)
}

// newestFirst reverses id-ordered rows and truncates to limit.
func newestFirst[T any](rows []T, limit int) []T {
	slices.Reverse(rows)
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}
