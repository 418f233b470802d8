// Package store defines the persistence model and repository contracts for
// the mirror. Backends live in the memory and postgres subpackages.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by single-row finders when no row matches.
var ErrNotFound = errors.New("not found")

// Store aggregates the per-entity repositories.
//
// Finders that take an external key (GitHub id, SHA, path) return tombstoned
// rows too, so callers can revive them. Methods named Active filter
// tombstoned rows out.
type Store interface {
	Users() Users
	Organizations() Organizations
	Memberships() Memberships
	Repositories() Repositories
	SyncStatuses() SyncStatuses
	PullRequests() PullRequests
	PullRequestFiles() PullRequestFiles
	Commits() Commits
	CommitFiles() CommitFiles

	// InTx runs fn in a unit of work. A nested call joins the outer one.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases backend resources.
	Close()
}

// Users persists GitHub accounts.
type Users interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByGitHubID(ctx context.Context, githubID int64) (*User, error)
	Save(ctx context.Context, u *User) error
}

// Organizations persists registered organizations.
type Organizations interface {
	FindByID(ctx context.Context, id int64) (*Organization, error)
	FindByGitHubID(ctx context.Context, githubID int64) (*Organization, error)
	// ListActiveByUser returns active organizations where userID holds an
	// active membership, ordered by id.
	ListActiveByUser(ctx context.Context, userID int64) ([]Organization, error)
	Save(ctx context.Context, o *Organization) error
}

// Memberships persists organization memberships.
type Memberships interface {
	Find(ctx context.Context, orgID, userID int64) (*Membership, error)
	ListActiveByOrganization(ctx context.Context, orgID int64) ([]Membership, error)
	Save(ctx context.Context, m *Membership) error
}

// Repositories persists organization repositories.
type Repositories interface {
	FindByID(ctx context.Context, id int64) (*Repository, error)
	FindByGitHubID(ctx context.Context, githubID int64) (*Repository, error)
	ListActiveByOrganization(ctx context.Context, orgID int64) ([]Repository, error)
	Save(ctx context.Context, r *Repository) error
}

// SyncStatuses persists per-repository sync watermarks.
type SyncStatuses interface {
	FindByRepository(ctx context.Context, repoID int64) (*RepositorySyncStatus, error)
	// ListActiveByOrganization returns active statuses whose repository is
	// active and belongs to orgID, ordered by repository id.
	ListActiveByOrganization(ctx context.Context, orgID int64) ([]RepositorySyncStatus, error)
	Save(ctx context.Context, s *RepositorySyncStatus) error
}

// PullRequests persists mirrored pull requests.
type PullRequests interface {
	// FindByNumber returns the repository's pull request with the given
	// number, tombstoned or not.
	FindByNumber(ctx context.Context, repoID int64, number int) (*PullRequest, error)
	// Feed returns up to limit active pull requests of the organization's
	// active repositories with id below beforeID (0 means no bound), newest
	// id first.
	Feed(ctx context.Context, orgID, beforeID int64, limit int) ([]PullRequest, error)
	Save(ctx context.Context, pr *PullRequest) error
}

// PullRequestFiles persists files touched by pull requests.
type PullRequestFiles interface {
	FindByPath(ctx context.Context, prID int64, path string) (*PullRequestFile, error)
	ListActiveByPullRequest(ctx context.Context, prID int64) ([]PullRequestFile, error)
	Save(ctx context.Context, f *PullRequestFile) error
}

// Commits persists mirrored commits.
type Commits interface {
	FindBySHA(ctx context.Context, repoID int64, sha string) (*Commit, error)
	// Feed behaves like PullRequests.Feed.
	Feed(ctx context.Context, orgID, beforeID int64, limit int) ([]Commit, error)
	Save(ctx context.Context, c *Commit) error
}

// CommitFiles persists files touched by commits.
type CommitFiles interface {
	FindByPath(ctx context.Context, commitID int64, path string) (*CommitFile, error)
	ListActiveByCommit(ctx context.Context, commitID int64) ([]CommitFile, error)
	Save(ctx context.Context, f *CommitFile) error
}
