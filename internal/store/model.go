package store

import "time"

// Record holds the bookkeeping columns shared by every mirrored entity. Rows
// are never removed; they are tombstoned by setting DeletedAt.
type Record struct {
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IsDeleted reports whether the row is tombstoned.
func (r *Record) IsDeleted() bool {
	return r.DeletedAt != nil
}

// Tombstone marks the row deleted at now. An existing tombstone is kept.
func (r *Record) Tombstone(now time.Time) {
	if r.DeletedAt == nil {
		t := now
		r.DeletedAt = &t
	}
}

// Revive clears the tombstone.
func (r *Record) Revive() {
	r.DeletedAt = nil
}

// User is a GitHub account known to the mirror.
type User struct {
	Record
	GitHubID  int64
	Login     string
	Name      string
	Email     string
	AvatarURL string
	HTMLURL   string
	Type      string
	SiteAdmin bool
}

// Organization is a registered GitHub organization.
type Organization struct {
	Record
	GitHubID       int64
	Login          string
	Name           string
	Description    string
	AvatarURL      string
	HTMLURL        string
	DefaultLinkURL string
	LastSyncedAt   *time.Time
}

// Membership links a user to an organization with a role.
type Membership struct {
	Record
	OrganizationID int64
	UserID         int64
	Role           string
	JoinedAt       time.Time
}

// Roles stored on memberships.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Repository is a repository belonging to an organization.
type Repository struct {
	Record
	OrganizationID int64
	GitHubID       int64
	Name           string
	FullName       string
	OwnerLogin     string
	Description    string
	HTMLURL        string
	Language       string
	Stars          int
	Forks          int
	DefaultBranch  string
	Private        bool
	Archived       bool
}

// RepositorySyncStatus is the per-repository sync watermark.
type RepositorySyncStatus struct {
	Record
	RepositoryID        int64
	LastSyncedAt        *time.Time
	LastSyncedCommitSHA string
	ErrorMessage        string
}

// PullRequest is a mirrored pull request.
type PullRequest struct {
	Record
	RepositoryID    int64
	GitHubID        int64
	Number          int
	Title           string
	Body            string
	State           string
	Merged          bool
	HTMLURL         string
	AuthorID        *int64
	MergedByID      *int64
	Additions       int
	Deletions       int
	ChangedFiles    int
	OpenedAt        *time.Time
	RemoteUpdatedAt *time.Time
	MergedAt        *time.Time
	ClosedAt        *time.Time
}

// FileChange is the content shared by pull request and commit files.
type FileChange struct {
	Path      string
	Extension string
	Status    string
	Additions int
	Deletions int
	Changes   int
	RawURL    string
}

// PullRequestFile is a file touched by a pull request.
type PullRequestFile struct {
	Record
	PullRequestID int64
	FileChange
}

// Commit is a mirrored commit.
type Commit struct {
	Record
	RepositoryID   int64
	SHA            string
	Message        string
	HTMLURL        string
	AuthorName     string
	AuthorEmail    string
	CommitterName  string
	CommitterEmail string
	AuthoredAt     *time.Time
	CommittedAt    *time.Time
	PushedAt       *time.Time
}

// CommitFile is a file touched by a commit.
type CommitFile struct {
	Record
	CommitID int64
	FileChange
}
