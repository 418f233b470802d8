package github

import "time"

// User is a GitHub account as returned by /user and embedded in payloads.
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
	Type      string `json:"type"`
	SiteAdmin bool   `json:"site_admin"`
}

// Organization is a GitHub organization.
type Organization struct {
	ID          int64  `json:"id"`
	Login       string `json:"login"`
	Name        string `json:"name"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
}

// Repository is a repository owned by an organization.
type Repository struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Owner           *User  `json:"owner"`
	Description     string `json:"description"`
	HTMLURL         string `json:"html_url"`
	Language        string `json:"language"`
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	DefaultBranch   string `json:"default_branch"`
	Private         bool   `json:"private"`
	Archived        bool   `json:"archived"`
}

// OwnerLogin returns the login of the repository owner, if known.
func (r Repository) OwnerLogin() string {
	if r.Owner == nil {
		return ""
	}
	return r.Owner.Login
}

// Member is an organization member.
type Member struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
	Type      string `json:"type"`
	SiteAdmin bool   `json:"site_admin"`
}

// PullRequestSummary is an entry of the pull request listing.
type PullRequestSummary struct {
	ID        int64      `json:"id"`
	Number    int        `json:"number"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// PullRequest is the detailed view of a single pull request.
type PullRequest struct {
	ID           int64      `json:"id"`
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	State        string     `json:"state"`
	Merged       bool       `json:"merged"`
	HTMLURL      string     `json:"html_url"`
	User         *User      `json:"user"`
	MergedBy     *User      `json:"merged_by"`
	Additions    int        `json:"additions"`
	Deletions    int        `json:"deletions"`
	ChangedFiles int        `json:"changed_files"`
	CreatedAt    *time.Time `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at"`
	MergedAt     *time.Time `json:"merged_at"`
	ClosedAt     *time.Time `json:"closed_at"`
}

// File is a file touched by a pull request or commit.
type File struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
	RawURL    string `json:"raw_url"`
}

// Signature is the author or committer block of a git commit.
type Signature struct {
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Date  *time.Time `json:"date"`
}

// GitCommit is the git-level part of a commit payload.
type GitCommit struct {
	Message   string     `json:"message"`
	Author    *Signature `json:"author"`
	Committer *Signature `json:"committer"`
}

// Commit is a commit as returned by the commit listing and detail endpoints.
// Files is only populated by GetCommit.
type Commit struct {
	SHA     string     `json:"sha"`
	HTMLURL string     `json:"html_url"`
	Commit  *GitCommit `json:"commit"`
	Files   []File     `json:"files"`
}

// Message returns the commit message, if present.
func (c Commit) Message() string {
	if c.Commit == nil {
		return ""
	}
	return c.Commit.Message
}

// Author returns the author signature, if present.
func (c Commit) Author() Signature {
	if c.Commit == nil || c.Commit.Author == nil {
		return Signature{}
	}
	return *c.Commit.Author
}

// Committer returns the committer signature, if present.
func (c Commit) Committer() Signature {
	if c.Commit == nil || c.Commit.Committer == nil {
		return Signature{}
	}
	return *c.Commit.Committer
}
