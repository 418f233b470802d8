package v1

import (
	"time"

	"github.com/stacklok/scm-mirror/internal/jobs"
	"github.com/stacklok/scm-mirror/internal/service"
	"github.com/stacklok/scm-mirror/internal/store"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string `json:"status" example:"ready"`
}

// RegisterOrganizationRequest is the body of POST /organizations
type RegisterOrganizationRequest struct {
	Login          string `json:"login"`
	DefaultLinkURL string `json:"default_link_url,omitempty"`
}

// OrganizationResponse is a registered organization
type OrganizationResponse struct {
	ID             int64      `json:"id"`
	GitHubID       int64      `json:"github_id"`
	Login          string     `json:"login"`
	Name           string     `json:"name,omitempty"`
	Description    string     `json:"description,omitempty"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	HTMLURL        string     `json:"html_url,omitempty"`
	DefaultLinkURL string     `json:"default_link_url,omitempty"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
}

// JobResponse is a snapshot of a background job
type JobResponse struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// OrganizationSyncJobResponse is a sync job started for one of the caller's
// organizations
type OrganizationSyncJobResponse struct {
	OrganizationID    int64       `json:"organization_id"`
	OrganizationLogin string      `json:"organization_login"`
	Job               JobResponse `json:"job"`
}

// SyncStatusResponse is the sync watermark of one repository
type SyncStatusResponse struct {
	RepositoryID        int64      `json:"repository_id"`
	RepositoryFullName  string     `json:"repository_full_name"`
	LastSyncedAt        *time.Time `json:"last_synced_at,omitempty"`
	LastSyncedCommitSHA string     `json:"last_synced_commit_sha,omitempty"`
	ErrorMessage        string     `json:"error_message,omitempty"`
}

// PullRequestResponse is one pull request feed entry
type PullRequestResponse struct {
	ID           int64      `json:"id"`
	RepositoryID int64      `json:"repository_id"`
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	State        string     `json:"state"`
	Merged       bool       `json:"merged"`
	HTMLURL      string     `json:"html_url,omitempty"`
	AuthorID     *int64     `json:"author_id,omitempty"`
	MergedByID   *int64     `json:"merged_by_id,omitempty"`
	Additions    int        `json:"additions"`
	Deletions    int        `json:"deletions"`
	ChangedFiles int        `json:"changed_files"`
	OpenedAt     *time.Time `json:"opened_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	MergedAt     *time.Time `json:"merged_at,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
}

// CommitResponse is one commit feed entry
type CommitResponse struct {
	ID            int64      `json:"id"`
	RepositoryID  int64      `json:"repository_id"`
	SHA           string     `json:"sha"`
	Message       string     `json:"message"`
	HTMLURL       string     `json:"html_url,omitempty"`
	AuthorName    string     `json:"author_name,omitempty"`
	AuthorEmail   string     `json:"author_email,omitempty"`
	CommitterName string     `json:"committer_name,omitempty"`
	AuthoredAt    *time.Time `json:"authored_at,omitempty"`
	CommittedAt   *time.Time `json:"committed_at,omitempty"`
}

// PageResponse is one page of a feed. NextCursor is omitted on the last page.
type PageResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func newOrganizationResponse(o store.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:             o.ID,
		GitHubID:       o.GitHubID,
		Login:          o.Login,
		Name:           o.Name,
		Description:    o.Description,
		AvatarURL:      o.AvatarURL,
		HTMLURL:        o.HTMLURL,
		DefaultLinkURL: o.DefaultLinkURL,
		LastSyncedAt:   o.LastSyncedAt,
	}
}

func newJobResponse(j jobs.Job) JobResponse {
	return JobResponse{
		ID:           j.ID,
		Type:         j.Type,
		Status:       string(j.Status),
		Progress:     j.Progress,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
		ErrorMessage: j.ErrorMessage,
	}
}

func newSyncStatusResponse(s service.RepositorySyncStatus) SyncStatusResponse {
	return SyncStatusResponse{
		RepositoryID:        s.RepositoryID,
		RepositoryFullName:  s.RepositoryFullName,
		LastSyncedAt:        s.LastSyncedAt,
		LastSyncedCommitSHA: s.LastSyncedCommitSHA,
		ErrorMessage:        s.ErrorMessage,
	}
}

func newPullRequestResponse(pr store.PullRequest) PullRequestResponse {
	return PullRequestResponse{
		ID:           pr.ID,
		RepositoryID: pr.RepositoryID,
		Number:       pr.Number,
		Title:        pr.Title,
		State:        pr.State,
		Merged:       pr.Merged,
		HTMLURL:      pr.HTMLURL,
		AuthorID:     pr.AuthorID,
		MergedByID:   pr.MergedByID,
		Additions:    pr.Additions,
		Deletions:    pr.Deletions,
		ChangedFiles: pr.ChangedFiles,
		OpenedAt:     pr.OpenedAt,
		UpdatedAt:    pr.RemoteUpdatedAt,
		MergedAt:     pr.MergedAt,
		ClosedAt:     pr.ClosedAt,
	}
}

func newCommitResponse(c store.Commit) CommitResponse {
	return CommitResponse{
		ID:            c.ID,
		RepositoryID:  c.RepositoryID,
		SHA:           c.SHA,
		Message:       c.Message,
		HTMLURL:       c.HTMLURL,
		AuthorName:    c.AuthorName,
		AuthorEmail:   c.AuthorEmail,
		CommitterName: c.CommitterName,
		AuthoredAt:    c.AuthoredAt,
		CommittedAt:   c.CommittedAt,
	}
}

func mapPage[T, R any](p *service.Page[T], conv func(T) R) PageResponse[R] {
	items := make([]R, 0, len(p.Items))
	for _, item := range p.Items {
		items = append(items, conv(item))
	}
	return PageResponse[R]{Items: items, NextCursor: p.NextCursor}
}
