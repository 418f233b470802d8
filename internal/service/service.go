// Package service provides the business logic of the mirror API
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stacklok/scm-mirror/internal/jobs"
	"github.com/stacklok/scm-mirror/internal/store"
	"github.com/stacklok/scm-mirror/internal/validators"
)

var (
	// ErrValidation is returned when a request is malformed
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a resource does not exist or is not visible
	// to the caller
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller lacks the required role
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when a resource already exists
	ErrConflict = errors.New("conflict")
)

// Job types submitted by the service.
const (
	JobTypeSyncOrganization   = "job-sync-org"
	JobTypeSyncRepository     = "job-sync-prs"
	JobTypeDeleteOrganization = "job-delete-org"
	JobTypeDeleteUser         = "job-delete-user"
)

const (
	// DefaultPageSize is the feed page size when none is requested
	DefaultPageSize = 20
	// MaxPageSize caps the feed page size
	MaxPageSize = 100
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go MirrorService

// MirrorService defines the operations exposed by the mirror API
type MirrorService interface {
	// CheckReadiness checks if the backing store is reachable
	CheckReadiness(ctx context.Context) error

	// ListOrganizations returns the active organizations the caller belongs to
	ListOrganizations(ctx context.Context, p Principal) ([]store.Organization, error)

	// RegisterOrganization registers a GitHub organization and makes the caller a member
	RegisterOrganization(
		ctx context.Context, p Principal, opts ...Option[RegisterOrganizationOptions],
	) (*store.Organization, error)

	// SyncMyOrganizations registers every GitHub organization visible to the
	// caller's token and starts a sync job for each
	SyncMyOrganizations(ctx context.Context, p Principal) ([]OrganizationSyncJob, error)

	// DeleteUser tombstones the caller and their memberships in the background
	DeleteUser(ctx context.Context, p Principal) (jobs.Job, error)

	// DeleteOrganization tombstones an organization in the background
	DeleteOrganization(ctx context.Context, p Principal, orgID int64) (jobs.Job, error)

	// TriggerOrganizationSync starts a background organization sync
	TriggerOrganizationSync(ctx context.Context, p Principal, orgID int64) (jobs.Job, error)

	// TriggerRepositorySync starts a background repository sync
	TriggerRepositorySync(ctx context.Context, p Principal, repoID int64) (jobs.Job, error)

	// ListRepositorySyncStatus returns the sync watermark of every active repository
	ListRepositorySyncStatus(ctx context.Context, p Principal, orgID int64) ([]RepositorySyncStatus, error)

	// GetJob returns a snapshot of a submitted job
	GetJob(ctx context.Context, id string) (jobs.Job, error)

	// PullRequestFeed pages through the organization's pull requests, newest first
	PullRequestFeed(
		ctx context.Context, p Principal, orgID int64, opts ...Option[FeedOptions],
	) (*Page[store.PullRequest], error)

	// CommitFeed pages through the organization's commits, newest first
	CommitFeed(ctx context.Context, p Principal, orgID int64, opts ...Option[FeedOptions]) (*Page[store.Commit], error)
}

// Principal is the authenticated caller.
type Principal struct {
	User  store.User
	Token string
}

// OrganizationSyncJob pairs an organization with the sync job started for it
type OrganizationSyncJob struct {
	OrganizationID    int64
	OrganizationLogin string
	Job               jobs.Job
}

// RepositorySyncStatus is the sync watermark of one repository
type RepositorySyncStatus struct {
	RepositoryID        int64
	RepositoryFullName  string
	LastSyncedAt        *time.Time
	LastSyncedCommitSHA string
	ErrorMessage        string
}

// Page is one page of a feed. NextCursor is empty on the last page.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// Option is a function that sets an option for the RegisterOrganization,
// PullRequestFeed or CommitFeed operation
type Option[T RegisterOrganizationOptions | FeedOptions] func(*T) error

// RegisterOrganizationOptions is the options for the RegisterOrganization operation
type RegisterOrganizationOptions struct {
	Login          string
	DefaultLinkURL string
}

// FeedOptions is the options for the PullRequestFeed and CommitFeed operations
type FeedOptions struct {
	// BeforeID excludes rows with an id at or above it; 0 means no bound.
	BeforeID int64
	Limit    int
}

// WithLogin sets the organization login for the RegisterOrganization operation
func WithLogin(login string) Option[RegisterOrganizationOptions] {
	return func(o *RegisterOrganizationOptions) error {
		if strings.TrimSpace(login) == "" {
			return fmt.Errorf("%w: 'login' must not be blank", ErrValidation)
		}
		valid, err := validators.ValidateLogin(login)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrValidation, err)
		}
		o.Login = valid
		return nil
	}
}

// WithDefaultLinkURL sets the default link for the RegisterOrganization operation
func WithDefaultLinkURL(link string) Option[RegisterOrganizationOptions] {
	return func(o *RegisterOrganizationOptions) error {
		valid, err := validators.ValidateLinkURL(link)
		if err != nil {
			return fmt.Errorf("%w: 'default_link_url': %w", ErrValidation, err)
		}
		o.DefaultLinkURL = valid
		return nil
	}
}

// WithCursor sets the cursor for a feed operation
func WithCursor(cursor string) Option[FeedOptions] {
	return func(o *FeedOptions) error {
		id, err := DecodeCursor(cursor)
		if err != nil {
			return err
		}
		o.BeforeID = id
		return nil
	}
}

// WithLimit sets the page size for a feed operation
func WithLimit(limit int) Option[FeedOptions] {
	return func(o *FeedOptions) error {
		if limit < 1 {
			return fmt.Errorf("%w: limit must be at least 1, got %d", ErrValidation, limit)
		}
		o.Limit = min(limit, MaxPageSize)
		return nil
	}
}
