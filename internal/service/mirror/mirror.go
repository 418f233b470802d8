// Package mirror implements the MirrorService interface on top of a store, the
// GitHub client and the sync orchestrator.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/scm-mirror/internal/authz"
	"github.com/stacklok/scm-mirror/internal/github"
	"github.com/stacklok/scm-mirror/internal/jobs"
	"github.com/stacklok/scm-mirror/internal/lock"
	"github.com/stacklok/scm-mirror/internal/otel"
	"github.com/stacklok/scm-mirror/internal/service"
	"github.com/stacklok/scm-mirror/internal/status"
	"github.com/stacklok/scm-mirror/internal/store"
	mirrorsync "github.com/stacklok/scm-mirror/internal/sync"
)

// ServiceTracerName is the name used for the service tracer
const ServiceTracerName = "github.com/stacklok/scm-mirror/service"

// Synchronizer runs sync passes. *sync.Orchestrator implements it.
type Synchronizer interface {
	SynchronizeOrganization(
		ctx context.Context, orgID int64, token string, progress mirrorsync.Progress,
	) (*mirrorsync.Result, error)
	SynchronizeRepository(ctx context.Context, repoID int64, token string) error
}

// options holds configuration options for the mirror service
type options struct {
	store      store.Store
	client     github.Client
	sync       Synchronizer
	jobs       *jobs.Service
	locks      *lock.Manager
	authorizer authz.Authorizer
	tracer     trace.Tracer
	now        func() time.Time
}

// Option is a functional option for configuring the mirror service
type Option func(*options) error

// WithStore sets the backing store. Required.
func WithStore(s store.Store) Option {
	return func(o *options) error {
		if s == nil {
			return fmt.Errorf("store is required")
		}
		o.store = s
		return nil
	}
}

// WithClient sets the GitHub client. Required.
func WithClient(c github.Client) Option {
	return func(o *options) error {
		if c == nil {
			return fmt.Errorf("github client is required")
		}
		o.client = c
		return nil
	}
}

// WithSynchronizer sets the sync orchestrator. Required.
func WithSynchronizer(s Synchronizer) Option {
	return func(o *options) error {
		if s == nil {
			return fmt.Errorf("synchronizer is required")
		}
		o.sync = s
		return nil
	}
}

// WithJobs sets the job service background work is submitted to. Required.
func WithJobs(j *jobs.Service) Option {
	return func(o *options) error {
		if j == nil {
			return fmt.Errorf("job service is required")
		}
		o.jobs = j
		return nil
	}
}

// WithLocks sets the lock manager. It must be the one the orchestrator uses.
func WithLocks(m *lock.Manager) Option {
	return func(o *options) error {
		o.locks = m
		return nil
	}
}

// WithAuthorizer sets the authorizer. Defaults to the built-in Cedar policies.
func WithAuthorizer(a authz.Authorizer) Option {
	return func(o *options) error {
		o.authorizer = a
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for the service.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		o.now = now
		return nil
	}
}

// mirrorService implements the MirrorService interface
type mirrorService struct {
	store      store.Store
	client     github.Client
	sync       Synchronizer
	jobs       *jobs.Service
	locks      *lock.Manager
	authorizer authz.Authorizer
	tracker    *status.Tracker
	tracer     trace.Tracer
	now        func() time.Time
}

var _ service.MirrorService = (*mirrorService)(nil)

// New creates a new mirror service with the given options
func New(opts ...Option) (service.MirrorService, error) {
	o := &options{now: time.Now}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	switch {
	case o.store == nil:
		return nil, fmt.Errorf("store is required")
	case o.client == nil:
		return nil, fmt.Errorf("github client is required")
	case o.sync == nil:
		return nil, fmt.Errorf("synchronizer is required")
	case o.jobs == nil:
		return nil, fmt.Errorf("job service is required")
	}
	if o.locks == nil {
		o.locks = lock.NewManager()
	}
	if o.authorizer == nil {
		a, err := authz.NewCedarAuthorizer(nil)
		if err != nil {
			return nil, err
		}
		o.authorizer = a
	}

	return &mirrorService{
		store:      o.store,
		client:     o.client,
		sync:       o.sync,
		jobs:       o.jobs,
		locks:      o.locks,
		authorizer: o.authorizer,
		tracker:    status.NewTracker(o.store),
		tracer:     o.tracer,
		now:        o.now,
	}, nil
}

// CheckReadiness checks if the service is ready to serve requests
func (s *mirrorService) CheckReadiness(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping store: %w", err)
	}
	return nil
}

// GetJob returns a snapshot of a submitted job
func (s *mirrorService) GetJob(_ context.Context, id string) (jobs.Job, error) {
	if strings.TrimSpace(id) == "" {
		return jobs.Job{}, fmt.Errorf("%w: job id must not be blank", service.ErrValidation)
	}
	job, ok := s.jobs.Find(id)
	if !ok {
		return jobs.Job{}, fmt.Errorf("%w: job %s", service.ErrNotFound, id)
	}
	return job, nil
}

// requireMembership loads the active organization and the caller's active
// membership in it. Both a missing organization and a missing membership are
// reported as ErrNotFound.
func (s *mirrorService) requireMembership(
	ctx context.Context, p service.Principal, orgID int64,
) (*store.Organization, *store.Membership, error) {
	if orgID <= 0 {
		return nil, nil, fmt.Errorf("%w: organization id must be positive", service.ErrValidation)
	}
	if p.User.ID <= 0 {
		return nil, nil, fmt.Errorf("%w: caller is not a known user", service.ErrValidation)
	}

	membership, err := s.store.Memberships().Find(ctx, orgID, p.User.ID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && membership.IsDeleted()) {
		return nil, nil, fmt.Errorf("%w: organization %d", service.ErrNotFound, orgID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load membership: %w", err)
	}

	org, err := s.store.Organizations().FindByID(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && org.IsDeleted()) {
		return nil, nil, fmt.Errorf("%w: organization %d", service.ErrNotFound, orgID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load organization %d: %w", orgID, err)
	}
	return org, membership, nil
}

// authorize asks the authorizer whether the membership allows action on
// its organization.
func (s *mirrorService) authorize(ctx context.Context, m *store.Membership, action string) error {
	decision, err := s.authorizer.Authorize(ctx, authz.Request{
		UserID:         m.UserID,
		Role:           m.Role,
		OrganizationID: m.OrganizationID,
		Action:         action,
	})
	if err != nil {
		return fmt.Errorf("failed to authorize %s: %w", action, err)
	}
	if !decision.Allowed {
		return fmt.Errorf("%w: role %q does not allow %s", service.ErrForbidden, m.Role, action)
	}
	return nil
}

func requireToken(p service.Principal) error {
	if strings.TrimSpace(p.Token) == "" {
		return fmt.Errorf("%w: GitHub access token is required", service.ErrValidation)
	}
	return nil
}

func (s *mirrorService) startSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.StartSpan(ctx, s.tracer, name, opts...)
}
