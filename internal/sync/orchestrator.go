package sync

import (
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/scm-mirror/internal/filtering"
	"github.com/stacklok/scm-mirror/internal/github"
	"github.com/stacklok/scm-mirror/internal/lock"
	"github.com/stacklok/scm-mirror/internal/reconcile"
	"github.com/stacklok/scm-mirror/internal/status"
	"github.com/stacklok/scm-mirror/internal/store"
	"github.com/stacklok/scm-mirror/internal/telemetry"
)

// TracerName is the name of the tracer used by the orchestrator.
const TracerName = "github.com/stacklok/scm-mirror/sync"

var (
	// ErrInvalidArgument is returned when a pass is requested with a missing
	// id or token.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when the organization or repository to sync is
	// unknown, tombstoned or gone upstream.
	ErrNotFound = errors.New("not found")
)

// Limits caps how much activity a repository pass fetches.
type Limits struct {
	MaxPullRequests     int
	MaxPullRequestFiles int
	MaxCommits          int
	// Lookback bounds the commit listing to commits newer than now-Lookback.
	Lookback time.Duration
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxPullRequests:     50,
		MaxPullRequestFiles: 100,
		MaxCommits:          100,
		Lookback:            30 * 24 * time.Hour,
	}
}

// Progress receives the completion percentage of an organization pass.
type Progress interface {
	Set(percent int)
}

// Result summarizes an organization pass.
type Result struct {
	Organization       store.Organization
	RepositoriesSynced int
	RepositoriesFailed int
	// RepositoriesSkipped counts repositories whose owner or name could not
	// be resolved, plus those left out by the repository filter.
	RepositoriesSkipped int
	Repositories        reconcile.Result
	Memberships         reconcile.Result
	Duration            time.Duration
}

// Orchestrator runs organization and repository passes.
type Orchestrator struct {
	client                  github.Client
	store                   store.Store
	tracker                 *status.Tracker
	locks                   *lock.Manager
	limits                  Limits
	filter                  *filtering.Filter
	fetchCommitDetails      bool
	fetchPullRequestDetails bool
	metrics                 *telemetry.SyncMetrics
	tracer                  trace.Tracer
	now                     func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithClient sets the GitHub client. Required.
func WithClient(c github.Client) Option {
	return func(o *Orchestrator) error {
		if c == nil {
			return fmt.Errorf("github client cannot be nil")
		}
		o.client = c
		return nil
	}
}

// WithStore sets the backing store. Required.
func WithStore(s store.Store) Option {
	return func(o *Orchestrator) error {
		if s == nil {
			return fmt.Errorf("store cannot be nil")
		}
		o.store = s
		return nil
	}
}

// WithTracker sets the status tracker. Defaults to a tracker over the store.
func WithTracker(t *status.Tracker) Option {
	return func(o *Orchestrator) error {
		o.tracker = t
		return nil
	}
}

// WithLocks makes organization passes lock each repository they process.
func WithLocks(m *lock.Manager) Option {
	return func(o *Orchestrator) error {
		o.locks = m
		return nil
	}
}

// WithLimits overrides the activity limits. Non-positive fields keep their
// defaults.
func WithLimits(l Limits) Option {
	return func(o *Orchestrator) error {
		if l.MaxPullRequests > 0 {
			o.limits.MaxPullRequests = l.MaxPullRequests
		}
		if l.MaxPullRequestFiles > 0 {
			o.limits.MaxPullRequestFiles = l.MaxPullRequestFiles
		}
		if l.MaxCommits > 0 {
			o.limits.MaxCommits = l.MaxCommits
		}
		if l.Lookback > 0 {
			o.limits.Lookback = l.Lookback
		}
		return nil
	}
}

// WithRepositoryFilter restricts which repositories get an activity pass
// during organization syncs. Nil disables filtering.
func WithRepositoryFilter(f *filtering.Filter) Option {
	return func(o *Orchestrator) error {
		o.filter = f
		return nil
	}
}

// WithFetchCommitDetails toggles fetching commit files.
func WithFetchCommitDetails(enabled bool) Option {
	return func(o *Orchestrator) error {
		o.fetchCommitDetails = enabled
		return nil
	}
}

// WithFetchPullRequestDetails toggles fetching pull request files.
func WithFetchPullRequestDetails(enabled bool) Option {
	return func(o *Orchestrator) error {
		o.fetchPullRequestDetails = enabled
		return nil
	}
}

// WithSyncMetrics sets the metrics recorder. Nil disables metrics.
func WithSyncMetrics(m *telemetry.SyncMetrics) Option {
	return func(o *Orchestrator) error {
		o.metrics = m
		return nil
	}
}

// WithTracer sets the tracer. Nil disables tracing.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) error {
		o.tracer = t
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		o.now = now
		return nil
	}
}

// New creates an Orchestrator.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		limits:                  DefaultLimits(),
		fetchCommitDetails:      true,
		fetchPullRequestDetails: true,
		now:                     time.Now,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.client == nil {
		return nil, fmt.Errorf("github client is required")
	}
	if o.store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if o.tracker == nil {
		o.tracker = status.NewTracker(o.store)
	}
	return o, nil
}

func reportProgress(p Progress, percent int) {
	if p != nil {
		p.Set(percent)
	}
}
