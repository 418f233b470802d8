// Package jobs runs long operations in the background and lets callers poll
// their status by id.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/stacklok/scm-mirror/internal/telemetry"
)

const (
	// DefaultWorkers is the number of jobs allowed to run concurrently
	DefaultWorkers = 4
)

// ErrShutdown is the failure recorded for jobs submitted after Shutdown. Such
// jobs go straight from QUEUED to FAILED without running.
var ErrShutdown = errors.New("job service is shut down")

// Status is the lifecycle state of a job.
type Status string

const (
	// StatusQueued means the job is waiting for a worker
	StatusQueued Status = "QUEUED"
	// StatusRunning means the job's work is executing
	StatusRunning Status = "RUNNING"
	// StatusSucceeded means the work returned without error
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed means the work returned an error or panicked
	StatusFailed Status = "FAILED"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job is a point-in-time snapshot of a background job.
type Job struct {
	ID           string
	Type         string
	Status       Status
	Progress     int
	CreatedAt    time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
	ErrorMessage string
}

// Progress lets running work report a completion percentage.
type Progress interface {
	Set(percent int)
}

// Work is the unit executed by a job.
type Work func(ctx context.Context, progress Progress) error

type record struct {
	mu       sync.Mutex
	job      Job
	progress atomic.Int32
}

// Set implements Progress. Values are clamped into [0, 100].
func (r *record) Set(percent int) {
	r.progress.Store(int32(min(max(percent, 0), 100)))
}

func (r *record) snapshot() Job {
	r.mu.Lock()
	job := r.job
	r.mu.Unlock()
	job.Progress = int(r.progress.Load())
	return job
}

// Service tracks submitted jobs and executes them on a bounded worker pool.
type Service struct {
	jobs sync.Map
	seq  atomic.Uint64
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
	// mu orders wg.Add in Submit before the wg.Wait in Shutdown
	mu      sync.Mutex
	closed  bool
	baseCtx context.Context
	timeout time.Duration
	metrics *telemetry.JobMetrics
	now     func() time.Time
}

// Option configures a Service
type Option func(*Service) error

// WithWorkers sets how many jobs may run at the same time
func WithWorkers(n int) Option {
	return func(s *Service) error {
		if n < 1 {
			return fmt.Errorf("workers must be at least 1, got %d", n)
		}
		s.sem = semaphore.NewWeighted(int64(n))
		return nil
	}
}

// WithTimeout bounds how long a single job may run. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) error {
		if d < 0 {
			return fmt.Errorf("job timeout must not be negative, got %s", d)
		}
		s.timeout = d
		return nil
	}
}

// WithJobMetrics records job submissions and durations
func WithJobMetrics(m *telemetry.JobMetrics) Option {
	return func(s *Service) error {
		s.metrics = m
		return nil
	}
}

// WithBaseContext sets the context job work derives from. It should not be a
// request context.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Service) error {
		if ctx == nil {
			return errors.New("base context must not be nil")
		}
		s.baseCtx = ctx
		return nil
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		s.now = now
		return nil
	}
}

// New creates a job service
func New(opts ...Option) (*Service, error) {
	s := &Service{
		sem:     semaphore.NewWeighted(DefaultWorkers),
		baseCtx: context.Background(),
		now:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Submit registers a job and schedules work on the pool. It never blocks and
// returns the QUEUED snapshot. After Shutdown the job is failed with
// ErrShutdown before Submit returns, and that FAILED snapshot is returned.
func (s *Service) Submit(jobType string, work Work) Job {
	rec := &record{
		job: Job{
			ID:        s.nextID(jobType),
			Type:      jobType,
			Status:    StatusQueued,
			CreatedAt: s.now(),
		},
	}
	queued := rec.snapshot()
	s.jobs.Store(queued.ID, rec)
	s.metrics.RecordSubmitted(s.baseCtx, jobType)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.finish(rec, ErrShutdown)
		return rec.snapshot()
	}
	s.wg.Add(1)
	s.mu.Unlock()

	slog.Debug("Job queued", "job_id", queued.ID, "type", jobType)
	go s.run(rec, work)

	return queued
}

// Find returns a snapshot of the job with the given id.
func (s *Service) Find(id string) (Job, bool) {
	v, ok := s.jobs.Load(id)
	if !ok {
		return Job{}, false
	}
	return v.(*record).snapshot(), true
}

// Shutdown stops accepting work and waits for running jobs until ctx is done.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs to finish: %w", ctx.Err())
	}
}

func (s *Service) nextID(jobType string) string {
	return jobType + "-" + strconv.FormatUint(s.seq.Add(1), 10) + "-" + uuid.NewString()
}

func (s *Service) run(rec *record, work Work) {
	defer s.wg.Done()

	if err := s.sem.Acquire(s.baseCtx, 1); err != nil {
		s.finish(rec, err)
		return
	}
	defer s.sem.Release(1)

	s.start(rec)
	s.finish(rec, s.execute(rec, work))
}

func (s *Service) execute(rec *record, work Work) (err error) {
	ctx := s.baseCtx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()

	return work(ctx, rec)
}

func (s *Service) start(rec *record) {
	now := s.now()
	rec.mu.Lock()
	rec.job.Status = StatusRunning
	rec.job.StartedAt = &now
	id := rec.job.ID
	rec.mu.Unlock()

	slog.Info("Job started", "job_id", id)
}

func (s *Service) finish(rec *record, err error) {
	now := s.now()

	rec.mu.Lock()
	if rec.job.StartedAt == nil {
		rec.job.StartedAt = &now
	}
	rec.job.FinishedAt = &now
	if err != nil {
		rec.job.Status = StatusFailed
		rec.job.ErrorMessage = err.Error()
	} else {
		rec.job.Status = StatusSucceeded
	}
	job := rec.job
	rec.mu.Unlock()

	duration := job.FinishedAt.Sub(*job.StartedAt)
	s.metrics.RecordJobDuration(s.baseCtx, job.Type, string(job.Status), duration)

	if err != nil {
		slog.Error("Job failed", "job_id", job.ID, "type", job.Type, "duration", duration, "error", err)
		return
	}
	slog.Info("Job completed", "job_id", job.ID, "type", job.Type, "duration", duration)
}
