package mirror

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/scm-mirror/internal/authz"
	"github.com/stacklok/scm-mirror/internal/jobs"
	"github.com/stacklok/scm-mirror/internal/lock"
	"github.com/stacklok/scm-mirror/internal/otel"
	"github.com/stacklok/scm-mirror/internal/service"
	"github.com/stacklok/scm-mirror/internal/store"
)

// TriggerOrganizationSync submits a job that synchronizes the organization
// under its lock
func (s *mirrorService) TriggerOrganizationSync(ctx context.Context, p service.Principal, orgID int64) (jobs.Job, error) {
	ctx, span := s.startSpan(ctx, "mirrorService.TriggerOrganizationSync",
		trace.WithAttributes(otel.AttrOrganizationID.Int64(orgID)))
	defer span.End()

	_, membership, err := s.requireMembership(ctx, p, orgID)
	if err == nil {
		err = s.authorize(ctx, membership, authz.ActionSync)
	}
	if err == nil {
		err = requireToken(p)
	}
	if err != nil {
		otel.RecordError(span, err)
		return jobs.Job{}, err
	}

	token := p.Token
	job := s.jobs.Submit(service.JobTypeSyncOrganization, func(ctx context.Context, progress jobs.Progress) error {
		return s.locks.Run(ctx, lock.OrganizationKey(orgID), func(ctx context.Context) error {
			_, err := s.sync.SynchronizeOrganization(ctx, orgID, token, progress)
			return err
		})
	})
	span.SetAttributes(otel.AttrJobID.String(job.ID))
	return job, nil
}

// TriggerRepositorySync submits a job that synchronizes one repository under
// its lock
func (s *mirrorService) TriggerRepositorySync(ctx context.Context, p service.Principal, repoID int64) (jobs.Job, error) {
	ctx, span := s.startSpan(ctx, "mirrorService.TriggerRepositorySync",
		trace.WithAttributes(otel.AttrRepositoryID.Int64(repoID)))
	defer span.End()

	job, err := s.triggerRepositorySync(ctx, p, repoID)
	if err != nil {
		otel.RecordError(span, err)
		return jobs.Job{}, err
	}
	span.SetAttributes(otel.AttrJobID.String(job.ID))
	return job, nil
}

func (s *mirrorService) triggerRepositorySync(ctx context.Context, p service.Principal, repoID int64) (jobs.Job, error) {
	if repoID <= 0 {
		return jobs.Job{}, fmt.Errorf("%w: repository id must be positive", service.ErrValidation)
	}
	if err := requireToken(p); err != nil {
		return jobs.Job{}, err
	}

	repo, err := s.store.Repositories().FindByID(ctx, repoID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && repo.IsDeleted()) {
		return jobs.Job{}, fmt.Errorf("%w: repository %d", service.ErrNotFound, repoID)
	}
	if err != nil {
		return jobs.Job{}, fmt.Errorf("failed to load repository %d: %w", repoID, err)
	}

	_, membership, err := s.requireMembership(ctx, p, repo.OrganizationID)
	if errors.Is(err, service.ErrNotFound) {
		// Repositories of organizations the caller cannot see do not exist
		// for them either.
		return jobs.Job{}, fmt.Errorf("%w: repository %d", service.ErrNotFound, repoID)
	}
	if err != nil {
		return jobs.Job{}, err
	}
	if err := s.authorize(ctx, membership, authz.ActionSync); err != nil {
		return jobs.Job{}, err
	}

	token := p.Token
	return s.jobs.Submit(service.JobTypeSyncRepository, func(ctx context.Context, progress jobs.Progress) error {
		err := s.locks.Run(ctx, lock.RepositoryKey(repoID), func(ctx context.Context) error {
			return s.sync.SynchronizeRepository(ctx, repoID, token)
		})
		if err == nil {
			progress.Set(100)
		}
		return err
	}), nil
}
