package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stacklok/scm-mirror/internal/jobs"
	"github.com/stacklok/scm-mirror/internal/lock"
	"github.com/stacklok/scm-mirror/internal/otel"
	"github.com/stacklok/scm-mirror/internal/service"
	"github.com/stacklok/scm-mirror/internal/store"
)

// SyncMyOrganizations registers every organization the caller's token can
// see and submits a sync job for each. An organization the caller already
// belongs to is synced without re-registering. Per-organization failures are
// logged and skipped; only a failed listing fails the call.
func (s *mirrorService) SyncMyOrganizations(
	ctx context.Context, p service.Principal,
) ([]service.OrganizationSyncJob, error) {
	ctx, span := s.startSpan(ctx, "mirrorService.SyncMyOrganizations")
	defer span.End()

	if p.User.ID <= 0 {
		err := fmt.Errorf("%w: caller is not a known user", service.ErrValidation)
		otel.RecordError(span, err)
		return nil, err
	}
	if err := requireToken(p); err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	remote, err := s.client.ListOrganizations(ctx, p.Token)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	byID := make(map[int64]store.Organization)
	byLogin := make(map[string]store.Organization)
	if len(remote) > 0 {
		orgs, err := s.store.Organizations().ListActiveByUser(ctx, p.User.ID)
		if err != nil {
			otel.RecordError(span, err)
			return nil, fmt.Errorf("failed to list organizations: %w", err)
		}
		for _, o := range orgs {
			byID[o.GitHubID] = o
			byLogin[strings.ToLower(o.Login)] = o
		}
	}

	out := make([]service.OrganizationSyncJob, 0, len(remote))
	for _, o := range remote {
		login := strings.TrimSpace(o.Login)
		if login == "" {
			continue
		}

		org, err := s.registerOrganization(ctx, p, service.WithLogin(login))
		if errors.Is(err, service.ErrConflict) {
			existing, ok := byID[o.ID]
			if !ok {
				existing, ok = byLogin[strings.ToLower(login)]
			}
			if !ok {
				slog.DebugContext(ctx, "Organization already registered", "login", login, "user_id", p.User.ID)
				continue
			}
			org = &existing
		} else if err != nil {
			slog.WarnContext(ctx, "Failed to register organization", "login", login, "user_id", p.User.ID, "error", err)
			continue
		}

		job, err := s.TriggerOrganizationSync(ctx, p, org.ID)
		if err != nil {
			slog.WarnContext(ctx, "Failed to start organization sync",
				"organization_id", org.ID, "login", org.Login, "error", err)
			continue
		}
		out = append(out, service.OrganizationSyncJob{
			OrganizationID:    org.ID,
			OrganizationLogin: org.Login,
			Job:               job,
		})
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(out)))
	slog.InfoContext(ctx, "Organization syncs submitted",
		"user_id", p.User.ID,
		"listed", len(remote),
		"submitted", len(out))
	return out, nil
}

// DeleteUser submits a job that tombstones the caller's memberships, each
// under its organization's lock, and then the caller. Signing in again
// revives the user but not the memberships.
func (s *mirrorService) DeleteUser(ctx context.Context, p service.Principal) (jobs.Job, error) {
	ctx, span := s.startSpan(ctx, "mirrorService.DeleteUser")
	defer span.End()

	if p.User.ID <= 0 {
		err := fmt.Errorf("%w: caller is not a known user", service.ErrValidation)
		otel.RecordError(span, err)
		return jobs.Job{}, err
	}

	userID := p.User.ID
	job := s.jobs.Submit(service.JobTypeDeleteUser, func(ctx context.Context, progress jobs.Progress) error {
		orgs, err := s.store.Organizations().ListActiveByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list organizations: %w", err)
		}
		for i, org := range orgs {
			err := s.store.InTx(ctx, func(ctx context.Context) error {
				return s.locks.Run(ctx, lock.OrganizationKey(org.ID), func(ctx context.Context) error {
					return s.tombstoneMembership(ctx, org.ID, userID)
				})
			})
			if err != nil {
				return err
			}
			progress.Set((i + 1) * 90 / len(orgs))
		}

		if err := s.store.InTx(ctx, func(ctx context.Context) error {
			return s.tombstoneUser(ctx, userID)
		}); err != nil {
			return err
		}
		progress.Set(100)
		slog.InfoContext(ctx, "User deleted", "user_id", userID, "memberships", len(orgs))
		return nil
	})
	span.SetAttributes(otel.AttrJobID.String(job.ID))
	return job, nil
}

func (s *mirrorService) tombstoneMembership(ctx context.Context, orgID, userID int64) error {
	m, err := s.store.Memberships().Find(ctx, orgID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load membership: %w", err)
	}
	if m.IsDeleted() {
		return nil
	}
	m.Tombstone(s.now())
	if err := s.store.Memberships().Save(ctx, m); err != nil {
		return fmt.Errorf("failed to tombstone membership %d: %w", m.ID, err)
	}
	return nil
}

func (s *mirrorService) tombstoneUser(ctx context.Context, userID int64) error {
	u, err := s.store.Users().FindByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: user %d", service.ErrNotFound, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to load user %d: %w", userID, err)
	}
	if u.IsDeleted() {
		return nil
	}
	u.Tombstone(s.now())
	if err := s.store.Users().Save(ctx, u); err != nil {
		return fmt.Errorf("failed to tombstone user %d: %w", userID, err)
	}
	return nil
}
