package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/scm-mirror/internal/authz"
	"github.com/stacklok/scm-mirror/internal/github"
	"github.com/stacklok/scm-mirror/internal/jobs"
	"github.com/stacklok/scm-mirror/internal/lock"
	"github.com/stacklok/scm-mirror/internal/otel"
	"github.com/stacklok/scm-mirror/internal/service"
	"github.com/stacklok/scm-mirror/internal/store"
)

// ListOrganizations returns the active organizations the caller belongs to
func (s *mirrorService) ListOrganizations(ctx context.Context, p service.Principal) ([]store.Organization, error) {
	ctx, span := s.startSpan(ctx, "mirrorService.ListOrganizations")
	defer span.End()

	if p.User.ID <= 0 {
		return nil, fmt.Errorf("%w: caller is not a known user", service.ErrValidation)
	}
	orgs, err := s.store.Organizations().ListActiveByUser(ctx, p.User.ID)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(orgs)))
	return orgs, nil
}

// RegisterOrganization registers a GitHub organization and makes the caller a
// member. The first member of an organization becomes its admin.
func (s *mirrorService) RegisterOrganization(
	ctx context.Context, p service.Principal, opts ...service.Option[service.RegisterOrganizationOptions],
) (*store.Organization, error) {
	ctx, span := s.startSpan(ctx, "mirrorService.RegisterOrganization")
	defer span.End()

	org, err := s.registerOrganization(ctx, p, opts...)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(otel.AttrOrganizationID.Int64(org.ID), otel.AttrOrganizationLogin.String(org.Login))
	slog.InfoContext(ctx, "Organization registered", "organization_id", org.ID, "login", org.Login, "user_id", p.User.ID)
	return org, nil
}

func (s *mirrorService) registerOrganization(
	ctx context.Context, p service.Principal, opts ...service.Option[service.RegisterOrganizationOptions],
) (*store.Organization, error) {
	options := &service.RegisterOrganizationOptions{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	if options.Login == "" {
		return nil, fmt.Errorf("%w: 'login' must not be blank", service.ErrValidation)
	}
	if p.User.ID <= 0 {
		return nil, fmt.Errorf("%w: caller is not a known user", service.ErrValidation)
	}
	if err := requireToken(p); err != nil {
		return nil, err
	}

	remote, err := s.client.GetOrganization(ctx, p.Token, options.Login)
	if err != nil {
		return nil, err
	}
	if remote == nil {
		return nil, fmt.Errorf("%w: organization not found on GitHub: %s", service.ErrNotFound, options.Login)
	}
	if remote.ID == 0 {
		return nil, fmt.Errorf("%w: GitHub organization id is missing", service.ErrValidation)
	}

	var org *store.Organization
	err = s.store.InTx(ctx, func(ctx context.Context) error {
		resolved, err := s.resolveOrganization(ctx, remote, options.DefaultLinkURL)
		if err != nil {
			return err
		}
		org = resolved
		return s.ensureMembership(ctx, p.User.ID, resolved.ID)
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// resolveOrganization upserts the organization by GitHub id, reviving a
// tombstoned row.
func (s *mirrorService) resolveOrganization(
	ctx context.Context, remote *github.Organization, defaultLinkURL string,
) (*store.Organization, error) {
	org, err := s.store.Organizations().FindByGitHubID(ctx, remote.ID)
	if errors.Is(err, store.ErrNotFound) {
		org = &store.Organization{GitHubID: remote.ID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load organization: %w", err)
	}

	org.Login = remote.Login
	org.Name = remote.Name
	org.Description = remote.Description
	org.AvatarURL = remote.AvatarURL
	org.HTMLURL = remote.HTMLURL
	if defaultLinkURL != "" {
		org.DefaultLinkURL = defaultLinkURL
	}
	org.Revive()
	if err := s.store.Organizations().Save(ctx, org); err != nil {
		return nil, fmt.Errorf("failed to save organization %s: %w", remote.Login, err)
	}
	return org, nil
}

func (s *mirrorService) ensureMembership(ctx context.Context, userID, orgID int64) error {
	memberships := s.store.Memberships()
	m, err := memberships.Find(ctx, orgID, userID)
	switch {
	case err == nil && !m.IsDeleted():
		return fmt.Errorf("%w: organization already registered", service.ErrConflict)
	case err == nil:
		m.Revive()
		m.JoinedAt = s.now()
		if strings.TrimSpace(m.Role) == "" {
			m.Role = store.RoleMember
		}
	case errors.Is(err, store.ErrNotFound):
		active, err := memberships.ListActiveByOrganization(ctx, orgID)
		if err != nil {
			return fmt.Errorf("failed to list memberships: %w", err)
		}
		role := store.RoleMember
		if len(active) == 0 {
			role = store.RoleAdmin
		}
		m = &store.Membership{OrganizationID: orgID, UserID: userID, Role: role, JoinedAt: s.now()}
	default:
		return fmt.Errorf("failed to load membership: %w", err)
	}

	if err := memberships.Save(ctx, m); err != nil {
		return fmt.Errorf("failed to save membership: %w", err)
	}
	return nil
}

// DeleteOrganization checks the caller may administer the organization and
// submits a job that tombstones it together with its memberships,
// repositories and sync statuses.
func (s *mirrorService) DeleteOrganization(ctx context.Context, p service.Principal, orgID int64) (jobs.Job, error) {
	ctx, span := s.startSpan(ctx, "mirrorService.DeleteOrganization",
		trace.WithAttributes(otel.AttrOrganizationID.Int64(orgID)))
	defer span.End()

	_, membership, err := s.requireMembership(ctx, p, orgID)
	if err == nil {
		err = s.authorize(ctx, membership, authz.ActionAdmin)
	}
	if err != nil {
		otel.RecordError(span, err)
		return jobs.Job{}, err
	}

	job := s.jobs.Submit(service.JobTypeDeleteOrganization, func(ctx context.Context, progress jobs.Progress) error {
		err := s.store.InTx(ctx, func(ctx context.Context) error {
			return s.locks.Run(ctx, lock.OrganizationKey(orgID), func(ctx context.Context) error {
				return s.tombstoneOrganization(ctx, orgID)
			})
		})
		if err == nil {
			progress.Set(100)
		}
		return err
	})
	span.SetAttributes(otel.AttrJobID.String(job.ID))
	return job, nil
}

func (s *mirrorService) tombstoneOrganization(ctx context.Context, orgID int64) error {
	org, err := s.store.Organizations().FindByID(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: organization %d", service.ErrNotFound, orgID)
	}
	if err != nil {
		return fmt.Errorf("failed to load organization %d: %w", orgID, err)
	}
	if org.IsDeleted() {
		return nil
	}

	now := s.now()
	org.Tombstone(now)
	if err := s.store.Organizations().Save(ctx, org); err != nil {
		return fmt.Errorf("failed to tombstone organization %d: %w", orgID, err)
	}

	memberships, err := s.store.Memberships().ListActiveByOrganization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list memberships: %w", err)
	}
	for i := range memberships {
		memberships[i].Tombstone(now)
		if err := s.store.Memberships().Save(ctx, &memberships[i]); err != nil {
			return fmt.Errorf("failed to tombstone membership %d: %w", memberships[i].ID, err)
		}
	}

	repos, err := s.store.Repositories().ListActiveByOrganization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list repositories: %w", err)
	}
	for i := range repos {
		repos[i].Tombstone(now)
		if err := s.store.Repositories().Save(ctx, &repos[i]); err != nil {
			return fmt.Errorf("failed to tombstone repository %d: %w", repos[i].ID, err)
		}
		if err := s.tracker.MarkDeleted(ctx, &repos[i], now); err != nil {
			return err
		}
	}

	slog.InfoContext(ctx, "Organization deleted",
		"organization_id", orgID,
		"memberships", len(memberships),
		"repositories", len(repos))
	return nil
}

// ListRepositorySyncStatus returns the sync watermark of every active
// repository of the organization
func (s *mirrorService) ListRepositorySyncStatus(
	ctx context.Context, p service.Principal, orgID int64,
) ([]service.RepositorySyncStatus, error) {
	ctx, span := s.startSpan(ctx, "mirrorService.ListRepositorySyncStatus",
		trace.WithAttributes(otel.AttrOrganizationID.Int64(orgID)))
	defer span.End()

	org, membership, err := s.requireMembership(ctx, p, orgID)
	if err == nil {
		err = s.authorize(ctx, membership, authz.ActionRead)
	}
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	statuses, err := s.tracker.FindActiveByOrganization(ctx, orgID)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list sync statuses: %w", err)
	}

	out := make([]service.RepositorySyncStatus, 0, len(statuses))
	for _, st := range statuses {
		view := service.RepositorySyncStatus{
			RepositoryID:        st.RepositoryID,
			LastSyncedAt:        st.LastSyncedAt,
			LastSyncedCommitSHA: st.LastSyncedCommitSHA,
			ErrorMessage:        st.ErrorMessage,
		}
		repo, err := s.store.Repositories().FindByID(ctx, st.RepositoryID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			otel.RecordError(span, err)
			return nil, fmt.Errorf("failed to load repository %d: %w", st.RepositoryID, err)
		}
		if repo != nil {
			view.RepositoryFullName = repositoryFullName(repo, org.Login)
		}
		out = append(out, view)
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(out)))
	return out, nil
}

// repositoryFullName prefers the stored full name, then orgLogin/name, then
// the bare name.
func repositoryFullName(repo *store.Repository, orgLogin string) string {
	if strings.TrimSpace(repo.FullName) != "" {
		return repo.FullName
	}
	if orgLogin != "" && repo.Name != "" {
		return orgLogin + "/" + repo.Name
	}
	return repo.Name
}
