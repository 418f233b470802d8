package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/scm-mirror/internal/github"
	"github.com/stacklok/scm-mirror/internal/lock"
	"github.com/stacklok/scm-mirror/internal/otel"
	"github.com/stacklok/scm-mirror/internal/reconcile"
	"github.com/stacklok/scm-mirror/internal/store"
	"github.com/stacklok/scm-mirror/internal/telemetry"
)

// SynchronizeOrganization refreshes the organization identified by orgID,
// its repositories, its memberships and the activity of every active
// repository. progress may be nil.
func (o *Orchestrator) SynchronizeOrganization(
	ctx context.Context, orgID int64, token string, progress Progress,
) (*Result, error) {
	ctx, span := otel.StartSpan(ctx, o.tracer, "sync.SynchronizeOrganization",
		trace.WithAttributes(otel.AttrOrganizationID.Int64(orgID)))
	defer span.End()

	start := o.now()
	res, err := o.synchronizeOrganization(ctx, orgID, token, progress)
	duration := o.now().Sub(start)
	o.metrics.RecordSyncDuration(ctx, telemetry.SyncScopeOrganization, duration, err == nil)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	res.Duration = duration

	slog.InfoContext(ctx, "Organization synchronized",
		"organization_id", orgID,
		"login", res.Organization.Login,
		"repositories_synced", res.RepositoriesSynced,
		"repositories_failed", res.RepositoriesFailed,
		"duration", duration)
	return res, nil
}

func (o *Orchestrator) synchronizeOrganization(
	ctx context.Context, orgID int64, token string, progress Progress,
) (*Result, error) {
	if orgID <= 0 {
		return nil, fmt.Errorf("%w: organization id must be positive", ErrInvalidArgument)
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidArgument)
	}

	org, err := o.activeOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	remote, err := o.client.GetOrganization(ctx, token, org.Login)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch organization %s: %w", org.Login, err)
	}
	if remote == nil {
		return nil, fmt.Errorf("%w: organization %s no longer exists on GitHub", ErrNotFound, org.Login)
	}
	repos, err := o.client.ListRepositories(ctx, token, org.Login)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories of %s: %w", org.Login, err)
	}
	members, err := o.client.ListMembers(ctx, token, org.Login)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of %s: %w", org.Login, err)
	}

	res := &Result{}
	err = o.store.InTx(ctx, func(ctx context.Context) error {
		org, err := o.activeOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		now := o.now()
		applyOrganization(org, remote, now)
		if err := o.store.Organizations().Save(ctx, org); err != nil {
			return fmt.Errorf("failed to save organization %d: %w", org.ID, err)
		}
		if res.Repositories, err = o.reconcileRepositories(ctx, org, repos, now); err != nil {
			return err
		}
		if res.Memberships, err = o.reconcileMemberships(ctx, org, members, now); err != nil {
			return err
		}
		res.Organization = *org
		return nil
	})
	if err != nil {
		return nil, err
	}
	o.recordReconciled(ctx, "repository", res.Repositories)
	o.recordReconciled(ctx, "membership", res.Memberships)

	targets, err := o.store.Repositories().ListActiveByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories of organization %d: %w", orgID, err)
	}
	if len(targets) == 0 {
		reportProgress(progress, 100)
		return res, nil
	}

	reportProgress(progress, 0)
	for i := range targets {
		if ok, reason := o.filter.ShouldInclude(&targets[i]); !ok {
			slog.DebugContext(ctx, "Repository filtered out of activity sync",
				"repository_id", targets[i].ID,
				"name", targets[i].Name,
				"reason", reason)
			res.RepositoriesSkipped++
			reportProgress(progress, (i+1)*100/len(targets))
			continue
		}
		out, err := o.runRepositoryPass(ctx, &targets[i], res.Organization.Login, token)
		if err != nil {
			return nil, err
		}
		switch out {
		case outcomeSynced:
			res.RepositoriesSynced++
		case outcomeFailed:
			res.RepositoriesFailed++
		case outcomeSkipped:
			res.RepositoriesSkipped++
		}
		reportProgress(progress, (i+1)*100/len(targets))
	}
	return res, nil
}

// runRepositoryPass runs one repository pass, under the repository lock when
// locks are configured.
func (o *Orchestrator) runRepositoryPass(
	ctx context.Context, repo *store.Repository, orgLogin, token string,
) (outcome, error) {
	if o.locks == nil {
		return o.synchronizeRepository(ctx, repo, orgLogin, token)
	}
	return lock.Call(ctx, o.locks, lock.RepositoryKey(repo.ID), func(ctx context.Context) (outcome, error) {
		return o.synchronizeRepository(ctx, repo, orgLogin, token)
	})
}

func (o *Orchestrator) activeOrganization(ctx context.Context, orgID int64) (*store.Organization, error) {
	org, err := o.store.Organizations().FindByID(ctx, orgID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && org.IsDeleted()) {
		return nil, fmt.Errorf("%w: organization %d", ErrNotFound, orgID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load organization %d: %w", orgID, err)
	}
	return org, nil
}

func (o *Orchestrator) reconcileRepositories(
	ctx context.Context, org *store.Organization, remote []github.Repository, now time.Time,
) (reconcile.Result, error) {
	existing, err := o.store.Repositories().ListActiveByOrganization(ctx, org.ID)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("failed to list repositories of organization %d: %w", org.ID, err)
	}

	spec := reconcile.Spec[store.Repository, github.Repository, int64]{
		LocalKey:  func(r store.Repository) (int64, bool) { return r.GitHubID, r.GitHubID != 0 },
		RemoteKey: func(r github.Repository) (int64, bool) { return r.ID, r.ID != 0 },
		Update: func(ctx context.Context, row store.Repository, item github.Repository) error {
			return o.saveRepository(ctx, &row, org, item, now)
		},
		Insert: func(ctx context.Context, item github.Repository) error {
			row, err := o.store.Repositories().FindByGitHubID(ctx, item.ID)
			if errors.Is(err, store.ErrNotFound) {
				row = &store.Repository{GitHubID: item.ID}
			} else if err != nil {
				return err
			}
			return o.saveRepository(ctx, row, org, item, now)
		},
		Tombstone: func(ctx context.Context, row store.Repository) error {
			row.Tombstone(now)
			if err := o.store.Repositories().Save(ctx, &row); err != nil {
				return err
			}
			return o.tracker.MarkDeleted(ctx, &row, now)
		},
	}
	return reconcile.Run(ctx, spec, existing, remote)
}

func (o *Orchestrator) saveRepository(
	ctx context.Context, row *store.Repository, org *store.Organization, item github.Repository, now time.Time,
) error {
	applyRepository(row, org, item)
	row.Revive()
	if err := o.store.Repositories().Save(ctx, row); err != nil {
		return err
	}
	return o.tracker.MarkSynced(ctx, row, now, "")
}

func (o *Orchestrator) reconcileMemberships(
	ctx context.Context, org *store.Organization, members []github.Member, now time.Time,
) (reconcile.Result, error) {
	if len(members) == 0 {
		slog.WarnContext(ctx, "GitHub returned no members, keeping memberships", "organization_id", org.ID)
		return reconcile.Result{}, nil
	}

	// Members are matched on the local user id; 0 marks a member without a
	// usable identity.
	userIDs := make([]int64, 0, len(members))
	for _, m := range members {
		var userID int64
		if m.ID != 0 && strings.TrimSpace(m.Login) != "" {
			user, err := o.upsertUser(ctx, memberAsUser(m), m.SiteAdmin)
			if err != nil {
				return reconcile.Result{}, err
			}
			userID = user.ID
		}
		userIDs = append(userIDs, userID)
	}

	existing, err := o.store.Memberships().ListActiveByOrganization(ctx, org.ID)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("failed to list memberships of organization %d: %w", org.ID, err)
	}

	spec := reconcile.Spec[store.Membership, int64, int64]{
		LocalKey:  func(m store.Membership) (int64, bool) { return m.UserID, m.UserID != 0 },
		RemoteKey: func(userID int64) (int64, bool) { return userID, userID != 0 },
		// Active memberships keep their role and join date.
		Update: func(context.Context, store.Membership, int64) error { return nil },
		Insert: func(ctx context.Context, userID int64) error {
			row, err := o.store.Memberships().Find(ctx, org.ID, userID)
			if errors.Is(err, store.ErrNotFound) {
				row = &store.Membership{OrganizationID: org.ID, UserID: userID, Role: store.RoleMember}
			} else if err != nil {
				return err
			}
			row.JoinedAt = now
			row.Revive()
			return o.store.Memberships().Save(ctx, row)
		},
		Tombstone: func(ctx context.Context, row store.Membership) error {
			row.Tombstone(now)
			return o.store.Memberships().Save(ctx, &row)
		},
	}
	return reconcile.Run(ctx, spec, existing, userIDs)
}

// upsertUser creates or refreshes the local user for a GitHub account. Blank
// upstream fields never overwrite known values.
func (o *Orchestrator) upsertUser(ctx context.Context, remote github.User, siteAdmin bool) (*store.User, error) {
	user, err := o.store.Users().FindByGitHubID(ctx, remote.ID)
	if errors.Is(err, store.ErrNotFound) {
		user = &store.User{GitHubID: remote.ID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", remote.ID, err)
	}
	applyUser(user, remote, siteAdmin)
	user.Revive()
	if err := o.store.Users().Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user %s: %w", remote.Login, err)
	}
	return user, nil
}

// userRef upserts an embedded user and returns its local id, or nil when the
// payload carries no usable identity.
func (o *Orchestrator) userRef(ctx context.Context, remote *github.User) (*int64, error) {
	if remote == nil || remote.ID == 0 || strings.TrimSpace(remote.Login) == "" {
		return nil, nil
	}
	user, err := o.upsertUser(ctx, *remote, remote.SiteAdmin)
	if err != nil {
		return nil, err
	}
	return &user.ID, nil
}

func (o *Orchestrator) recordReconciled(ctx context.Context, entity string, r reconcile.Result) {
	o.metrics.RecordReconciled(ctx, entity, "inserted", r.Inserted)
	o.metrics.RecordReconciled(ctx, entity, "updated", r.Updated)
	o.metrics.RecordReconciled(ctx, entity, "tombstoned", r.Tombstoned)
}
