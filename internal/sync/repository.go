package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/scm-mirror/internal/github"
	"github.com/stacklok/scm-mirror/internal/otel"
	"github.com/stacklok/scm-mirror/internal/reconcile"
	"github.com/stacklok/scm-mirror/internal/store"
	"github.com/stacklok/scm-mirror/internal/telemetry"
)

type outcome int

const (
	outcomeSynced outcome = iota
	outcomeFailed
	outcomeSkipped
)

// SynchronizeRepository mirrors the recent activity of one repository.
//
// GitHub API failures are recorded on the repository's sync status and are not
// returned. Callers that need mutual exclusion with organization passes must
// hold the repository lock.
func (o *Orchestrator) SynchronizeRepository(ctx context.Context, repoID int64, token string) error {
	if repoID <= 0 {
		return fmt.Errorf("%w: repository id must be positive", ErrInvalidArgument)
	}
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidArgument)
	}

	repo, err := o.store.Repositories().FindByID(ctx, repoID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && repo.IsDeleted()) {
		return fmt.Errorf("%w: repository %d", ErrNotFound, repoID)
	}
	if err != nil {
		return fmt.Errorf("failed to load repository %d: %w", repoID, err)
	}

	var orgLogin string
	if org, err := o.store.Organizations().FindByID(ctx, repo.OrganizationID); err == nil {
		orgLogin = org.Login
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to load organization %d: %w", repo.OrganizationID, err)
	}

	_, err = o.synchronizeRepository(ctx, repo, orgLogin, token)
	return err
}

// synchronizeRepository runs the repository pass and records its outcome.
func (o *Orchestrator) synchronizeRepository(
	ctx context.Context, repo *store.Repository, orgLogin, token string,
) (outcome, error) {
	owner, name, ok := resolveOwnerRepo(repo, orgLogin)
	if !ok {
		slog.WarnContext(ctx, "Skipping repository without owner or name", "repository_id", repo.ID)
		return outcomeSkipped, nil
	}

	ctx, span := otel.StartSpan(ctx, o.tracer, "sync.SynchronizeRepository",
		trace.WithAttributes(
			otel.AttrRepositoryID.Int64(repo.ID),
			otel.AttrRepositoryName.String(owner+"/"+name),
		))
	defer span.End()

	started := o.now()
	latestSHA, err := o.pullActivity(ctx, repo.ID, owner, name, token)
	if err == nil {
		finished := o.now()
		err = o.withActiveRepository(ctx, repo.ID, func(ctx context.Context, r *store.Repository) error {
			return o.tracker.MarkSynced(ctx, r, finished, latestSHA)
		})
	}
	o.metrics.RecordSyncDuration(ctx, telemetry.SyncScopeRepository, o.now().Sub(started), err == nil)
	if err == nil {
		slog.DebugContext(ctx, "Repository synchronized", "repository_id", repo.ID, "full_name", owner+"/"+name)
		return outcomeSynced, nil
	}
	otel.RecordError(span, err)

	// The pass context may already be cancelled; the failure is still recorded.
	markCtx := context.WithoutCancel(ctx)
	markErr := o.withActiveRepository(markCtx, repo.ID, func(ctx context.Context, r *store.Repository) error {
		return o.tracker.MarkFailure(ctx, r, started, err.Error())
	})

	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		slog.WarnContext(ctx, "Repository sync failed",
			"repository_id", repo.ID,
			"full_name", owner+"/"+name,
			"status", apiErr.StatusCode,
			"error", err)
		if markErr != nil {
			return outcomeFailed, markErr
		}
		return outcomeFailed, nil
	}
	return outcomeFailed, errors.Join(fmt.Errorf("failed to sync repository %s/%s: %w", owner, name, err), markErr)
}

// pullActivity mirrors pull requests and commits and returns the newest commit
// sha, or "" when none was listed.
func (o *Orchestrator) pullActivity(ctx context.Context, repoID int64, owner, name, token string) (string, error) {
	summaries, err := o.client.ListPullRequestSummaries(ctx, token, owner, name, o.limits.MaxPullRequests)
	if err != nil {
		return "", err
	}
	for _, summary := range summaries {
		if summary.Number <= 0 {
			continue
		}
		if err := o.pullPullRequest(ctx, repoID, owner, name, token, summary.Number); err != nil {
			return "", err
		}
	}

	since := o.now().Add(-o.limits.Lookback)
	commits, err := o.client.ListCommits(ctx, token, owner, name, o.limits.MaxCommits, since)
	if err != nil {
		return "", err
	}
	for _, c := range commits {
		if strings.TrimSpace(c.SHA) == "" {
			continue
		}
		if err := o.pullCommit(ctx, repoID, owner, name, token, c); err != nil {
			return "", err
		}
	}

	if len(commits) == 0 {
		return "", nil
	}
	return commits[0].SHA, nil
}

func (o *Orchestrator) pullPullRequest(ctx context.Context, repoID int64, owner, name, token string, number int) error {
	detail, err := o.client.GetPullRequest(ctx, token, owner, name, number)
	if err != nil {
		return err
	}
	if detail == nil {
		return nil
	}
	if detail.Number <= 0 {
		detail.Number = number
	}

	var files []github.File
	if o.fetchPullRequestDetails {
		files, err = o.client.ListPullRequestFiles(ctx, token, owner, name, number, o.limits.MaxPullRequestFiles)
		if err != nil {
			return err
		}
	}

	return o.withActiveRepository(ctx, repoID, func(ctx context.Context, repo *store.Repository) error {
		pr, err := o.savePullRequest(ctx, repo.ID, detail)
		if err != nil {
			return err
		}
		// Without details the file set is cleared rather than left stale.
		_, err = o.reconcilePullRequestFiles(ctx, pr.ID, files)
		return err
	})
}

func (o *Orchestrator) savePullRequest(ctx context.Context, repoID int64, detail *github.PullRequest) (*store.PullRequest, error) {
	pr, err := o.store.PullRequests().FindByNumber(ctx, repoID, detail.Number)
	if errors.Is(err, store.ErrNotFound) {
		pr = &store.PullRequest{}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load pull request #%d: %w", detail.Number, err)
	}

	applyPullRequest(pr, repoID, detail)
	if pr.AuthorID, err = o.userRef(ctx, detail.User); err != nil {
		return nil, err
	}
	if pr.MergedByID, err = o.userRef(ctx, detail.MergedBy); err != nil {
		return nil, err
	}
	pr.Revive()
	if err := o.store.PullRequests().Save(ctx, pr); err != nil {
		return nil, fmt.Errorf("failed to save pull request #%d: %w", detail.Number, err)
	}
	return pr, nil
}

func (o *Orchestrator) pullCommit(ctx context.Context, repoID int64, owner, name, token string, c github.Commit) error {
	var (
		commit   *store.Commit
		hasFiles bool
	)
	err := o.withActiveRepository(ctx, repoID, func(ctx context.Context, repo *store.Repository) error {
		var err error
		commit, hasFiles, err = o.saveCommit(ctx, repo.ID, c)
		return err
	})
	if err != nil || commit == nil {
		return err
	}

	if !o.fetchCommitDetails {
		return o.store.InTx(ctx, func(ctx context.Context) error {
			_, err := o.reconcileCommitFiles(ctx, commit.ID, nil)
			return err
		})
	}
	// Commits are immutable, so files fetched once are never refetched.
	if hasFiles {
		return nil
	}

	detail, err := o.client.GetCommit(ctx, token, owner, name, c.SHA)
	if err != nil {
		return err
	}
	if detail == nil {
		return nil
	}
	return o.store.InTx(ctx, func(ctx context.Context) error {
		_, err := o.reconcileCommitFiles(ctx, commit.ID, detail.Files)
		return err
	})
}

// saveCommit upserts a commit and reports whether it already has active files.
func (o *Orchestrator) saveCommit(ctx context.Context, repoID int64, c github.Commit) (*store.Commit, bool, error) {
	commit, err := o.store.Commits().FindBySHA(ctx, repoID, c.SHA)
	if errors.Is(err, store.ErrNotFound) {
		commit = &store.Commit{}
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to load commit %s: %w", c.SHA, err)
	}

	applyCommit(commit, repoID, c)
	commit.Revive()
	if err := o.store.Commits().Save(ctx, commit); err != nil {
		return nil, false, fmt.Errorf("failed to save commit %s: %w", c.SHA, err)
	}

	files, err := o.store.CommitFiles().ListActiveByCommit(ctx, commit.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list files of commit %s: %w", c.SHA, err)
	}
	return commit, len(files) > 0, nil
}

func fileKey(f github.File) (string, bool) {
	p := strings.TrimSpace(f.Filename)
	return p, p != ""
}

func (o *Orchestrator) reconcilePullRequestFiles(
	ctx context.Context, prID int64, incoming []github.File,
) (reconcile.Result, error) {
	repo := o.store.PullRequestFiles()
	existing, err := repo.ListActiveByPullRequest(ctx, prID)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("failed to list files of pull request %d: %w", prID, err)
	}
	now := o.now()

	save := func(ctx context.Context, row *store.PullRequestFile, f github.File) error {
		applyFile(&row.FileChange, f)
		row.Path = strings.TrimSpace(f.Filename)
		row.Revive()
		return repo.Save(ctx, row)
	}
	spec := reconcile.Spec[store.PullRequestFile, github.File, string]{
		LocalKey:  func(f store.PullRequestFile) (string, bool) { return f.Path, f.Path != "" },
		RemoteKey: fileKey,
		Update: func(ctx context.Context, row store.PullRequestFile, f github.File) error {
			return save(ctx, &row, f)
		},
		Insert: func(ctx context.Context, f github.File) error {
			row, err := repo.FindByPath(ctx, prID, strings.TrimSpace(f.Filename))
			if errors.Is(err, store.ErrNotFound) {
				row = &store.PullRequestFile{PullRequestID: prID}
			} else if err != nil {
				return err
			}
			return save(ctx, row, f)
		},
		Tombstone: func(ctx context.Context, row store.PullRequestFile) error {
			row.Tombstone(now)
			return repo.Save(ctx, &row)
		},
	}
	res, err := reconcile.Run(ctx, spec, existing, incoming)
	o.recordReconciled(ctx, "pull_request_file", res)
	return res, err
}

func (o *Orchestrator) reconcileCommitFiles(
	ctx context.Context, commitID int64, incoming []github.File,
) (reconcile.Result, error) {
	repo := o.store.CommitFiles()
	existing, err := repo.ListActiveByCommit(ctx, commitID)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("failed to list files of commit %d: %w", commitID, err)
	}
	now := o.now()

	save := func(ctx context.Context, row *store.CommitFile, f github.File) error {
		applyFile(&row.FileChange, f)
		row.Path = strings.TrimSpace(f.Filename)
		row.Revive()
		return repo.Save(ctx, row)
	}
	spec := reconcile.Spec[store.CommitFile, github.File, string]{
		LocalKey:  func(f store.CommitFile) (string, bool) { return f.Path, f.Path != "" },
		RemoteKey: fileKey,
		Update: func(ctx context.Context, row store.CommitFile, f github.File) error {
			return save(ctx, &row, f)
		},
		Insert: func(ctx context.Context, f github.File) error {
			row, err := repo.FindByPath(ctx, commitID, strings.TrimSpace(f.Filename))
			if errors.Is(err, store.ErrNotFound) {
				row = &store.CommitFile{CommitID: commitID}
			} else if err != nil {
				return err
			}
			return save(ctx, row, f)
		},
		Tombstone: func(ctx context.Context, row store.CommitFile) error {
			row.Tombstone(now)
			return repo.Save(ctx, &row)
		},
	}
	res, err := reconcile.Run(ctx, spec, existing, incoming)
	o.recordReconciled(ctx, "commit_file", res)
	return res, err
}

// withActiveRepository runs fn in a unit of work with a freshly loaded copy of
// the repository. It does nothing when the repository was tombstoned
// meanwhile.
func (o *Orchestrator) withActiveRepository(
	ctx context.Context, repoID int64, fn func(context.Context, *store.Repository) error,
) error {
	return o.store.InTx(ctx, func(ctx context.Context) error {
		repo, err := o.store.Repositories().FindByID(ctx, repoID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load repository %d: %w", repoID, err)
		}
		if repo.IsDeleted() {
			return nil
		}
		return fn(ctx, repo)
	})
}
