package postgres

import (
	"context"

	"github.com/stacklok/scm-mirror/internal/store"
)

const pullRequestColumns = `pr.id, pr.repository_id, pr.github_id, pr.number, pr.title, pr.body, pr.state,
	pr.merged, pr.html_url, pr.author_id, pr.merged_by_id, pr.additions, pr.deletions, pr.changed_files,
	pr.opened_at, pr.remote_updated_at, pr.merged_at, pr.closed_at, pr.created_at, pr.updated_at, pr.deleted_at`

func scanPullRequest(row scanner) (store.PullRequest, error) {
	var pr store.PullRequest
	err := row.Scan(&pr.ID, &pr.RepositoryID, &pr.GitHubID, &pr.Number, &pr.Title, &pr.Body, &pr.State,
		&pr.Merged, &pr.HTMLURL, &pr.AuthorID, &pr.MergedByID, &pr.Additions, &pr.Deletions, &pr.ChangedFiles,
		&pr.OpenedAt, &pr.RemoteUpdatedAt, &pr.MergedAt, &pr.ClosedAt, &pr.CreatedAt, &pr.UpdatedAt, &pr.DeletedAt)
	return pr, err
}

type pullRequests struct{ s *Store }

func (r pullRequests) FindByNumber(ctx context.Context, repoID int64, number int) (*store.PullRequest, error) {
	return findOne(ctx, r.s.q(ctx), scanPullRequest,
		`SELECT `+pullRequestColumns+` FROM pull_requests pr WHERE pr.repository_id = $1 AND pr.number = $2`,
		repoID, number)
}

func (r pullRequests) Feed(ctx context.Context, orgID, beforeID int64, limit int) ([]store.PullRequest, error) {
	ctx, span := r.s.startSpan(ctx, "store.PullRequests.Feed")
	defer span.End()

	rows, err := findMany(ctx, r.s.q(ctx), scanPullRequest, `
		SELECT `+pullRequestColumns+`
		FROM pull_requests pr
		JOIN repositories r ON r.id = pr.repository_id
		WHERE r.organization_id = $1 AND r.deleted_at IS NULL AND pr.deleted_at IS NULL
			AND ($2::BIGINT <= 0 OR pr.id < $2)
		ORDER BY pr.id DESC
		LIMIT $3`, orgID, beforeID, limit)
	recordError(span, err)
	return rows, err
}

func (r pullRequests) Save(ctx context.Context, pr *store.PullRequest) error {
	if pr.ID == 0 {
		return insert(ctx, r.s.q(ctx), &pr.Record, `
			INSERT INTO pull_requests (repository_id, github_id, number, title, body, state, merged, html_url,
				author_id, merged_by_id, additions, deletions, changed_files, opened_at, remote_updated_at,
				merged_at, closed_at, deleted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING id, created_at, updated_at`,
			pr.RepositoryID, pr.GitHubID, pr.Number, pr.Title, pr.Body, pr.State, pr.Merged, pr.HTMLURL,
			pr.AuthorID, pr.MergedByID, pr.Additions, pr.Deletions, pr.ChangedFiles, pr.OpenedAt,
			pr.RemoteUpdatedAt, pr.MergedAt, pr.ClosedAt, pr.DeletedAt)
	}
	return update(ctx, r.s.q(ctx), &pr.Record, `
		UPDATE pull_requests SET repository_id = $2, github_id = $3, number = $4, title = $5, body = $6,
			state = $7, merged = $8, html_url = $9, author_id = $10, merged_by_id = $11, additions = $12,
			deletions = $13, changed_files = $14, opened_at = $15, remote_updated_at = $16, merged_at = $17,
			closed_at = $18, deleted_at = $19, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		pr.ID, pr.RepositoryID, pr.GitHubID, pr.Number, pr.Title, pr.Body, pr.State, pr.Merged, pr.HTMLURL,
		pr.AuthorID, pr.MergedByID, pr.Additions, pr.Deletions, pr.ChangedFiles, pr.OpenedAt,
		pr.RemoteUpdatedAt, pr.MergedAt, pr.ClosedAt, pr.DeletedAt)
}

const commitColumns = `c.id, c.repository_id, c.sha, c.message, c.html_url, c.author_name, c.author_email,
	c.committer_name, c.committer_email, c.authored_at, c.committed_at, c.pushed_at,
	c.created_at, c.updated_at, c.deleted_at`

func scanCommit(row scanner) (store.Commit, error) {
	var c store.Commit
	err := row.Scan(&c.ID, &c.RepositoryID, &c.SHA, &c.Message, &c.HTMLURL, &c.AuthorName, &c.AuthorEmail,
		&c.CommitterName, &c.CommitterEmail, &c.AuthoredAt, &c.CommittedAt, &c.PushedAt,
		&c.CreatedAt, &c.UpdatedAt, &c.DeletedAt)
	return c, err
}

type commits struct{ s *Store }

func (r commits) FindBySHA(ctx context.Context, repoID int64, sha string) (*store.Commit, error) {
	return findOne(ctx, r.s.q(ctx), scanCommit,
		`SELECT `+commitColumns+` FROM commits c WHERE c.repository_id = $1 AND c.sha = $2`, repoID, sha)
}

func (r commits) Feed(ctx context.Context, orgID, beforeID int64, limit int) ([]store.Commit, error) {
	ctx, span := r.s.startSpan(ctx, "store.Commits.Feed")
	defer span.End()

	rows, err := findMany(ctx, r.s.q(ctx), scanCommit, `
		SELECT `+commitColumns+`
		FROM commits c
		JOIN repositories r ON r.id = c.repository_id
		WHERE r.organization_id = $1 AND r.deleted_at IS NULL AND c.deleted_at IS NULL
			AND ($2::BIGINT <= 0 OR c.id < $2)
		ORDER BY c.id DESC
		LIMIT $3`, orgID, beforeID, limit)
	recordError(span, err)
	return rows, err
}

func (r commits) Save(ctx context.Context, c *store.Commit) error {
	if c.ID == 0 {
		return insert(ctx, r.s.q(ctx), &c.Record, `
			INSERT INTO commits (repository_id, sha, message, html_url, author_name, author_email,
				committer_name, committer_email, authored_at, committed_at, pushed_at, deleted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, created_at, updated_at`,
			c.RepositoryID, c.SHA, c.Message, c.HTMLURL, c.AuthorName, c.AuthorEmail,
			c.CommitterName, c.CommitterEmail, c.AuthoredAt, c.CommittedAt, c.PushedAt, c.DeletedAt)
	}
	return update(ctx, r.s.q(ctx), &c.Record, `
		UPDATE commits SET repository_id = $2, sha = $3, message = $4, html_url = $5, author_name = $6,
			author_email = $7, committer_name = $8, committer_email = $9, authored_at = $10,
			committed_at = $11, pushed_at = $12, deleted_at = $13, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.RepositoryID, c.SHA, c.Message, c.HTMLURL, c.AuthorName, c.AuthorEmail,
		c.CommitterName, c.CommitterEmail, c.AuthoredAt, c.CommittedAt, c.PushedAt, c.DeletedAt)
}
