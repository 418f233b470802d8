package postgres

import (
	"context"

	"github.com/stacklok/scm-mirror/internal/store"
)

// Both file tables share this shape; only the parent column differs.
const (
	pullRequestFileColumns = `id, pull_request_id, path, extension, status, additions, deletions, changes, raw_url,
	created_at, updated_at, deleted_at`
	commitFileColumns = `id, commit_id, path, extension, status, additions, deletions, changes, raw_url,
	created_at, updated_at, deleted_at`
)

func scanFile(row scanner, rec *store.Record, parentID *int64, f *store.FileChange) error {
	return row.Scan(&rec.ID, parentID, &f.Path, &f.Extension, &f.Status, &f.Additions, &f.Deletions,
		&f.Changes, &f.RawURL, &rec.CreatedAt, &rec.UpdatedAt, &rec.DeletedAt)
}

func scanPullRequestFile(row scanner) (store.PullRequestFile, error) {
	var f store.PullRequestFile
	err := scanFile(row, &f.Record, &f.PullRequestID, &f.FileChange)
	return f, err
}

func scanCommitFile(row scanner) (store.CommitFile, error) {
	var f store.CommitFile
	err := scanFile(row, &f.Record, &f.CommitID, &f.FileChange)
	return f, err
}

type pullRequestFiles struct{ s *Store }

func (r pullRequestFiles) FindByPath(ctx context.Context, prID int64, path string) (*store.PullRequestFile, error) {
	return findOne(ctx, r.s.q(ctx), scanPullRequestFile,
		`SELECT `+pullRequestFileColumns+` FROM pull_request_files WHERE pull_request_id = $1 AND path = $2`,
		prID, path)
}

func (r pullRequestFiles) ListActiveByPullRequest(ctx context.Context, prID int64) ([]store.PullRequestFile, error) {
	return findMany(ctx, r.s.q(ctx), scanPullRequestFile, `
		SELECT `+pullRequestFileColumns+` FROM pull_request_files
		WHERE pull_request_id = $1 AND deleted_at IS NULL
		ORDER BY id`, prID)
}

func (r pullRequestFiles) Save(ctx context.Context, f *store.PullRequestFile) error {
	if f.ID == 0 {
		return insert(ctx, r.s.q(ctx), &f.Record, `
			INSERT INTO pull_request_files (pull_request_id, path, extension, status, additions, deletions,
				changes, raw_url, deleted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at`,
			f.PullRequestID, f.Path, f.Extension, f.Status, f.Additions, f.Deletions, f.Changes, f.RawURL, f.DeletedAt)
	}
	return update(ctx, r.s.q(ctx), &f.Record, `
		UPDATE pull_request_files SET pull_request_id = $2, path = $3, extension = $4, status = $5,
			additions = $6, deletions = $7, changes = $8, raw_url = $9, deleted_at = $10, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		f.ID, f.PullRequestID, f.Path, f.Extension, f.Status, f.Additions, f.Deletions, f.Changes, f.RawURL,
		f.DeletedAt)
}

type commitFiles struct{ s *Store }

func (r commitFiles) FindByPath(ctx context.Context, commitID int64, path string) (*store.CommitFile, error) {
	return findOne(ctx, r.s.q(ctx), scanCommitFile,
		`SELECT `+commitFileColumns+` FROM commit_files WHERE commit_id = $1 AND path = $2`, commitID, path)
}

func (r commitFiles) ListActiveByCommit(ctx context.Context, commitID int64) ([]store.CommitFile, error) {
	return findMany(ctx, r.s.q(ctx), scanCommitFile, `
		SELECT `+commitFileColumns+` FROM commit_files
		WHERE commit_id = $1 AND deleted_at IS NULL
		ORDER BY id`, commitID)
}

func (r commitFiles) Save(ctx context.Context, f *store.CommitFile) error {
	if f.ID == 0 {
		return insert(ctx, r.s.q(ctx), &f.Record, `
			INSERT INTO commit_files (commit_id, path, extension, status, additions, deletions, changes,
				raw_url, deleted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at`,
			f.CommitID, f.Path, f.Extension, f.Status, f.Additions, f.Deletions, f.Changes, f.RawURL, f.DeletedAt)
	}
	return update(ctx, r.s.q(ctx), &f.Record, `
		UPDATE commit_files SET commit_id = $2, path = $3, extension = $4, status = $5, additions = $6,
			deletions = $7, changes = $8, raw_url = $9, deleted_at = $10, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		f.ID, f.CommitID, f.Path, f.Extension, f.Status, f.Additions, f.Deletions, f.Changes, f.RawURL, f.DeletedAt)
}
