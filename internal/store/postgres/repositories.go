package postgres

import (
	"context"

	"github.com/stacklok/scm-mirror/internal/store"
)

const repositoryColumns = `id, organization_id, github_id, name, full_name, owner_login, description, html_url,
	language, stars, forks, default_branch, private, archived, created_at, updated_at, deleted_at`

func scanRepository(row scanner) (store.Repository, error) {
	var r store.Repository
	err := row.Scan(&r.ID, &r.OrganizationID, &r.GitHubID, &r.Name, &r.FullName, &r.OwnerLogin, &r.Description,
		&r.HTMLURL, &r.Language, &r.Stars, &r.Forks, &r.DefaultBranch, &r.Private, &r.Archived,
		&r.CreatedAt, &r.UpdatedAt, &r.DeletedAt)
	return r, err
}

type repositories struct{ s *Store }

func (r repositories) FindByID(ctx context.Context, id int64) (*store.Repository, error) {
	return findOne(ctx, r.s.q(ctx), scanRepository, `SELECT `+repositoryColumns+` FROM repositories WHERE id = $1`, id)
}

func (r repositories) FindByGitHubID(ctx context.Context, githubID int64) (*store.Repository, error) {
	return findOne(ctx, r.s.q(ctx), scanRepository,
		`SELECT `+repositoryColumns+` FROM repositories WHERE github_id = $1`, githubID)
}

func (r repositories) ListActiveByOrganization(ctx context.Context, orgID int64) ([]store.Repository, error) {
	return findMany(ctx, r.s.q(ctx), scanRepository, `
		SELECT `+repositoryColumns+` FROM repositories
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY id`, orgID)
}

func (r repositories) Save(ctx context.Context, repo *store.Repository) error {
	if repo.ID == 0 {
		return insert(ctx, r.s.q(ctx), &repo.Record, `
			INSERT INTO repositories (organization_id, github_id, name, full_name, owner_login, description,
				html_url, language, stars, forks, default_branch, private, archived, deleted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING id, created_at, updated_at`,
			repo.OrganizationID, repo.GitHubID, repo.Name, repo.FullName, repo.OwnerLogin, repo.Description,
			repo.HTMLURL, repo.Language, repo.Stars, repo.Forks, repo.DefaultBranch, repo.Private, repo.Archived,
			repo.DeletedAt)
	}
	return update(ctx, r.s.q(ctx), &repo.Record, `
		UPDATE repositories SET organization_id = $2, github_id = $3, name = $4, full_name = $5, owner_login = $6,
			description = $7, html_url = $8, language = $9, stars = $10, forks = $11, default_branch = $12,
			private = $13, archived = $14, deleted_at = $15, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		repo.ID, repo.OrganizationID, repo.GitHubID, repo.Name, repo.FullName, repo.OwnerLogin, repo.Description,
		repo.HTMLURL, repo.Language, repo.Stars, repo.Forks, repo.DefaultBranch, repo.Private, repo.Archived,
		repo.DeletedAt)
}

const syncStatusColumns = `st.id, st.repository_id, st.last_synced_at, st.last_synced_commit_sha, st.error_message,
	st.created_at, st.updated_at, st.deleted_at`

func scanSyncStatus(row scanner) (store.RepositorySyncStatus, error) {
	var st store.RepositorySyncStatus
	err := row.Scan(&st.ID, &st.RepositoryID, &st.LastSyncedAt, &st.LastSyncedCommitSHA, &st.ErrorMessage,
		&st.CreatedAt, &st.UpdatedAt, &st.DeletedAt)
	return st, err
}

type syncStatuses struct{ s *Store }

func (r syncStatuses) FindByRepository(ctx context.Context, repoID int64) (*store.RepositorySyncStatus, error) {
	return findOne(ctx, r.s.q(ctx), scanSyncStatus,
		`SELECT `+syncStatusColumns+` FROM repository_sync_statuses st WHERE st.repository_id = $1`, repoID)
}

func (r syncStatuses) ListActiveByOrganization(ctx context.Context, orgID int64) ([]store.RepositorySyncStatus, error) {
	return findMany(ctx, r.s.q(ctx), scanSyncStatus, `
		SELECT `+syncStatusColumns+`
		FROM repository_sync_statuses st
		JOIN repositories r ON r.id = st.repository_id
		WHERE r.organization_id = $1 AND r.deleted_at IS NULL AND st.deleted_at IS NULL
		ORDER BY st.repository_id`, orgID)
}

func (r syncStatuses) Save(ctx context.Context, st *store.RepositorySyncStatus) error {
	if st.ID == 0 {
		return insert(ctx, r.s.q(ctx), &st.Record, `
			INSERT INTO repository_sync_statuses (repository_id, last_synced_at, last_synced_commit_sha,
				error_message, deleted_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at`,
			st.RepositoryID, st.LastSyncedAt, st.LastSyncedCommitSHA, st.ErrorMessage, st.DeletedAt)
	}
	return update(ctx, r.s.q(ctx), &st.Record, `
		UPDATE repository_sync_statuses SET repository_id = $2, last_synced_at = $3,
			last_synced_commit_sha = $4, error_message = $5, deleted_at = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		st.ID, st.RepositoryID, st.LastSyncedAt, st.LastSyncedCommitSHA, st.ErrorMessage, st.DeletedAt)
}
