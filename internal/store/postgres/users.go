package postgres

import (
	"context"

	"github.com/stacklok/scm-mirror/internal/store"
)

const userColumns = `id, github_id, login, name, email, avatar_url, html_url, type, site_admin,
	created_at, updated_at, deleted_at`

func scanUser(row scanner) (store.User, error) {
	var u store.User
	err := row.Scan(&u.ID, &u.GitHubID, &u.Login, &u.Name, &u.Email, &u.AvatarURL, &u.HTMLURL, &u.Type,
		&u.SiteAdmin, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	return u, err
}

type users struct{ s *Store }

func (r users) FindByID(ctx context.Context, id int64) (*store.User, error) {
	return findOne(ctx, r.s.q(ctx), scanUser, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r users) FindByGitHubID(ctx context.Context, githubID int64) (*store.User, error) {
	return findOne(ctx, r.s.q(ctx), scanUser, `SELECT `+userColumns+` FROM users WHERE github_id = $1`, githubID)
}

func (r users) Save(ctx context.Context, u *store.User) error {
	if u.ID == 0 {
		return insert(ctx, r.s.q(ctx), &u.Record, `
			INSERT INTO users (github_id, login, name, email, avatar_url, html_url, type, site_admin, deleted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at`,
			u.GitHubID, u.Login, u.Name, u.Email, u.AvatarURL, u.HTMLURL, u.Type, u.SiteAdmin, u.DeletedAt)
	}
	return update(ctx, r.s.q(ctx), &u.Record, `
		UPDATE users SET github_id = $2, login = $3, name = $4, email = $5, avatar_url = $6, html_url = $7,
			type = $8, site_admin = $9, deleted_at = $10, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.GitHubID, u.Login, u.Name, u.Email, u.AvatarURL, u.HTMLURL, u.Type, u.SiteAdmin, u.DeletedAt)
}
