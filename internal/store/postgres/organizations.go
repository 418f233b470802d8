package postgres

import (
	"context"

	"github.com/stacklok/scm-mirror/internal/store"
)

const organizationColumns = `o.id, o.github_id, o.login, o.name, o.description, o.avatar_url, o.html_url,
	o.default_link_url, o.last_synced_at, o.created_at, o.updated_at, o.deleted_at`

func scanOrganization(row scanner) (store.Organization, error) {
	var o store.Organization
	err := row.Scan(&o.ID, &o.GitHubID, &o.Login, &o.Name, &o.Description, &o.AvatarURL, &o.HTMLURL,
		&o.DefaultLinkURL, &o.LastSyncedAt, &o.CreatedAt, &o.UpdatedAt, &o.DeletedAt)
	return o, err
}

type organizations struct{ s *Store }

func (r organizations) FindByID(ctx context.Context, id int64) (*store.Organization, error) {
	return findOne(ctx, r.s.q(ctx), scanOrganization,
		`SELECT `+organizationColumns+` FROM organizations o WHERE o.id = $1`, id)
}

func (r organizations) FindByGitHubID(ctx context.Context, githubID int64) (*store.Organization, error) {
	return findOne(ctx, r.s.q(ctx), scanOrganization,
		`SELECT `+organizationColumns+` FROM organizations o WHERE o.github_id = $1`, githubID)
}

func (r organizations) ListActiveByUser(ctx context.Context, userID int64) ([]store.Organization, error) {
	return findMany(ctx, r.s.q(ctx), scanOrganization, `
		SELECT `+organizationColumns+`
		FROM organizations o
		JOIN memberships m ON m.organization_id = o.id
		WHERE m.user_id = $1 AND m.deleted_at IS NULL AND o.deleted_at IS NULL
		ORDER BY o.id`, userID)
}

func (r organizations) Save(ctx context.Context, o *store.Organization) error {
	if o.ID == 0 {
		return insert(ctx, r.s.q(ctx), &o.Record, `
			INSERT INTO organizations (github_id, login, name, description, avatar_url, html_url,
				default_link_url, last_synced_at, deleted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at`,
			o.GitHubID, o.Login, o.Name, o.Description, o.AvatarURL, o.HTMLURL,
			o.DefaultLinkURL, o.LastSyncedAt, o.DeletedAt)
	}
	return update(ctx, r.s.q(ctx), &o.Record, `
		UPDATE organizations SET github_id = $2, login = $3, name = $4, description = $5, avatar_url = $6,
			html_url = $7, default_link_url = $8, last_synced_at = $9, deleted_at = $10, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		o.ID, o.GitHubID, o.Login, o.Name, o.Description, o.AvatarURL, o.HTMLURL,
		o.DefaultLinkURL, o.LastSyncedAt, o.DeletedAt)
}

const membershipColumns = `id, organization_id, user_id, role, joined_at, created_at, updated_at, deleted_at`

func scanMembership(row scanner) (store.Membership, error) {
	var m store.Membership
	err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.JoinedAt,
		&m.CreatedAt, &m.UpdatedAt, &m.DeletedAt)
	return m, err
}

type memberships struct{ s *Store }

func (r memberships) Find(ctx context.Context, orgID, userID int64) (*store.Membership, error) {
	return findOne(ctx, r.s.q(ctx), scanMembership,
		`SELECT `+membershipColumns+` FROM memberships WHERE organization_id = $1 AND user_id = $2`, orgID, userID)
}

func (r memberships) ListActiveByOrganization(ctx context.Context, orgID int64) ([]store.Membership, error) {
	return findMany(ctx, r.s.q(ctx), scanMembership, `
		SELECT `+membershipColumns+` FROM memberships
		WHERE organization_id = $1 AND deleted_at IS NULL
		ORDER BY id`, orgID)
}

func (r memberships) Save(ctx context.Context, m *store.Membership) error {
	if m.ID == 0 {
		return insert(ctx, r.s.q(ctx), &m.Record, `
			INSERT INTO memberships (organization_id, user_id, role, joined_at, deleted_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at`,
			m.OrganizationID, m.UserID, m.Role, m.JoinedAt, m.DeletedAt)
	}
	return update(ctx, r.s.q(ctx), &m.Record, `
		UPDATE memberships SET organization_id = $2, user_id = $3, role = $4, joined_at = $5,
			deleted_at = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.OrganizationID, m.UserID, m.Role, m.JoinedAt, m.DeletedAt)
}
