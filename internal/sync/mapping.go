package sync

import (
	"path"
	"strings"
	"time"

	"github.com/stacklok/scm-mirror/internal/github"
	"github.com/stacklok/scm-mirror/internal/store"
)

func applyOrganization(org *store.Organization, remote *github.Organization, now time.Time) {
	if remote.Login != "" {
		org.Login = remote.Login
	}
	org.Name = remote.Name
	org.Description = remote.Description
	org.AvatarURL = remote.AvatarURL
	org.HTMLURL = remote.HTMLURL
	org.LastSyncedAt = &now
}

func applyRepository(row *store.Repository, org *store.Organization, item github.Repository) {
	row.OrganizationID = org.ID
	row.Name = item.Name
	row.FullName = org.Login + "/" + item.Name
	row.OwnerLogin = item.OwnerLogin()
	if row.OwnerLogin == "" {
		row.OwnerLogin = org.Login
	}
	row.Description = item.Description
	row.HTMLURL = item.HTMLURL
	row.Language = item.Language
	row.Stars = item.StargazersCount
	row.Forks = item.ForksCount
	row.DefaultBranch = item.DefaultBranch
	row.Private = item.Private
	row.Archived = item.Archived
}

func applyUser(user *store.User, remote github.User, siteAdmin bool) {
	setIfPresent(&user.Login, remote.Login)
	setIfPresent(&user.Name, remote.Name)
	setIfPresent(&user.Email, remote.Email)
	setIfPresent(&user.AvatarURL, remote.AvatarURL)
	setIfPresent(&user.HTMLURL, remote.HTMLURL)
	setIfPresent(&user.Type, remote.Type)
	user.SiteAdmin = siteAdmin
}

func memberAsUser(m github.Member) github.User {
	return github.User{
		ID:        m.ID,
		Login:     m.Login,
		AvatarURL: m.AvatarURL,
		HTMLURL:   m.HTMLURL,
		Type:      m.Type,
		SiteAdmin: m.SiteAdmin,
	}
}

func applyPullRequest(row *store.PullRequest, repoID int64, pr *github.PullRequest) {
	row.RepositoryID = repoID
	if pr.ID != 0 {
		row.GitHubID = pr.ID
	}
	row.Number = pr.Number
	row.Title = pr.Title
	row.Body = pr.Body
	row.State = pr.State
	row.Merged = pr.Merged || pr.MergedAt != nil
	row.HTMLURL = pr.HTMLURL
	row.Additions = pr.Additions
	row.Deletions = pr.Deletions
	row.ChangedFiles = pr.ChangedFiles
	row.OpenedAt = pr.CreatedAt
	row.RemoteUpdatedAt = pr.UpdatedAt
	row.MergedAt = pr.MergedAt
	row.ClosedAt = pr.ClosedAt
}

func applyCommit(row *store.Commit, repoID int64, c github.Commit) {
	author := c.Author()
	committer := c.Committer()

	row.RepositoryID = repoID
	row.SHA = c.SHA
	row.Message = c.Message()
	row.HTMLURL = c.HTMLURL
	row.AuthorName = author.Name
	row.AuthorEmail = author.Email
	row.CommitterName = committer.Name
	row.CommitterEmail = committer.Email
	row.AuthoredAt = author.Date
	row.CommittedAt = committer.Date
	if row.CommittedAt == nil {
		row.CommittedAt = author.Date
	}
	row.PushedAt = committer.Date
}

func applyFile(fc *store.FileChange, f github.File) {
	fc.Path = f.Filename
	fc.Extension = fileExtension(f.Filename)
	fc.Status = f.Status
	fc.Additions = f.Additions
	fc.Deletions = f.Deletions
	fc.Changes = f.Changes
	fc.RawURL = f.RawURL
}

// fileExtension returns the text after the last dot of the final path
// element, or "" when there is none.
func fileExtension(p string) string {
	base := path.Base(strings.TrimSpace(p))
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 || dot == len(base)-1 {
		return ""
	}
	return base[dot+1:]
}

// resolveOwnerRepo derives the GitHub owner and name of a repository: from
// the full name first, then the owner login, then the organization login.
func resolveOwnerRepo(repo *store.Repository, orgLogin string) (owner, name string, ok bool) {
	if owner, name, found := strings.Cut(strings.TrimSpace(repo.FullName), "/"); found {
		owner, name = strings.TrimSpace(owner), strings.TrimSpace(name)
		if owner != "" && name != "" {
			return owner, name, true
		}
	}
	name = strings.TrimSpace(repo.Name)
	if name == "" {
		return "", "", false
	}
	if owner = strings.TrimSpace(repo.OwnerLogin); owner != "" {
		return owner, name, true
	}
	if owner = strings.TrimSpace(orgLogin); owner != "" {
		return owner, name, true
	}
	return "", "", false
}

func setIfPresent(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}
