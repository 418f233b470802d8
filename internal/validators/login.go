// Package validators checks user supplied GitHub identifiers and links
// before they reach GitHub or the store.
package validators

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const maxLoginLength = 39

// GitHub logins are alphanumeric with single inner hyphens
var loginPattern = regexp.MustCompile(`^[a-zA-Z0-9]+(-[a-zA-Z0-9]+)*$`)

// ValidateLogin validates a GitHub user or organization login.
// Returns the validated login (trimmed) and an error if validation fails.
//
// Format requirements:
//   - 1 to 39 characters
//   - Letters, digits and hyphens only
//   - No leading, trailing or consecutive hyphens
//
// Examples of valid logins:
//   - acme
//   - acme-corp
//   - Octo42
//
// Examples of invalid logins:
//   - -acme (starts with a hyphen)
//   - acme--corp (consecutive hyphens)
//   - acme/repo (contains a slash)
func ValidateLogin(login string) (string, error) {
	login = strings.TrimSpace(login)

	if login == "" {
		return "", fmt.Errorf("login cannot be empty")
	}
	if len(login) > maxLoginLength {
		return "", fmt.Errorf("login must be at most %d characters, got %d", maxLoginLength, len(login))
	}
	if !loginPattern.MatchString(login) {
		return "", fmt.Errorf(
			"login %q is invalid: use letters, digits and single hyphens, not at the start or end", login)
	}
	return login, nil
}

// ValidateLinkURL validates an organization default link. Returns the
// trimmed link; an empty link is returned unchanged.
func ValidateLinkURL(link string) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", nil
	}

	u, err := url.Parse(link)
	if err != nil {
		return "", fmt.Errorf("link is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("link must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("link must be an absolute URL with a host")
	}
	return link, nil
}
