// Package auth resolves the GitHub account behind API requests.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/stacklok/scm-mirror/internal/github"
	"github.com/stacklok/scm-mirror/internal/service"
	"github.com/stacklok/scm-mirror/internal/store"
)

// RFC 6750 Section 3 error codes
const (
	// errorCodeInvalidRequest indicates the request is missing a required parameter,
	// includes an unsupported parameter or parameter value, or is otherwise malformed.
	errorCodeInvalidRequest = "invalid_request"

	// errorCodeInvalidToken indicates the access token provided is expired, revoked,
	// malformed, or invalid for other reasons.
	errorCodeInvalidToken = "invalid_token"
)

const (
	// DefaultRealm is the protection space advertised in WWW-Authenticate
	DefaultRealm = "scm-mirror"
	// DefaultCacheSize bounds the number of cached principals
	DefaultCacheSize = 1024
	// DefaultCacheTTL is how long a resolved principal is reused
	DefaultCacheTTL = time.Minute
)

var (
	errMissingToken = errors.New("missing or malformed authorization header")
	errInvalidToken = errors.New("token rejected by GitHub")
)

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p service.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal stored by the middleware.
func PrincipalFromContext(ctx context.Context) (service.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(service.Principal)
	return p, ok
}

// Middleware authenticates requests carrying a GitHub token.
type Middleware struct {
	client github.Client
	users  store.Users
	cache  *expirable.LRU[string, service.Principal]
	realm  string
}

type middlewareOptions struct {
	realm     string
	cacheSize int
	cacheTTL  time.Duration
}

// Option configures the middleware
type Option func(*middlewareOptions) error

// WithRealm sets the realm advertised in WWW-Authenticate
func WithRealm(realm string) Option {
	return func(o *middlewareOptions) error {
		if realm != "" {
			o.realm = realm
		}
		return nil
	}
}

// WithCache sets the principal cache size and TTL. A zero TTL disables caching.
func WithCache(size int, ttl time.Duration) Option {
	return func(o *middlewareOptions) error {
		if size < 0 || ttl < 0 {
			return fmt.Errorf("cache size and ttl must not be negative")
		}
		if size > 0 {
			o.cacheSize = size
		}
		o.cacheTTL = ttl
		return nil
	}
}

// NewMiddleware creates the authentication middleware
func NewMiddleware(client github.Client, users store.Users, opts ...Option) (*Middleware, error) {
	if client == nil {
		return nil, errors.New("github client is required")
	}
	if users == nil {
		return nil, errors.New("user store is required")
	}

	o := &middlewareOptions{realm: DefaultRealm, cacheSize: DefaultCacheSize, cacheTTL: DefaultCacheTTL}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	m := &Middleware{client: client, users: users, realm: o.realm}
	if o.cacheTTL > 0 {
		m.cache = expirable.NewLRU[string, service.Principal](o.cacheSize, nil, o.cacheTTL)
	}
	return m, nil
}

// Handler returns an HTTP middleware function that performs authentication.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r)
		if err != nil {
			slog.Warn("Token extraction failed",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path)
			m.writeError(w, http.StatusUnauthorized, errorCodeInvalidRequest, errMissingToken.Error())
			return
		}

		p, err := m.resolve(r.Context(), token)
		switch {
		case errors.Is(err, errInvalidToken):
			slog.Warn("Token validation failed",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path)
			m.writeError(w, http.StatusUnauthorized, errorCodeInvalidToken, "token validation failed")
			return
		case err != nil:
			slog.Error("Failed to resolve caller", "error", err, "path", r.URL.Path)
			writeJSONError(w, http.StatusBadGateway, "failed to verify token with GitHub")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// resolve maps a token to the local user, consulting the cache first.
func (m *Middleware) resolve(ctx context.Context, token string) (service.Principal, error) {
	key := tokenKey(token)
	if m.cache != nil {
		if p, ok := m.cache.Get(key); ok {
			return p, nil
		}
	}

	remote, err := m.client.GetAuthenticatedUser(ctx, token)
	if code := github.StatusCode(err); code == http.StatusUnauthorized || code == http.StatusForbidden {
		return service.Principal{}, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if err != nil {
		return service.Principal{}, err
	}
	if remote == nil || remote.ID == 0 {
		return service.Principal{}, errInvalidToken
	}

	user, err := m.saveUser(ctx, remote)
	if err != nil {
		return service.Principal{}, err
	}

	p := service.Principal{User: *user, Token: token}
	if m.cache != nil {
		m.cache.Add(key, p)
	}
	slog.Info("Authentication successful",
		"login", user.Login,
		"user_id", user.ID)
	return p, nil
}

// saveUser upserts the caller by GitHub id. Blank upstream fields keep the
// stored values.
func (m *Middleware) saveUser(ctx context.Context, remote *github.User) (*store.User, error) {
	user, err := m.users.FindByGitHubID(ctx, remote.ID)
	if errors.Is(err, store.ErrNotFound) {
		user = &store.User{GitHubID: remote.ID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", remote.ID, err)
	}

	setIfPresent(&user.Login, remote.Login)
	setIfPresent(&user.Name, remote.Name)
	setIfPresent(&user.Email, remote.Email)
	setIfPresent(&user.AvatarURL, remote.AvatarURL)
	setIfPresent(&user.HTMLURL, remote.HTMLURL)
	setIfPresent(&user.Type, remote.Type)
	user.SiteAdmin = remote.SiteAdmin
	user.Revive()

	if err := m.users.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user %s: %w", remote.Login, err)
	}
	return user, nil
}

func setIfPresent(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func extractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMissingToken
	}
	return token, nil
}

// tokenKey keeps raw tokens out of the cache.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// sanitizeHeaderValue removes characters that could enable header injection attacks.
func sanitizeHeaderValue(s string) string {
	if !strings.ContainsAny(s, "\r\n\"") {
		return s
	}
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.ReplaceAll(s, `"`, `\"`)
}

// writeError writes a JSON error response with RFC 6750 compliant WWW-Authenticate header.
func (m *Middleware) writeError(w http.ResponseWriter, status int, errCode, description string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s", error="%s", error_description="%s"`,
		sanitizeHeaderValue(m.realm), errCode, sanitizeHeaderValue(description)))
	writeJSONError(w, status, description)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := struct {
		Error string `json:"error"`
	}{
		Error: message,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// WrapWithPublicPaths wraps an auth middleware to bypass authentication for public paths.
func WrapWithPublicPaths(
	authMw func(http.Handler) http.Handler,
	publicPaths []string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		authWrappedNext := authMw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(r.URL.Path, publicPaths) {
				next.ServeHTTP(w, r)
				return
			}
			authWrappedNext.ServeHTTP(w, r)
		})
	}
}
