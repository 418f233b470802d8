package auth

import (
	"path"
	"strings"
)

// DefaultPublicPaths are served without a bearer token.
var DefaultPublicPaths = []string{"/health", "/readiness", "/version"}

// IsPublicPath reports whether requestPath falls under one of publicPaths.
//
// Paths with encoded separators are never public. The request path is cleaned
// before matching and prefixes only match on whole segments, so /health
// covers /health/live but not /healthz.
func IsPublicPath(requestPath string, publicPaths []string) bool {
	lower := strings.ToLower(requestPath)
	if strings.Contains(lower, "%2f") || strings.Contains(lower, "%2e") {
		return false
	}

	clean := rooted(requestPath)
	for _, p := range publicPaths {
		public := rooted(p)
		if public == "/" || clean == public || strings.HasPrefix(clean, public+"/") {
			return true
		}
	}
	return false
}

func rooted(p string) string {
	p = path.Clean(p)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
