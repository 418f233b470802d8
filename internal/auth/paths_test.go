package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPublicPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		path        string
		publicPaths []string
		want        bool
	}{
		{"exact match", "/health", DefaultPublicPaths, true},
		{"readiness", "/readiness", DefaultPublicPaths, true},
		{"subpath match", "/version/json", DefaultPublicPaths, true},
		{"api is protected", "/api/v1/organizations", DefaultPublicPaths, false},
		{"empty public paths", "/health", []string{}, false},
		{"nil public paths", "/health", nil, false},

		{"traversal to protected", "/health/../api/v1/jobs/1", DefaultPublicPaths, false},
		{"traversal stays in public", "/version/a/../b", DefaultPublicPaths, true},
		{"encoded separators", "/health/..%2f..%2fapi/v1/organizations", DefaultPublicPaths, false},
		{"encoded dots", "/health/%2E%2E/api", DefaultPublicPaths, false},

		{"healthz is not health", "/healthz", DefaultPublicPaths, false},
		{"trailing slash", "/health/", DefaultPublicPaths, true},
		{"double slash", "//readiness", DefaultPublicPaths, true},
		{"relative public path", "/health", []string{"health"}, true},

		{"root makes all public", "/api/v1/organizations", []string{"/"}, true},
		{"case sensitive", "/Health", DefaultPublicPaths, false},
		{"traversal with normalization", "//health/..//api", DefaultPublicPaths, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsPublicPath(tt.path, tt.publicPaths), "path=%q", tt.path)
		})
	}
}
