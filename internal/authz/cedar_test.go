package authz

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/scm-mirror/internal/store"
)

func TestNewCedarAuthorizer(t *testing.T) {
	t.Parallel()

	_, err := NewCedarAuthorizer(nil)
	require.NoError(t, err)

	_, err = NewCedarAuthorizer([]byte(""))
	require.NoError(t, err, "an empty policy set denies everything but is valid")

	_, err = NewCedarAuthorizer([]byte("permit everybody;"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Cedar policies")
}

func TestDefaultPolicies(t *testing.T) {
	t.Parallel()

	authorizer, err := NewCedarAuthorizer(nil)
	require.NoError(t, err)

	tests := []struct {
		role   string
		action string
		allow  bool
	}{
		{store.RoleOwner, ActionRead, true},
		{store.RoleOwner, ActionSync, true},
		{store.RoleOwner, ActionAdmin, true},
		{store.RoleAdmin, ActionRead, true},
		{store.RoleAdmin, ActionSync, true},
		{store.RoleAdmin, ActionAdmin, true},
		{store.RoleMember, ActionRead, true},
		{store.RoleMember, ActionSync, true},
		{store.RoleMember, ActionAdmin, false},
		{"outside_collaborator", ActionRead, false},
		{"", ActionRead, false},
		{store.RoleAdmin, "delete_everything", true},
		{store.RoleMember, "delete_everything", false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.action, func(t *testing.T) {
			t.Parallel()

			decision, err := authorizer.Authorize(context.Background(), Request{
				UserID:         7,
				Role:           tt.role,
				OrganizationID: 3,
				Action:         tt.action,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.allow, decision.Allowed)
			if tt.allow {
				assert.NotEmpty(t, decision.Reasons)
			}
		})
	}
}

func TestCustomPolicyScopesToOrganization(t *testing.T) {
	t.Parallel()

	authorizer, err := NewCedarAuthorizer([]byte(`
permit (principal in ScmMirror::Role::"member", action, resource == ScmMirror::Organization::"1")
when { principal.organization == resource };

forbid (principal, action == ScmMirror::Action::"sync", resource)
when { principal.role == "member" };
`))
	require.NoError(t, err)

	tests := []struct {
		name  string
		req   Request
		allow bool
	}{
		{"member reads allowed org", Request{UserID: 1, Role: "member", OrganizationID: 1, Action: ActionRead}, true},
		{"member reads other org", Request{UserID: 1, Role: "member", OrganizationID: 2, Action: ActionRead}, false},
		{"forbid wins for members", Request{UserID: 1, Role: "member", OrganizationID: 1, Action: ActionSync}, false},
		{"owner inherits member grant", Request{UserID: 2, Role: "owner", OrganizationID: 1, Action: ActionSync}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			decision, err := authorizer.Authorize(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.allow, decision.Allowed)
		})
	}
}

func TestNewAuthorizer(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	readOnly := filepath.Join(dir, "read-only.cedar")
	require.NoError(t, os.WriteFile(readOnly, []byte(
		`permit (principal, action == ScmMirror::Action::"read", resource);`), 0600))
	broken := filepath.Join(dir, "broken.cedar")
	require.NoError(t, os.WriteFile(broken, []byte("permit ("), 0600))

	t.Run("built-in", func(t *testing.T) {
		t.Parallel()
		a, err := NewAuthorizer("")
		require.NoError(t, err)
		assert.NotNil(t, a)
	})

	t.Run("from file", func(t *testing.T) {
		t.Parallel()
		a, err := NewAuthorizer(readOnly)
		require.NoError(t, err)

		decision, err := a.Authorize(context.Background(), Request{Role: "nobody", Action: ActionRead})
		require.NoError(t, err)
		assert.True(t, decision.Allowed)

		decision, err = a.Authorize(context.Background(), Request{Role: store.RoleOwner, Action: ActionAdmin})
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := NewAuthorizer(filepath.Join(dir, "absent.cedar"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read policy file")
	})

	t.Run("invalid file", func(t *testing.T) {
		t.Parallel()
		_, err := NewAuthorizer(broken)
		require.Error(t, err)
	})
}
