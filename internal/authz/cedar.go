package authz

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	cedar "github.com/cedar-policy/cedar-go"
)

const (
	typeUser         = cedar.EntityType("ScmMirror::User")
	typeRole         = cedar.EntityType("ScmMirror::Role")
	typeOrganization = cedar.EntityType("ScmMirror::Organization")
	typeAction       = cedar.EntityType("ScmMirror::Action")
)

// CedarAuthorizer evaluates requests against a Cedar policy set.
type CedarAuthorizer struct {
	policies *cedar.PolicySet
	roles    cedar.EntityMap
}

// NewCedarAuthorizer parses policies, falling back to the built-in set when
// policies is nil.
func NewCedarAuthorizer(policies []byte) (*CedarAuthorizer, error) {
	if policies == nil {
		policies = defaultPolicies
	}
	ps, err := cedar.NewPolicySetFromBytes("policies.cedar", policies)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Cedar policies: %w", err)
	}
	return &CedarAuthorizer{policies: ps, roles: roleEntities()}, nil
}

// NewAuthorizer loads the policy file at path, or the built-in policies
// when path is empty.
func NewAuthorizer(path string) (*CedarAuthorizer, error) {
	if path == "" {
		return NewCedarAuthorizer(nil)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	slog.Info("Loaded authorization policies", "path", path)
	return NewCedarAuthorizer(data)
}

// roleEntities materializes the role hierarchy as Cedar entities so that
// "principal in Role" follows it transitively.
func roleEntities() cedar.EntityMap {
	entities := make(cedar.EntityMap, len(roles))
	for _, role := range roles {
		var parents []cedar.EntityUID
		if parent, ok := roleParents[role]; ok {
			parents = append(parents, roleUID(parent))
		}
		uid := roleUID(role)
		entities[uid] = cedar.Entity{UID: uid, Parents: cedar.NewEntityUIDSet(parents...)}
	}
	return entities
}

func roleUID(role string) cedar.EntityUID {
	return cedar.NewEntityUID(typeRole, cedar.String(role))
}

func idString(id int64) cedar.String {
	return cedar.String(strconv.FormatInt(id, 10))
}

// Authorize evaluates req. The principal is a member of exactly one
// organization and inherits from its role; an unknown role has no parents and
// is denied by the built-in policies.
func (a *CedarAuthorizer) Authorize(ctx context.Context, req Request) (Decision, error) {
	orgUID := cedar.NewEntityUID(typeOrganization, idString(req.OrganizationID))
	userUID := cedar.NewEntityUID(typeUser, idString(req.UserID))

	var parents []cedar.EntityUID
	if KnownRole(req.Role) {
		parents = append(parents, roleUID(req.Role))
	}

	entities := make(cedar.EntityMap, len(a.roles)+2)
	for uid, e := range a.roles {
		entities[uid] = e
	}
	entities[orgUID] = cedar.Entity{UID: orgUID}
	entities[userUID] = cedar.Entity{
		UID:     userUID,
		Parents: cedar.NewEntityUIDSet(parents...),
		Attributes: cedar.NewRecord(cedar.RecordMap{
			"organization": orgUID,
			"role":         cedar.String(req.Role),
		}),
	}

	decision, diag := cedar.Authorize(a.policies, entities, cedar.Request{
		Principal: userUID,
		Action:    cedar.NewEntityUID(typeAction, cedar.String(req.Action)),
		Resource:  orgUID,
		Context:   cedar.NewRecord(cedar.RecordMap{}),
	})

	reasons := make([]string, 0, len(diag.Reasons))
	for _, r := range diag.Reasons {
		reasons = append(reasons, string(r.PolicyID))
	}
	for _, e := range diag.Errors {
		slog.WarnContext(ctx, "Policy evaluation error", "policy", e.PolicyID, "error", e.Message)
	}

	slog.DebugContext(ctx, "Authorization decision",
		"user_id", req.UserID,
		"role", req.Role,
		"organization_id", req.OrganizationID,
		"action", req.Action,
		"allowed", decision == cedar.Allow)

	return Decision{Allowed: decision == cedar.Allow, Reasons: reasons}, nil
}
