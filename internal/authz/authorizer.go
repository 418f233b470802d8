// Package authz decides which organization operations a member may perform.
// Decisions are made by Cedar policies evaluated over the caller's membership.
package authz

import "context"

// Authorizer evaluates whether a member may act on an organization.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) (Decision, error)
}

// Request describes a member acting on the organization they belong to.
type Request struct {
	UserID         int64
	Role           string
	OrganizationID int64
	Action         string
}

// Decision is the outcome of a Request. Reasons lists the ids of the
// policies that determined it.
type Decision struct {
	Allowed bool
	Reasons []string
}
