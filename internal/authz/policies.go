package authz

import _ "embed"

//go:embed policies.cedar
var defaultPolicies []byte
