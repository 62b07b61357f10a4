package domain

import (
	"context"
	"time"
)

// TenantAuth is the identity a bearer credential is minted for.
type TenantAuth struct {
	TenantID           string
	UserEmail          string // optional, attributes the call to a user
	Expiry             time.Duration
	PermissionAudience string // optional, narrows the credential's scope
	NonBillable        bool
}

// CredentialMinter compiles a tenant auth context into a short-lived bearer
// credential. Implementations fail closed: invalid input is an error, never
// a degraded credential.
type CredentialMinter interface {
	Mint(ctx context.Context, auth TenantAuth) (string, error)
}
