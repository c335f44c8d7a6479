// Package authz answers whether a caller may act on a business.
// It is the single authorization gate the billing engine consults;
// session and token mechanics live upstream of this service.
package authz

import (
	"context"
	"errors"
)

// Role is the membership level of a user within a business.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
)

// ErrNoMembership indicates the caller has no grant on the business.
var ErrNoMembership = errors.New("authz: no membership")

// Authorizer reports caller capabilities per business. Deleting
// documents is a separately grantable capability, not implied by
// write access.
type Authorizer interface {
	CanView(ctx context.Context, callerID, businessID int64) (bool, error)
	CanWrite(ctx context.Context, callerID, businessID int64) (bool, error)
	CanDelete(ctx context.Context, callerID, businessID int64) (bool, error)
}

// Grant is a single membership row.
type Grant struct {
	BusinessID int64
	UserID     int64
	Role       Role
	CanDelete  bool
}

func (g Grant) allowsWrite() bool {
	return g.Role == RoleEditor || g.Role == RoleOwner
}

func (g Grant) allowsDelete() bool {
	return g.CanDelete || g.Role == RoleOwner
}
