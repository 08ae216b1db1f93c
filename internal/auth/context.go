// ABOUTME: Request-scoped helpers over the tenant context set by the middleware
// ABOUTME: Provides MustFromContext and the person edit check

package auth

import (
	"context"

	"github.com/2389/famlink/internal/tenant"
)

// MustFromContext retrieves the tenant Context, panicking if not present.
func MustFromContext(ctx context.Context) *tenant.Context {
	tc := tenant.FromContext(ctx)
	if tc == nil {
		panic("auth: tenant context not found in context")
	}
	return tc
}

// CanEditPerson reports whether the caller may edit personID: admins may
// edit anyone, users only the person their grant is linked to.
func CanEditPerson(ctx context.Context, personID string) bool {
	tc := tenant.FromContext(ctx)
	if tc == nil {
		return false
	}
	if tc.IsAdmin() {
		return true
	}
	return tc.PersonID != "" && tc.PersonID == personID
}
