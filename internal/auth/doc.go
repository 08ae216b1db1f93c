// Package auth is the tenant guard in front of the famlink API.
//
// # Authentication
//
// Callers present an HS256 JWT as a bearer token. The "sub" claim is the
// caller's email address. Tokens are minted by the operator command
// (famlink token); the server never issues sessions itself.
//
// # Tenant resolution
//
// The Guard maps an email and a requested tenant key onto a
// tenant.Context. Grants come from a GrantSource; the shipped SheetGrants
// reads enabled rows of the UserAccess tab:
//
//	user_email | is_enabled | role  | person_id | tenant_key | tenant_name
//
// A missing tenant key on a grant means the default tenant. An empty
// requested key selects the caller's first grant. A requested tenant the
// caller holds no grant for is ErrForbidden.
//
// Admins manage the same tab through SheetGrants.List and Upsert. A grant
// is keyed by its email and tenant key, so writing the pair again rewrites
// its row.
//
// # HTTP
//
//	r.Use(auth.Middleware(verifier, guard, logger)) // reads {tenantKey}
//	r.With(auth.RequireAdmin()).Post(...)
//
// Handlers read the resolved identity with tenant.FromContext.
package auth
