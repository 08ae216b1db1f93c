// Package api exposes the famlink record store and relationship graph over
// HTTP.
//
// Every tenant route lives under /api/t/{tenantKey} and passes through
// auth.Middleware, which resolves the caller's tenant.Context. Mutating
// routes additionally require the ADMIN role, except person edits, which
// the linked person may make themselves. /api/me, /api/tenants and
// /api/tenants/provision resolve against the caller's first grant.
//
// Errors are JSON objects with an "error" code:
//
//	{"error": "spouse_unavailable", "spouseId": "p4", "currentSpouseId": "p5"}
//
// errors.go is the only place where package errors become HTTP statuses.
package api
