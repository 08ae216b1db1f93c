// ABOUTME: Package records provides header-keyed CRUD over workbook tabs
// ABOUTME: Applies tenant row scoping and verify-before-write retries

// Package records turns tab grids into header-keyed records.
//
// Every call resolves its tab, reads it fresh and locates the target row
// by the value of an id column. The id column is explicit or inferred from
// the headers (id, person_id, record_id, user_email, then the first header).
//
// # Tenant scoping
//
// When a tab has a tenant_key column, a row is visible and mutable only
// when that cell is empty or equals the caller's normalized tenant key.
// The Store is the single place that applies this filter. ListUnscoped
// bypasses it for global tabs; callers re-check rows with
// tenant.AssertScopedValue before acting on them.
//
// # Writes
//
// Mutations of one tab hold the workbook's per-tab lock from their read
// until their write. Before writing, the target row is re-read and
// compared with the snapshot. A mismatch (a concurrent delete shifted the
// rows, or another writer changed the row) restarts the operation from a
// fresh read, up to MaxAttempts times, after which
// ErrConcurrentModification is returned.
package records
