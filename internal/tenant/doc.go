// Package tenant holds the tenant identity model shared by every layer.
//
// # Keys
//
// A tenant key names a family-group workspace. Keys arrive from URLs, tokens
// and spreadsheet cells, so they are always passed through NormalizeKey
// before comparison:
//
//	NormalizeKey(" Smith Family ") // "smith-family"
//	NormalizeKey("")               // "default"
//
// # Row Scope
//
// Shared tables carry a tenant_key column. A row is visible to a caller when
// the cell is empty (legacy rows) or normalizes to the caller's key:
//
//	ScopedValueAllowed("", "smith")      // true
//	ScopedValueAllowed("SMITH", "smith") // true
//	ScopedValueAllowed("jones", "smith") // false
//
// AssertScopedValue turns the same check into an ErrCrossTenantBlocked error
// and is used whenever a record fetched through an unscoped path is about to
// be mutated.
//
// # Request Context
//
// The auth middleware resolves a Context per request and attaches it with
// WithContext; handlers read it back with FromContext.
package tenant
