// ABOUTME: Tenant key normalization, row-scope checks and request context
// ABOUTME: Shared by the record store, the graph engine and the auth guard

package tenant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultKey is the tenant used when no key is supplied.
const DefaultKey = "default"

// DefaultName is the display name of the default tenant.
const DefaultName = "The Eternal Family Link"

// Role values carried by a tenant grant.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// ErrCrossTenantBlocked is returned when a row belongs to a different tenant
// than the caller.
var ErrCrossTenantBlocked = errors.New("cross_tenant_row_blocked")

// CrossTenantError carries both sides of a blocked cross-tenant access.
type CrossTenantError struct {
	RowTenant    string
	CallerTenant string
	Details      string
}

func (e *CrossTenantError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: row tenant %q, caller tenant %q", e.Details, e.RowTenant, e.CallerTenant)
	}
	return fmt.Sprintf("cross tenant row blocked: row tenant %q, caller tenant %q", e.RowTenant, e.CallerTenant)
}

func (e *CrossTenantError) Unwrap() error {
	return ErrCrossTenantBlocked
}

var invalidKeyChars = regexp.MustCompile(`[^a-z0-9_-]+`)

// NormalizeKey lowercases the key and restricts it to [a-z0-9_-].
// An empty result maps to DefaultKey.
func NormalizeKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	k = invalidKeyChars.ReplaceAllString(k, "-")
	k = strings.Trim(k, "-")
	if k == "" {
		return DefaultKey
	}
	return k
}

// IsDefault reports whether key normalizes to the default tenant.
func IsDefault(key string) bool {
	return NormalizeKey(key) == DefaultKey
}

// ScopedValueAllowed reports whether a row whose tenant_key cell holds
// rowValue may be seen or mutated by tenantKey.
func ScopedValueAllowed(rowValue, tenantKey string) bool {
	if strings.TrimSpace(rowValue) == "" {
		return true
	}
	return NormalizeKey(rowValue) == NormalizeKey(tenantKey)
}

// AssertScopedValue returns a *CrossTenantError when rowValue belongs to
// another tenant.
func AssertScopedValue(rowValue, tenantKey string) error {
	if ScopedValueAllowed(rowValue, tenantKey) {
		return nil
	}
	return &CrossTenantError{
		RowTenant:    NormalizeKey(rowValue),
		CallerTenant: NormalizeKey(tenantKey),
	}
}

// Summary describes one tenant a caller has access to.
type Summary struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Context is the verified tenant identity of a request.
type Context struct {
	TenantKey  string
	TenantName string
	Role       string
	PersonID   string
	Email      string
	Tenants    []Summary
}

// IsAdmin returns true if the caller holds the ADMIN role in this tenant.
func (c *Context) IsAdmin() bool {
	return c != nil && strings.EqualFold(c.Role, RoleAdmin)
}

type contextKey struct{}

// WithContext returns a new context with the tenant Context attached.
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext retrieves the tenant Context, returning nil if not present.
func FromContext(ctx context.Context) *Context {
	tc, _ := ctx.Value(contextKey{}).(*Context)
	return tc
}
