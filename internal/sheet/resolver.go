// ABOUTME: Tab resolver mapping a logical table name and tenant key to a live tab
// ABOUTME: Tries the tenant-prefixed tab first, then the bare shared tab

package sheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389/famlink/internal/tenant"
)

// TenantSeparator joins a tenant key and table name in a tenant-specific tab title.
const TenantSeparator = "__"

// Resolver maps logical table names onto physical tabs.
type Resolver struct {
	backend Backend
}

// NewResolver creates a resolver over the given backend.
func NewResolver(backend Backend) *Resolver {
	return &Resolver{backend: backend}
}

// Candidates returns the ordered tab titles tried for table under tenantKey.
func Candidates(table, tenantKey string) []string {
	table = strings.TrimSpace(table)
	key := tenant.NormalizeKey(tenantKey)
	if key == tenant.DefaultKey {
		return []string{table}
	}
	return []string{key + TenantSeparator + table, table}
}

// Resolve returns the first live tab matching a candidate, case-insensitively.
func (r *Resolver) Resolve(ctx context.Context, table, tenantKey string) (Tab, error) {
	tabs, err := r.backend.ListTabs(ctx)
	if err != nil {
		return Tab{}, fmt.Errorf("listing tabs: %w", err)
	}
	return match(tabs, table, tenantKey)
}

func match(tabs []Tab, table, tenantKey string) (Tab, error) {
	candidates := Candidates(table, tenantKey)

	byTitle := make(map[string]Tab, len(tabs))
	for _, t := range tabs {
		key := strings.ToLower(strings.TrimSpace(t.Title))
		if _, exists := byTitle[key]; !exists {
			byTitle[key] = t
		}
	}

	for _, c := range candidates {
		if t, ok := byTitle[strings.ToLower(c)]; ok {
			return t, nil
		}
	}
	return Tab{}, &TabNotFoundError{Table: strings.TrimSpace(table), Candidates: candidates}
}
