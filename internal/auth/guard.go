// ABOUTME: Tenant guard resolving a verified email and requested tenant key to a tenant.Context
// ABOUTME: Grants are read from the UserAccess tab through the record store

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/sheet"
	"github.com/2389/famlink/internal/tenant"
)

// Guard errors
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// AccessTable is the tab holding user grants.
const AccessTable = "UserAccess"

// AccessHeaders is the header row of a provisioned AccessTable.
var AccessHeaders = []string{"user_email", "is_enabled", "role", "person_id", "tenant_key", "tenant_name"}

// Grant gives one email a role in one tenant.
type Grant struct {
	UserEmail  string `json:"userEmail"`
	IsEnabled  bool   `json:"isEnabled"`
	Role       string `json:"role"`
	PersonID   string `json:"personId"`
	TenantKey  string `json:"tenantKey"`
	TenantName string `json:"tenantName"`
}

// GrantSource lists the enabled grants of an email.
type GrantSource interface {
	Grants(ctx context.Context, email string) ([]Grant, error)
}

// SheetGrants reads and writes grants on the UserAccess tab.
type SheetGrants struct {
	store    *records.Store
	validate *validator.Validate
}

// NewSheetGrants creates a GrantSource over store.
func NewSheetGrants(store *records.Store) *SheetGrants {
	return &SheetGrants{store: store, validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Grants returns the enabled rows for email in sheet order.
func (g *SheetGrants) Grants(ctx context.Context, email string) ([]Grant, error) {
	rows, err := g.store.ListUnscoped(ctx, AccessTable)
	if errors.Is(err, sheet.ErrTabNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read grants: %w", err)
	}
	email = strings.TrimSpace(email)
	var out []Grant
	for _, r := range rows {
		if !strings.EqualFold(strings.TrimSpace(r.Get("user_email")), email) {
			continue
		}
		if !enabled(r.Get("is_enabled")) {
			continue
		}
		out = append(out, grantFromRecord(r, tenant.NormalizeKey(r.Get("tenant_key"))))
	}
	return out, nil
}

func enabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "1", "y":
		return true
	}
	return false
}

func normalizeRole(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), tenant.RoleAdmin) {
		return tenant.RoleAdmin
	}
	return tenant.RoleUser
}

func tenantName(key, name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if tenant.IsDefault(key) {
		return tenant.DefaultName
	}
	return key
}

// Guard resolves request identities to tenant contexts.
type Guard struct {
	grants GrantSource
	logger *slog.Logger
}

// NewGuard creates a Guard over grants.
func NewGuard(grants GrantSource, logger *slog.Logger) *Guard {
	return &Guard{grants: grants, logger: logger.With("component", "auth")}
}

// Resolve maps a verified email and requested tenant key onto a tenant
// Context. An empty requestedKey selects the caller's first grant.
func (g *Guard) Resolve(ctx context.Context, identity, requestedKey string) (*tenant.Context, error) {
	tc, checks, err := g.resolve(ctx, identity, requestedKey)
	if err != nil {
		return nil, err
	}
	if !checks.Passing() {
		g.logger.Warn("guard checklist incomplete", "email", identity, "missing", checks.Missing())
		return nil, ErrForbidden
	}
	return tc, nil
}

func (g *Guard) resolve(ctx context.Context, identity, requestedKey string) (*tenant.Context, tenant.Checklist, error) {
	checks := tenant.Checklist{}
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, checks, ErrUnauthenticated
	}
	checks.Mark(tenant.CheckSessionRequired)

	grants, err := g.grants.Grants(ctx, identity)
	if err != nil {
		return nil, checks, err
	}
	if len(grants) == 0 {
		g.logger.Debug("no grants", "email", identity)
		return nil, checks, ErrForbidden
	}

	chosen := &grants[0]
	if strings.TrimSpace(requestedKey) != "" {
		want := tenant.NormalizeKey(requestedKey)
		chosen = nil
		for i := range grants {
			if grants[i].TenantKey == want {
				chosen = &grants[i]
				break
			}
		}
		if chosen == nil {
			g.logger.Debug("tenant not granted", "email", identity, "tenant", want)
			return nil, checks, ErrForbidden
		}
	}
	checks.Mark(tenant.CheckTenantMembershipRequired)

	tc := &tenant.Context{
		TenantKey:  chosen.TenantKey,
		TenantName: chosen.TenantName,
		Role:       chosen.Role,
		PersonID:   chosen.PersonID,
		Email:      identity,
		Tenants:    summaries(grants),
	}
	checks.Mark(tenant.CheckTenantContextResolved)

	// Row filters compare normalized keys. A source handing back a raw key
	// would scope every read to a tenant no row can match.
	if chosen.TenantKey == tenant.NormalizeKey(chosen.TenantKey) {
		checks.Mark(tenant.CheckTenantRowScopeEnforced)
	}
	return tc, checks, nil
}

func summaries(grants []Grant) []tenant.Summary {
	seen := make(map[string]bool, len(grants))
	out := make([]tenant.Summary, 0, len(grants))
	for _, g := range grants {
		if seen[g.TenantKey] {
			continue
		}
		seen[g.TenantKey] = true
		out = append(out, tenant.Summary{Key: g.TenantKey, Name: g.TenantName, Role: g.Role})
	}
	return out
}
