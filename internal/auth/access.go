// ABOUTME: Grant administration on the UserAccess tab
// ABOUTME: Lists a tenant's grants and upserts one grant keyed by email and tenant

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/sheet"
	"github.com/2389/famlink/internal/tenant"
)

// GrantInput is one grant to write. IsEnabled defaults to true.
type GrantInput struct {
	UserEmail  string `json:"userEmail" validate:"required,email,max=254"`
	TenantKey  string `json:"tenantKey" validate:"required,max=80"`
	TenantName string `json:"tenantName" validate:"required,max=120"`
	Role       string `json:"role" validate:"required,oneof=ADMIN USER"`
	PersonID   string `json:"personId" validate:"max=120"`
	IsEnabled  *bool  `json:"isEnabled"`
}

// List returns every grant of tenantKey, disabled ones included, in sheet order.
func (g *SheetGrants) List(ctx context.Context, tenantKey string) ([]Grant, error) {
	rows, err := g.store.ListUnscoped(ctx, AccessTable)
	if errors.Is(err, sheet.ErrTabNotFound) {
		return []Grant{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read grants: %w", err)
	}
	key := tenant.NormalizeKey(tenantKey)
	out := make([]Grant, 0)
	for _, r := range rows {
		email := strings.TrimSpace(r.Get("user_email"))
		if email == "" || tenant.NormalizeKey(r.Get("tenant_key")) != key {
			continue
		}
		out = append(out, grantFromRecord(r, key))
	}
	return out, nil
}

func grantFromRecord(r records.Record, key string) Grant {
	return Grant{
		UserEmail:  strings.TrimSpace(r.Get("user_email")),
		IsEnabled:  enabled(r.Get("is_enabled")),
		Role:       normalizeRole(r.Get("role")),
		PersonID:   strings.TrimSpace(r.Get("person_id")),
		TenantKey:  key,
		TenantName: tenantName(key, r.Get("tenant_name")),
	}
}

// Upsert writes the grant of in.UserEmail in in.TenantKey, rewriting the
// existing row for that pair when there is one. It reports whether a row
// was added.
func (g *SheetGrants) Upsert(ctx context.Context, in GrantInput) (*Grant, bool, error) {
	in.UserEmail = strings.ToLower(strings.TrimSpace(in.UserEmail))
	in.TenantKey = strings.TrimSpace(in.TenantKey)
	in.TenantName = strings.TrimSpace(in.TenantName)
	in.Role = strings.ToUpper(strings.TrimSpace(in.Role))
	in.PersonID = strings.TrimSpace(in.PersonID)
	if err := g.validate.Struct(in); err != nil {
		return nil, false, err
	}

	isEnabled := in.IsEnabled == nil || *in.IsEnabled
	key := tenant.NormalizeKey(in.TenantKey)
	match := func(r records.Record) bool {
		return strings.EqualFold(strings.TrimSpace(r.Get("user_email")), in.UserEmail) &&
			tenant.NormalizeKey(r.Get("tenant_key")) == key
	}
	flag := "FALSE"
	if isEnabled {
		flag = "TRUE"
	}
	rec, created, err := g.store.UpsertUnscoped(ctx, AccessTable, match, map[string]string{
		"user_email":  in.UserEmail,
		"is_enabled":  flag,
		"role":        in.Role,
		"person_id":   in.PersonID,
		"tenant_key":  key,
		"tenant_name": in.TenantName,
	})
	if err != nil {
		return nil, false, err
	}
	grant := grantFromRecord(*rec, key)
	return &grant, created, nil
}
