// ABOUTME: Tests for tenant key normalization, row scope checks and the guard checklist
// ABOUTME: Mirrors the cross-tenant rules enforced by the record store

package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", DefaultKey},
		{"   ", DefaultKey},
		{"Tenant-A", "tenant-a"},
		{" Smith Family ", "smith-family"},
		{"o'brien & co", "o-brien-co"},
		{"--weird--", "weird"},
		{"snake_case_ok", "snake_case_ok"},
		{"!!!", DefaultKey},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}

func TestScopedValueAllowed(t *testing.T) {
	assert.True(t, ScopedValueAllowed("", "tenant-a"))
	assert.True(t, ScopedValueAllowed("  ", "tenant-a"))
	assert.True(t, ScopedValueAllowed("tenant-a", "tenant-a"))
	assert.True(t, ScopedValueAllowed("TENANT-A", "tenant-a"))
	assert.False(t, ScopedValueAllowed("tenant-b", "tenant-a"))
}

func TestAssertScopedValue(t *testing.T) {
	require.NoError(t, AssertScopedValue("tenant-a", "tenant-a"))

	err := AssertScopedValue("tenant-b", "tenant-a")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCrossTenantBlocked)

	var cte *CrossTenantError
	require.True(t, errors.As(err, &cte))
	assert.Equal(t, "tenant-b", cte.RowTenant)
	assert.Equal(t, "tenant-a", cte.CallerTenant)
}

func TestContextRoundTrip(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	tc := &Context{TenantKey: "smith", Role: RoleAdmin}
	ctx := WithContext(context.Background(), tc)
	got := FromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "smith", got.TenantKey)
	assert.True(t, got.IsAdmin())

	var nilCtx *Context
	assert.False(t, nilCtx.IsAdmin())
	assert.False(t, (&Context{Role: RoleUser}).IsAdmin())
}

func TestChecklist(t *testing.T) {
	c := Checklist{}
	assert.False(t, c.Passing())
	assert.Equal(t, ChecklistItems, c.Missing())

	for _, item := range ChecklistItems {
		c.Mark(item)
	}
	assert.True(t, c.Passing())
	assert.Empty(t, c.Missing())
}
