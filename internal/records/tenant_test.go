// ABOUTME: Tests for row-level and tab-level tenant isolation in the record store
// ABOUTME: A foreign row is never returned, updated or deleted

package records

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/famlink/internal/sheet"
	"github.com/2389/famlink/internal/tenant"
)

func newSharedTab(t *testing.T) (*Store, *sheet.MemoryBackend) {
	t.Helper()
	mem := sheet.NewMemoryBackend()
	mem.AddTab("People",
		[]string{"person_id", "display_name", "tenant_key"},
		[]string{"a1", "Alpha", "tenant-a"},
		[]string{"b1", "Bravo", "tenant-b"},
		[]string{"legacy", "Old", ""},
	)
	return newTestStore(t, mem), mem
}

func TestTenantIsolationList(t *testing.T) {
	s, _ := newSharedTab(t)
	recs, err := s.List(context.Background(), "People", "tenant-b")
	require.NoError(t, err)

	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"b1", "legacy"}, ids)
}

func TestTenantIsolationGet(t *testing.T) {
	s, _ := newSharedTab(t)
	_, err := s.Get(context.Background(), "People", "a1", "", "tenant-b")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	rec, err := s.Get(context.Background(), "People", "a1", "", "Tenant-A")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", rec.Get("display_name"))
}

func TestTenantIsolationUpdate(t *testing.T) {
	s, mem := newSharedTab(t)
	ctx := context.Background()

	_, err := s.Update(ctx, "People", "a1", map[string]string{"display_name": "Hacked"}, "", "tenant-b")
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Equal(t, "Alpha", mem.Rows("People")[1][1])

	_, err = s.Update(ctx, "People", "b1", map[string]string{"tenant_key": "tenant-a"}, "", "tenant-b")
	assert.ErrorIs(t, err, tenant.ErrCrossTenantBlocked)
	assert.Equal(t, "tenant-b", mem.Rows("People")[2][2])
}

func TestTenantIsolationDelete(t *testing.T) {
	s, mem := newSharedTab(t)
	ok, err := s.Delete(context.Background(), "People", "a1", "", "tenant-b")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, mem.Rows("People"), 4)
}

func TestCreateStampsTenant(t *testing.T) {
	s, mem := newSharedTab(t)
	ctx := context.Background()

	rec, err := s.Create(ctx, "People", map[string]string{"person_id": "b2"}, "Tenant-B")
	require.NoError(t, err)
	assert.Equal(t, "tenant-b", rec.Get("tenant_key"))

	_, err = s.Create(ctx, "People", map[string]string{"person_id": "x", "tenant_key": "tenant-a"}, "tenant-b")
	assert.ErrorIs(t, err, tenant.ErrCrossTenantBlocked)
	assert.Len(t, mem.Rows("People"), 5)
}

func TestTenantPrefixedTab(t *testing.T) {
	mem := sheet.NewMemoryBackend()
	mem.AddTab("People", []string{"person_id"}, []string{"shared"})
	mem.AddTab("smith__People", []string{"person_id"}, []string{"mine"})
	s := newTestStore(t, mem)
	ctx := context.Background()

	recs, err := s.List(ctx, "People", "smith")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "mine", recs[0].ID)

	unscoped, err := s.ListUnscoped(ctx, "People")
	require.NoError(t, err)
	require.Len(t, unscoped, 1)
	assert.Equal(t, "shared", unscoped[0].ID)
}

func TestListWithHeaders(t *testing.T) {
	s, _ := newSharedTab(t)
	recs, headers, err := s.ListWithHeaders(context.Background(), "People", "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"person_id", "display_name", "tenant_key"}, headers)
	require.Len(t, recs, 2)
	assert.Equal(t, "a1", recs[0].ID)
}

func TestLookupSeesForeignRows(t *testing.T) {
	s, _ := newSharedTab(t)
	ctx := context.Background()

	rec, err := s.Lookup(ctx, "People", "a1", "", "tenant-b")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", rec.Get(TenantColumn))
	assert.ErrorIs(t, tenant.AssertScopedValue(rec.Get(TenantColumn), "tenant-b"), tenant.ErrCrossTenantBlocked)

	_, err = s.Lookup(ctx, "People", "zz", "", "tenant-b")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
