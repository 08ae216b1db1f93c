// ABOUTME: Tests for relationship reconciliation
// ABOUTME: Covers idempotence, precise edge removal, spouse pairing and conflicts

package family

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/famlink/internal/keys"
	"github.com/2389/famlink/internal/sheet"
)

const testTenant = "default"

func edgesTouching(mem *sheet.MemoryBackend, personID string) [][]string {
	var out [][]string
	for _, row := range mem.Rows(TableRelationships)[1:] {
		if row[1] == personID || row[2] == personID {
			out = append(out, row)
		}
	}
	return out
}

func TestReconcileIdempotent(t *testing.T) {
	mem := seedWorkbook()
	svc, _ := newTestService(t, mem)
	ctx := context.Background()
	in := ReconcileInput{TenantKey: testTenant, PersonID: "p1", ParentIDs: []string{"p2", "p3"}}

	first, err := svc.Reconcile(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, first.EdgesCreated)

	second, err := svc.Reconcile(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 0, second.EdgesCreated)
	assert.Equal(t, 2, second.EdgesUpdated)
	assert.Equal(t, 0, second.EdgesDeleted)

	edges := edgesTouching(mem, "p1")
	require.Len(t, edges, 2)
	assert.ElementsMatch(t, []string{
		keys.RelationshipID(testTenant, "p2", "p1", RelTypeParent),
		keys.RelationshipID(testTenant, "p3", "p1", RelTypeParent),
	}, []string{edges[0][0], edges[1][0]})
}

func TestReconcileDedupesAndIgnoresSelf(t *testing.T) {
	mem := seedWorkbook()
	svc, _ := newTestService(t, mem)

	res, err := svc.Reconcile(context.Background(), ReconcileInput{
		TenantKey: testTenant,
		PersonID:  "p1",
		ParentIDs: []string{"p2", " p2 ", "p1", ""},
		ChildIDs:  []string{"p1"},
		SpouseID:  "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ParentCount)
	assert.Equal(t, 0, res.ChildCount)
	assert.Empty(t, res.SpouseID)
	assert.Len(t, edgesTouching(mem, "p1"), 1)
	assert.Len(t, mem.Rows(TableFamilyUnits), 1, "no unit for self spouse")
}

func TestReconcileRemovesOnlyStaleEdges(t *testing.T) {
	mem := seedWorkbook()
	unrelated := keys.RelationshipID(testTenant, "p7", "p8", RelTypeParent)
	mem.AddTab(TableRelationships, relHeaders,
		[]string{unrelated, "p7", "p8", "parent", ""},
		[]string{"sib-1", "p1", "p5", "sibling", ""},
	)
	svc, _ := newTestService(t, mem)
	ctx := context.Background()

	_, err := svc.Reconcile(ctx, ReconcileInput{
		TenantKey: testTenant, PersonID: "p1", ParentIDs: []string{"p2", "p3"}, ChildIDs: []string{"p9"},
	})
	require.NoError(t, err)

	res, err := svc.Reconcile(ctx, ReconcileInput{
		TenantKey: testTenant, PersonID: "p1", ParentIDs: []string{"p2"}, ChildIDs: []string{"p9"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.EdgesDeleted)

	var ids []string
	for _, row := range mem.Rows(TableRelationships)[1:] {
		ids = append(ids, row[0])
	}
	assert.ElementsMatch(t, []string{
		unrelated,
		"sib-1",
		keys.RelationshipID(testTenant, "p2", "p1", RelTypeParent),
		keys.RelationshipID(testTenant, "p1", "p9", RelTypeParent),
	}, ids)
}

func TestReconcileSpousePairing(t *testing.T) {
	mem := seedWorkbook()
	svc, _ := newTestService(t, mem)
	ctx := context.Background()

	res, err := svc.Reconcile(ctx, ReconcileInput{TenantKey: testTenant, PersonID: "p3", SpouseID: "p1"})
	require.NoError(t, err)
	assert.True(t, res.UnitUpserted)

	units := mem.Rows(TableFamilyUnits)
	require.Len(t, units, 2)
	assert.Equal(t, []string{keys.FamilyUnitID(testTenant, "p1", "p3"), "p1", "p3", testTenant}, units[1])

	// Same call again keeps a single unit.
	_, err = svc.Reconcile(ctx, ReconcileInput{TenantKey: testTenant, PersonID: "p1", SpouseID: "p3"})
	require.NoError(t, err)
	assert.Len(t, mem.Rows(TableFamilyUnits), 2)

	// Switching spouse replaces the unit.
	res, err = svc.Reconcile(ctx, ReconcileInput{TenantKey: testTenant, PersonID: "p1", SpouseID: "p2"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UnitsDeleted)
	units = mem.Rows(TableFamilyUnits)
	require.Len(t, units, 2)
	assert.Equal(t, keys.FamilyUnitID(testTenant, "p2", "p1"), units[1][0])

	// Clearing the spouse removes it.
	res, err = svc.Reconcile(ctx, ReconcileInput{TenantKey: testTenant, PersonID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UnitsDeleted)
	assert.Len(t, mem.Rows(TableFamilyUnits), 1)
}

func TestReconcileSpouseConflict(t *testing.T) {
	mem := seedWorkbook()
	mem.AddTab(TableFamilyUnits, unitHeaders,
		[]string{keys.FamilyUnitID(testTenant, "p4", "p5"), "p4", "p5", testTenant},
	)
	counting := newCountingBackend(mem)
	svc, _ := newTestService(t, counting)

	res, err := svc.Reconcile(context.Background(), ReconcileInput{
		TenantKey: testTenant, PersonID: "p6", ParentIDs: []string{"p2"}, SpouseID: "p4",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSpouseUnavailable))

	var conflict *SpouseUnavailableError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "p4", conflict.SpouseID)
	assert.Equal(t, "p5", conflict.CurrentSpouseID)

	assert.Equal(t, 0, counting.Writes(TableFamilyUnits), "no family unit row created or deleted")
	assert.Len(t, mem.Rows(TableFamilyUnits), 2)

	require.NotNil(t, res)
	assert.Equal(t, 1, res.EdgesCreated, "edge work still commits")
	assert.Len(t, edgesTouching(mem, "p6"), 1)
}

func TestReconcilePartnerOfSpouseIsNotConflict(t *testing.T) {
	mem := seedWorkbook()
	mem.AddTab(TableFamilyUnits, unitHeaders,
		[]string{keys.FamilyUnitID(testTenant, "p4", "p5"), "p4", "p5", testTenant},
	)
	svc, _ := newTestService(t, mem)

	_, err := svc.Reconcile(context.Background(), ReconcileInput{TenantKey: testTenant, PersonID: "p5", SpouseID: "p4"})
	require.NoError(t, err)
	assert.Len(t, mem.Rows(TableFamilyUnits), 2)
}

func TestReconcileIgnoresOtherTenants(t *testing.T) {
	mem := seedWorkbook()
	mem.AddTab(TableRelationships, relHeaders,
		[]string{"foreign", "p3", "p1", "parent", "other"},
	)
	mem.AddTab(TableFamilyUnits, unitHeaders,
		[]string{"foreign-unit", "p4", "p5", "other"},
	)
	svc, _ := newTestService(t, mem)

	_, err := svc.Reconcile(context.Background(), ReconcileInput{TenantKey: testTenant, PersonID: "p1", SpouseID: "p4"})
	require.NoError(t, err)

	assert.Equal(t, "foreign", mem.Rows(TableRelationships)[1][0])
	assert.Equal(t, "foreign-unit", mem.Rows(TableFamilyUnits)[1][0])
}

// failingAppendBackend fails appends whose row mentions a given id.
type failingAppendBackend struct {
	*sheet.MemoryBackend
	match string
}

func (f failingAppendBackend) AppendRow(ctx context.Context, tab string, row []string) error {
	if strings.Contains(strings.Join(row, ","), f.match) {
		return fmt.Errorf("quota exceeded")
	}
	return f.MemoryBackend.AppendRow(ctx, tab, row)
}

func TestReconcilePartialFailure(t *testing.T) {
	mem := seedWorkbook()
	svc, _ := newTestService(t, failingAppendBackend{MemoryBackend: mem, match: "p3"})

	res, err := svc.Reconcile(context.Background(), ReconcileInput{
		TenantKey: testTenant, PersonID: "p1", ParentIDs: []string{"p2", "p3"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPartialBatch))

	var batch *BatchError
	require.True(t, errors.As(err, &batch))
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, "upsert_relationship", batch.Failures[0].Op)
	assert.Equal(t, keys.RelationshipID(testTenant, "p3", "p1", RelTypeParent), batch.Failures[0].ID)

	assert.Equal(t, 1, res.EdgesCreated)
	assert.Len(t, edgesTouching(mem, "p1"), 1, "successful writes are kept")
}

func TestReconcileSpouseConflictReportsEdgeFailures(t *testing.T) {
	mem := seedWorkbook()
	mem.AddTab(TableFamilyUnits, unitHeaders,
		[]string{keys.FamilyUnitID(testTenant, "p4", "p5"), "p4", "p5", testTenant},
	)
	svc, _ := newTestService(t, failingAppendBackend{MemoryBackend: mem, match: "p3"})

	res, err := svc.Reconcile(context.Background(), ReconcileInput{
		TenantKey: testTenant, PersonID: "p6", ParentIDs: []string{"p3"}, SpouseID: "p4",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSpouseUnavailable))
	assert.True(t, errors.Is(err, ErrPartialBatch))

	var conflict *SpouseUnavailableError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "p5", conflict.CurrentSpouseID)

	var batch *BatchError
	require.True(t, errors.As(err, &batch))
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, keys.RelationshipID(testTenant, "p3", "p6", RelTypeParent), batch.Failures[0].ID)
	assert.Equal(t, batch.Failures, res.Failures)
}

func TestReconcileHalfFilledUnit(t *testing.T) {
	mem := seedWorkbook()
	mem.AddTab(TableFamilyUnits, unitHeaders,
		[]string{"fu-legacy", "p4", "", testTenant},
	)
	svc, _ := newTestService(t, mem)
	ctx := context.Background()

	// The lone partner is taken, with no one to name as the other side.
	_, err := svc.Reconcile(ctx, ReconcileInput{TenantKey: testTenant, PersonID: "p6", SpouseID: "p4"})
	var conflict *SpouseUnavailableError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "p4", conflict.SpouseID)
	assert.Empty(t, conflict.CurrentSpouseID)
	assert.Equal(t, [][]string{unitHeaders, {"fu-legacy", "p4", "", testTenant}}, mem.Rows(TableFamilyUnits))

	// Hidden from listings.
	units, err := svc.FamilyUnits(ctx, testTenant)
	require.NoError(t, err)
	assert.Empty(t, units)

	// Reconciling the lone partner replaces it.
	res, err := svc.Reconcile(ctx, ReconcileInput{TenantKey: testTenant, PersonID: "p4", SpouseID: "p7"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UnitsDeleted)
	rows := mem.Rows(TableFamilyUnits)
	require.Len(t, rows, 2)
	assert.Equal(t, keys.FamilyUnitID(testTenant, "p4", "p7"), rows[1][0])
}

func TestReconcileReadsEachTabOnce(t *testing.T) {
	counting := newCountingBackend(seedWorkbook())
	svc, _ := newTestService(t, counting)

	_, err := svc.Reconcile(context.Background(), ReconcileInput{TenantKey: testTenant, PersonID: "p1", SpouseID: "p2"})
	require.NoError(t, err)

	// One snapshot read each, then the upserts re-read for their own writes.
	units, rels := counting.Reads(TableFamilyUnits), counting.Reads(TableRelationships)
	assert.Equal(t, 1, rels, "no edges desired, so only the snapshot")
	assert.GreaterOrEqual(t, units, 2)

	counting.ResetReads()
	_, err = svc.FamilyUnits(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, 1, counting.Reads(TableFamilyUnits))
}

func TestReconcileValidation(t *testing.T) {
	svc, _ := newTestService(t, seedWorkbook())
	_, err := svc.Reconcile(context.Background(), ReconcileInput{TenantKey: testTenant, PersonID: "  "})
	require.Error(t, err)
}

func TestSuggestSecondParent(t *testing.T) {
	mem := seedWorkbook()
	mem.AddTab(TableFamilyUnits, unitHeaders,
		[]string{"u1", "p4", "p5", ""},
	)
	svc, _ := newTestService(t, mem)
	ctx := context.Background()

	got, err := svc.SuggestSecondParent(ctx, testTenant, []string{"p5", ""})
	require.NoError(t, err)
	assert.Equal(t, "p4", got)

	got, err = svc.SuggestSecondParent(ctx, testTenant, []string{"p5", "p2"})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = svc.SuggestSecondParent(ctx, testTenant, []string{"p9"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
