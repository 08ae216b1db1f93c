// ABOUTME: Tests for the SQLite workbook backend
// ABOUTME: Covers tab creation, range reads, appends and structural deletes

package sheet

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func newTestSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := NewSQLiteBackend(":memory:", DriverModernc)
	if err != nil {
		t.Fatalf("NewSQLiteBackend failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestNewSQLiteBackend_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "workbook.db")

	b, err := NewSQLiteBackend(dbPath, "")
	if err != nil {
		t.Fatalf("NewSQLiteBackend failed: %v", err)
	}
	defer b.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteBackend_RejectsUnknownDriver(t *testing.T) {
	if _, err := NewSQLiteBackend(":memory:", "postgres"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestSQLiteBackend_RoundTrip(t *testing.T) {
	b := newTestSQLite(t)
	ctx := context.Background()

	tab, err := b.EnsureTab(ctx, "People", []string{"person_id", "full_name"})
	if err != nil {
		t.Fatalf("EnsureTab failed: %v", err)
	}
	again, err := b.EnsureTab(ctx, "people", nil)
	if err != nil {
		t.Fatalf("EnsureTab (existing) failed: %v", err)
	}
	if again.ID != tab.ID {
		t.Errorf("EnsureTab created a duplicate tab: %d != %d", again.ID, tab.ID)
	}

	for _, row := range [][]string{{"p1", "Ann"}, {"p2", "Bob"}, {"p3", "Cy"}} {
		if err := b.AppendRow(ctx, "People", row); err != nil {
			t.Fatalf("AppendRow failed: %v", err)
		}
	}

	if err := b.UpdateValues(ctx, "People", Row(3), [][]string{{"p2", "Robert"}}); err != nil {
		t.Fatalf("UpdateValues failed: %v", err)
	}

	if err := b.DeleteRowRange(ctx, tab.ID, 1, 2); err != nil {
		t.Fatalf("DeleteRowRange failed: %v", err)
	}

	got, err := b.GetValues(ctx, "People", AllRows())
	if err != nil {
		t.Fatalf("GetValues failed: %v", err)
	}
	want := [][]string{{"person_id", "full_name"}, {"p2", "Robert"}, {"p3", "Cy"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rows mismatch:\n got %v\nwant %v", got, want)
	}

	one, err := b.GetValues(ctx, "People", Row(3))
	if err != nil {
		t.Fatalf("GetValues(row) failed: %v", err)
	}
	if !reflect.DeepEqual(one, [][]string{{"p3", "Cy"}}) {
		t.Errorf("single row mismatch: %v", one)
	}

	tabs, err := b.ListTabs(ctx)
	if err != nil {
		t.Fatalf("ListTabs failed: %v", err)
	}
	if len(tabs) != 1 || tabs[0].Title != "People" {
		t.Errorf("unexpected tabs: %v", tabs)
	}
}

func TestSQLiteBackend_MissingTab(t *testing.T) {
	b := newTestSQLite(t)
	if _, err := b.GetValues(context.Background(), "Nope", AllRows()); err == nil {
		t.Fatal("expected error reading missing tab")
	}
}
