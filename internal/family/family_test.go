// ABOUTME: Shared fixtures for family service tests
// ABOUTME: Seeds an in-memory workbook with the four family tabs

package family

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/2389/famlink/internal/blob"
	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/sheet"
)

var (
	peopleHeaders = []string{"person_id", "display_name", "birth_date", "phones", "address",
		"hobbies", "notes", "photo_file_id", "is_pinned", "relationships", "tenant_key"}
	relHeaders       = []string{"rel_id", "from_person_id", "to_person_id", "rel_type", "tenant_key"}
	unitHeaders      = []string{"family_unit_id", "partner1_person_id", "partner2_person_id", "tenant_key"}
	attributeHeaders = []string{"attribute_id", "person_id", "attribute_type", "value_text", "value_json",
		"label", "is_primary", "sort_order", "start_date", "end_date", "visibility", "notes", "tenant_key"}
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func person(id, name string) []string {
	return []string{id, name, "", "", "", "", "", "", "", "", ""}
}

func seedWorkbook() *sheet.MemoryBackend {
	mem := sheet.NewMemoryBackend()
	rows := [][]string{peopleHeaders}
	for i, name := range []string{"Ann", "Bob", "Cy", "Dee", "Eve", "Fay", "Gus", "Hal", "Ida"} {
		rows = append(rows, person("p"+string(rune('1'+i)), name))
	}
	mem.AddTab(TablePeople, rows...)
	mem.AddTab(TableRelationships, relHeaders)
	mem.AddTab(TableFamilyUnits, unitHeaders)
	mem.AddTab(TablePersonAttributes, attributeHeaders)
	return mem
}

func newTestService(t *testing.T, backend sheet.Backend) (*Service, *blob.MemoryStore) {
	t.Helper()
	wb := sheet.NewWorkbook(backend, testLogger())
	blobs := blob.NewMemoryStore()
	return NewService(records.NewStore(wb, testLogger()), blobs, testLogger()), blobs
}

// countingBackend counts writes and whole-tab reads per tab title.
type countingBackend struct {
	*sheet.MemoryBackend
	mu     sync.Mutex
	writes map[string]int
	reads  map[string]int
}

func newCountingBackend(mem *sheet.MemoryBackend) *countingBackend {
	return &countingBackend{MemoryBackend: mem, writes: make(map[string]int), reads: make(map[string]int)}
}

func (c *countingBackend) GetValues(ctx context.Context, tab string, rng sheet.Range) ([][]string, error) {
	if rng == sheet.AllRows() {
		c.mu.Lock()
		c.reads[strings.ToLower(tab)]++
		c.mu.Unlock()
	}
	return c.MemoryBackend.GetValues(ctx, tab, rng)
}

func (c *countingBackend) Reads(title string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[strings.ToLower(title)]
}

func (c *countingBackend) ResetReads() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads = make(map[string]int)
}

func (c *countingBackend) count(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes[strings.ToLower(title)]++
}

func (c *countingBackend) Writes(title string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes[strings.ToLower(title)]
}

func (c *countingBackend) UpdateValues(ctx context.Context, tab string, rng sheet.Range, rows [][]string) error {
	c.count(tab)
	return c.MemoryBackend.UpdateValues(ctx, tab, rng, rows)
}

func (c *countingBackend) AppendRow(ctx context.Context, tab string, row []string) error {
	c.count(tab)
	return c.MemoryBackend.AppendRow(ctx, tab, row)
}

func (c *countingBackend) DeleteRowRange(ctx context.Context, tabID int64, start, end int64) error {
	tabs, _ := c.MemoryBackend.ListTabs(ctx)
	for _, t := range tabs {
		if t.ID == tabID {
			c.count(t.Title)
		}
	}
	return c.MemoryBackend.DeleteRowRange(ctx, tabID, start, end)
}
