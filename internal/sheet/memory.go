// ABOUTME: In-memory Backend for tests and local development
// ABOUTME: Mirrors the remote document semantics including structural row deletion

package sheet

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type memoryTab struct {
	tab  Tab
	rows [][]string
}

// MemoryBackend holds tabs in process memory.
type MemoryBackend struct {
	mu     sync.RWMutex
	tabs   []*memoryTab
	nextID int64
}

// NewMemoryBackend creates an empty document.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{nextID: 1}
}

// AddTab creates a tab holding rows (header first) and returns it.
// Adding an existing title replaces its contents.
func (m *MemoryBackend) AddTab(title string, rows ...[]string) Tab {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := copyRows(rows)
	for _, t := range m.tabs {
		if t.tab.Title == title {
			t.rows = copied
			return t.tab
		}
	}
	t := &memoryTab{tab: Tab{ID: m.nextID, Title: title}, rows: copied}
	m.nextID++
	m.tabs = append(m.tabs, t)
	return t.tab
}

// EnsureTab creates title with the given header row unless a tab with that
// title already exists.
func (m *MemoryBackend) EnsureTab(ctx context.Context, title string, headers []string) (Tab, error) {
	m.mu.RLock()
	existing := m.find(title)
	m.mu.RUnlock()
	if existing != nil {
		return existing.tab, nil
	}
	if len(headers) == 0 {
		return m.AddTab(title), nil
	}
	return m.AddTab(title, headers), nil
}

// Rows returns a copy of every row of title including the header.
func (m *MemoryBackend) Rows(title string) [][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t := m.find(title)
	if t == nil {
		return nil
	}
	return copyRows(t.rows)
}

func (m *MemoryBackend) find(title string) *memoryTab {
	for _, t := range m.tabs {
		if strings.EqualFold(t.tab.Title, title) {
			return t
		}
	}
	return nil
}

// ListTabs implements Backend.
func (m *MemoryBackend) ListTabs(ctx context.Context) ([]Tab, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tab, 0, len(m.tabs))
	for _, t := range m.tabs {
		out = append(out, t.tab)
	}
	return out, nil
}

// GetValues implements Backend.
func (m *MemoryBackend) GetValues(ctx context.Context, tab string, rng Range) ([][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t := m.find(tab)
	if t == nil {
		return nil, fmt.Errorf("unable to parse range: %s", rng.A1(tab))
	}

	var out [][]string
	for i, row := range t.rows {
		if rng.Contains(i + 1) {
			out = append(out, append([]string(nil), row...))
		}
	}
	for len(out) > 0 && isBlank(out[len(out)-1]) {
		out = out[:len(out)-1]
	}
	return out, nil
}

// UpdateValues implements Backend.
func (m *MemoryBackend) UpdateValues(ctx context.Context, tab string, rng Range, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.find(tab)
	if t == nil {
		return fmt.Errorf("unable to parse range: %s", rng.A1(tab))
	}

	for i, row := range rows {
		idx := rng.StartRow - 1 + i
		for len(t.rows) <= idx {
			t.rows = append(t.rows, nil)
		}
		t.rows[idx] = append([]string(nil), row...)
	}
	return nil
}

// AppendRow implements Backend.
func (m *MemoryBackend) AppendRow(ctx context.Context, tab string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.find(tab)
	if t == nil {
		return fmt.Errorf("unable to parse range: %s", AllRows().A1(tab))
	}

	last := len(t.rows)
	for last > 0 && isBlank(t.rows[last-1]) {
		last--
	}
	t.rows = append(t.rows[:last], append([]string(nil), row...))
	return nil
}

// DeleteRowRange implements Backend.
func (m *MemoryBackend) DeleteRowRange(ctx context.Context, tabID int64, start, end int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.tabs {
		if t.tab.ID != tabID {
			continue
		}
		if start < 0 || end <= start {
			return fmt.Errorf("invalid row range [%d, %d)", start, end)
		}
		if start >= int64(len(t.rows)) {
			return nil
		}
		if end > int64(len(t.rows)) {
			end = int64(len(t.rows))
		}
		t.rows = append(t.rows[:start], t.rows[end:]...)
		return nil
	}
	return fmt.Errorf("no tab with id %d", tabID)
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
