// ABOUTME: Matrix reader/writer over a Backend: whole-tab reads, single-row writes
// ABOUTME: Builds a ColumnMap once per read and serializes writes per tab

package sheet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// NormalizeHeader is the comparison form of a header or payload key.
func NormalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// ColumnMap maps normalized header names to column indices.
// The first occurrence of a duplicated header wins.
type ColumnMap map[string]int

// NewColumnMap indexes headers.
func NewColumnMap(headers []string) ColumnMap {
	cm := make(ColumnMap, len(headers))
	for i, h := range headers {
		key := NormalizeHeader(h)
		if key == "" {
			continue
		}
		if _, exists := cm[key]; !exists {
			cm[key] = i
		}
	}
	return cm
}

// Index returns the column index of name.
func (cm ColumnMap) Index(name string) (int, bool) {
	i, ok := cm[NormalizeHeader(name)]
	return i, ok
}

// Has reports whether name is a known column.
func (cm ColumnMap) Has(name string) bool {
	_, ok := cm[NormalizeHeader(name)]
	return ok
}

// Get returns the cell for name, or "" when the column or cell is absent.
func (cm ColumnMap) Get(row []string, name string) string {
	i, ok := cm.Index(name)
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// Set writes value into the column for name. Unknown columns are ignored.
func (cm ColumnMap) Set(row []string, name, value string) bool {
	i, ok := cm.Index(name)
	if !ok || i >= len(row) {
		return false
	}
	row[i] = value
	return true
}

// Matrix is one read of a tab: header row plus data rows padded to header width.
type Matrix struct {
	Table   string
	Tab     Tab
	Headers []string
	Rows    [][]string
	Columns ColumnMap
}

// Width is the number of header columns.
func (m *Matrix) Width() int {
	return len(m.Headers)
}

// Empty reports whether the tab has no header row.
func (m *Matrix) Empty() bool {
	return len(m.Headers) == 0
}

// SheetRow converts a data row index into its 1-based sheet row number.
func SheetRow(rowIndex int) int {
	return rowIndex + 2
}

// Pad copies row into a slice exactly width cells long.
func Pad(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}

// Workbook reads and writes tabs through a Backend.
type Workbook struct {
	backend  Backend
	resolver *Resolver
	logger   *slog.Logger

	locks sync.Map // normalized tab title -> *sync.Mutex
}

// NewWorkbook creates a workbook over backend.
func NewWorkbook(backend Backend, logger *slog.Logger) *Workbook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workbook{
		backend:  backend,
		resolver: NewResolver(backend),
		logger:   logger,
	}
}

// Backend returns the underlying backend.
func (w *Workbook) Backend() Backend {
	return w.backend
}

// Resolve maps table onto a live tab for tenantKey.
func (w *Workbook) Resolve(ctx context.Context, table, tenantKey string) (Tab, error) {
	return w.resolver.Resolve(ctx, table, tenantKey)
}

// Tabs lists live tab titles.
func (w *Workbook) Tabs(ctx context.Context) ([]Tab, error) {
	tabs, err := w.backend.ListTabs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tabs: %w", err)
	}
	return tabs, nil
}

// Read resolves table for tenantKey and reads the whole tab.
func (w *Workbook) Read(ctx context.Context, table, tenantKey string) (*Matrix, error) {
	tab, err := w.resolver.Resolve(ctx, table, tenantKey)
	if err != nil {
		return nil, err
	}
	return w.ReadTab(ctx, table, tab)
}

// ReadTab reads an already resolved tab.
func (w *Workbook) ReadTab(ctx context.Context, table string, tab Tab) (*Matrix, error) {
	values, err := w.backend.GetValues(ctx, tab.Title, AllRows())
	if err != nil {
		return nil, fmt.Errorf("reading tab %q: %w", tab.Title, err)
	}

	m := &Matrix{Table: table, Tab: tab}
	if len(values) == 0 {
		m.Columns = ColumnMap{}
		return m, nil
	}

	m.Headers = append([]string(nil), values[0]...)
	m.Columns = NewColumnMap(m.Headers)
	m.Rows = make([][]string, 0, len(values)-1)
	for _, row := range values[1:] {
		m.Rows = append(m.Rows, Pad(row, len(m.Headers)))
	}
	return m, nil
}

// ReadRow reads a single data row of m's tab, padded to header width.
// A row past the end of the tab comes back as all empty cells.
func (w *Workbook) ReadRow(ctx context.Context, m *Matrix, rowIndex int) ([]string, error) {
	n := SheetRow(rowIndex)
	values, err := w.backend.GetValues(ctx, m.Tab.Title, Row(n))
	if err != nil {
		return nil, fmt.Errorf("reading row %d of %q: %w", n, m.Tab.Title, err)
	}
	if len(values) == 0 {
		return Pad(nil, m.Width()), nil
	}
	return Pad(values[0], m.Width()), nil
}

// WriteRow rewrites the full cell range of one data row.
func (w *Workbook) WriteRow(ctx context.Context, m *Matrix, rowIndex int, row []string) error {
	n := SheetRow(rowIndex)
	if err := w.backend.UpdateValues(ctx, m.Tab.Title, Row(n), [][]string{Pad(row, m.Width())}); err != nil {
		return fmt.Errorf("writing row %d of %q: %w", n, m.Tab.Title, err)
	}
	w.logger.Debug("row written", "tab", m.Tab.Title, "row", n)
	return nil
}

// AppendRow adds one data row at the end of the tab.
func (w *Workbook) AppendRow(ctx context.Context, m *Matrix, row []string) error {
	if err := w.backend.AppendRow(ctx, m.Tab.Title, Pad(row, m.Width())); err != nil {
		return fmt.Errorf("appending to %q: %w", m.Tab.Title, err)
	}
	w.logger.Debug("row appended", "tab", m.Tab.Title)
	return nil
}

// DeleteRow structurally removes one data row; later rows shift up.
func (w *Workbook) DeleteRow(ctx context.Context, m *Matrix, rowIndex int) error {
	start := int64(rowIndex + 1)
	if err := w.backend.DeleteRowRange(ctx, m.Tab.ID, start, start+1); err != nil {
		return fmt.Errorf("deleting row %d of %q: %w", SheetRow(rowIndex), m.Tab.Title, err)
	}
	w.logger.Debug("row deleted", "tab", m.Tab.Title, "row", SheetRow(rowIndex))
	return nil
}

// Lock acquires the in-process writer lock for tab and returns its release.
// Mutations of one tab must hold it from their verifying read until the write.
func (w *Workbook) Lock(tab Tab) func() {
	v, _ := w.locks.LoadOrStore(strings.ToLower(tab.Title), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
