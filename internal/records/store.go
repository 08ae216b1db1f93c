// ABOUTME: Record store implementing list/get/create/update/delete on workbook tabs
// ABOUTME: Rows are addressed by id column value and re-verified before each write

package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/2389/famlink/internal/sheet"
	"github.com/2389/famlink/internal/tenant"
)

var (
	// ErrIDColumnNotFound is returned when no id column can be determined.
	ErrIDColumnNotFound = errors.New("id column not found")

	// ErrRecordNotFound is returned when no visible row carries the id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrConcurrentModification is returned when the target row kept
	// changing between read and write.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// TenantColumn is the header of the row-level tenant scope column.
const TenantColumn = "tenant_key"

// MaxAttempts bounds the verify-before-write retry loop.
const MaxAttempts = 3

// idFallbacks are tried in order when no id column is given.
var idFallbacks = []string{"id", "person_id", "record_id", "user_email"}

// Record is one row keyed by its tab's headers.
type Record struct {
	Table string            `json:"table"`
	Tab   string            `json:"tab"`
	ID    string            `json:"id"`
	Data  map[string]string `json:"data"`
}

// Get returns the value for a header, matched case-insensitively.
func (r *Record) Get(name string) string {
	if v, ok := r.Data[name]; ok {
		return v
	}
	want := sheet.NormalizeHeader(name)
	for k, v := range r.Data {
		if sheet.NormalizeHeader(k) == want {
			return v
		}
	}
	return ""
}

// Store is the record CRUD layer over a workbook.
type Store struct {
	wb     *sheet.Workbook
	logger *slog.Logger
}

// NewStore creates a store over wb.
func NewStore(wb *sheet.Workbook, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{wb: wb, logger: logger.With("component", "records")}
}

// Workbook returns the underlying workbook.
func (s *Store) Workbook() *sheet.Workbook {
	return s.wb
}

// IDColumn picks the id column for headers: explicit, then the fallbacks,
// then the first header.
func IDColumn(cols sheet.ColumnMap, headers []string, explicit string) (int, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		if i, ok := cols.Index(explicit); ok {
			return i, nil
		}
		return 0, fmt.Errorf("%w: %q", ErrIDColumnNotFound, explicit)
	}
	for _, name := range idFallbacks {
		if i, ok := cols.Index(name); ok {
			return i, nil
		}
	}
	if len(headers) > 0 && strings.TrimSpace(headers[0]) != "" {
		return 0, nil
	}
	return 0, ErrIDColumnNotFound
}

func visible(m *sheet.Matrix, row []string, tenantKey string) bool {
	return tenant.ScopedValueAllowed(m.Columns.Get(row, TenantColumn), tenantKey)
}

func toRecord(m *sheet.Matrix, row []string, idCol int) *Record {
	data := make(map[string]string, len(m.Headers))
	for i, h := range m.Headers {
		if h == "" {
			continue
		}
		if _, exists := data[h]; exists {
			continue
		}
		if i < len(row) {
			data[h] = row[i]
		} else {
			data[h] = ""
		}
	}
	id := ""
	if idCol >= 0 && idCol < len(row) {
		id = row[idCol]
	}
	return &Record{Table: m.Table, Tab: m.Tab.Title, ID: id, Data: data}
}

func (s *Store) read(ctx context.Context, table, tenantKey string) (*sheet.Matrix, error) {
	m, err := s.wb.Read(ctx, table, tenantKey)
	if err != nil {
		return nil, err
	}
	if m.Empty() {
		return nil, fmt.Errorf("%w: %s", sheet.ErrHeaderMissing, m.Tab.Title)
	}
	return m, nil
}

// List returns every row of table visible to tenantKey.
func (s *Store) List(ctx context.Context, table, tenantKey string) ([]Record, error) {
	recs, _, err := s.ListWithHeaders(ctx, table, tenantKey)
	return recs, err
}

// ListWithHeaders is List plus the header row, both taken from one read.
func (s *Store) ListWithHeaders(ctx context.Context, table, tenantKey string) ([]Record, []string, error) {
	m, err := s.read(ctx, table, tenantKey)
	if err != nil {
		return nil, nil, err
	}
	idCol, err := IDColumn(m.Columns, m.Headers, "")
	if err != nil {
		idCol = -1
	}

	out := make([]Record, 0, len(m.Rows))
	for _, row := range m.Rows {
		if !visible(m, row, tenantKey) {
			continue
		}
		out = append(out, *toRecord(m, row, idCol))
	}
	return out, m.Headers, nil
}

// ListUnscoped returns every row of table without the row-level tenant filter.
// The bare tab is always used.
func (s *Store) ListUnscoped(ctx context.Context, table string) ([]Record, error) {
	m, err := s.read(ctx, table, tenant.DefaultKey)
	if err != nil {
		return nil, err
	}
	idCol, err := IDColumn(m.Columns, m.Headers, "")
	if err != nil {
		idCol = -1
	}
	out := make([]Record, 0, len(m.Rows))
	for _, row := range m.Rows {
		out = append(out, *toRecord(m, row, idCol))
	}
	return out, nil
}

// Headers returns the header row of table as resolved for tenantKey.
func (s *Store) Headers(ctx context.Context, table, tenantKey string) ([]string, error) {
	m, err := s.read(ctx, table, tenantKey)
	if err != nil {
		return nil, err
	}
	return m.Headers, nil
}

// ListTables returns the titles of every live tab.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	tabs, err := s.wb.Tabs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(tabs))
	for _, t := range tabs {
		out = append(out, t.Title)
	}
	return out, nil
}

// locate returns the index of the first visible row whose id cell equals id.
func locate(m *sheet.Matrix, idCol int, id, tenantKey string) int {
	id = strings.TrimSpace(id)
	for i, row := range m.Rows {
		if strings.TrimSpace(row[idCol]) != id {
			continue
		}
		if !visible(m, row, tenantKey) {
			continue
		}
		return i
	}
	return -1
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, table, id, idColumn, tenantKey string) (*Record, error) {
	m, err := s.read(ctx, table, tenantKey)
	if err != nil {
		return nil, err
	}
	idCol, err := IDColumn(m.Columns, m.Headers, idColumn)
	if err != nil {
		return nil, err
	}
	idx := locate(m, idCol, id, tenantKey)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s %q", ErrRecordNotFound, table, id)
	}
	return toRecord(m, m.Rows[idx], idCol), nil
}

// Lookup returns the row with the given id from the tab resolved for
// tenantKey without the row-level tenant filter, so a row owned by another
// tenant is returned rather than reported missing. Callers must check its
// tenant_key before acting on it.
func (s *Store) Lookup(ctx context.Context, table, id, idColumn, tenantKey string) (*Record, error) {
	m, err := s.read(ctx, table, tenantKey)
	if err != nil {
		return nil, err
	}
	idCol, err := IDColumn(m.Columns, m.Headers, idColumn)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	for _, row := range m.Rows {
		if strings.TrimSpace(row[idCol]) == id {
			return toRecord(m, row, idCol), nil
		}
	}
	return nil, fmt.Errorf("%w: %s %q", ErrRecordNotFound, table, id)
}

// applyPayload writes payload values into row by header name. Keys that
// match no header are dropped.
func applyPayload(m *sheet.Matrix, row []string, payload map[string]string) {
	for k, v := range payload {
		m.Columns.Set(row, k, v)
	}
}

func payloadValue(payload map[string]string, name string) (string, bool) {
	want := sheet.NormalizeHeader(name)
	for k, v := range payload {
		if sheet.NormalizeHeader(k) == want {
			return v, true
		}
	}
	return "", false
}

// Create appends a row built from payload.
func (s *Store) Create(ctx context.Context, table string, payload map[string]string, tenantKey string) (*Record, error) {
	tab, err := s.wb.Resolve(ctx, table, tenantKey)
	if err != nil {
		return nil, err
	}
	unlock := s.wb.Lock(tab)
	defer unlock()

	m, err := s.wb.ReadTab(ctx, table, tab)
	if err != nil {
		return nil, err
	}
	if m.Empty() {
		return nil, fmt.Errorf("%w: %s", sheet.ErrHeaderMissing, tab.Title)
	}

	row := make([]string, m.Width())
	applyPayload(m, row, payload)

	if m.Columns.Has(TenantColumn) {
		value := m.Columns.Get(row, TenantColumn)
		if strings.TrimSpace(value) == "" {
			m.Columns.Set(row, TenantColumn, tenant.NormalizeKey(tenantKey))
		} else if err := tenant.AssertScopedValue(value, tenantKey); err != nil {
			return nil, err
		}
	}

	if err := s.wb.AppendRow(ctx, m, row); err != nil {
		return nil, err
	}

	idCol, err := IDColumn(m.Columns, m.Headers, "")
	if err != nil {
		idCol = -1
	}
	rec := toRecord(m, row, idCol)
	s.logger.Info("record created", "table", table, "tab", tab.Title, "id", rec.ID)
	return rec, nil
}

// mutation runs fn against a fresh snapshot under the tab lock, retrying
// when the target row changes between the snapshot and the write.
// fn returns errStale to request a retry.
func (s *Store) mutation(ctx context.Context, table, idColumn, tenantKey string,
	fn func(m *sheet.Matrix, idCol int) error) error {
	tab, err := s.wb.Resolve(ctx, table, tenantKey)
	if err != nil {
		return err
	}
	unlock := s.wb.Lock(tab)
	defer unlock()

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		m, err := s.wb.ReadTab(ctx, table, tab)
		if err != nil {
			return err
		}
		if m.Empty() {
			return fmt.Errorf("%w: %s", sheet.ErrHeaderMissing, tab.Title)
		}
		idCol, err := IDColumn(m.Columns, m.Headers, idColumn)
		if err != nil {
			return err
		}

		err = fn(m, idCol)
		if !errors.Is(err, errStale) {
			return err
		}
		s.logger.Debug("row changed before write, retrying", "table", table, "attempt", attempt)
	}
	s.logger.Warn("giving up after concurrent modifications", "table", table, "attempts", MaxAttempts)
	return fmt.Errorf("%w: %s", ErrConcurrentModification, table)
}

var errStale = errors.New("stale row")

// verify re-reads row idx and reports whether it still matches the snapshot.
func (s *Store) verify(ctx context.Context, m *sheet.Matrix, idx int) error {
	current, err := s.wb.ReadRow(ctx, m, idx)
	if err != nil {
		return err
	}
	if !slices.Equal(current, m.Rows[idx]) {
		return errStale
	}
	return nil
}

// Update applies payload to the row with the given id and rewrites it.
func (s *Store) Update(ctx context.Context, table, id string, payload map[string]string, idColumn, tenantKey string) (*Record, error) {
	var rec *Record
	err := s.mutation(ctx, table, idColumn, tenantKey, func(m *sheet.Matrix, idCol int) error {
		idx := locate(m, idCol, id, tenantKey)
		if idx < 0 {
			return fmt.Errorf("%w: %s %q", ErrRecordNotFound, table, id)
		}

		row := slices.Clone(m.Rows[idx])
		applyPayload(m, row, payload)

		if v, ok := payloadValue(payload, TenantColumn); ok && m.Columns.Has(TenantColumn) {
			if strings.TrimSpace(v) == "" {
				m.Columns.Set(row, TenantColumn, tenant.NormalizeKey(tenantKey))
			} else if err := tenant.AssertScopedValue(v, tenantKey); err != nil {
				return err
			}
		}

		if err := s.verify(ctx, m, idx); err != nil {
			return err
		}
		if err := s.wb.WriteRow(ctx, m, idx, row); err != nil {
			return err
		}
		rec = toRecord(m, row, idCol)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("record updated", "table", table, "id", rec.ID)
	return rec, nil
}

// Delete removes the row with the given id. It reports false when no
// visible row carries the id.
func (s *Store) Delete(ctx context.Context, table, id, idColumn, tenantKey string) (bool, error) {
	deleted := false
	err := s.mutation(ctx, table, idColumn, tenantKey, func(m *sheet.Matrix, idCol int) error {
		idx := locate(m, idCol, id, tenantKey)
		if idx < 0 {
			return nil
		}
		if err := s.verify(ctx, m, idx); err != nil {
			return err
		}
		if err := s.wb.DeleteRow(ctx, m, idx); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("record deleted", "table", table, "id", id)
	}
	return deleted, nil
}

// UpsertUnscoped rewrites the first row of the bare tab accepted by match,
// or appends a new row when none is. It reports whether a row was appended.
// No tenant filter applies; the caller owns scoping of such tabs.
func (s *Store) UpsertUnscoped(ctx context.Context, table string, match func(Record) bool,
	payload map[string]string) (*Record, bool, error) {
	var (
		rec     *Record
		created bool
	)
	err := s.mutation(ctx, table, "", tenant.DefaultKey, func(m *sheet.Matrix, idCol int) error {
		for idx, row := range m.Rows {
			if !match(*toRecord(m, row, idCol)) {
				continue
			}
			next := slices.Clone(row)
			applyPayload(m, next, payload)
			if err := s.verify(ctx, m, idx); err != nil {
				return err
			}
			if err := s.wb.WriteRow(ctx, m, idx, next); err != nil {
				return err
			}
			rec = toRecord(m, next, idCol)
			return nil
		}

		row := make([]string, m.Width())
		applyPayload(m, row, payload)
		if err := s.wb.AppendRow(ctx, m, row); err != nil {
			return err
		}
		rec, created = toRecord(m, row, idCol), true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	s.logger.Info("record upserted", "table", table, "id", rec.ID, "created", created)
	return rec, created, nil
}
