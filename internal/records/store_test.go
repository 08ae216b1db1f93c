// ABOUTME: Tests for record CRUD on an in-memory workbook
// ABOUTME: Covers id inference, round trips, idempotent updates, deletes and write retries

package records

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/famlink/internal/sheet"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, backend sheet.Backend) *Store {
	t.Helper()
	return NewStore(sheet.NewWorkbook(backend, testLogger()), testLogger())
}

func TestIDColumn(t *testing.T) {
	tests := []struct {
		name     string
		headers  []string
		explicit string
		want     int
		wantErr  bool
	}{
		{"explicit", []string{"a", "Code"}, "code", 1, false},
		{"explicit missing", []string{"a"}, "code", 0, true},
		{"id first", []string{"name", "person_id", "ID"}, "", 2, false},
		{"person_id", []string{"name", "person_id"}, "", 1, false},
		{"user_email", []string{"role", "user_email"}, "", 1, false},
		{"first header", []string{"code", "name"}, "", 0, false},
		{"no headers", []string{""}, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IDColumn(sheet.NewColumnMap(tt.headers), tt.headers, tt.explicit)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrIDColumnNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateThenGet(t *testing.T) {
	mem := sheet.NewMemoryBackend()
	mem.AddTab("Things", []string{"id", "Foo", "bar", "baz"})
	s := newTestStore(t, mem)
	ctx := context.Background()

	created, err := s.Create(ctx, "Things", map[string]string{"ID": "X", "foo": "bar", "unknown": "dropped"}, "default")
	require.NoError(t, err)
	assert.Equal(t, "X", created.ID)

	got, err := s.Get(ctx, "things", "X", "", "default")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "X", "Foo": "bar", "bar": "", "baz": ""}, got.Data)
	assert.Equal(t, "bar", got.Get("foo"))
}

func TestGetMissing(t *testing.T) {
	mem := sheet.NewMemoryBackend()
	mem.AddTab("Things", []string{"id"}, []string{"a"})
	mem.AddTab("Blank")
	s := newTestStore(t, mem)
	ctx := context.Background()

	_, err := s.Get(ctx, "Things", "zzz", "", "default")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = s.Get(ctx, "Things", "a", "nope", "default")
	assert.ErrorIs(t, err, ErrIDColumnNotFound)

	_, err = s.Get(ctx, "Blank", "a", "", "default")
	assert.ErrorIs(t, err, sheet.ErrHeaderMissing)

	_, err = s.Get(ctx, "Missing", "a", "", "default")
	assert.ErrorIs(t, err, sheet.ErrTabNotFound)
}

func TestUpdateIdempotent(t *testing.T) {
	mem := sheet.NewMemoryBackend()
	mem.AddTab("People",
		[]string{"person_id", "display_name", "notes"},
		[]string{"p1", "Ann", "old"},
		[]string{"p2", "Bob", ""},
	)
	s := newTestStore(t, mem)
	ctx := context.Background()
	payload := map[string]string{"NOTES": "new"}

	first, err := s.Update(ctx, "People", "p1", payload, "", "default")
	require.NoError(t, err)
	afterFirst := mem.Rows("People")

	second, err := s.Update(ctx, "People", "p1", payload, "", "default")
	require.NoError(t, err)

	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, afterFirst, mem.Rows("People"))
	assert.Equal(t, []string{"p1", "Ann", "new"}, mem.Rows("People")[1])

	_, err = s.Update(ctx, "People", "p9", payload, "", "default")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestDeleteTwice(t *testing.T) {
	mem := sheet.NewMemoryBackend()
	mem.AddTab("Things", []string{"id", "v"}, []string{"a", "1"}, []string{"b", "2"})
	s := newTestStore(t, mem)
	ctx := context.Background()

	ok, err := s.Delete(ctx, "Things", "a", "", "default")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Get(ctx, "Things", "a", "", "default")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	ok, err = s.Delete(ctx, "Things", "a", "", "default")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, [][]string{{"id", "v"}, {"b", "2"}}, mem.Rows("Things"))
}

func TestUpsertUnscoped(t *testing.T) {
	mem := sheet.NewMemoryBackend()
	mem.AddTab("Access",
		[]string{"user_email", "role", "tenant_key"},
		[]string{"ann@example.com", "USER", "smith"},
	)
	s := newTestStore(t, mem)
	ctx := context.Background()
	byTenant := func(key string) func(Record) bool {
		return func(r Record) bool { return r.Get("user_email") == "ann@example.com" && r.Get("tenant_key") == key }
	}

	rec, created, err := s.UpsertUnscoped(ctx, "Access", byTenant("smith"),
		map[string]string{"user_email": "ann@example.com", "role": "ADMIN", "tenant_key": "smith"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "ADMIN", rec.Get("role"))

	_, created, err = s.UpsertUnscoped(ctx, "Access", byTenant("jones"),
		map[string]string{"user_email": "ann@example.com", "role": "USER", "tenant_key": "jones"})
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, [][]string{
		{"user_email", "role", "tenant_key"},
		{"ann@example.com", "ADMIN", "smith"},
		{"ann@example.com", "USER", "jones"},
	}, mem.Rows("Access"))
}

func TestListTables(t *testing.T) {
	mem := sheet.NewMemoryBackend()
	mem.AddTab("People", []string{"person_id"})
	mem.AddTab("smith__People", []string{"person_id"})
	s := newTestStore(t, mem)

	tables, err := s.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"People", "smith__People"}, tables)
}

// racingBackend simulates another writer touching the tab between the
// store's snapshot and its verifying read.
type racingBackend struct {
	*sheet.MemoryBackend
	mu     sync.Mutex
	races  int
	mutate func(*sheet.MemoryBackend)
}

func (r *racingBackend) GetValues(ctx context.Context, tab string, rng sheet.Range) ([][]string, error) {
	r.mu.Lock()
	if rng.EndRow > 0 && r.races > 0 {
		r.races--
		r.mutate(r.MemoryBackend)
	}
	r.mu.Unlock()
	return r.MemoryBackend.GetValues(ctx, tab, rng)
}

func TestUpdateRetriesAfterConcurrentDelete(t *testing.T) {
	mem := sheet.NewMemoryBackend()
	mem.AddTab("Things", []string{"id", "v"}, []string{"a", "1"}, []string{"b", "2"})
	backend := &racingBackend{
		MemoryBackend: mem,
		races:         1,
		mutate: func(m *sheet.MemoryBackend) {
			m.AddTab("Things", []string{"id", "v"}, []string{"b", "2"})
		},
	}
	s := newTestStore(t, backend)

	_, err := s.Update(context.Background(), "Things", "b", map[string]string{"v": "3"}, "", "default")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"id", "v"}, {"b", "3"}}, mem.Rows("Things"), "the shifted row is the one written")
}

func TestUpdateGivesUpAfterMaxAttempts(t *testing.T) {
	mem := sheet.NewMemoryBackend()
	mem.AddTab("Things", []string{"id", "v"}, []string{"a", "0"})
	n := 0
	backend := &racingBackend{
		MemoryBackend: mem,
		races:         MaxAttempts,
		mutate: func(m *sheet.MemoryBackend) {
			n++
			m.AddTab("Things", []string{"id", "v"}, []string{"a", string(rune('0' + n))})
		},
	}
	s := newTestStore(t, backend)

	_, err := s.Update(context.Background(), "Things", "a", map[string]string{"v": "x"}, "", "default")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConcurrentModification))
	assert.NotEqual(t, "x", mem.Rows("Things")[1][1])
}
