// ABOUTME: Family service wiring, table names, column aliases and fan-out helper
// ABOUTME: All graph and directory operations hang off Service

package family

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/2389/famlink/internal/blob"
	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/sheet"
	"github.com/2389/famlink/internal/tenant"
)

// Logical table names.
const (
	TablePeople           = "People"
	TableRelationships    = "Relationships"
	TableFamilyUnits      = "FamilyUnits"
	TablePersonAttributes = "PersonAttributes"
)

// RelTypeParent is the only structural relationship type.
const RelTypeParent = "parent"

// fanOutLimit bounds concurrent writes within one phase.
const fanOutLimit = 4

// Column aliases, preferred name first.
var (
	relIDCols   = []string{"rel_id", "relationship_id", "id"}
	relFromCols = []string{"from_person_id", "source_person_id", "person_id"}
	relToCols   = []string{"to_person_id", "target_person_id", "related_person_id"}
	relTypeCols = []string{"rel_type", "relationship_type", "type"}

	unitIDCols = []string{"family_unit_id", "id"}
	unitP1Cols = []string{"partner1_person_id", "partner_1_person_id", "parent1_person_id"}
	unitP2Cols = []string{"partner2_person_id", "partner_2_person_id", "parent2_person_id"}
)

// Service implements the directory and graph operations.
type Service struct {
	store    *records.Store
	blobs    blob.Store
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService creates a family service.
func NewService(store *records.Store, blobs blob.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		blobs:    blobs,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("component", "family"),
	}
}

// Validator returns the shared payload validator.
func (s *Service) Validator() *validator.Validate {
	return s.validate
}

// fields lowercases and trims the keys of a record's data.
func fields(r records.Record) map[string]string {
	out := make(map[string]string, len(r.Data))
	for k, v := range r.Data {
		key := sheet.NormalizeHeader(k)
		if _, exists := out[key]; !exists {
			out[key] = v
		}
	}
	return out
}

// first returns the first non-blank trimmed value among names.
func first(f map[string]string, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(f[n]); v != "" {
			return v
		}
	}
	return ""
}

// column returns the header among aliases present in headers, or the
// preferred alias when none is.
func column(headers []string, aliases []string) string {
	cols := sheet.NewColumnMap(headers)
	for _, a := range aliases {
		if i, ok := cols.Index(a); ok {
			return headers[i]
		}
	}
	return aliases[0]
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "1":
		return true
	}
	return false
}

func formatBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func splitList(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// rowTenant returns the normalized tenant of a row, adopting fallback when blank.
func rowTenant(f map[string]string, fallback string) string {
	if v := strings.TrimSpace(f[records.TenantColumn]); v != "" {
		return tenant.NormalizeKey(v)
	}
	return tenant.NormalizeKey(fallback)
}

// task is one write of a fan-out.
type task struct {
	op  string
	id  string
	run func(context.Context) error
}

// runAll runs tasks with at most fanOutLimit in flight. Every task runs
// regardless of the others; failures come back in task order.
func runAll(ctx context.Context, tasks []task) []Failure {
	errs := make([]error, len(tasks))

	var g errgroup.Group
	g.SetLimit(fanOutLimit)
	for i, t := range tasks {
		g.Go(func() error {
			errs[i] = t.run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var failures []Failure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, Failure{Op: tasks[i].op, ID: tasks[i].id, Error: err.Error(), err: err})
		}
	}
	return failures
}

// upsert updates the row with id, creating it when absent.
func (s *Service) upsert(ctx context.Context, table, id, idCol string, payload map[string]string, tenantKey string) (bool, error) {
	_, err := s.store.Update(ctx, table, id, payload, idCol, tenantKey)
	if errors.Is(err, records.ErrRecordNotFound) {
		_, err = s.store.Create(ctx, table, payload, tenantKey)
		return err == nil, err
	}
	return false, err
}
