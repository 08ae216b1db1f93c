// ABOUTME: Relationship and family unit readers plus the combined tree view
// ABOUTME: Reads through column aliases and drops rows of other tenants

package family

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/sheet"
	"github.com/2389/famlink/internal/tenant"
)

// Relationship is a directed edge between two people.
type Relationship struct {
	ID           string `json:"id"`
	TenantKey    string `json:"tenantKey"`
	FromPersonID string `json:"fromPersonId"`
	ToPersonID   string `json:"toPersonId"`
	Type         string `json:"relationshipType"`

	stored bool // ID came from the row rather than its position
}

// FamilyUnit pairs two partners.
type FamilyUnit struct {
	ID               string `json:"id"`
	TenantKey        string `json:"tenantKey"`
	Partner1PersonID string `json:"partner1PersonId"`
	Partner2PersonID string `json:"partner2PersonId"`

	stored bool
}

// Involves reports whether personID is either partner.
func (u FamilyUnit) Involves(personID string) bool {
	return u.Partner1PersonID == personID || u.Partner2PersonID == personID
}

// Other returns the partner that is not personID.
func (u FamilyUnit) Other(personID string) string {
	if u.Partner1PersonID == personID {
		return u.Partner2PersonID
	}
	return u.Partner1PersonID
}

// Pairs reports whether the unit pairs exactly a and b.
func (u FamilyUnit) Pairs(a, b string) bool {
	return (u.Partner1PersonID == a && u.Partner2PersonID == b) ||
		(u.Partner1PersonID == b && u.Partner2PersonID == a)
}

// Relationships returns the tenant's edges.
func (s *Service) Relationships(ctx context.Context, tenantKey string) ([]Relationship, error) {
	rels, _, err := s.readRelationships(ctx, tenantKey)
	return rels, err
}

func (s *Service) readRelationships(ctx context.Context, tenantKey string) ([]Relationship, []string, error) {
	key := tenant.NormalizeKey(tenantKey)
	recs, headers, err := s.listWithHeaders(ctx, TableRelationships, key)
	if err != nil {
		return nil, nil, err
	}

	out := make([]Relationship, 0, len(recs))
	for i, r := range recs {
		f := fields(r)
		rel := Relationship{
			ID:           first(f, relIDCols...),
			TenantKey:    rowTenant(f, key),
			FromPersonID: first(f, relFromCols...),
			ToPersonID:   first(f, relToCols...),
			Type:         first(f, relTypeCols...),
		}
		rel.stored = rel.ID != ""
		if !rel.stored {
			rel.ID = fmt.Sprintf("rel-%d", sheet.SheetRow(i))
		}
		if rel.Type == "" {
			rel.Type = "related"
		}
		if rel.FromPersonID == "" || rel.ToPersonID == "" || rel.TenantKey != key {
			continue
		}
		out = append(out, rel)
	}
	return out, headers, nil
}

// FamilyUnits returns the tenant's complete partner pairs. Units missing a
// partner are left out.
func (s *Service) FamilyUnits(ctx context.Context, tenantKey string) ([]FamilyUnit, error) {
	units, _, err := s.readFamilyUnits(ctx, tenantKey)
	if err != nil {
		return nil, err
	}
	out := units[:0]
	for _, u := range units {
		if u.Partner1PersonID != "" && u.Partner2PersonID != "" {
			out = append(out, u)
		}
	}
	return out, nil
}

// readFamilyUnits returns every unit of the tenant naming at least one
// partner. A half-filled unit still holds its partner for the spouse check.

func (s *Service) readFamilyUnits(ctx context.Context, tenantKey string) ([]FamilyUnit, []string, error) {
	key := tenant.NormalizeKey(tenantKey)
	recs, headers, err := s.listWithHeaders(ctx, TableFamilyUnits, key)
	if err != nil {
		return nil, nil, err
	}

	out := make([]FamilyUnit, 0, len(recs))
	for i, r := range recs {
		f := fields(r)
		u := FamilyUnit{
			ID:               first(f, unitIDCols...),
			TenantKey:        rowTenant(f, key),
			Partner1PersonID: first(f, unitP1Cols...),
			Partner2PersonID: first(f, unitP2Cols...),
		}
		u.stored = u.ID != ""
		if !u.stored {
			u.ID = fmt.Sprintf("fu-%d", sheet.SheetRow(i))
		}
		if (u.Partner1PersonID == "" && u.Partner2PersonID == "") || u.TenantKey != key {
			continue
		}
		out = append(out, u)
	}
	return out, headers, nil
}

// listWithHeaders lists table and returns its header row from the same read.
func (s *Service) listWithHeaders(ctx context.Context, table, tenantKey string) ([]records.Record, []string, error) {
	recs, headers, err := s.store.ListWithHeaders(ctx, table, tenantKey)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", table, err)
	}
	return recs, headers, nil
}

// SpouseOf returns personID's partner in the first unit involving them.
func SpouseOf(units []FamilyUnit, personID string) string {
	for _, u := range units {
		if u.Involves(personID) {
			return u.Other(personID)
		}
	}
	return ""
}

// SuggestSecondParent returns the current spouse of the only selected
// parent, or "" when zero or several parents are selected.
func (s *Service) SuggestSecondParent(ctx context.Context, tenantKey string, parentIDs []string) (string, error) {
	parents := distinct(parentIDs, "")
	if len(parents) != 1 {
		return "", nil
	}
	units, err := s.FamilyUnits(ctx, tenantKey)
	if err != nil {
		return "", err
	}
	return SpouseOf(units, parents[0]), nil
}

// TreeCounts summarizes a Tree.
type TreeCounts struct {
	People        int `json:"people"`
	Relationships int `json:"relationships"`
	FamilyUnits   int `json:"familyUnits"`
}

// Tree is the whole graph of a tenant.
type Tree struct {
	TenantKey     string         `json:"tenantKey"`
	People        []Person       `json:"people"`
	Relationships []Relationship `json:"relationships"`
	FamilyUnits   []FamilyUnit   `json:"familyUnits"`
	Counts        TreeCounts     `json:"counts"`
}

// Tree reads people, relationships and family units concurrently.
func (s *Service) Tree(ctx context.Context, tenantKey string) (*Tree, error) {
	key := tenant.NormalizeKey(tenantKey)
	t := &Tree{TenantKey: key}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t.People, err = s.People(gctx, key)
		return err
	})
	g.Go(func() error {
		var err error
		t.Relationships, err = s.Relationships(gctx, key)
		return err
	})
	g.Go(func() error {
		var err error
		t.FamilyUnits, err = s.FamilyUnits(gctx, key)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t.Counts = TreeCounts{
		People:        len(t.People),
		Relationships: len(t.Relationships),
		FamilyUnits:   len(t.FamilyUnits),
	}
	return t, nil
}

// distinct trims ids, drops blanks and exclude, and removes repeats.
func distinct(ids []string, exclude string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == exclude || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
