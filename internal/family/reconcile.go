// ABOUTME: Relationship builder reconciling a person's parents, children and spouse
// ABOUTME: Idempotent upserts by deterministic id with spouse conflict pre-check

package family

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/2389/famlink/internal/keys"
	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/tenant"
)

// ReconcileInput is the desired neighbourhood of one person.
type ReconcileInput struct {
	TenantKey string   `json:"-"`
	PersonID  string   `json:"personId" validate:"required,max=200"`
	ParentIDs []string `json:"parentIds" validate:"max=20,dive,max=200"`
	ChildIDs  []string `json:"childIds" validate:"max=200,dive,max=200"`
	SpouseID  string   `json:"spouseId" validate:"max=200"`
}

// ReconcileResult reports what Reconcile did.
type ReconcileResult struct {
	PersonID     string    `json:"personId"`
	ParentCount  int       `json:"parentCount"`
	ChildCount   int       `json:"childCount"`
	SpouseID     string    `json:"spouseId,omitempty"`
	EdgesDeleted int       `json:"edgesDeleted"`
	EdgesCreated int       `json:"edgesCreated"`
	EdgesUpdated int       `json:"edgesUpdated"`
	UnitsDeleted int       `json:"unitsDeleted"`
	UnitUpserted bool      `json:"unitUpserted"`
	Failures     []Failure `json:"failures,omitempty"`
}

type edge struct {
	id, from, to string
}

// Reconcile makes the stored parent edges and family unit of a person
// match the input.
//
// Edges: every parent edge touching the person that is not desired is
// deleted, then every desired edge is upserted. Family units: when a
// spouse is given and already paired with someone else the call returns
// *SpouseUnavailableError after the edge phase without touching family
// units; edge failures in that case are joined to it as a *BatchError. Otherwise units involving the person other than the desired pair
// are deleted and the desired pair is upserted.
//
// Failed writes are listed in the result and returned as *BatchError.
func (s *Service) Reconcile(ctx context.Context, in ReconcileInput) (*ReconcileResult, error) {
	in.PersonID = strings.TrimSpace(in.PersonID)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	key := tenant.NormalizeKey(in.TenantKey)
	person := in.PersonID
	parents := distinct(in.ParentIDs, person)
	children := distinct(in.ChildIDs, person)
	spouse := strings.TrimSpace(in.SpouseID)
	if spouse == person {
		spouse = ""
	}

	desired := make([]edge, 0, len(parents)+len(children))
	for _, p := range parents {
		desired = append(desired, edge{id: keys.RelationshipID(key, p, person, RelTypeParent), from: p, to: person})
	}
	for _, c := range children {
		desired = append(desired, edge{id: keys.RelationshipID(key, person, c, RelTypeParent), from: person, to: c})
	}
	desiredIDs := make(map[string]bool, len(desired))
	for _, e := range desired {
		desiredIDs[e.id] = true
	}

	// Both snapshots are taken, and the spouse check made, before any write.
	rels, relHeaders, err := s.readRelationships(ctx, key)
	if err != nil {
		return nil, err
	}
	units, unitHeaders, err := s.readFamilyUnits(ctx, key)
	if err != nil {
		return nil, err
	}
	conflict := spouseConflict(units, person, spouse)

	res := &ReconcileResult{
		PersonID:    person,
		ParentCount: len(parents),
		ChildCount:  len(children),
		SpouseID:    spouse,
	}

	s.reconcileEdges(ctx, key, person, rels, relHeaders, desired, desiredIDs, res)

	if conflict != nil {
		s.logger.Info("spouse unavailable",
			"tenant", key, "person", person, "spouse", conflict.SpouseID, "current_spouse", conflict.CurrentSpouseID,
			"failures", len(res.Failures))
		if len(res.Failures) > 0 {
			return res, errors.Join(conflict, &BatchError{Failures: res.Failures})
		}
		return res, conflict
	}

	s.reconcileUnits(ctx, key, person, spouse, units, unitHeaders, res)

	s.logger.Info("relationships reconciled",
		"tenant", key,
		"person", person,
		"parents", res.ParentCount,
		"children", res.ChildCount,
		"spouse", spouse,
		"edges_deleted", res.EdgesDeleted,
		"edges_created", res.EdgesCreated,
		"units_deleted", res.UnitsDeleted,
		"failures", len(res.Failures),
	)

	if len(res.Failures) > 0 {
		return res, &BatchError{Failures: res.Failures}
	}
	return res, nil
}

// spouseConflict finds a unit pairing spouse with someone other than person.
func spouseConflict(units []FamilyUnit, person, spouse string) *SpouseUnavailableError {
	if spouse == "" {
		return nil
	}
	for _, u := range units {
		if u.Involves(spouse) && !u.Involves(person) {
			return &SpouseUnavailableError{SpouseID: spouse, CurrentSpouseID: u.Other(spouse)}
		}
	}
	return nil
}

func (s *Service) reconcileEdges(ctx context.Context, key, person string, rels []Relationship, headers []string,
	desired []edge, desiredIDs map[string]bool, res *ReconcileResult) {
	idCol := column(headers, relIDCols)

	var deletes []task
	var deleted atomic.Int64
	for _, r := range rels {
		if !r.stored || !strings.EqualFold(r.Type, RelTypeParent) {
			continue
		}
		if r.FromPersonID != person && r.ToPersonID != person {
			continue
		}
		if desiredIDs[r.ID] {
			continue
		}
		id := r.ID
		deletes = append(deletes, task{op: "delete_relationship", id: id, run: func(ctx context.Context) error {
			ok, err := s.store.Delete(ctx, TableRelationships, id, idCol, key)
			if ok {
				deleted.Add(1)
			}
			return err
		}})
	}
	res.Failures = append(res.Failures, runAll(ctx, deletes)...)
	res.EdgesDeleted = int(deleted.Load())

	fromCol := column(headers, relFromCols)
	toCol := column(headers, relToCols)
	typeCol := column(headers, relTypeCols)

	var upserts []task
	var created, updated atomic.Int64
	for _, e := range desired {
		payload := map[string]string{
			idCol:                e.id,
			fromCol:              e.from,
			toCol:                e.to,
			typeCol:              RelTypeParent,
			records.TenantColumn: key,
		}
		id := e.id
		upserts = append(upserts, task{op: "upsert_relationship", id: id, run: func(ctx context.Context) error {
			wasCreated, err := s.upsert(ctx, TableRelationships, id, idCol, payload, key)
			if err != nil {
				return err
			}
			if wasCreated {
				created.Add(1)
			} else {
				updated.Add(1)
			}
			return nil
		}})
	}
	res.Failures = append(res.Failures, runAll(ctx, upserts)...)
	res.EdgesCreated = int(created.Load())
	res.EdgesUpdated = int(updated.Load())
}

func (s *Service) reconcileUnits(ctx context.Context, key, person, spouse string, units []FamilyUnit, headers []string,
	res *ReconcileResult) {
	idCol := column(headers, unitIDCols)

	var deletes []task
	var deleted atomic.Int64
	for _, u := range units {
		if !u.stored || !u.Involves(person) {
			continue
		}
		if spouse != "" && u.Pairs(person, spouse) {
			continue
		}
		id := u.ID
		deletes = append(deletes, task{op: "delete_family_unit", id: id, run: func(ctx context.Context) error {
			ok, err := s.store.Delete(ctx, TableFamilyUnits, id, idCol, key)
			if ok {
				deleted.Add(1)
			}
			return err
		}})
	}
	res.Failures = append(res.Failures, runAll(ctx, deletes)...)
	res.UnitsDeleted = int(deleted.Load())

	if spouse == "" {
		return
	}

	id := keys.FamilyUnitID(key, person, spouse)
	p1, p2 := keys.SortedPair(person, spouse)
	p1Col := column(headers, unitP1Cols)
	p2Col := column(headers, unitP2Cols)
	payload := map[string]string{
		idCol:                id,
		p1Col:                p1,
		p2Col:                p2,
		records.TenantColumn: key,
	}
	if _, err := s.upsert(ctx, TableFamilyUnits, id, idCol, payload, key); err != nil {
		res.Failures = append(res.Failures, Failure{
			Op:    "upsert_family_unit",
			ID:    id,
			Error: err.Error(),
			err:   err,
		})
		return
	}
	res.UnitUpserted = true
}
