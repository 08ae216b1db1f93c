// ABOUTME: Handlers for the relationship graph: edges, family units, tree, builder and suggestions
// ABOUTME: The builder reconciles one person's parents, children and spouse

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/2389/famlink/internal/auth"
	"github.com/2389/famlink/internal/family"
)

type relationshipsResponse struct {
	TenantKey     string                `json:"tenantKey"`
	Relationships []family.Relationship `json:"relationships"`
}

type familyUnitsResponse struct {
	TenantKey   string              `json:"tenantKey"`
	FamilyUnits []family.FamilyUnit `json:"familyUnits"`
}

type reconcileResponse struct {
	OK bool `json:"ok"`
	*family.ReconcileResult
}

type suggestResponse struct {
	TenantKey       string `json:"tenantKey"`
	SuggestedParent string `json:"suggestedParentId"`
}

// ListRelationships returns the tenant's edges.
func (h *Handler) ListRelationships(w http.ResponseWriter, r *http.Request) {
	tc := auth.MustFromContext(r.Context())
	rels, err := h.family.Relationships(r.Context(), tc.TenantKey)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, relationshipsResponse{TenantKey: tc.TenantKey, Relationships: rels})
}

// ListFamilyUnits returns the tenant's partner pairs.
func (h *Handler) ListFamilyUnits(w http.ResponseWriter, r *http.Request) {
	tc := auth.MustFromContext(r.Context())
	units, err := h.family.FamilyUnits(r.Context(), tc.TenantKey)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, familyUnitsResponse{TenantKey: tc.TenantKey, FamilyUnits: units})
}

// Tree returns people, edges and family units in one response.
func (h *Handler) Tree(w http.ResponseWriter, r *http.Request) {
	tc := auth.MustFromContext(r.Context())
	tree, err := h.family.Tree(r.Context(), tc.TenantKey)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

// ReconcileRelationships rewrites one person's neighbourhood to match the
// posted parents, children and spouse.
func (h *Handler) ReconcileRelationships(w http.ResponseWriter, r *http.Request) {
	var in family.ReconcileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	tc := auth.MustFromContext(r.Context())
	in.TenantKey = tc.TenantKey

	res, err := h.family.Reconcile(r.Context(), in)
	h.observeReconcile(err)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, reconcileResponse{OK: true, ReconcileResult: res})
}

func (h *Handler) observeReconcile(err error) {
	if h.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, family.ErrSpouseUnavailable):
		result = "spouse_conflict"
	case errors.Is(err, family.ErrPartialBatch):
		result = "partial"
	default:
		result = "error"
	}
	h.metrics.ObserveReconcile(result)
}

// SuggestSecondParent proposes the spouse of the given parent as the
// other parent. ?parentId= may repeat or hold a comma-separated list.
func (h *Handler) SuggestSecondParent(w http.ResponseWriter, r *http.Request) {
	var parents []string
	for _, v := range r.URL.Query()["parentId"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				parents = append(parents, id)
			}
		}
	}
	if len(parents) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_payload", "parentId is required")
		return
	}
	tc := auth.MustFromContext(r.Context())

	suggested, err := h.family.SuggestSecondParent(r.Context(), tc.TenantKey, parents)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestResponse{TenantKey: tc.TenantKey, SuggestedParent: suggested})
}
