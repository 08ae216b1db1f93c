// ABOUTME: Handlers for generic table access: list tables, list/get/create/update/delete records
// ABOUTME: Every call is scoped to the tenant resolved by the auth middleware

package api

import (
	"net/http"

	"github.com/2389/famlink/internal/auth"
	"github.com/2389/famlink/internal/records"
)

type tablesResponse struct {
	Tables []string `json:"tables"`
}

type recordsResponse struct {
	Table   string           `json:"table"`
	Records []records.Record `json:"records"`
}

type recordResponse struct {
	Table  string          `json:"table"`
	Record *records.Record `json:"record"`
}

type deleteResponse struct {
	Table   string `json:"table"`
	Deleted bool   `json:"deleted"`
}

// ListTables returns every tab title in the workbook.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tablesResponse{Tables: tables})
}

// ListRecords returns the caller-visible rows of a table.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	table, ok := tableParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_table", "")
		return
	}
	tc := auth.MustFromContext(r.Context())

	recs, err := h.store.List(r.Context(), table, tc.TenantKey)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, recordsResponse{Table: table, Records: recs})
}

// CreateRecord appends a row from {"record": {...}}.
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	table, ok := tableParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_table", "")
		return
	}
	payload, err := recordPayload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_record", err.Error())
		return
	}
	tc := auth.MustFromContext(r.Context())

	rec, err := h.store.Create(r.Context(), table, payload, tc.TenantKey)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, recordResponse{Table: table, Record: rec})
}

// recordTarget parses the table, record id and optional id column of a
// record route, writing the 400 itself when any is malformed.
func recordTarget(w http.ResponseWriter, r *http.Request) (table, id, idColumn string, ok bool) {
	table, tableOK := tableParam(r)
	id, idOK := idParam(r, "recordId")
	if !tableOK || !idOK {
		writeError(w, http.StatusBadRequest, "invalid_path", "")
		return "", "", "", false
	}
	idColumn, ok = idColumnParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_id_column", "")
		return "", "", "", false
	}
	return table, id, idColumn, true
}

// GetRecord returns one row by id.
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	table, id, idColumn, ok := recordTarget(w, r)
	if !ok {
		return
	}
	tc := auth.MustFromContext(r.Context())

	rec, err := h.store.Get(r.Context(), table, id, idColumn, tc.TenantKey)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{Table: table, Record: rec})
}

// UpdateRecord merges {"record": {...}} into a row.
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	table, id, idColumn, ok := recordTarget(w, r)
	if !ok {
		return
	}
	payload, err := recordPayload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_record", err.Error())
		return
	}
	tc := auth.MustFromContext(r.Context())

	rec, err := h.store.Update(r.Context(), table, id, payload, idColumn, tc.TenantKey)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{Table: table, Record: rec})
}

// DeleteRecord removes a row by id.
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	table, id, idColumn, ok := recordTarget(w, r)
	if !ok {
		return
	}
	tc := auth.MustFromContext(r.Context())

	deleted, err := h.store.Delete(r.Context(), table, id, idColumn, tc.TenantKey)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if !deleted {
		writeServiceError(w, h.logger, records.ErrRecordNotFound)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Table: table, Deleted: true})
}
