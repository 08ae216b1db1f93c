// ABOUTME: Handlers for people, person attributes and photos
// ABOUTME: Edits are allowed for admins and for the person linked to the caller's grant

package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/2389/famlink/internal/auth"
	"github.com/2389/famlink/internal/family"
)

type peopleResponse struct {
	TenantKey string          `json:"tenantKey"`
	People    []family.Person `json:"people"`
}

type personResponse struct {
	TenantKey string         `json:"tenantKey"`
	Person    *family.Person `json:"person"`
}

type attributesResponse struct {
	TenantKey  string             `json:"tenantKey"`
	PersonID   string             `json:"personId"`
	Attributes []family.Attribute `json:"attributes"`
}

type attributeResponse struct {
	TenantKey string            `json:"tenantKey"`
	PersonID  string            `json:"personId"`
	Attribute *family.Attribute `json:"attribute"`
}

type attributeDeletedResponse struct {
	OK          bool   `json:"ok"`
	TenantKey   string `json:"tenantKey"`
	PersonID    string `json:"personId"`
	AttributeID string `json:"attributeId"`
}

type photoResponse struct {
	OK        bool   `json:"ok"`
	TenantKey string `json:"tenantKey"`
	PersonID  string `json:"personId"`
	*family.PhotoResult
}

// personTarget returns the {personId} parameter and whether the caller may
// edit that person. It writes the error response itself.
func (h *Handler) personTarget(w http.ResponseWriter, r *http.Request, edit bool) (string, bool) {
	personID, ok := idParam(r, "personId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_path", "")
		return "", false
	}
	if edit && !auth.CanEditPerson(r.Context(), personID) {
		writeError(w, http.StatusForbidden, "forbidden", "")
		return "", false
	}
	return personID, true
}

// ListPeople returns the tenant's people sorted by display name.
func (h *Handler) ListPeople(w http.ResponseWriter, r *http.Request) {
	tc := auth.MustFromContext(r.Context())
	people, err := h.family.People(r.Context(), tc.TenantKey)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, peopleResponse{TenantKey: tc.TenantKey, People: people})
}

// CreatePerson adds a person with a derived id.
func (h *Handler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var in family.NewPerson
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	tc := auth.MustFromContext(r.Context())

	p, err := h.family.CreatePerson(r.Context(), tc.TenantKey, in)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, personResponse{TenantKey: tc.TenantKey, Person: p})
}

// GetPerson returns one person.
func (h *Handler) GetPerson(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.personTarget(w, r, false)
	if !ok {
		return
	}
	tc := auth.MustFromContext(r.Context())

	p, err := h.family.Person(r.Context(), tc.TenantKey, personID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, personResponse{TenantKey: tc.TenantKey, Person: p})
}

// UpdatePerson rewrites a person's editable fields.
func (h *Handler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.personTarget(w, r, true)
	if !ok {
		return
	}
	var in family.PersonUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	tc := auth.MustFromContext(r.Context())

	p, err := h.family.UpdatePerson(r.Context(), tc.TenantKey, personID, in)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, personResponse{TenantKey: tc.TenantKey, Person: p})
}

// ListAttributes returns a person's attributes.
func (h *Handler) ListAttributes(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.personTarget(w, r, false)
	if !ok {
		return
	}
	tc := auth.MustFromContext(r.Context())

	attrs, err := h.family.Attributes(r.Context(), tc.TenantKey, personID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, attributesResponse{TenantKey: tc.TenantKey, PersonID: personID, Attributes: attrs})
}

// CreateAttribute adds an attribute to a person.
func (h *Handler) CreateAttribute(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.personTarget(w, r, true)
	if !ok {
		return
	}
	var in family.AttributeInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	tc := auth.MustFromContext(r.Context())

	a, err := h.family.CreateAttribute(r.Context(), tc.TenantKey, personID, in)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, attributeResponse{TenantKey: tc.TenantKey, PersonID: personID, Attribute: a})
}

// UpdateAttribute patches one attribute.
func (h *Handler) UpdateAttribute(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.personTarget(w, r, true)
	if !ok {
		return
	}
	attributeID, ok := idParam(r, "attributeId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_path", "")
		return
	}
	var patch family.AttributePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	tc := auth.MustFromContext(r.Context())

	a, err := h.family.UpdateAttribute(r.Context(), tc.TenantKey, personID, attributeID, patch)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, attributeResponse{TenantKey: tc.TenantKey, PersonID: personID, Attribute: a})
}

// DeleteAttribute removes one attribute.
func (h *Handler) DeleteAttribute(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.personTarget(w, r, true)
	if !ok {
		return
	}
	attributeID, ok := idParam(r, "attributeId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_path", "")
		return
	}
	tc := auth.MustFromContext(r.Context())

	deleted, err := h.family.DeleteAttribute(r.Context(), tc.TenantKey, personID, attributeID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "not_found", "")
		return
	}
	writeJSON(w, http.StatusOK, attributeDeletedResponse{
		OK:          true,
		TenantKey:   tc.TenantKey,
		PersonID:    personID,
		AttributeID: attributeID,
	})
}

// UploadPhoto stores a multipart "file" for a person. Optional form fields
// are "label" and "isHeadshot".
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.personTarget(w, r, true)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "multipart form required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "could not read file")
		return
	}

	label := strings.TrimSpace(r.FormValue("label"))
	if label == "" {
		label = "gallery"
	}
	tc := auth.MustFromContext(r.Context())

	res, err := h.family.AttachPhoto(r.Context(), tc.TenantKey, personID, family.Upload{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
		Label:    label,
		Headshot: strings.EqualFold(strings.TrimSpace(r.FormValue("isHeadshot")), "true"),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, photoResponse{OK: true, TenantKey: tc.TenantKey, PersonID: personID, PhotoResult: res})
}

// GetPhoto streams a stored photo visible to the tenant.
func (h *Handler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	fileID, ok := idParam(r, "fileId")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_path", "")
		return
	}
	tc := auth.MustFromContext(r.Context())

	mimeType, data, err := h.family.Photo(r.Context(), tc.TenantKey, fileID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
