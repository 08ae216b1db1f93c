// ABOUTME: Handlers for tenant listing, grant administration and the upcoming dates view
// ABOUTME: Grant writes go to the UserAccess tab keyed by email and tenant

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/2389/famlink/internal/auth"
	"github.com/2389/famlink/internal/family"
	"github.com/2389/famlink/internal/tenant"
)

// defaultDateWindow is the look-ahead of /today without ?days=.
const defaultDateWindow = 30

type tenantsResponse struct {
	Tenants         []tenant.Summary `json:"tenants"`
	ActiveTenantKey string           `json:"activeTenantKey"`
}

type userAccessResponse struct {
	TenantKey string       `json:"tenantKey"`
	Items     []auth.Grant `json:"items"`
}

type userAccessRequest struct {
	UserEmail string `json:"userEmail"`
	Role      string `json:"role"`
	PersonID  string `json:"personId"`
	IsEnabled *bool  `json:"isEnabled"`
}

type grantResponse struct {
	OK      bool        `json:"ok"`
	Created bool        `json:"created"`
	Grant   *auth.Grant `json:"grant"`
}

type todayResponse struct {
	TenantKey string                 `json:"tenantKey"`
	Items     []family.ImportantDate `json:"items"`
	Count     int                    `json:"count"`
}

// ListTenants returns every tenant the caller can enter.
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tc := auth.MustFromContext(r.Context())
	tenants := tc.Tenants
	if tenants == nil {
		tenants = []tenant.Summary{}
	}
	writeJSON(w, http.StatusOK, tenantsResponse{Tenants: tenants, ActiveTenantKey: tc.TenantKey})
}

// ListUserAccess returns every grant of the tenant, disabled ones included.
func (h *Handler) ListUserAccess(w http.ResponseWriter, r *http.Request) {
	tc := auth.MustFromContext(r.Context())
	grants, err := h.grants.List(r.Context(), tc.TenantKey)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, userAccessResponse{TenantKey: tc.TenantKey, Items: grants})
}

// UpsertUserAccess grants an email a role in the caller's tenant.
func (h *Handler) UpsertUserAccess(w http.ResponseWriter, r *http.Request) {
	var in userAccessRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	tc := auth.MustFromContext(r.Context())
	h.writeGrant(w, r, tc, auth.GrantInput{
		UserEmail:  in.UserEmail,
		TenantKey:  tc.TenantKey,
		TenantName: tc.TenantName,
		Role:       in.Role,
		PersonID:   in.PersonID,
		IsEnabled:  in.IsEnabled,
	})
}

// ProvisionTenant grants an email a role in any tenant, creating the
// tenant by its first grant. The person id is required here.
func (h *Handler) ProvisionTenant(w http.ResponseWriter, r *http.Request) {
	var in auth.GrantInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", err.Error())
		return
	}
	if strings.TrimSpace(in.PersonID) == "" {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:  "invalid_payload",
			Issues: []Issue{{Field: "PersonID", Rule: "required"}},
		})
		return
	}
	h.writeGrant(w, r, auth.MustFromContext(r.Context()), in)
}

func (h *Handler) writeGrant(w http.ResponseWriter, r *http.Request, tc *tenant.Context, in auth.GrantInput) {
	grant, created, err := h.grants.Upsert(r.Context(), in)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("grant written",
		"by", tc.Email,
		"email", grant.UserEmail,
		"tenant", grant.TenantKey,
		"role", grant.Role,
		"enabled", grant.IsEnabled,
		"created", created,
	)
	writeJSON(w, http.StatusOK, grantResponse{OK: true, Created: created, Grant: grant})
}

// Today returns the birthdays of the next ?days= days (default 30).
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	days := defaultDateWindow
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > family.MaxDateWindow {
			writeError(w, http.StatusBadRequest, "invalid_payload", "days must be between 0 and 366")
			return
		}
		days = n
	}
	tc := auth.MustFromContext(r.Context())
	items, err := h.family.ImportantDates(r.Context(), tc.TenantKey, time.Now(), days)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, todayResponse{TenantKey: tc.TenantKey, Items: items, Count: len(items)})
}
