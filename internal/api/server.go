// ABOUTME: HTTP router and middleware configuration for the famlink API
// ABOUTME: Wires chi routes for tables, people, photos, grants and the relationship graph

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/2389/famlink/internal/auth"
	"github.com/2389/famlink/internal/family"
	"github.com/2389/famlink/internal/metrics"
	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/tenant"
)

// Options tune the router.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	MetricsPath    string // empty disables the metrics endpoint
}

// Handler serves the famlink API.
type Handler struct {
	store    *records.Store
	family   *family.Service
	verifier auth.TokenVerifier
	guard    *auth.Guard
	grants   *auth.SheetGrants
	metrics  *metrics.Registry
	logger   *slog.Logger
}

// NewHandler creates a Handler. metrics may be nil.
func NewHandler(store *records.Store, svc *family.Service, verifier auth.TokenVerifier, guard *auth.Guard,
	reg *metrics.Registry, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		family:   svc,
		verifier: verifier,
		guard:    guard,
		grants:   auth.NewSheetGrants(store),
		metrics:  reg,
		logger:   logger.With("component", "api"),
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
		}))
	}

	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)
	if h.metrics != nil && opts.MetricsPath != "" {
		r.Handle(opts.MetricsPath, h.metrics.Handler())
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		authenticated := auth.Middleware(h.verifier, h.guard, h.logger)
		r.With(authenticated).Get("/me", h.Me)
		r.With(authenticated).Get("/tenants", h.ListTenants)
		r.With(authenticated, auth.RequireAdmin()).Post("/tenants/provision", h.ProvisionTenant)

		r.Route("/t/{tenantKey}", func(r chi.Router) {
			r.Use(auth.Middleware(h.verifier, h.guard, h.logger))
			admin := auth.RequireAdmin()

			r.Get("/me", h.Me)
			r.Get("/today", h.Today)
			r.With(admin).Get("/user-access", h.ListUserAccess)
			r.With(admin).Post("/user-access", h.UpsertUserAccess)

			r.Route("/tables", func(r chi.Router) {
				r.With(admin).Get("/", h.ListTables)
				r.Get("/{table}", h.ListRecords)
				r.With(admin).Post("/{table}", h.CreateRecord)
				r.Get("/{table}/{recordId}", h.GetRecord)
				r.With(admin).Patch("/{table}/{recordId}", h.UpdateRecord)
				r.With(admin).Delete("/{table}/{recordId}", h.DeleteRecord)
			})

			r.Route("/people", func(r chi.Router) {
				r.Get("/", h.ListPeople)
				r.With(admin).Post("/", h.CreatePerson)
				r.Get("/{personId}", h.GetPerson)
				r.Patch("/{personId}", h.UpdatePerson)
				r.Get("/{personId}/attributes", h.ListAttributes)
				r.Post("/{personId}/attributes", h.CreateAttribute)
				r.Patch("/{personId}/attributes/{attributeId}", h.UpdateAttribute)
				r.Delete("/{personId}/attributes/{attributeId}", h.DeleteAttribute)
				r.Post("/{personId}/photos", h.UploadPhoto)
			})

			r.Get("/photos/{fileId}", h.GetPhoto)

			r.Get("/relationships", h.ListRelationships)
			r.With(admin).Post("/relationships/builder", h.ReconcileRelationships)
			r.Get("/relationships/suggest-parent", h.SuggestSecondParent)
			r.Get("/family-units", h.ListFamilyUnits)
			r.Get("/tree", h.Tree)
		})
	})

	return r
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether the workbook backend answers.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if _, err := h.store.ListTables(ctx); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type meResponse struct {
	Email      string           `json:"email"`
	TenantKey  string           `json:"tenantKey"`
	TenantName string           `json:"tenantName"`
	Role       string           `json:"role"`
	PersonID   string           `json:"personId"`
	Tenants    []tenant.Summary `json:"tenants"`
}

// Me returns the caller's resolved tenant and every tenant they can enter.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	tc := auth.MustFromContext(r.Context())
	tenants := tc.Tenants
	if tenants == nil {
		tenants = []tenant.Summary{}
	}
	writeJSON(w, http.StatusOK, meResponse{
		Email:      tc.Email,
		TenantKey:  tc.TenantKey,
		TenantName: tc.TenantName,
		Role:       tc.Role,
		PersonID:   tc.PersonID,
		Tenants:    tenants,
	})
}
