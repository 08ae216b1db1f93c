// ABOUTME: HTTP middleware for JWT authentication and tenant resolution on API endpoints
// ABOUTME: Extracts JWT from Authorization header and adds the tenant context

package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/2389/famlink/internal/tenant"
)

// TenantParam is the chi URL parameter carrying the requested tenant key.
const TenantParam = "tenantKey"

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}

// Middleware verifies the bearer token, resolves the tenant named by the
// {tenantKey} route parameter and stores the tenant.Context on the request.
func Middleware(verifier TokenVerifier, guard *Guard, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated", errMsg)
				return
			}

			email, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("token rejected", "error", err)
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated", "invalid token")
				return
			}

			tc, err := guard.Resolve(r.Context(), email, chi.URLParam(r, TenantParam))
			switch {
			case err == nil:
			case errors.Is(err, ErrUnauthenticated):
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
				return
			case errors.Is(err, ErrForbidden):
				writeAuthError(w, http.StatusForbidden, "forbidden", "no access to this tenant")
				return
			default:
				logger.Warn("resolve tenant failed", "email", email, "error", err)
				writeAuthError(w, http.StatusBadGateway, "remote_failure", "could not load access grants")
				return
			}

			next.ServeHTTP(w, r.WithContext(tenant.WithContext(r.Context(), tc)))
		})
	}
}

// RequireAdmin creates an HTTP middleware that requires the ADMIN role in
// the resolved tenant. Must be used after Middleware.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc := tenant.FromContext(r.Context())
			if tc == nil {
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated", "not authenticated")
				return
			}
			if !tc.IsAdmin() {
				writeAuthError(w, http.StatusForbidden, "forbidden", "admin role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
