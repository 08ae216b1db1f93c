// ABOUTME: End-to-end tests for tenant listing, grant administration and the dates view
// ABOUTME: Written grants are checked by signing in as the granted email

package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/famlink/internal/auth"
	"github.com/2389/famlink/internal/family"
	"github.com/2389/famlink/internal/tenant"
)

func TestListTenants(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/tenants", env.foreign, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "smith", body["activeTenantKey"])
	tenants, ok := body["tenants"].([]any)
	require.True(t, ok)
	require.Len(t, tenants, 1)
	assert.Equal(t, "Smith Family", tenants[0].(map[string]any)["name"])

	rec = env.do(t, http.MethodGet, "/api/tenants", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserAccess(t *testing.T) {
	env := newTestEnv(t)
	dan := env.tokenOf("dan@example.com")

	rec := env.do(t, http.MethodGet, "/api/t/default/user-access", env.user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/t/default/user-access", env.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["items"], 2)

	rec = env.do(t, http.MethodGet, "/api/t/default/me", dan, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/t/default/user-access", env.admin, map[string]any{
		"userEmail": "Dan@Example.com",
		"role":      "USER",
		"personId":  "p4",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["created"])

	rows := env.mem.Rows(auth.AccessTable)
	assert.Equal(t, []string{"dan@example.com", "TRUE", "USER", "p4", "default", tenant.DefaultName}, rows[len(rows)-1])

	rec = env.do(t, http.MethodGet, "/api/t/default/me", dan, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "p4", decode(t, rec)["personId"])

	// Disabling the same pair rewrites the row and locks the user out.
	rec = env.do(t, http.MethodPost, "/api/t/default/user-access", env.admin, map[string]any{
		"userEmail": "dan@example.com",
		"role":      "USER",
		"isEnabled": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["created"])
	assert.Len(t, env.mem.Rows(auth.AccessTable), len(rows))

	rec = env.do(t, http.MethodGet, "/api/t/default/me", dan, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/t/default/user-access", env.admin, map[string]any{
		"userEmail": "dan@example.com",
		"role":      "OWNER",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payload", decode(t, rec)["error"])
}

func TestProvisionTenant(t *testing.T) {
	env := newTestEnv(t)
	grant := map[string]any{
		"userEmail":  "dan@example.com",
		"tenantKey":  " Jones ",
		"tenantName": "Jones Family",
		"role":       "ADMIN",
		"personId":   "j1",
	}

	rec := env.do(t, http.MethodPost, "/api/tenants/provision", env.user, grant)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/tenants/provision", env.admin, map[string]any{
		"userEmail": "dan@example.com", "tenantKey": "jones", "tenantName": "Jones Family", "role": "ADMIN",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payload", decode(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/tenants/provision", env.admin, grant)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/t/jones/me", env.tokenOf("dan@example.com"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "jones", body["tenantKey"])
	assert.Equal(t, "Jones Family", body["tenantName"])
	assert.Equal(t, "ADMIN", body["role"])
}

func TestToday(t *testing.T) {
	env := newTestEnv(t)
	soon := time.Now().AddDate(-30, 0, 1).Format("2006-01-02")
	env.mem.AddTab(family.TablePeople,
		[]string{"person_id", "display_name", "birth_date", "tenant_key"},
		[]string{"p1", "Ann", soon, ""},
		[]string{"p2", "Bob", "not a date", ""},
		[]string{"s1", "Sam", soon, "smith"},
	)

	rec := env.do(t, http.MethodGet, "/api/t/default/today?days=2", env.user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "default", body["tenantKey"])
	assert.Equal(t, float64(1), body["count"])
	items := body["items"].([]any)
	assert.Equal(t, "p1", items[0].(map[string]any)["personId"])
	assert.Equal(t, "birthday", items[0].(map[string]any)["kind"])

	rec = env.do(t, http.MethodGet, "/api/t/default/today?days=400", env.user, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
