// ABOUTME: Tests for metric collection
// ABOUTME: Uses prometheus testutil against the private registry

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/famlink/internal/sheet"
)

func TestObserveRemoteCall(t *testing.T) {
	r := New()
	r.ObserveRemoteCall("get_values", 20*time.Millisecond, nil)
	r.ObserveRemoteCall("get_values", time.Second, errors.New("boom"))
	r.ObserveRemoteCall("list_tabs", time.Millisecond, sheet.ErrTabNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.remoteCalls.WithLabelValues("get_values", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.remoteCalls.WithLabelValues("get_values", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.remoteCalls.WithLabelValues("list_tabs", "tab_not_found")))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	reg := New()
	router := chi.NewRouter()
	router.Use(reg.Middleware)
	router.Get("/api/t/{tenantKey}/people", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/t/smith/people", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		reg.httpRequests.WithLabelValues("GET", "/api/t/{tenantKey}/people", "418")))
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := New()
	reg.ObserveReconcile("ok")

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `famlink_reconcile_total{result="ok"} 1`))
}
