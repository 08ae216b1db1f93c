// ABOUTME: Tests the error to HTTP status mapping
// ABOUTME: One case per error family returned by the store and graph service

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/famlink/internal/family"
	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/sheet"
	"github.com/2389/famlink/internal/tenant"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"header missing", fmt.Errorf("read: %w", sheet.ErrHeaderMissing), http.StatusUnprocessableEntity, "header_missing"},
		{"tab not found", &sheet.TabNotFoundError{Table: "X", Candidates: []string{"X"}}, http.StatusNotFound, "tab_not_found"},
		{"id column", records.ErrIDColumnNotFound, http.StatusBadRequest, "id_column_not_found"},
		{"record", fmt.Errorf("%w: People %q", records.ErrRecordNotFound, "p1"), http.StatusNotFound, "not_found"},
		{"cross tenant", &tenant.CrossTenantError{RowTenant: "a", CallerTenant: "b"}, http.StatusForbidden, "cross_tenant_row_blocked"},
		{"spouse", &family.SpouseUnavailableError{SpouseID: "p4", CurrentSpouseID: "p5"}, http.StatusConflict, "spouse_unavailable"},
		{"remote timeout", &sheet.RemoteError{Op: "get_values", Timeout: true, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, "remote_timeout"},
		{"remote failure", &sheet.RemoteError{Op: "get_values", Err: errors.New("boom")}, http.StatusBadGateway, "remote_failure"},
		{"request deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "remote_timeout"},
		{"concurrent", records.ErrConcurrentModification, http.StatusConflict, "concurrent_modification"},
		{"person exists", family.ErrPersonExists, http.StatusConflict, "person_exists"},
		{"partial", &family.BatchError{Failures: []family.Failure{{Op: "delete_relationship", ID: "rel_1", Error: "boom"}}}, http.StatusBadGateway, "partial_failure"},
		{"invalid input", fmt.Errorf("%w: file is empty", family.ErrInvalidInput), http.StatusBadRequest, "invalid_payload"},
		{"unknown", errors.New("mystery"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, testLogger(), tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode(t, rec)["error"])
		})
	}
}

func TestWriteServiceError_SpouseWithoutPartner(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, testLogger(), &family.SpouseUnavailableError{SpouseID: "p4"})
	body := decode(t, rec)
	assert.Equal(t, "p4", body["spouseId"])
	assert.Nil(t, body["currentSpouseId"])
}

func TestWriteServiceError_SpouseConflictKeepsEdgeFailures(t *testing.T) {
	failures := []family.Failure{{Op: "upsert_relationship", ID: "rel_1", Error: "quota exceeded"}}
	err := errors.Join(
		&family.SpouseUnavailableError{SpouseID: "p4", CurrentSpouseID: "p5"},
		&family.BatchError{Failures: failures},
	)

	rec := httptest.NewRecorder()
	writeServiceError(rec, testLogger(), err)
	assert.Equal(t, http.StatusConflict, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "spouse_unavailable", body["error"])
	assert.Equal(t, "p5", body["currentSpouseId"])
	got, ok := body["failures"].([]any)
	if assert.True(t, ok, "failures listed") && assert.Len(t, got, 1) {
		assert.Equal(t, "rel_1", got[0].(map[string]any)["id"])
	}
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{`"text"`, "text", false},
		{`12.50`, "12.50", false},
		{`true`, "true", false},
		{`null`, "", false},
		{`{"a":1}`, "", true},
		{`[1]`, "", true},
	}
	for _, tt := range tests {
		got, err := cellValue([]byte(tt.raw))
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		assert.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}
