// ABOUTME: Maps package errors onto HTTP status codes and JSON error bodies
// ABOUTME: The only place in the server where errors become statuses

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/2389/famlink/internal/blob"
	"github.com/2389/famlink/internal/family"
	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/sheet"
	"github.com/2389/famlink/internal/tenant"
)

// Issue is one failed validation rule.
type Issue struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

type validationResponse struct {
	Error  string  `json:"error"`
	Issues []Issue `json:"issues"`
}

type spouseResponse struct {
	Error           string           `json:"error"`
	SpouseID        string           `json:"spouseId"`
	CurrentSpouseID *string          `json:"currentSpouseId"`
	Failures        []family.Failure `json:"failures,omitempty"`
}

type partialResponse struct {
	Error    string           `json:"error"`
	Message  string           `json:"message"`
	Failures []family.Failure `json:"failures"`
}

// writeServiceError writes the response for an error returned by the
// store or the graph service.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		verrs  validator.ValidationErrors
		spouse *family.SpouseUnavailableError
		batch  *family.BatchError
		cross  *tenant.CrossTenantError
	)

	switch {
	case errors.As(err, &verrs):
		issues := make([]Issue, 0, len(verrs))
		for _, fe := range verrs {
			issues = append(issues, Issue{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
		}
		writeJSON(w, http.StatusBadRequest, validationResponse{Error: "invalid_payload", Issues: issues})

	case errors.Is(err, family.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_payload", err.Error())

	case errors.As(err, &spouse):
		resp := spouseResponse{Error: "spouse_unavailable", SpouseID: spouse.SpouseID}
		if spouse.CurrentSpouseID != "" {
			resp.CurrentSpouseID = &spouse.CurrentSpouseID
		}
		if errors.As(err, &batch) {
			logger.Warn("partial write", "failures", len(batch.Failures), "error", err)
			resp.Failures = batch.Failures
		}
		writeJSON(w, http.StatusConflict, resp)

	case errors.As(err, &batch):
		logger.Warn("partial write", "failures", len(batch.Failures), "error", err)
		writeJSON(w, http.StatusBadGateway, partialResponse{
			Error:    "partial_failure",
			Message:  err.Error(),
			Failures: batch.Failures,
		})

	case errors.As(err, &cross):
		logger.Warn("cross tenant access blocked", "row_tenant", cross.RowTenant, "caller_tenant", cross.CallerTenant)
		writeError(w, http.StatusForbidden, "cross_tenant_row_blocked", "")

	case errors.Is(err, sheet.ErrHeaderMissing):
		writeError(w, http.StatusUnprocessableEntity, "header_missing", err.Error())

	case errors.Is(err, sheet.ErrTabNotFound):
		writeError(w, http.StatusNotFound, "tab_not_found", err.Error())

	case errors.Is(err, records.ErrIDColumnNotFound):
		writeError(w, http.StatusBadRequest, "id_column_not_found", err.Error())

	case errors.Is(err, records.ErrRecordNotFound), errors.Is(err, blob.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "")

	case errors.Is(err, family.ErrPersonExists), errors.Is(err, records.ErrConcurrentModification):
		code := "concurrent_modification"
		if errors.Is(err, family.ErrPersonExists) {
			code = "person_exists"
		}
		writeError(w, http.StatusConflict, code, err.Error())

	case errors.Is(err, sheet.ErrRemoteTimeout), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("remote timeout", "error", err)
		writeError(w, http.StatusGatewayTimeout, "remote_timeout", "")

	case errors.Is(err, sheet.ErrRemoteFailure):
		logger.Warn("remote failure", "error", err)
		writeError(w, http.StatusBadGateway, "remote_failure", "")

	default:
		logger.Error("unhandled error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
