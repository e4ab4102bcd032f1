package shared

import (
	"errors"
	"log/slog"
	"net/http"

	"hrdesk/internal/domain/adjustment"
	"hrdesk/internal/domain/auth"
	"hrdesk/internal/domain/employee"
	"hrdesk/internal/domain/listing"
	"hrdesk/internal/domain/payroll"
	"hrdesk/internal/domain/recruitment"
	"hrdesk/internal/platform/validate"
	"hrdesk/internal/transport/http/api"
	"hrdesk/internal/transport/http/middleware"
)

// ErrForbidden is returned by handler-level checks that go beyond the route
// permission, such as an employee reaching for another employee's records.
var ErrForbidden = errors.New("forbidden")

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// Order matters only where one error wraps another; the first match wins.
var errorMappings = []errorMapping{
	{ErrForbidden, http.StatusForbidden, "forbidden", "insufficient permissions"},

	{adjustment.ErrNotFound, http.StatusNotFound, "not_found", "record not found"},
	{payroll.ErrNotFound, http.StatusNotFound, "not_found", "payroll not found"},
	{payroll.ErrPayslipNotFound, http.StatusNotFound, "not_found", "payslip not found"},
	{recruitment.ErrAdvertNotFound, http.StatusNotFound, "not_found", "job advert not found"},
	{recruitment.ErrApplicationNotFound, http.StatusNotFound, "not_found", "application not found"},
	{recruitment.ErrCVNotFound, http.StatusNotFound, "not_found", "application has no CV"},
	{employee.ErrNotFound, http.StatusNotFound, "not_found", "employee not found"},
	{listing.ErrUnknownView, http.StatusNotFound, "unknown_view", "unknown view"},
	{listing.ErrConfirmationNotFound, http.StatusNotFound, "confirmation_not_found", "confirmation not found or expired"},

	{adjustment.ErrInactive, http.StatusConflict, "inactive_record", "inactive records cannot be edited"},
	{recruitment.ErrAdvertClosed, http.StatusConflict, "advert_closed", "this job advert is not accepting applications"},
	{recruitment.ErrDuplicateApplication, http.StatusConflict, "duplicate_application", "an application with this email already exists for this job"},
	{recruitment.ErrSlugTaken, http.StatusConflict, "slug_taken", "slug is already in use"},

	{listing.ErrSelectionTooLarge, http.StatusBadRequest, "selection_too_large", "too many records match; narrow the filters first"},
	{listing.ErrEmptySelection, http.StatusBadRequest, "empty_selection", "no records selected"},
	{listing.ErrInvalidSortField, http.StatusBadRequest, "invalid_sort", "field is not sortable"},
	{listing.ErrInvalidFilter, http.StatusBadRequest, "invalid_filter", "filter value not allowed"},
	{listing.ErrInvalidPerPage, http.StatusBadRequest, "invalid_per_page", "per page must be one of 10, 25, 50"},
	{listing.ErrScopeRequired, http.StatusBadRequest, "scope_required", "this view needs a scope"},
	{adjustment.ErrUnknownKind, http.StatusNotFound, "unknown_view", "unknown adjustment kind"},

	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", "invalid email or password"},
	{auth.ErrMFARequired, http.StatusUnauthorized, "mfa_required", "mfa code required"},
	{auth.ErrMFAInvalid, http.StatusUnauthorized, "mfa_invalid", "invalid mfa code"},
	{auth.ErrMFAUnavailable, http.StatusConflict, "mfa_unavailable", "mfa is not available on this server"},

	{payroll.ErrEmailDisabled, http.StatusServiceUnavailable, "email_disabled", "email delivery is not configured"},
	{payroll.ErrNoRecipient, http.StatusConflict, "no_recipient", "employee has no email address"},
	{payroll.ErrRenderFailed, http.StatusInternalServerError, "render_failed", "the payslip could not be generated"},
	{payroll.ErrStorageFailed, http.StatusInternalServerError, "storage_failed", "the payslip could not be stored"},
}

// WriteError maps a service error onto the response envelope. Anything it
// does not recognise is logged and reported as a 500 without its cause.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())

	var verr *validate.Error
	if errors.As(err, &verr) {
		api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
			map[string]any{"fields": verr.Issues}, requestID)
		return
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body is too large", requestID)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.status >= http.StatusInternalServerError {
				slog.Error("request failed", "code", m.code, "err", err, "path", r.URL.Path, "requestId", requestID)
			}
			api.Fail(w, m.status, m.code, m.message, requestID)
			return
		}
	}

	slog.Error("request failed", "err", err, "method", r.Method, "path", r.URL.Path, "requestId", requestID)
	api.Fail(w, http.StatusInternalServerError, "internal_error", "something went wrong", requestID)
}

func Forbidden(w http.ResponseWriter, r *http.Request) {
	api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", middleware.GetRequestID(r.Context()))
}

func BadRequest(w http.ResponseWriter, r *http.Request, code, message string) {
	api.Fail(w, http.StatusBadRequest, code, message, middleware.GetRequestID(r.Context()))
}
