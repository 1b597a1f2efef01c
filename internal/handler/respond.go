// Package handler holds the HTTP response helpers shared by the API
// handlers: JSON rendering and the domain-error-to-status mapping.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/margemcerta/backoffice/internal/domain"
	"github.com/margemcerta/backoffice/internal/middleware"
	"github.com/margemcerta/backoffice/internal/pricing"
)

// RespondJSON writes v as a JSON response with the given status.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode response", "error", err)
	}
}

// errorBody is the JSON error envelope: {"error": {"code", "message", ...}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Field is set for validation errors so clients can highlight the
	// offending input.
	Field string `json:"field,omitempty"`
	// CombinedRate is set when fees plus target margin consume the whole
	// price and no solution exists.
	CombinedRate string `json:"combinedRate,omitempty"`
}

// ErrorResponse writes err as a JSON error with the right status code.
// Engine errors carry extra detail; internal errors stay generic.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	detail := errorDetail{
		Code:    domain.ErrorCode(err),
		Message: domain.ErrorMessage(err),
	}

	var ve *pricing.ValidationError
	var ue *pricing.UnsolvableMarginError
	switch {
	case errors.As(err, &ve):
		detail.Code = domain.EINVALID
		detail.Message = ve.Error()
		detail.Field = ve.Field
	case errors.As(err, &ue):
		detail.Code = domain.EUNPROCESSABLE
		detail.Message = ue.Error()
		detail.CombinedRate = ue.CombinedRate.String()
	case errors.Is(err, pricing.ErrSolverDiverged):
		detail.Code = domain.EUNPROCESSABLE
		detail.Message = err.Error()
	}

	status := ErrorCodeToHTTPStatus(detail.Code)

	logger := middleware.GetLogger(r.Context())
	attrs := []any{
		"error", err.Error(),
		"code", detail.Code,
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
	}
	if status >= 500 {
		logger.Error("request failed", attrs...)
	} else {
		logger.Info("request rejected", attrs...)
	}

	RespondJSON(w, status, errorBody{Error: detail})
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest // 400
	case domain.ENOTFOUND:
		return http.StatusNotFound // 404
	case domain.EUNPROCESSABLE:
		return http.StatusUnprocessableEntity // 422
	case domain.EINTERNAL:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}
