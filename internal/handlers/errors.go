package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/alumni-connect/backend/internal/apperrors"
	"github.com/anonto42/alumni-connect/backend/internal/optimistic"
	"github.com/anonto42/alumni-connect/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// errorStatus maps application error codes to HTTP statuses
var errorStatus = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeAuthRequired:    http.StatusUnauthorized,
	apperrors.ErrCodeValidation:      http.StatusBadRequest,
	apperrors.ErrCodeNotFound:        http.StatusNotFound,
	apperrors.ErrCodeNetwork:         http.StatusBadGateway,
	apperrors.ErrCodeRealtimeChannel: http.StatusServiceUnavailable,
	apperrors.ErrCodeStaleWrite:      http.StatusConflict,
}

// ErrorBody is the JSON body of every failed request. Subject is the field,
// entity or operation the error is about.
type ErrorBody struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Subject string              `json:"subject,omitempty"`
}

// respondError converts err into an HTTP error response.
func respondError(err error) error {
	if errors.Is(err, optimistic.ErrInFlight) {
		return echo.NewHTTPError(http.StatusAccepted, ErrorBody{
			Code:    "IN_FLIGHT",
			Message: err.Error(),
		})
	}
	if errors.Is(err, session.ErrClosed) {
		return echo.NewHTTPError(http.StatusServiceUnavailable, ErrorBody{
			Code:    apperrors.ErrCodeInternal,
			Message: err.Error(),
		})
	}

	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		return echo.NewHTTPError(http.StatusInternalServerError, ErrorBody{
			Code:    apperrors.ErrCodeInternal,
			Message: "internal error",
		}).SetInternal(err)
	}
	status, ok := errorStatus[appErr.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return echo.NewHTTPError(status, ErrorBody{
		Code:    appErr.Code,
		Message: appErr.Message,
		Subject: appErr.Subject,
	}).SetInternal(err)
}
