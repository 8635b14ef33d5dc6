package errors

import (
	"errors"
	"net/http"
)

// MapToHTTPStatus translates domain errors into HTTP status codes.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrSenderInvalid), errors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrSendForbidden), errors.Is(err, ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUserAlreadyExists), errors.Is(err, ErrAlreadySending):
		return http.StatusConflict
	case errors.Is(err, ErrOfflineBlocked), errors.Is(err, ErrMembershipCheckFailed), errors.Is(err, ErrStream):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
