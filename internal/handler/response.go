package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/authgate/authgate/internal/middleware"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/service"
)

const maxBodyBytes = 1 << 20 // 1MB

// statusByCode maps engine error codes to HTTP statuses. Unlisted codes are
// client errors.
var statusByCode = map[string]int{
	service.ErrInvalidEmail.Code:       http.StatusBadRequest,
	service.ErrPasswordTooShort.Code:   http.StatusBadRequest,
	service.ErrPasswordTooLong.Code:    http.StatusBadRequest,
	service.ErrNameRequired.Code:       http.StatusBadRequest,
	service.ErrEmailTaken.Code:         http.StatusUnprocessableEntity,
	service.ErrInvalidCredentials.Code: http.StatusUnauthorized,
	service.ErrEmailNotVerified.Code:   http.StatusForbidden,
	service.ErrTokenInvalid.Code:       http.StatusBadRequest,
	service.ErrTokenExpired.Code:       http.StatusBadRequest,
	service.ErrTokenUsed.Code:          http.StatusBadRequest,
	service.ErrUnauthenticated.Code:    http.StatusUnauthorized,
	service.ErrInvalidCallbackURL.Code: http.StatusForbidden,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResponse(code, msg string) model.ErrorResponse {
	return model.ErrorResponse{Code: code, Message: msg}
}

// writeError renders engine errors as-is. Anything else is reported to the
// request's error slot and answered with a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		status, ok := statusByCode[svcErr.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse(svcErr.Code, svcErr.Message))
		return
	}

	middleware.ReportError(r.Context(), err)
	writeJSON(w, http.StatusInternalServerError, errorResponse("INTERNAL_SERVER_ERROR", "Internal server error"))
}

// decodeJSON reads a size-limited JSON body into dst. On failure it writes
// the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("PAYLOAD_TOO_LARGE", "Request body too large"))
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorResponse("INVALID_REQUEST_BODY", "Invalid request body"))
		return false
	}
	return true
}
