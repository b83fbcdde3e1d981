// Package response writes JSON bodies for handlers mounted directly on the
// router, and maps domain and store errors to the API's error body.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/estudio-ia/studio-server/internal/errors"
	"github.com/estudio-ia/studio-server/internal/store"
)

// ErrorBody is the JSON shape of every API error.
type ErrorBody struct {
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// Success writes a successful JSON response (200 OK).
func Success(w http.ResponseWriter, data any, logger *slog.Logger) {
	JSON(w, http.StatusOK, data, logger)
}

// Error writes an error body with an explicit status and code.
func Error(w http.ResponseWriter, status int, code domainerrors.Code, message string, logger *slog.Logger) {
	JSON(w, status, ErrorBody{Code: string(code), Message: message}, logger)
}

// TooManyRequests writes a 429 response.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, domainerrors.CodeRateLimited, message, logger)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusNotFound, domainerrors.CodeNotFound, message, logger)
}

// HandleError writes the response FromError derives for err.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	status, body, known := FromError(err)
	if !known && logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	JSON(w, status, body, logger)
}

// FromError maps err to a status and body. Domain errors keep their code,
// message and details; store errors keep their status. Anything else becomes
// a 500 with a generic message and known is false.
func FromError(err error) (status int, body ErrorBody, known bool) {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return domainErr.HTTPStatus(), ErrorBody{
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
			Details: domainErr.Details,
		}, true
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return storeErr.HTTPCode(), ErrorBody{
			Code:    string(StatusToCode(storeErr.HTTPCode())),
			Message: storeErr.Message,
		}, true
	}

	return http.StatusInternalServerError, ErrorBody{
		Code:    string(domainerrors.CodeInternal),
		Message: "internal server error",
	}, false
}

// StatusToCode maps HTTP status codes to domain error codes.
func StatusToCode(status int) domainerrors.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domainerrors.CodeValidation
	case http.StatusNotFound:
		return domainerrors.CodeNotFound
	case http.StatusConflict:
		return domainerrors.CodeAlreadyExists
	case http.StatusLocked:
		return domainerrors.CodeLocked
	case http.StatusTooManyRequests:
		return domainerrors.CodeRateLimited
	case http.StatusGatewayTimeout:
		return domainerrors.CodeTimeout
	default:
		return domainerrors.CodeInternal
	}
}
