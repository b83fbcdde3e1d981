package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/estudio-ia/studio-server/internal/http/response"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status int
	response.ErrorBody
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		// Domain and store errors carry their own status.
		for _, err := range errs {
			if code, body, known := response.FromError(err); known {
				return &APIError{status: code, ErrorBody: body}
			}
		}

		apiErr := &APIError{
			status: status,
			ErrorBody: response.ErrorBody{
				Code:    string(response.StatusToCode(status)),
				Message: message,
			},
		}
		// Keep huma's field-level validation messages.
		if len(errs) > 0 && status < 500 {
			details := make([]string, 0, len(errs))
			for _, err := range errs {
				details = append(details, err.Error())
			}
			apiErr.Details = details
		}
		return apiErr
	}
}
