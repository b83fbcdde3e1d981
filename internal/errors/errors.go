// Package errors defines the typed failures surfaced by the timeline editor,
// the mixer and the export orchestrator.
//
// Usage:
//
//	// In the editor - return typed errors
//	if track.Locked {
//	    return errors.Locked("Track travada")
//	}
//
//	// In callers - check by kind with errors.Is
//	if errors.Is(err, errors.ErrOverlapDetected) {
//	    ...
//	}
//
//	// Or switch on the code
//	var domainErr *errors.Error
//	if errors.As(err, &domainErr) {
//	    switch domainErr.Code {
//	    case errors.CodeEmptyTimeline, errors.CodeAllTracksMuted:
//	        ...
//	    }
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error kind.
type Code string

// Editing errors.
const (
	CodeNotFound              Code = "NOT_FOUND"
	CodeLocked                Code = "LOCKED"
	CodeInvalidRange          Code = "INVALID_RANGE"
	CodeInvalidSplitPoint     Code = "INVALID_SPLIT_POINT"
	CodeSourceNotFound        Code = "SOURCE_NOT_FOUND"
	CodeIncompatibleTrackType Code = "INCOMPATIBLE_TRACK_TYPE"
	CodeOutOfRange            Code = "OUT_OF_RANGE"
)

// Export-time structural errors.
const (
	CodeEmptyTimeline   Code = "EMPTY_TIMELINE"
	CodeEmptyMixer      Code = "EMPTY_MIXER"
	CodeAllTracksMuted  Code = "ALL_TRACKS_MUTED"
	CodeOverlapDetected Code = "OVERLAP_DETECTED"
)

// Export option errors.
const (
	CodeUnsupportedFormat   Code = "UNSUPPORTED_FORMAT"
	CodeUnsupportedPlatform Code = "UNSUPPORTED_PLATFORM"
	CodeInvalidResolution   Code = "INVALID_RESOLUTION"
	CodeInvalidFrameRate    Code = "INVALID_FRAME_RATE"
	CodeInvalidBitrate      Code = "INVALID_BITRATE"
)

// General errors.
const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeConflict      Code = "CONFLICT"
	CodeTimeout       Code = "TIMEOUT"
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeInternal      Code = "INTERNAL_ERROR"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound, CodeSourceNotFound:
		return http.StatusNotFound
	case CodeLocked:
		return http.StatusLocked
	case CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	case CodeInvalidRange, CodeInvalidSplitPoint, CodeIncompatibleTrackType, CodeOutOfRange,
		CodeEmptyTimeline, CodeEmptyMixer, CodeAllTracksMuted, CodeOverlapDetected:
		return http.StatusUnprocessableEntity
	case CodeUnsupportedFormat, CodeUnsupportedPlatform, CodeInvalidResolution,
		CodeInvalidFrameRate, CodeInvalidBitrate, CodeValidation:
		return http.StatusBadRequest
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.cause = err
	return &cp
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound              = &Error{Code: CodeNotFound, Message: "not found"}
	ErrLocked                = &Error{Code: CodeLocked, Message: "locked"}
	ErrInvalidRange          = &Error{Code: CodeInvalidRange, Message: "invalid range"}
	ErrInvalidSplitPoint     = &Error{Code: CodeInvalidSplitPoint, Message: "invalid split point"}
	ErrSourceNotFound        = &Error{Code: CodeSourceNotFound, Message: "source not found"}
	ErrIncompatibleTrackType = &Error{Code: CodeIncompatibleTrackType, Message: "incompatible track type"}
	ErrOutOfRange            = &Error{Code: CodeOutOfRange, Message: "out of range"}
	ErrEmptyTimeline         = &Error{Code: CodeEmptyTimeline, Message: "empty timeline"}
	ErrEmptyMixer            = &Error{Code: CodeEmptyMixer, Message: "empty mixer"}
	ErrAllTracksMuted        = &Error{Code: CodeAllTracksMuted, Message: "all tracks muted"}
	ErrOverlapDetected       = &Error{Code: CodeOverlapDetected, Message: "overlap detected"}
	ErrUnsupportedFormat     = &Error{Code: CodeUnsupportedFormat, Message: "unsupported format"}
	ErrUnsupportedPlatform   = &Error{Code: CodeUnsupportedPlatform, Message: "unsupported platform"}
	ErrInvalidResolution     = &Error{Code: CodeInvalidResolution, Message: "invalid resolution"}
	ErrInvalidFrameRate      = &Error{Code: CodeInvalidFrameRate, Message: "invalid frame rate"}
	ErrInvalidBitrate        = &Error{Code: CodeInvalidBitrate, Message: "invalid bitrate"}
	ErrValidation            = &Error{Code: CodeValidation, Message: "validation error"}
	ErrAlreadyExists         = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrConflict              = &Error{Code: CodeConflict, Message: "conflict"}
	ErrTimeout               = &Error{Code: CodeTimeout, Message: "timeout"}
	ErrRateLimited           = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrInternal              = &Error{Code: CodeInternal, Message: "internal error"}
)

// New creates an error of the given kind.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return New(CodeNotFound, msg)
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// Locked creates a locked-track error.
func Locked(msg string) *Error {
	return New(CodeLocked, msg)
}

// InvalidRange creates an invalid timing window error.
func InvalidRange(msg string) *Error {
	return New(CodeInvalidRange, msg)
}

// OutOfRange creates a numeric bound error.
func OutOfRange(msg string) *Error {
	return New(CodeOutOfRange, msg)
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return New(CodeValidation, msg)
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return New(CodeAlreadyExists, msg)
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return New(CodeInternal, msg)
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
