package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so callers can compare
// against the sentinels below with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
)

// Workflow error codes
const (
	ErrInvalidReference ErrorCode = iota + 2000
	ErrInvalidTransition
	ErrBedUnavailable
	ErrDriverBusy
	ErrValidation
)

var codeNames = map[ErrorCode]string{
	ErrNotFound:          "NOT_FOUND",
	ErrBadRequest:        "BAD_REQUEST",
	ErrUnauthorized:      "UNAUTHORIZED",
	ErrForbidden:         "FORBIDDEN",
	ErrInternal:          "INTERNAL",
	ErrInvalidReference:  "INVALID_REFERENCE",
	ErrInvalidTransition: "INVALID_TRANSITION",
	ErrBedUnavailable:    "BED_UNAVAILABLE",
	ErrDriverBusy:        "DRIVER_BUSY",
	ErrValidation:        "VALIDATION_ERROR",
}

// String returns the wire name of the code.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "INTERNAL"
}

// Sentinels for errors.Is comparisons.
var (
	InvalidReferenceErr  = &AppError{Code: ErrInvalidReference, Message: "invalid reference"}
	InvalidTransitionErr = &AppError{Code: ErrInvalidTransition, Message: "invalid transition"}
	BedUnavailableErr    = &AppError{Code: ErrBedUnavailable, Message: "bed unavailable"}
	DriverBusyErr        = &AppError{Code: ErrDriverBusy, Message: "driver busy"}
	ValidationErr        = &AppError{Code: ErrValidation, Message: "validation error"}
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// InvalidReference reports an unknown entity id.
func InvalidReference(entity, id string) *AppError {
	return &AppError{
		Code:    ErrInvalidReference,
		Message: fmt.Sprintf("unknown %s %q", entity, id),
	}
}

// InvalidTransition reports a state machine guard violation.
func InvalidTransition(entity, from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
	}
}

func BedUnavailable(bedID, state string) *AppError {
	return &AppError{
		Code:    ErrBedUnavailable,
		Message: fmt.Sprintf("bed %s is %s", bedID, state),
	}
}

func DriverBusy(driverID, tripID string) *AppError {
	return &AppError{
		Code:    ErrDriverBusy,
		Message: fmt.Sprintf("driver %s already has active trip %s", driverID, tripID),
	}
}

func Validation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}
