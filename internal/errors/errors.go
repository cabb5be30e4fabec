package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"warpmine/domain/core"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Field   string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Field:   appErr.Field,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Field:   appErr.Field,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// As finds the outermost AppError in the chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsAppError checks if an error is or wraps an AppError
func IsAppError(err error) bool {
	_, ok := As(err)
	return ok
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid       = "CONFIG_INVALID"
	CodeDatabaseError       = "DATABASE_ERROR"
	CodeValidationError     = "VALIDATION_ERROR"
	CodeInvalidSpec         = "INVALID_SPEC"
	CodeNotFound            = "NOT_FOUND"
	CodeInternalError       = "INTERNAL_COMPUTATION_ERROR"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeEngineDisabled      = "ENGINE_DISABLED"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func ValidationError(field, message string) *AppError {
	return &AppError{Code: CodeValidationError, Message: message, Field: field}
}

func InvalidSpec(field, message string) *AppError {
	return &AppError{Code: CodeInvalidSpec, Message: message, Field: field}
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string, cause error) *AppError {
	return &AppError{Code: CodeInternalError, Message: message, Cause: cause}
}

func UpstreamUnavailable(service string, cause error) *AppError {
	return &AppError{
		Code:    CodeUpstreamUnavailable,
		Message: fmt.Sprintf("%s unavailable", service),
		Cause:   cause,
	}
}

func EngineDisabled(engine string) *AppError {
	return &AppError{
		Code:    CodeEngineDisabled,
		Message: fmt.Sprintf("%s engine is disabled", engine),
		Cause:   core.ErrEngineDisabled,
	}
}

// FromDomain classifies an engine error into the application taxonomy.
// Errors that are already AppErrors keep their code.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	var fe *core.FieldError
	field := ""
	reason := err.Error()
	if stderrors.As(err, &fe) {
		field = fe.Field
		reason = fe.Reason
	}
	switch {
	case core.IsValidationError(err):
		return &AppError{Code: CodeValidationError, Message: reason, Field: field, Cause: err}
	case core.IsSpecError(err):
		return &AppError{Code: CodeInvalidSpec, Message: reason, Field: field, Cause: err}
	case stderrors.Is(err, core.ErrEngineDisabled):
		return &AppError{Code: CodeEngineDisabled, Message: err.Error(), Cause: err}
	}
	return &AppError{Code: CodeInternalError, Message: "internal computation error", Cause: err}
}

// HTTPStatus maps an error code to a response status
func HTTPStatus(code string) int {
	switch code {
	case CodeValidationError:
		return http.StatusBadRequest
	case CodeInvalidSpec:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeEngineDisabled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
