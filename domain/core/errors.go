package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input errors
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrDuplicateRegion  = errors.New("duplicate region")

	// Problem definition errors
	ErrInvalidSpec      = errors.New("invalid specification")
	ErrDegenerateBounds = fmt.Errorf("%w: degenerate bounds", ErrInvalidSpec)
	ErrUnknownAlgorithm = fmt.Errorf("%w: unknown algorithm", ErrInvalidSpec)
	ErrUnknownModel     = fmt.Errorf("%w: unknown model", ErrInvalidSpec)
	ErrUnknownMetric    = fmt.Errorf("%w: unknown metric", ErrInvalidSpec)
	ErrUnknownDimension = fmt.Errorf("%w: unknown dimension", ErrInvalidSpec)
	ErrUnknownDirection = fmt.Errorf("%w: unknown direction", ErrInvalidSpec)
	ErrInvalidWeights   = fmt.Errorf("%w: invalid weights", ErrInvalidSpec)

	// Computation errors
	ErrNoFeasibleCandidate = errors.New("no candidate could be evaluated")
	ErrEngineDisabled      = errors.New("engine disabled")
)

// FieldError carries the name of the offending input field
type FieldError struct {
	Field  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// NewValidationError reports an out-of-range or malformed input field
func NewValidationError(field string, reason string) error {
	return &FieldError{Field: field, Reason: reason, Err: ErrInvalidParameter}
}

// NewSpecError reports a problem definition error tied to a field
func NewSpecError(kind error, field string, reason string) error {
	return &FieldError{Field: field, Reason: reason, Err: kind}
}

// Error checking helpers
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidParameter) || errors.Is(err, ErrDuplicateRegion)
}

func IsSpecError(err error) bool {
	return errors.Is(err, ErrInvalidSpec)
}

// FieldOf extracts the offending field name, if any
func FieldOf(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return ""
}
