package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is; ValidationError carries the
// failing field.
var (
	ErrNilPortfolio        = errors.New("portfolio is nil")
	ErrEmptySymbol         = errors.New("symbol is empty")
	ErrMismatchedCounts    = errors.New("prediction and actual counts differ")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrModelNotTrained     = errors.New("model not trained")
	ErrDataUnavailable     = errors.New("data unavailable")
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrInvalidDateRange    = errors.New("invalid date range")
	ErrInvalidConfig       = errors.New("invalid configuration")
)

// ValidationError identifies which precondition failed
type ValidationError struct {
	Kind   error
	Field  string
	Detail string
}

// NewValidationError builds a ValidationError of the given kind
func NewValidationError(kind error, field, format string, args ...interface{}) error {
	return &ValidationError{Kind: kind, Field: field, Detail: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Field, e.Kind, e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// IsValidation reports whether err is, or wraps, a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InsufficientHistory is shorthand for the most common validation failure
func InsufficientHistory(field string, have, need int) error {
	return NewValidationError(ErrInsufficientHistory, field, "have %d points, need %d", have, need)
}
