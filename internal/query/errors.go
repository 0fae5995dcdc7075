package query

import (
	"errors"
	"fmt"
)

// InvalidOperatorError reports an operator tag outside the enumerated
// set. Always a caller-input error; never retried.
type InvalidOperatorError struct {
	// Field is the field path the operator was applied to.
	Field string

	// Op is the offending operator tag as supplied by the caller.
	Op string
}

func (e *InvalidOperatorError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid operator %q on field %q", e.Op, e.Field)
	}
	return fmt.Sprintf("invalid operator %q", e.Op)
}

// ValidationError reports a structurally malformed query expression:
// empty combinator children, combinator and field keys mixed at one
// level, a non-enumerable operand for "in", or an expression exceeding
// the configured nesting limits.
type ValidationError struct {
	// Field is the field path or combinator key at fault, when known.
	Field string

	// Reason is a human-readable description of the defect.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid query at %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

// IsInvalidOperator returns true if the error is an InvalidOperatorError.
// Uses errors.As to handle wrapped errors.
func IsInvalidOperator(err error) bool {
	var ie *InvalidOperatorError
	return errors.As(err, &ie)
}

// IsValidation returns true if the error is a ValidationError.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
