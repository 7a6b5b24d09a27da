package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks malformed input data: a value that is neither a number
// nor a record with a numeric total, or a date that does not parse.
var ErrInvalidInput = errors.New("invalid input")

// ValidationError describes a single malformed input entry.
type ValidationError struct {
	Field  string // variable or JSON field being decoded
	Key    string // date key or row index, when known
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid input: %s[%s]: %s", e.Field, e.Key, e.Reason)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match any ValidationError.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
