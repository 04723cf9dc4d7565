package recovery

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned for empty or whitespace-only input.
	ErrEmptyInput = errors.New("input is empty")

	// ErrNotAMapping is returned when every parse attempt yields something
	// other than a JSON object.
	ErrNotAMapping = errors.New("parsed result is not a JSON object")
)

// RecoveryError is returned when every repair strategy is exhausted.
// It carries the diagnostics for the original (unrepaired) input so
// operators can see where and why the text defeated the cascade.
type RecoveryError struct {
	Diagnostics Diagnostics
	err         error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("json recovery failed at line %d column %d (offset %d): %v",
		e.Diagnostics.Line, e.Diagnostics.Column, e.Diagnostics.Offset, e.err)
}

func (e *RecoveryError) Unwrap() error { return e.err }
