package track

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrDataOrdering  = errors.New("data ordering")
	ErrConfiguration = errors.New("configuration")
)

// InvalidInputError aborts an invocation without producing any chart.
type InvalidInputError struct {
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid input: %s: %v", e.Reason, e.Err)
	}
	return "invalid input: " + e.Reason
}

func (e *InvalidInputError) Unwrap() error { return e.Err }

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// DataOrderingError reports a series whose positions decrease. It is only
// raised when strict ordering is requested.
type DataOrderingError struct {
	Index    int
	Previous float64
	Position float64
}

func (e *DataOrderingError) Error() string {
	return fmt.Sprintf("position %g at index %d precedes %g", e.Position, e.Index, e.Previous)
}

func (e *DataOrderingError) Is(target error) bool { return target == ErrDataOrdering }

// ConfigurationError reports a scale or size that would make layout undefined.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }
