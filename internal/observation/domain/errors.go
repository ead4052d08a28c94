package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation    = errors.New("validation_error")
	ErrSerialization = errors.New("serialization_error")
	ErrStore         = errors.New("store_error")
)

// ValidationError names the first required field that was absent or blank.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// SerializationError reports a device_info value that is not valid JSON,
// either in a submission or in a stored row.
type SerializationError struct {
	Field string
	Err   error
}

func (e *SerializationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid %s: not valid JSON", e.Field)
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }

func (e *SerializationError) Unwrap() error { return e.Err }

// StoreError wraps a database failure with the operation that hit it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Is(target error) bool { return target == ErrStore }

func (e *StoreError) Unwrap() error { return e.Err }

// Kind returns the error kind used in responses, logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrSerialization):
		return "serialization_error"
	case errors.Is(err, ErrStore):
		return "store_error"
	default:
		return "internal_error"
	}
}
