package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrChecksumMismatch  = errors.New("checksum mismatch: file may be corrupted")
	ErrOffsetOverlap     = errors.New("tensor offsets overlap")
	ErrOutOfBounds       = errors.New("tensor extends beyond data section")
	ErrNegativeOffset    = errors.New("negative offset or size")
	ErrSizeMismatch      = errors.New("tensor byte length does not match shape and dtype")
	ErrTooManyTensors    = errors.New("too many tensors in file")
	ErrTensorNameTooLong = errors.New("tensor name too long")
	ErrInvalidTensorName = errors.New("invalid tensor name")
	ErrHeaderTooLarge    = errors.New("header exceeds maximum size")
	ErrInvalidHeader     = errors.New("invalid safetensors header")
	ErrUnsupportedDType  = errors.New("unsupported safetensors dtype")
)

// ValidationError provides detailed information about validation failures.
// It unwraps to the matching sentinel error.
type ValidationError struct {
	Kind    error  // Sentinel error (ErrOffsetOverlap, ErrOutOfBounds, ...)
	Tensor  string // Primary tensor name involved
	Tensor2 string // Secondary tensor name (for overlap errors)
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%v: tensors %q and %q: %s", e.Kind, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%v: tensor %q: %s", e.Kind, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Details)
}

// Unwrap returns the sentinel error, so errors.Is works on a ValidationError.
func (e *ValidationError) Unwrap() error {
	return e.Kind
}
