package generator

import "errors"

// Common errors.
var (
	ErrInvalidConfig = errors.New("invalid generator config")
	ErrInvalidInput  = errors.New("invalid generator input")
	ErrSpatialSize   = errors.New("spatial size must be a positive multiple of 128")
	ErrForward       = errors.New("generator forward pass failed")
)
