// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types used by the seggen generator.
//
// Feature maps are [N, C, H, W] tensors. Generator inputs are float32; float64
// is available for checkpoints and reference computations.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{1, 3, 256, 256}, backend)
//	y := x.Pad2D(1, tensor.PadReflect)
package tensor

import (
	"math/rand"

	"github.com/born-ml/seggen/internal/tensor"
)

// DType is a constraint for tensor data types (float32, float64).
type DType = tensor.DType

// DataType represents the runtime element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// CPU is the only supported device.
const CPU Device = tensor.CPU

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// PadMode selects how Pad2D fills the border of a feature map.
type PadMode = tensor.PadMode

// Padding modes.
const (
	PadZero      PadMode = tensor.PadZero
	PadReflect   PadMode = tensor.PadReflect
	PadReplicate PadMode = tensor.PadReplicate
)

// Backend is the interface implemented by compute backends.
type Backend = tensor.Backend

// RawTensor is the untyped tensor representation used in state dicts.
type RawTensor = tensor.RawTensor

// Tensor is a generic type-safe tensor.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// ParsePadMode parses "zero", "reflect" or "replicate".
func ParsePadMode(name string) (PadMode, error) {
	return tensor.ParsePadMode(name)
}

// FromSlice creates a tensor from a Go slice. The slice is copied.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice(data, shape, b)
}

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T](shape, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full(shape, value, b)
}

// Randn creates a tensor of standard normal samples drawn from rng.
func Randn[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.Randn[T](shape, rng, b)
}

// Cat concatenates tensors along dim.
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	return tensor.Cat(tensors, dim)
}
