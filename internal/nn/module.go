// Package nn implements the layer primitives the generator is built from.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Named weight tensors (and persistent buffers)
//   - Conv2D: 2D convolution with zero, reflect or replicate padding
//   - Normalization: InstanceNorm2D, BatchNorm2D, Identity
//   - Activations: ReLU, LeakyReLU, Sigmoid, Tanh
//   - State dicts: flat name -> tensor maps for weight files
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
// Modules are inference-only: Forward never records a graph.
package nn

import (
	"github.com/born-ml/seggen/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all parameters, named relative to the module
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all parameters of this module, including nested
	// module parameters. Returns nil for parameter-free modules.
	Parameters() []*Parameter[B]
}

// Identity passes its input through unchanged.
// It stands in for a disabled normalization or activation.
type Identity[B tensor.Backend] struct{}

// NewIdentity creates an Identity module.
func NewIdentity[B tensor.Backend]() *Identity[B] {
	return &Identity[B]{}
}

// Forward returns input.
func (Identity[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input
}

// Parameters returns nil.
func (Identity[B]) Parameters() []*Parameter[B] {
	return nil
}
