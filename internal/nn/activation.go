package nn

import (
	"fmt"

	"github.com/born-ml/seggen/internal/tensor"
)

// LeakySlope is the negative slope used by "lrelu".
const LeakySlope = 0.2

// NewActivation creates an activation module by name: "relu", "lrelu",
// "sigmoid", "tanh", or "none" (also "").
func NewActivation[B tensor.Backend](name string) (Module[B], error) {
	switch name {
	case "relu":
		return NewReLU[B](), nil
	case "lrelu":
		return NewLeakyReLU[B](LeakySlope), nil
	case "sigmoid":
		return NewSigmoid[B](), nil
	case "tanh":
		return NewTanh[B](), nil
	case "none", "":
		return NewIdentity[B](), nil
	default:
		return nil, fmt.Errorf("unknown activation %q", name)
	}
}

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

// Parameters returns an empty slice (ReLU has no trainable parameters).
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// LeakyReLU applies f(x) = x for x >= 0 and slope*x otherwise.
//
// Example:
//
//	act := nn.NewLeakyReLU[Backend](0.2)
//	output := act.Forward(input)
type LeakyReLU[B tensor.Backend] struct {
	Slope float64
}

// NewLeakyReLU creates a LeakyReLU with the given negative slope.
func NewLeakyReLU[B tensor.Backend](slope float64) *LeakyReLU[B] {
	return &LeakyReLU[B]{Slope: slope}
}

// Forward applies LeakyReLU activation.
func (l *LeakyReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.LeakyReLU(l.Slope)
}

// Parameters returns nil.
func (l *LeakyReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// Sigmoid is a sigmoid activation module.
//
// Applies the element-wise function: σ(x) = 1 / (1 + exp(-x))
//
// Sigmoid squashes values to the range (0, 1), which is what the gated
// convolutions use as their soft mask.
type Sigmoid[B tensor.Backend] struct{}

// NewSigmoid creates a new Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies Sigmoid activation: σ(x) = 1 / (1 + exp(-x)).
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Sigmoid()
}

// Parameters returns nil.
func (s *Sigmoid[B]) Parameters() []*Parameter[B] {
	return nil
}

// Tanh is a hyperbolic tangent activation module.
//
// Output range is (-1, 1), matching the image value range.
type Tanh[B tensor.Backend] struct{}

// NewTanh creates a new Tanh activation module.
func NewTanh[B tensor.Backend]() *Tanh[B] {
	return &Tanh[B]{}
}

// Forward applies Tanh activation.
func (t *Tanh[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Tanh()
}

// Parameters returns nil.
func (t *Tanh[B]) Parameters() []*Parameter[B] {
	return nil
}
