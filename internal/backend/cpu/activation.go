package cpu

import (
	"math"

	"github.com/born-ml/seggen/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return unary(cpu, "relu", x, relu[float32], relu[float64])
}

// LeakyReLU applies x for x >= 0 and slope*x otherwise.
func (cpu *CPUBackend) LeakyReLU(x *tensor.RawTensor, slope float64) *tensor.RawTensor {
	s32 := float32(slope)
	return unary(cpu, "leaky_relu", x,
		func(v float32) float32 {
			if v < 0 {
				return v * s32
			}
			return v
		},
		func(v float64) float64 {
			if v < 0 {
				return v * slope
			}
			return v
		})
}

// Sigmoid applies 1 / (1 + exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return unary(cpu, "sigmoid", x, sigmoid[float32], sigmoid[float64])
}

// Tanh applies the hyperbolic tangent element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return unary(cpu, "tanh", x, tanh[float32], tanh[float64])
}

func relu[T tensor.DType](v T) T {
	if v < 0 {
		return 0
	}
	return v
}

// sigmoid is evaluated in the numerically stable form for both signs.
func sigmoid[T tensor.DType](v T) T {
	x := float64(v)
	if x >= 0 {
		return T(1 / (1 + math.Exp(-x)))
	}
	e := math.Exp(x)
	return T(e / (1 + e))
}

func tanh[T tensor.DType](v T) T {
	return T(math.Tanh(float64(v)))
}
