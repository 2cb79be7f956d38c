package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/seggen/internal/parallel"
	"github.com/born-ml/seggen/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binary(cpu, "add", a, b, add[float32], add[float64])
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binary(cpu, "sub", a, b, sub[float32], sub[float64])
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binary(cpu, "mul", a, b, mul[float32], mul[float64])
}

// Div performs element-wise division with broadcasting.
func (cpu *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return binary(cpu, "div", a, b, div[float32], div[float64])
}

// AddScalar adds s to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	s32 := float32(s)
	return unary(cpu, "add_scalar", x,
		func(v float32) float32 { return v + s32 },
		func(v float64) float64 { return v + s })
}

// MulScalar multiplies every element by s.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	s32 := float32(s)
	return unary(cpu, "mul_scalar", x,
		func(v float32) float32 { return v * s32 },
		func(v float64) float64 { return v * s })
}

// Rsqrt computes 1/sqrt(x) element-wise.
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return unary(cpu, "rsqrt", x, rsqrt[float32], rsqrt[float64])
}

func add[T tensor.DType](x, y T) T { return x + y }
func sub[T tensor.DType](x, y T) T { return x - y }
func mul[T tensor.DType](x, y T) T { return x * y }
func div[T tensor.DType](x, y T) T { return x / y }

func rsqrt[T tensor.DType](v T) T {
	return T(1 / math.Sqrt(float64(v)))
}

// binary dispatches an element-wise binary op on dtype and broadcasting.
func binary(
	cpu *CPUBackend, op string, a, b *tensor.RawTensor,
	f32 func(x, y float32) float32, f64 func(x, y float64) float64,
) *tensor.RawTensor {
	requireSameDType(op, a, b)
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}

	result := cpu.newResult(op, outShape, a.DType())
	switch a.DType() {
	case tensor.Float32:
		binaryKernel(result, a, b, outShape, needsBroadcast, f32, cpu.par)
	case tensor.Float64:
		binaryKernel(result, a, b, outShape, needsBroadcast, f64, cpu.par)
	default:
		panic(unsupported(op, a.DType()))
	}
	return result
}

func binaryKernel[T tensor.DType](
	result, a, b *tensor.RawTensor, shape tensor.Shape, needsBroadcast bool,
	f func(x, y T) T, cfg parallel.Config,
) {
	out := tensor.Values[T](result)
	av := tensor.Values[T](a)
	bv := tensor.Values[T](b)

	if !needsBroadcast {
		parallel.Range(len(out), func(start, end int) {
			for i := start; i < end; i++ {
				out[i] = f(av[i], bv[i])
			}
		}, cfg)
		return
	}

	as := tensor.BroadcastStrides(a.Shape(), shape)
	bs := tensor.BroadcastStrides(b.Shape(), shape)
	nd := len(shape)

	parallel.Range(len(out), func(start, end int) {
		// Recover the multi-index of start, then walk it like an odometer.
		idx := make([]int, nd)
		aOff, bOff := 0, 0
		rem := start
		for d := nd - 1; d >= 0; d-- {
			idx[d] = rem % shape[d]
			rem /= shape[d]
			aOff += idx[d] * as[d]
			bOff += idx[d] * bs[d]
		}

		for i := start; i < end; i++ {
			out[i] = f(av[aOff], bv[bOff])
			for d := nd - 1; d >= 0; d-- {
				idx[d]++
				aOff += as[d]
				bOff += bs[d]
				if idx[d] < shape[d] {
					break
				}
				aOff -= as[d] * shape[d]
				bOff -= bs[d] * shape[d]
				idx[d] = 0
			}
		}
	}, cfg)
}

// unary dispatches an element-wise unary op on dtype.
func unary(
	cpu *CPUBackend, op string, x *tensor.RawTensor,
	f32 func(float32) float32, f64 func(float64) float64,
) *tensor.RawTensor {
	result := cpu.newResult(op, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		unaryKernel(result, x, f32, cpu.par)
	case tensor.Float64:
		unaryKernel(result, x, f64, cpu.par)
	default:
		panic(unsupported(op, x.DType()))
	}
	return result
}

func unaryKernel[T tensor.DType](result, x *tensor.RawTensor, f func(T) T, cfg parallel.Config) {
	out := tensor.Values[T](result)
	in := tensor.Values[T](x)
	parallel.Range(len(out), func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = f(in[i])
		}
	}, cfg)
}
