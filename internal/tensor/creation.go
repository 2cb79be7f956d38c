package tensor

import (
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros[float32](Shape{3, 4}, backend)
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	raw, err := NewRaw(shape, inferDataType[T](), b.Device())
	if err != nil {
		panic(err) // Shape validation should prevent this
	}
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, 1, b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full[float32](Shape{3, 3}, 3.14, backend)
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with values drawn from N(0, 1).
//
// rng may be nil, in which case the global math/rand source is used.
// Note: math/rand (not crypto/rand) is intended; a seeded rng gives
// reproducible weights.
func Randn[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = T(normFloat64(rng))
	}
	return t
}

// Uniform creates a tensor with values drawn uniformly from [lo, hi).
//
// rng may be nil, in which case the global math/rand source is used.
func Uniform[T DType, B Backend](shape Shape, lo, hi float64, rng *rand.Rand, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	data := t.Data()
	span := hi - lo
	for i := range data {
		data[i] = T(lo + float64Rand(rng)*span)
	}
	return t
}

func normFloat64(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.NormFloat64() //nolint:gosec // G404: weight init is not security-sensitive
	}
	return rng.NormFloat64()
}

func float64Rand(rng *rand.Rand) float64 {
	if rng == nil {
		return rand.Float64() //nolint:gosec // G404: weight init is not security-sensitive
	}
	return rng.Float64()
}
