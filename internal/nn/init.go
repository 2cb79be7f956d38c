package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/seggen/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// rng may be nil to use the global math/rand source; pass a seeded rng
// for reproducible weights.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return tensor.Uniform[float32](shape, -bound, bound, rng, backend)
}

// KaimingNormal initializes weights from N(0, gain^2/fan_in) with the
// leaky-ReLU gain sqrt(2 / (1 + slope^2)).
func KaimingNormal[B tensor.Backend](fanIn int, slope float64, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	std := math.Sqrt(2.0/(1.0+slope*slope)) / math.Sqrt(float64(fanIn))
	return tensor.Randn[float32](shape, rng, backend).MulScalar(float32(std))
}

// Zeros creates a tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
