package tensor

import "fmt"

// PadMode selects how Pad2D fills the border of a feature map.
type PadMode int

// Supported padding modes.
const (
	PadZero      PadMode = iota // zeros outside the input
	PadReflect                  // mirror without repeating the edge pixel
	PadReplicate                // repeat the edge pixel
)

// String returns the configuration name of the padding mode.
func (m PadMode) String() string {
	switch m {
	case PadZero:
		return "zero"
	case PadReflect:
		return "reflect"
	case PadReplicate:
		return "replicate"
	default:
		return "unknown"
	}
}

// ParsePadMode parses a configuration name ("zero", "reflect", "replicate").
// The empty string selects PadZero.
func ParsePadMode(name string) (PadMode, error) {
	switch name {
	case "", "zero":
		return PadZero, nil
	case "reflect":
		return PadReflect, nil
	case "replicate":
		return PadReplicate, nil
	default:
		return 0, fmt.Errorf("unknown pad mode %q", name)
	}
}

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations and panic
// with an op-prefixed message when operand shapes are invalid.
//
// Feature maps are laid out as [N, C, H, W].
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar operations (element-wise with scalar).
	AddScalar(x *RawTensor, scalar float64) *RawTensor
	MulScalar(x *RawTensor, scalar float64) *RawTensor

	// Rsqrt computes 1/sqrt(x) element-wise.
	Rsqrt(x *RawTensor) *RawTensor

	// Activation functions.
	ReLU(x *RawTensor) *RawTensor
	LeakyReLU(x *RawTensor, slope float64) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	Tanh(x *RawTensor) *RawTensor

	// Conv2D convolves [N, C_in, H, W] with [C_out, C_in, K_h, K_w] using
	// zero padding.
	Conv2D(input, kernel *RawTensor, stride, padding, dilation int) *RawTensor

	// Pad2D pads the two spatial dimensions by pad on every side.
	Pad2D(x *RawTensor, pad int, mode PadMode) *RawTensor

	// Interpolate resizes the spatial dimensions with nearest-neighbor sampling.
	Interpolate(x *RawTensor, height, width int) *RawTensor

	// ChannelMoments returns the per-channel mean and biased variance over the
	// spatial dimensions. With perSample the statistics have shape
	// [N, C, 1, 1] (instance statistics); otherwise the batch is pooled too
	// and the shape is [1, C, 1, 1].
	ChannelMoments(x *RawTensor, perSample bool) (mean, variance *RawTensor)

	// Shape and layout operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Cat(tensors []*RawTensor, dim int) *RawTensor

	// BatchMatMul multiplies [B, M, K] @ [B, K, N] -> [B, M, N].
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
