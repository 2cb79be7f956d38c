package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seggen/internal/tensor"
)

// InitKind selects the weight initialization scheme of a layer.
type InitKind int

// Supported initialization schemes.
const (
	InitXavier  InitKind = iota // Xavier/Glorot uniform
	InitKaiming                 // Kaiming normal with a leaky-ReLU gain
)

// ParseInitKind parses "xavier" (or "") and "kaiming".
func ParseInitKind(name string) (InitKind, error) {
	switch name {
	case "", "xavier":
		return InitXavier, nil
	case "kaiming":
		return InitKaiming, nil
	default:
		return 0, fmt.Errorf("unknown init type %q", name)
	}
}

// kaimingSlope is the leaky-ReLU slope that Kaiming init compensates for.
const kaimingSlope = 0.2

// Conv2DConfig describes a Conv2D layer.
type Conv2DConfig struct {
	In, Out  int // Channels
	Kernel   int // Square kernel size
	Stride   int // Defaults to 1
	Padding  int // Per-side padding
	Dilation int // Defaults to 1
	Bias     bool
	PadMode  tensor.PadMode
	Init     InitKind
}

// Conv2D is a 2D convolutional layer.
//
// Performs convolution: output = Conv2D(pad(input), weight) + bias
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - dilation*(kernel-1) - 1) / stride + 1
//
// Zero padding is applied inside the convolution kernel; reflect and
// replicate padding pre-pad the input.
//
// Example:
//
//	conv := nn.NewConv2D(nn.Conv2DConfig{In: 4, Out: 8, Kernel: 3, Stride: 2, Padding: 1, Bias: true}, rng, backend)
//	output := conv.Forward(input) // [N, 8, H/2, W/2]
type Conv2D[B tensor.Backend] struct {
	cfg Conv2DConfig

	weight *Parameter[B] // [out_channels, in_channels, kernel, kernel]
	bias   *Parameter[B] // [out_channels] or nil
}

// NewConv2D creates a new 2D convolutional layer.
//
// Initialization:
//   - Weights: Xavier/Glorot uniform, or Kaiming normal with InitKaiming
//   - Bias: Zeros
//
// Panics on invalid channel counts or geometry.
func NewConv2D[B tensor.Backend](cfg Conv2DConfig, rng *rand.Rand, backend B) *Conv2D[B] {
	if cfg.Stride == 0 {
		cfg.Stride = 1
	}
	if cfg.Dilation == 0 {
		cfg.Dilation = 1
	}
	if cfg.In <= 0 || cfg.Out <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", cfg.In, cfg.Out))
	}
	if cfg.Kernel <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size %d", cfg.Kernel))
	}
	if cfg.Stride < 0 || cfg.Dilation < 0 || cfg.Padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride=%d padding=%d dilation=%d", cfg.Stride, cfg.Padding, cfg.Dilation))
	}

	weightShape := tensor.Shape{cfg.Out, cfg.In, cfg.Kernel, cfg.Kernel}
	fanIn := cfg.In * cfg.Kernel * cfg.Kernel
	fanOut := cfg.Out * cfg.Kernel * cfg.Kernel

	var weight *tensor.Tensor[float32, B]
	switch cfg.Init {
	case InitKaiming:
		weight = KaimingNormal(fanIn, kaimingSlope, weightShape, rng, backend)
	default:
		weight = Xavier(fanIn, fanOut, weightShape, rng, backend)
	}

	c := &Conv2D[B]{
		cfg:    cfg,
		weight: NewParameter("weight", weight),
	}
	if cfg.Bias {
		c.bias = NewParameter("bias", Zeros(tensor.Shape{cfg.Out}, backend))
	}
	return c
}

// Forward performs the forward pass.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.cfg.In {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.cfg.In))
	}

	padding := c.cfg.Padding
	if c.cfg.PadMode != tensor.PadZero {
		input = input.Pad2D(padding, c.cfg.PadMode)
		padding = 0
	}

	output := input.Conv2D(c.weight.Tensor(), c.cfg.Stride, padding, c.cfg.Dilation)
	if c.bias != nil {
		output = output.Add(c.bias.Tensor().Reshape(1, c.cfg.Out, 1, 1))
	}
	return output
}

// Parameters returns the weight and, if present, the bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.bias != nil {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter, or nil.
func (c *Conv2D[B]) Bias() *Parameter[B] {
	return c.bias
}

// Config returns the layer configuration with defaults applied.
func (c *Conv2D[B]) Config() Conv2DConfig {
	return c.cfg
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, padding=%d, dilation=%d, pad_mode=%s, bias=%v)",
		c.cfg.In, c.cfg.Out, c.cfg.Kernel, c.cfg.Stride, c.cfg.Padding, c.cfg.Dilation, c.cfg.PadMode, c.bias != nil)
}

// OutputSize computes the output spatial dimensions for an input size.
func (c *Conv2D[B]) OutputSize(h, w int) (outH, outW int) {
	span := c.cfg.Dilation*(c.cfg.Kernel-1) + 1
	outH = (h+2*c.cfg.Padding-span)/c.cfg.Stride + 1
	outW = (w+2*c.cfg.Padding-span)/c.cfg.Stride + 1
	return outH, outW
}
