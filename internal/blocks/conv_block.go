package blocks

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seggen/internal/nn"
	"github.com/born-ml/seggen/internal/tensor"
)

// ConvConfig describes the convolution shared by all blocks.
type ConvConfig struct {
	In, Out    int
	Kernel     int
	Stride     int
	Padding    int
	Dilation   int
	Norm       string // "instance", "batch", "none"
	Activation string // "lrelu", "relu", "tanh", "sigmoid", "none"
	PadMode    tensor.PadMode
	Init       nn.InitKind
}

func (c ConvConfig) conv(in, out int) nn.Conv2DConfig {
	return nn.Conv2DConfig{
		In:       in,
		Out:      out,
		Kernel:   c.Kernel,
		Stride:   c.Stride,
		Padding:  c.Padding,
		Dilation: c.Dilation,
		Bias:     true,
		PadMode:  c.PadMode,
		Init:     c.Init,
	}
}

// Conv2dBlock is conv -> norm -> activation.
type Conv2dBlock[B tensor.Backend] struct {
	cfg  ConvConfig
	conv *nn.Conv2D[B]
	norm nn.Module[B]
	act  nn.Module[B]
}

// NewConv2dBlock creates a plain convolution block.
func NewConv2dBlock[B tensor.Backend](cfg ConvConfig, rng *rand.Rand, backend B) (*Conv2dBlock[B], error) {
	norm, err := newBlockNorm(cfg.Norm, cfg.Out, backend)
	if err != nil {
		return nil, fmt.Errorf("conv2d block: %w", err)
	}
	act, err := nn.NewActivation[B](cfg.Activation)
	if err != nil {
		return nil, fmt.Errorf("conv2d block: %w", err)
	}
	return &Conv2dBlock[B]{
		cfg:  cfg,
		conv: nn.NewConv2D(cfg.conv(cfg.In, cfg.Out), rng, backend),
		norm: norm,
		act:  act,
	}, nil
}

// Forward applies the block to x [N, In, H, W].
func (b *Conv2dBlock[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	requireInput("conv2d block", x.Shape(), b.cfg.In)
	return b.act.Forward(b.norm.Forward(b.conv.Forward(x)))
}

// Parameters returns "conv.*" and "norm.*" parameters.
func (b *Conv2dBlock[B]) Parameters() []*nn.Parameter[B] {
	return append(nn.Prefixed("conv", b.conv.Parameters()), nn.Prefixed("norm", b.norm.Parameters())...)
}

// OutputSize returns the spatial size produced for an h x w input.
func (b *Conv2dBlock[B]) OutputSize(h, w int) (int, int) {
	return b.conv.OutputSize(h, w)
}
