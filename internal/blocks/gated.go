package blocks

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seggen/internal/nn"
	"github.com/born-ml/seggen/internal/tensor"
)

// CondGatedConv2d is a gated convolution conditioned on the label map and
// mask:
//
//	h       = cat(x, Condition(segmap, mask))
//	feature = act(norm(conv_feature(h)))
//	out     = feature * sigmoid(conv_gate(h))
//
// Both convolutions take In + LabNC input channels.
type CondGatedConv2d[B tensor.Backend] struct {
	cfg   ConvConfig
	labNC int

	convFeature *nn.Conv2D[B]
	convGate    *nn.Conv2D[B]
	norm        nn.Module[B]
	act         nn.Module[B]
}

// NewCondGatedConv2d creates a conditional gated convolution.
func NewCondGatedConv2d[B tensor.Backend](cfg ConvConfig, labNC int, rng *rand.Rand, backend B) (*CondGatedConv2d[B], error) {
	if labNC <= 1 {
		return nil, fmt.Errorf("gated conv: label channels must be > 1, got %d", labNC)
	}
	norm, err := newBlockNorm(cfg.Norm, cfg.Out, backend)
	if err != nil {
		return nil, fmt.Errorf("gated conv: %w", err)
	}
	act, err := nn.NewActivation[B](cfg.Activation)
	if err != nil {
		return nil, fmt.Errorf("gated conv: %w", err)
	}
	return &CondGatedConv2d[B]{
		cfg:         cfg,
		labNC:       labNC,
		convFeature: nn.NewConv2D(cfg.conv(cfg.In+labNC, cfg.Out), rng, backend),
		convGate:    nn.NewConv2D(cfg.conv(cfg.In+labNC, cfg.Out), rng, backend),
		norm:        norm,
		act:         act,
	}, nil
}

// Forward applies the block to x [N, In, H, W].
func (g *CondGatedConv2d[B]) Forward(x, segmap, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	requireInput("gated conv", x.Shape(), g.cfg.In)
	_, _, h, w := x.Shape().NCHW()

	cond := Condition(segmap, mask, h, w)
	if cond.Shape()[1] != g.labNC {
		panic(fmt.Sprintf("gated conv: condition has %d channels, expected %d", cond.Shape()[1], g.labNC))
	}
	if cond.Shape()[0] != x.Shape()[0] {
		panic(fmt.Sprintf("gated conv: batch %d != condition batch %d", x.Shape()[0], cond.Shape()[0]))
	}

	in := tensor.Cat([]*tensor.Tensor[float32, B]{x, cond}, 1)
	feature := g.act.Forward(g.norm.Forward(g.convFeature.Forward(in)))
	return gate(feature, g.convGate.Forward(in))
}

// Parameters returns "conv_feature.*", "conv_gate.*" and "norm.*".
func (g *CondGatedConv2d[B]) Parameters() []*nn.Parameter[B] {
	params := nn.Prefixed("conv_feature", g.convFeature.Parameters())
	params = append(params, nn.Prefixed("conv_gate", g.convGate.Parameters())...)
	return append(params, nn.Prefixed("norm", g.norm.Parameters())...)
}

// OutputSize returns the spatial size produced for an h x w input.
func (g *CondGatedConv2d[B]) OutputSize(h, w int) (int, int) {
	return g.convFeature.OutputSize(h, w)
}

// OutChannels returns the number of output channels.
func (g *CondGatedConv2d[B]) OutChannels() int {
	return g.cfg.Out
}
