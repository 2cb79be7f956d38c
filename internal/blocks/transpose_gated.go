package blocks

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seggen/internal/nn"
	"github.com/born-ml/seggen/internal/tensor"
)

// CondTransposeGatedConv2d is the decoder block: it upsamples x by 2
// (nearest), concatenates the skip connection if any, and applies a
// conditional gated convolution whose feature branch is normalized by SPADE
// (or by the plain norm when SPADE is disabled).
//
// In counts the channels after the skip concatenation.
type CondTransposeGatedConv2d[B tensor.Backend] struct {
	cfg   ConvConfig
	labNC int

	convFeature *nn.Conv2D[B]
	convGate    *nn.Conv2D[B]
	norm        nn.Module[B] // nil when spade is set
	spade       *SPADE[B]
	act         nn.Module[B]
}

// NewCondTransposeGatedConv2d creates a decoder block. spadeCfg is used
// only when spadeNorm is true.
func NewCondTransposeGatedConv2d[B tensor.Backend](
	cfg ConvConfig, labNC int, spadeNorm bool, spadeCfg SPADEConfig, rng *rand.Rand, backend B,
) (*CondTransposeGatedConv2d[B], error) {
	if labNC <= 1 {
		return nil, fmt.Errorf("transpose gated conv: label channels must be > 1, got %d", labNC)
	}
	act, err := nn.NewActivation[B](cfg.Activation)
	if err != nil {
		return nil, fmt.Errorf("transpose gated conv: %w", err)
	}

	b := &CondTransposeGatedConv2d[B]{
		cfg:         cfg,
		labNC:       labNC,
		convFeature: nn.NewConv2D(cfg.conv(cfg.In+labNC, cfg.Out), rng, backend),
		convGate:    nn.NewConv2D(cfg.conv(cfg.In+labNC, cfg.Out), rng, backend),
		act:         act,
	}
	if spadeNorm {
		b.spade, err = NewSPADE(cfg.Out, labNC, spadeCfg, rng, backend)
	} else {
		b.norm, err = newBlockNorm(cfg.Norm, cfg.Out, backend)
	}
	if err != nil {
		return nil, fmt.Errorf("transpose gated conv: %w", err)
	}
	return b, nil
}

// Forward upsamples x, joins skip (may be nil) and applies the gated
// convolution. style may be nil.
func (b *CondTransposeGatedConv2d[B]) Forward(x, segmap, mask, skip, style *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if len(x.Shape()) != 4 {
		panic(fmt.Sprintf("transpose gated conv: expected 4D input [N,C,H,W], got shape %v", x.Shape()))
	}
	x = x.Upsample2x()
	if skip != nil {
		xs, ss := x.Shape(), skip.Shape()
		if len(ss) != 4 || ss[0] != xs[0] || ss[2] != xs[2] || ss[3] != xs[3] {
			panic(fmt.Sprintf("transpose gated conv: skip %v does not match upsampled input %v", ss, xs))
		}
		x = tensor.Cat([]*tensor.Tensor[float32, B]{x, skip}, 1)
	}
	requireInput("transpose gated conv", x.Shape(), b.cfg.In)
	_, _, h, w := x.Shape().NCHW()

	cond := Condition(segmap, mask, h, w)
	if cond.Shape()[0] != x.Shape()[0] || cond.Shape()[1] != b.labNC {
		panic(fmt.Sprintf("transpose gated conv: condition shape %v does not match input %v", cond.Shape(), x.Shape()))
	}
	in := tensor.Cat([]*tensor.Tensor[float32, B]{x, cond}, 1)

	feature := b.convFeature.Forward(in)
	if b.spade != nil {
		feature = b.spade.Forward(feature, segmap, mask, style)
	} else {
		feature = b.norm.Forward(feature)
	}
	return gate(b.act.Forward(feature), b.convGate.Forward(in))
}

// Parameters returns "conv_feature.*", "conv_gate.*" and either "spade.*"
// or "norm.*".
func (b *CondTransposeGatedConv2d[B]) Parameters() []*nn.Parameter[B] {
	params := nn.Prefixed("conv_feature", b.convFeature.Parameters())
	params = append(params, nn.Prefixed("conv_gate", b.convGate.Parameters())...)
	if b.spade != nil {
		return append(params, nn.Prefixed("spade", b.spade.Parameters())...)
	}
	return append(params, nn.Prefixed("norm", b.norm.Parameters())...)
}

// OutputSize returns the spatial size produced for an h x w input
// (before upsampling).
func (b *CondTransposeGatedConv2d[B]) OutputSize(h, w int) (int, int) {
	return b.convFeature.OutputSize(2*h, 2*w)
}

// OutChannels returns the number of output channels.
func (b *CondTransposeGatedConv2d[B]) OutChannels() int {
	return b.cfg.Out
}
