// Package blocks implements the conditioning blocks of the generator: gated
// convolutions that see the label map and mask at every stage, the
// upsampling transpose-gated variant with SPADE normalization, and a plain
// convolution block.
//
// Blocks are inference-only and panic with a block-prefixed message when
// operand shapes disagree.
package blocks

import (
	"fmt"

	"github.com/born-ml/seggen/internal/nn"
	"github.com/born-ml/seggen/internal/tensor"
)

// Condition resizes segmap [N, lab_dim, H, W] and mask [N, 1, H, W] to
// (h, w) with nearest sampling and concatenates them into
// [N, lab_dim+1, h, w].
func Condition[B tensor.Backend](segmap, mask *tensor.Tensor[float32, B], h, w int) *tensor.Tensor[float32, B] {
	sn, _, sh, sw := segmap.Shape().NCHW()
	mn, mc, mh, mw := mask.Shape().NCHW()
	if sn != mn || sh != mh || sw != mw {
		panic(fmt.Sprintf("condition: segmap %v and mask %v disagree", segmap.Shape(), mask.Shape()))
	}
	if mc != 1 {
		panic(fmt.Sprintf("condition: mask must have 1 channel, got %d", mc))
	}
	return tensor.Cat([]*tensor.Tensor[float32, B]{
		segmap.Interpolate(h, w),
		mask.Interpolate(h, w),
	}, 1)
}

// newBlockNorm creates the plain normalization of a block. Batch norm is
// affine, instance norm is not.
func newBlockNorm[B tensor.Backend](kind string, channels int, backend B) (nn.Module[B], error) {
	canonical, err := nn.ParseNorm(kind)
	if err != nil {
		return nil, err
	}
	return nn.NewNorm(canonical, channels, canonical == nn.NormBatch, backend)
}

// requireInput checks that x is [N, channels, H, W].
func requireInput(op string, x tensor.Shape, channels int) {
	if len(x) != 4 {
		panic(fmt.Sprintf("%s: expected 4D input [N,C,H,W], got shape %v", op, x))
	}
	if x[1] != channels {
		panic(fmt.Sprintf("%s: input channels %d != expected %d", op, x[1], channels))
	}
}

// gate scales feature by sigmoid(gateLogits).
func gate[B tensor.Backend](feature, gateLogits *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return feature.Mul(gateLogits.Sigmoid())
}
