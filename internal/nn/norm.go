package nn

import (
	"fmt"

	"github.com/born-ml/seggen/internal/tensor"
)

// NormEpsilon is the variance epsilon used by every normalization layer.
const NormEpsilon = 1e-5

// Normalization kinds accepted by NewNorm.
const (
	NormInstance = "instance"
	NormBatch    = "batch"
	NormNone     = "none"
)

// ParseNorm canonicalizes a normalization name. Accepted spellings are
// "instance"/"in", "batch"/"bn" and "none"/"".
func ParseNorm(kind string) (string, error) {
	switch kind {
	case NormInstance, "in":
		return NormInstance, nil
	case NormBatch, "bn":
		return NormBatch, nil
	case NormNone, "":
		return NormNone, nil
	default:
		return "", fmt.Errorf("unknown normalization type %q", kind)
	}
}

// NewNorm creates a 2D normalization layer over channels.
// With affine=false the layer has no learnable scale and shift.
func NewNorm[B tensor.Backend](kind string, channels int, affine bool, backend B) (Module[B], error) {
	canonical, err := ParseNorm(kind)
	if err != nil {
		return nil, err
	}
	switch canonical {
	case NormInstance:
		return NewInstanceNorm2D(channels, affine, backend), nil
	case NormBatch:
		return NewBatchNorm2D(channels, affine, backend), nil
	default:
		return NewIdentity[B](), nil
	}
}

// normalize computes (x - mean) / sqrt(variance + eps) with broadcasting.
func normalize[B tensor.Backend](x, mean, variance *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return x.Sub(mean).Mul(variance.AddScalar(NormEpsilon).Rsqrt())
}

func checkChannels(op string, x tensor.Shape, channels int) {
	if len(x) != 4 {
		panic(fmt.Sprintf("%s: expected 4D input [N,C,H,W], got shape %v", op, x))
	}
	if x[1] != channels {
		panic(fmt.Sprintf("%s: input channels %d != expected %d", op, x[1], channels))
	}
}

// affineParams holds the optional per-channel scale and shift.
type affineParams[B tensor.Backend] struct {
	weight *Parameter[B] // [C], ones
	bias   *Parameter[B] // [C], zeros
}

func newAffine[B tensor.Backend](channels int, affine bool, backend B) affineParams[B] {
	if !affine {
		return affineParams[B]{}
	}
	return affineParams[B]{
		weight: NewParameter("weight", Ones(tensor.Shape{channels}, backend)),
		bias:   NewParameter("bias", Zeros(tensor.Shape{channels}, backend)),
	}
}

func (a affineParams[B]) apply(y *tensor.Tensor[float32, B], channels int) *tensor.Tensor[float32, B] {
	if a.weight == nil {
		return y
	}
	return y.Mul(a.weight.Tensor().Reshape(1, channels, 1, 1)).
		Add(a.bias.Tensor().Reshape(1, channels, 1, 1))
}

func (a affineParams[B]) params() []*Parameter[B] {
	if a.weight == nil {
		return nil
	}
	return []*Parameter[B]{a.weight, a.bias}
}

// InstanceNorm2D normalizes each (sample, channel) plane to zero mean and
// unit variance. It keeps no running statistics.
//
// Example:
//
//	norm := nn.NewInstanceNorm2D(64, false, backend)
//	y := norm.Forward(x) // [N, 64, H, W]
type InstanceNorm2D[B tensor.Backend] struct {
	channels int
	affine   affineParams[B]
}

// NewInstanceNorm2D creates an instance normalization layer.
func NewInstanceNorm2D[B tensor.Backend](channels int, affine bool, backend B) *InstanceNorm2D[B] {
	return &InstanceNorm2D[B]{
		channels: channels,
		affine:   newAffine(channels, affine, backend),
	}
}

// Forward normalizes x of shape [N, C, H, W].
func (n *InstanceNorm2D[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	checkChannels("instance_norm", x.Shape(), n.channels)
	mean, variance := x.ChannelMoments(true)
	return n.affine.apply(normalize(x, mean, variance), n.channels)
}

// Parameters returns the affine weight and bias, if any.
func (n *InstanceNorm2D[B]) Parameters() []*Parameter[B] {
	return n.affine.params()
}

// BatchNorm2D normalizes with running statistics (inference mode).
//
// The running mean and variance are persistent buffers named
// "running_mean" and "running_var", initialized to 0 and 1.
type BatchNorm2D[B tensor.Backend] struct {
	channels    int
	affine      affineParams[B]
	runningMean *Parameter[B] // [C]
	runningVar  *Parameter[B] // [C]
}

// NewBatchNorm2D creates a batch normalization layer.
func NewBatchNorm2D[B tensor.Backend](channels int, affine bool, backend B) *BatchNorm2D[B] {
	return &BatchNorm2D[B]{
		channels:    channels,
		affine:      newAffine(channels, affine, backend),
		runningMean: NewBuffer("running_mean", Zeros(tensor.Shape{channels}, backend)),
		runningVar:  NewBuffer("running_var", Ones(tensor.Shape{channels}, backend)),
	}
}

// Forward normalizes x of shape [N, C, H, W] with the running statistics.
func (n *BatchNorm2D[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	checkChannels("batch_norm", x.Shape(), n.channels)
	mean := n.runningMean.Tensor().Reshape(1, n.channels, 1, 1)
	variance := n.runningVar.Tensor().Reshape(1, n.channels, 1, 1)
	return n.affine.apply(normalize(x, mean, variance), n.channels)
}

// Parameters returns the affine parameters followed by the running buffers.
func (n *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return append(n.affine.params(), n.runningMean, n.runningVar)
}
