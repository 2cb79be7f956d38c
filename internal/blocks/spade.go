package blocks

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seggen/internal/nn"
	"github.com/born-ml/seggen/internal/tensor"
)

// SPADEConfig configures spatially-adaptive normalization.
type SPADEConfig struct {
	Hidden        int    // Channels of the shared label embedding
	Kernel        int    // Kernel size of the modulation convolutions (odd)
	StyleDim      int    // Per-region style code width; 0 disables the style branch
	ParamFreeNorm string // "instance" (default) or "batch"
	Init          nn.InitKind
}

// SPADE modulates a parameter-free normalization of x with per-pixel scale
// and shift predicted from the label map and, when style codes are given,
// from per-region style codes broadcast over their regions:
//
//	shared  = relu(mlp_shared(cond))
//	γ_l, β_l = mlp_gamma(shared), mlp_beta(shared)
//	S[n,:,y,x] = Σ_j codes[n,j,:] · seg[n,j,y,x]
//	γ_s, β_s = style_gamma(S), style_beta(S)
//	γ = a_γ γ_s + (1 - a_γ) γ_l,  a_γ = sigmoid(blend_gamma)
//	out = norm(x) * (1 + γ) + β
//
// The blend logits start at 0, an even mix.
type SPADE[B tensor.Backend] struct {
	normNC, labNC int
	cfg           SPADEConfig

	paramFree nn.Module[B]
	mlpShared *nn.Conv2D[B]
	mlpGamma  *nn.Conv2D[B]
	mlpBeta   *nn.Conv2D[B]

	styleGamma *nn.Conv2D[B] // nil without a style branch
	styleBeta  *nn.Conv2D[B]
	blendGamma *nn.Parameter[B] // [1]
	blendBeta  *nn.Parameter[B] // [1]
}

// NewSPADE creates a SPADE layer normalizing normNC channels, conditioned
// on labNC = lab_dim + 1 label channels.
func NewSPADE[B tensor.Backend](normNC, labNC int, cfg SPADEConfig, rng *rand.Rand, backend B) (*SPADE[B], error) {
	if cfg.Hidden <= 0 {
		return nil, fmt.Errorf("spade: hidden channels must be > 0, got %d", cfg.Hidden)
	}
	if cfg.Kernel <= 0 || cfg.Kernel%2 == 0 {
		return nil, fmt.Errorf("spade: kernel size must be odd and positive, got %d", cfg.Kernel)
	}
	if cfg.StyleDim < 0 {
		return nil, fmt.Errorf("spade: style dim must be >= 0, got %d", cfg.StyleDim)
	}

	kind := cfg.ParamFreeNorm
	if kind == "" {
		kind = nn.NormInstance
	}
	canonical, err := nn.ParseNorm(kind)
	if err != nil {
		return nil, fmt.Errorf("spade: %w", err)
	}
	if canonical == nn.NormNone {
		return nil, fmt.Errorf("spade: parameter-free norm must be instance or batch")
	}
	paramFree, err := nn.NewNorm(canonical, normNC, false, backend)
	if err != nil {
		return nil, fmt.Errorf("spade: %w", err)
	}

	conv := func(in, out int) *nn.Conv2D[B] {
		return nn.NewConv2D(nn.Conv2DConfig{
			In: in, Out: out, Kernel: cfg.Kernel, Padding: cfg.Kernel / 2, Bias: true, Init: cfg.Init,
		}, rng, backend)
	}

	s := &SPADE[B]{
		normNC:    normNC,
		labNC:     labNC,
		cfg:       cfg,
		paramFree: paramFree,
		mlpShared: conv(labNC, cfg.Hidden),
		mlpGamma:  conv(cfg.Hidden, normNC),
		mlpBeta:   conv(cfg.Hidden, normNC),
	}
	if cfg.StyleDim > 0 {
		s.styleGamma = conv(cfg.StyleDim, normNC)
		s.styleBeta = conv(cfg.StyleDim, normNC)
		s.blendGamma = nn.NewParameter("blend_gamma", nn.Zeros(tensor.Shape{1}, backend))
		s.blendBeta = nn.NewParameter("blend_beta", nn.Zeros(tensor.Shape{1}, backend))
	}
	return s, nil
}

// Forward normalizes x [N, normNC, H, W]. style may be nil; otherwise it
// must be [N, lab_dim, StyleDim].
func (s *SPADE[B]) Forward(x, segmap, mask, style *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	requireInput("spade", x.Shape(), s.normNC)
	n, _, h, w := x.Shape().NCHW()

	normalized := s.paramFree.Forward(x)

	cond := Condition(segmap, mask, h, w)
	if cond.Shape()[0] != n || cond.Shape()[1] != s.labNC {
		panic(fmt.Sprintf("spade: condition shape %v, expected [%d %d %d %d]", cond.Shape(), n, s.labNC, h, w))
	}
	shared := s.mlpShared.Forward(cond).ReLU()
	gamma := s.mlpGamma.Forward(shared)
	beta := s.mlpBeta.Forward(shared)

	if style != nil && s.styleGamma != nil {
		styleMap := s.broadcastStyle(style, segmap, n, h, w)
		gamma = blend(s.blendGamma.Tensor(), s.styleGamma.Forward(styleMap), gamma)
		beta = blend(s.blendBeta.Tensor(), s.styleBeta.Forward(styleMap), beta)
	}

	return normalized.Mul(gamma.AddScalar(1)).Add(beta)
}

// broadcastStyle paints each region's style code over its pixels:
// [N, StyleDim, lab_dim] @ [N, lab_dim, H*W] -> [N, StyleDim, H, W].
func (s *SPADE[B]) broadcastStyle(style, segmap *tensor.Tensor[float32, B], n, h, w int) *tensor.Tensor[float32, B] {
	labDim := s.labNC - 1
	want := tensor.Shape{n, labDim, s.cfg.StyleDim}
	if !style.Shape().Equal(want) {
		panic(fmt.Sprintf("spade: style codes shape %v, expected %v", style.Shape(), want))
	}
	seg := segmap.Interpolate(h, w).Reshape(n, labDim, h*w)
	return style.Transpose(0, 2, 1).BatchMatMul(seg).Reshape(n, s.cfg.StyleDim, h, w)
}

// blend mixes fromStyle and fromLabel with weight sigmoid(logit).
func blend[B tensor.Backend](logit, fromStyle, fromLabel *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	a := logit.Sigmoid().Reshape(1, 1, 1, 1)
	return fromStyle.Mul(a).Add(fromLabel.Mul(a.MulScalar(-1).AddScalar(1)))
}

// Parameters returns the modulation weights, blend logits and any
// parameter-free norm buffers.
func (s *SPADE[B]) Parameters() []*nn.Parameter[B] {
	params := nn.Prefixed("param_free_norm", s.paramFree.Parameters())
	params = append(params, nn.Prefixed("mlp_shared", s.mlpShared.Parameters())...)
	params = append(params, nn.Prefixed("mlp_gamma", s.mlpGamma.Parameters())...)
	params = append(params, nn.Prefixed("mlp_beta", s.mlpBeta.Parameters())...)
	if s.styleGamma != nil {
		params = append(params, nn.Prefixed("style_gamma", s.styleGamma.Parameters())...)
		params = append(params, nn.Prefixed("style_beta", s.styleBeta.Parameters())...)
		params = append(params, s.blendGamma, s.blendBeta)
	}
	return params
}
