// Package generator implements the segmentation-guided image generator: a
// U-Net of nine conditional gated encoder stages and eight decoder stages
// that see the label map, the mask and per-region style codes at every
// resolution.
package generator

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/born-ml/seggen/internal/blocks"
	"github.com/born-ml/seggen/internal/nn"
	"github.com/born-ml/seggen/internal/tensor"
)

// SizeMultiple is the granularity of supported image sizes. Seven stride-2
// encoder stages bring H and W down to H/128 and W/128.
const SizeMultiple = 128

// noSkip marks a decoder stage without a skip connection.
const noSkip = -1

// encoderStage describes one encoder stage in units of ngf.
type encoderStage struct {
	name    string
	in, out int // multiples of ngf; in == 0 means input_nc
	stride  int
}

// decoderStage describes one decoder stage in units of ngf.
type decoderStage struct {
	name    string
	in, out int // multiples of ngf, in counts the skip channels
	skip    int // index into the encoder outputs, or noSkip
}

var encoderStages = []encoderStage{
	{"enc1", 0, 1, 1},
	{"enc2", 1, 2, 2},
	{"enc3", 2, 4, 2},
	{"enc4", 4, 4, 2},
	{"enc5", 4, 8, 2},
	{"enc6", 8, 8, 2},
	{"enc7", 8, 16, 2},
	{"enc8", 16, 16, 2},
	{"enc9", 16, 32, 1},
}

var decoderStages = []decoderStage{
	{"dec8", 32 + 16, 16, 6},
	{"dec7", 16 + 8, 8, 5},
	{"dec6", 8 + 8, 8, 4},
	{"dec5", 8 + 4, 4, 3},
	{"dec4", 4 + 4, 2, 2},
	{"dec3", 2 + 2, 1, 1},
	{"dec2", 1, 1, noSkip},
}

// Generator is the conditional image generator.
//
// Example:
//
//	g, err := generator.New(generator.DefaultConfig(), cpu.New())
//	out, err := g.Generate(input, segmap, mask, styleCodes) // [N, output_nc, H, W] in (-1, 1)
type Generator[B tensor.Backend] struct {
	cfg     Config
	backend B

	enc []*blocks.CondGatedConv2d[B]
	dec []*blocks.CondTransposeGatedConv2d[B]
	out *blocks.Conv2dBlock[B] // dec1
}

// New builds a generator with freshly initialized weights. Initialization
// is deterministic for a given cfg.Seed.
func New[B tensor.Backend](cfg Config, backend B) (*Generator[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	padMode, err := tensor.ParsePadMode(cfg.PadType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	initKind, err := nn.ParseInitKind(cfg.InitType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	//nolint:gosec // G404: weight init is not security-sensitive
	rng := rand.New(rand.NewSource(cfg.Seed))
	ngf, labNC := cfg.NGF, cfg.LabNC()

	stage := func(in, out, stride int) blocks.ConvConfig {
		return blocks.ConvConfig{
			In: in, Out: out,
			Kernel: 3, Stride: stride, Padding: 1, Dilation: 1,
			Norm: cfg.NormType, Activation: "lrelu",
			PadMode: padMode, Init: initKind,
		}
	}

	g := &Generator[B]{cfg: cfg, backend: backend}

	for _, s := range encoderStages {
		in := s.in * ngf
		if s.in == 0 {
			in = cfg.InputNC
		}
		block, err := blocks.NewCondGatedConv2d(stage(in, s.out*ngf, s.stride), labNC, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		g.enc = append(g.enc, block)
	}

	spadeCfg := blocks.SPADEConfig{
		Hidden:        cfg.SPADEHidden,
		Kernel:        cfg.SPADEKernel,
		StyleDim:      cfg.StyleDim,
		ParamFreeNorm: cfg.SPADENormType,
		Init:          initKind,
	}
	for _, s := range decoderStages {
		block, err := blocks.NewCondTransposeGatedConv2d(stage(s.in*ngf, s.out*ngf, 1), labNC, true, spadeCfg, rng, backend)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		g.dec = append(g.dec, block)
	}

	outCfg := stage(ngf, cfg.OutputNC, 1)
	outCfg.Norm, outCfg.Activation = nn.NormNone, "tanh"
	g.out, err = blocks.NewConv2dBlock(outCfg, rng, backend)
	if err != nil {
		return nil, fmt.Errorf("dec1: %w", err)
	}
	return g, nil
}

// Config returns the generator configuration.
func (g *Generator[B]) Config() Config {
	return g.cfg
}

// Backend returns the computation backend.
func (g *Generator[B]) Backend() B {
	return g.backend
}

// Forward runs the network.
//
// Shapes:
//   - input:      [N, input_nc, H, W]
//   - segmap:     [N, lab_dim, H, W] (one-hot)
//   - mask:       [N, 1, H, W]
//   - styleCodes: [N, lab_dim, style_dim], or nil for label-only modulation
//   - output:     [N, output_nc, H, W] in (-1, 1)
//
// H and W must be multiples of 128. Forward panics on malformed inputs; use
// Generate for error returns.
func (g *Generator[B]) Forward(input, segmap, mask, styleCodes *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	skips := make([]*tensor.Tensor[float32, B], len(g.enc))
	x := input
	for i, enc := range g.enc {
		x = enc.Forward(x, segmap, mask)
		skips[i] = x
	}

	for i, dec := range g.dec {
		var skip *tensor.Tensor[float32, B]
		if idx := decoderStages[i].skip; idx != noSkip {
			skip = skips[idx]
		}
		x = dec.Forward(x, segmap, mask, skip, styleCodes)
	}

	return g.out.Forward(x)
}

// Generate validates the inputs and runs Forward, converting a panic in the
// numeric layers into an ErrForward error.
//
// Only panics on the calling goroutine are recovered. A panic inside a
// backend worker goroutine still terminates the process, so kernels check
// shapes before fanning out and Validate rejects mismatched inputs first.
func (g *Generator[B]) Generate(input, segmap, mask, styleCodes *tensor.Tensor[float32, B]) (out *tensor.Tensor[float32, B], err error) {
	if err := g.Validate(input, segmap, mask, styleCodes); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrForward, r)
		}
	}()
	return g.Forward(input, segmap, mask, styleCodes), nil
}

// Validate checks that the inputs agree with each other and with the
// configuration.
func (g *Generator[B]) Validate(input, segmap, mask, styleCodes *tensor.Tensor[float32, B]) error {
	if input == nil || segmap == nil || mask == nil {
		return fmt.Errorf("%w: input, segmap and mask are required", ErrInvalidInput)
	}

	maps := []struct {
		name     string
		shape    tensor.Shape
		channels int
	}{
		{"input", input.Shape(), g.cfg.InputNC},
		{"segmap", segmap.Shape(), g.cfg.LabDim},
		{"mask", mask.Shape(), 1},
	}
	for _, m := range maps {
		if len(m.shape) != 4 {
			return fmt.Errorf("%w: %s must be [N,C,H,W], got %v", ErrInvalidInput, m.name, m.shape)
		}
		if m.shape[1] != m.channels {
			return fmt.Errorf("%w: %s has %d channels, expected %d", ErrInvalidInput, m.name, m.shape[1], m.channels)
		}
	}

	n, _, h, w := input.Shape().NCHW()
	for _, m := range maps[1:] {
		if m.shape[0] != n || m.shape[2] != h || m.shape[3] != w {
			return fmt.Errorf("%w: %s %v does not match input %v", ErrInvalidInput, m.name, m.shape, input.Shape())
		}
	}
	if err := g.checkSize(h, w); err != nil {
		return err
	}

	if styleCodes != nil {
		if g.cfg.StyleDim == 0 {
			return fmt.Errorf("%w: style codes given but style_dim is 0", ErrInvalidInput)
		}
		want := tensor.Shape{n, g.cfg.LabDim, g.cfg.StyleDim}
		if !styleCodes.Shape().Equal(want) {
			return fmt.Errorf("%w: style codes %v, expected %v", ErrInvalidInput, styleCodes.Shape(), want)
		}
	}
	return nil
}

// checkSize verifies that an h x w image survives the encoder. Reflect
// padding additionally needs the bottleneck to be at least 2x2.
func (g *Generator[B]) checkSize(h, w int) error {
	if h <= 0 || w <= 0 || h%SizeMultiple != 0 || w%SizeMultiple != 0 {
		return fmt.Errorf("%w: %w: got %dx%d", ErrInvalidInput, ErrSpatialSize, h, w)
	}
	if mode, _ := tensor.ParsePadMode(g.cfg.PadType); mode == tensor.PadReflect && (h < 2*SizeMultiple || w < 2*SizeMultiple) {
		return fmt.Errorf("%w: reflect padding needs at least %dx%d, got %dx%d",
			ErrInvalidInput, 2*SizeMultiple, 2*SizeMultiple, h, w)
	}
	return nil
}

// Parameters returns all parameters with dotted names such as
// "enc1.conv_feature.weight" or "dec8.spade.mlp_gamma.bias".
func (g *Generator[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for i, enc := range g.enc {
		params = append(params, nn.Prefixed(encoderStages[i].name, enc.Parameters())...)
	}
	for i, dec := range g.dec {
		params = append(params, nn.Prefixed(decoderStages[i].name, dec.Parameters())...)
	}
	return append(params, nn.Prefixed("dec1", g.out.Parameters())...)
}

// NumParameters returns the number of learnable weights.
func (g *Generator[B]) NumParameters() int {
	return nn.CountParameters(g.Parameters())
}

// StateDict returns the weights keyed by parameter name.
func (g *Generator[B]) StateDict() map[string]*tensor.RawTensor {
	return nn.StateDict(g.Parameters())
}

// LoadStateDict copies weights into the generator. Loading is strict
// except for batch norm "num_batches_tracked" counters, which inference
// does not use.
func (g *Generator[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	filtered := make(map[string]*tensor.RawTensor, len(stateDict))
	for name, raw := range stateDict {
		if strings.HasSuffix(name, ".num_batches_tracked") {
			continue
		}
		filtered[name] = raw
	}
	return nn.LoadStateDict(g.Parameters(), filtered)
}

// StageInfo describes the output of one stage for a given input size.
type StageInfo struct {
	Name       string
	Kind       string
	Shape      tensor.Shape // Output shape for batch size 1
	Skip       string       // Encoder stage concatenated before the stage, if any
	Parameters int
}

// Summary returns the per-stage output shapes for an h x w input.
func (g *Generator[B]) Summary(h, w int) ([]StageInfo, error) {
	if err := g.checkSize(h, w); err != nil {
		return nil, err
	}

	var stages []StageInfo
	for i, enc := range g.enc {
		h, w = enc.OutputSize(h, w)
		stages = append(stages, StageInfo{
			Name:       encoderStages[i].name,
			Kind:       "cond_gated_conv",
			Shape:      tensor.Shape{1, enc.OutChannels(), h, w},
			Parameters: nn.CountParameters(enc.Parameters()),
		})
	}
	for i, dec := range g.dec {
		h, w = dec.OutputSize(h, w)
		info := StageInfo{
			Name:       decoderStages[i].name,
			Kind:       "cond_transpose_gated_conv+spade",
			Shape:      tensor.Shape{1, dec.OutChannels(), h, w},
			Parameters: nn.CountParameters(dec.Parameters()),
		}
		if idx := decoderStages[i].skip; idx != noSkip {
			info.Skip = encoderStages[idx].name
		}
		stages = append(stages, info)
	}
	h, w = g.out.OutputSize(h, w)
	stages = append(stages, StageInfo{
		Name:       "dec1",
		Kind:       "conv_block",
		Shape:      tensor.Shape{1, g.cfg.OutputNC, h, w},
		Parameters: nn.CountParameters(g.out.Parameters()),
	})
	return stages, nil
}
