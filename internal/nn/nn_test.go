package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seggen/internal/backend/cpu"
	"github.com/born-ml/seggen/internal/tensor"
)

type backendT = *cpu.CPUBackend

func fill(t *tensor.Tensor[float32, backendT], v float32) {
	data := t.Data()
	for i := range data {
		data[i] = v
	}
}

func TestConv2D_ForwardWithBias(t *testing.T) {
	backend := cpu.New()
	conv := NewConv2D(Conv2DConfig{In: 1, Out: 1, Kernel: 3, Padding: 1, Bias: true}, nil, backend)
	fill(conv.Weight().Tensor(), 1)
	fill(conv.Bias().Tensor(), 0.5)

	x := tensor.Ones[float32](tensor.Shape{1, 1, 4, 4}, backend)
	y := conv.Forward(x)

	require.Equal(t, tensor.Shape{1, 1, 4, 4}, y.Shape())
	assert.Equal(t, float32(4.5), y.At(0, 0, 0, 0), "corner sees 4 taps")
	assert.Equal(t, float32(6.5), y.At(0, 0, 0, 1), "edge sees 6 taps")
	assert.Equal(t, float32(9.5), y.At(0, 0, 1, 1), "interior sees 9 taps")
}

func TestConv2D_PadModes(t *testing.T) {
	backend := cpu.New()
	x := tensor.Ones[float32](tensor.Shape{1, 1, 4, 4}, backend)

	for _, mode := range []tensor.PadMode{tensor.PadReflect, tensor.PadReplicate} {
		t.Run(mode.String(), func(t *testing.T) {
			conv := NewConv2D(Conv2DConfig{In: 1, Out: 1, Kernel: 3, Padding: 1, PadMode: mode}, nil, backend)
			fill(conv.Weight().Tensor(), 1)

			y := conv.Forward(x)
			require.Equal(t, tensor.Shape{1, 1, 4, 4}, y.Shape())
			for _, v := range y.Data() {
				assert.Equal(t, float32(9), v)
			}
		})
	}
}

func TestConv2D_OutputSize(t *testing.T) {
	backend := cpu.New()
	tests := []Conv2DConfig{
		{In: 2, Out: 3, Kernel: 3, Padding: 1},
		{In: 2, Out: 3, Kernel: 3, Stride: 2, Padding: 1},
		{In: 2, Out: 3, Kernel: 3, Padding: 2, Dilation: 2},
		{In: 2, Out: 3, Kernel: 1},
	}
	for _, cfg := range tests {
		conv := NewConv2D(cfg, rand.New(rand.NewSource(1)), backend)
		x := tensor.Zeros[float32](tensor.Shape{1, 2, 16, 12}, backend)
		y := conv.Forward(x)
		h, w := conv.OutputSize(16, 12)
		assert.Equal(t, tensor.Shape{1, 3, h, w}, y.Shape(), conv.String())
	}
}

func TestConv2D_Defaults(t *testing.T) {
	conv := NewConv2D(Conv2DConfig{In: 1, Out: 2, Kernel: 3}, nil, cpu.New())
	cfg := conv.Config()
	assert.Equal(t, 1, cfg.Stride)
	assert.Equal(t, 1, cfg.Dilation)
	assert.Nil(t, conv.Bias())
	assert.Len(t, conv.Parameters(), 1)
}

func TestConv2D_InvalidPanics(t *testing.T) {
	backend := cpu.New()
	assert.Panics(t, func() { NewConv2D(Conv2DConfig{In: 0, Out: 1, Kernel: 3}, nil, backend) })
	assert.Panics(t, func() { NewConv2D(Conv2DConfig{In: 1, Out: 1}, nil, backend) })

	conv := NewConv2D(Conv2DConfig{In: 3, Out: 1, Kernel: 3, Padding: 1}, nil, backend)
	assert.PanicsWithValue(t, "conv2d: input channels 2 != expected 3", func() {
		conv.Forward(tensor.Zeros[float32](tensor.Shape{1, 2, 4, 4}, backend))
	})
}

func TestInit(t *testing.T) {
	backend := cpu.New()
	shape := tensor.Shape{16, 8, 3, 3}

	w := Xavier(72, 144, shape, rand.New(rand.NewSource(5)), backend)
	bound := float32(math.Sqrt(6.0 / 216.0))
	for _, v := range w.Data() {
		assert.LessOrEqual(t, float32(math.Abs(float64(v))), bound)
	}

	a := KaimingNormal(72, 0.2, shape, rand.New(rand.NewSource(5)), backend)
	b := KaimingNormal(72, 0.2, shape, rand.New(rand.NewSource(5)), backend)
	assert.Equal(t, a.Data(), b.Data())

	var sq float64
	for _, v := range a.Data() {
		sq += float64(v) * float64(v)
	}
	std := math.Sqrt(sq / float64(len(a.Data())))
	want := math.Sqrt(2.0/1.04) / math.Sqrt(72)
	assert.InDelta(t, want, std, want*0.15)
}

func TestParseInitKind(t *testing.T) {
	k, err := ParseInitKind("")
	require.NoError(t, err)
	assert.Equal(t, InitXavier, k)

	k, err = ParseInitKind("kaiming")
	require.NoError(t, err)
	assert.Equal(t, InitKaiming, k)

	_, err = ParseInitKind("orthogonal")
	assert.Error(t, err)
}

func TestInstanceNorm2D(t *testing.T) {
	backend := cpu.New()
	x := tensor.Randn[float32](tensor.Shape{2, 3, 8, 8}, rand.New(rand.NewSource(9)), backend).
		MulScalar(3).AddScalar(5)

	norm := NewInstanceNorm2D(3, false, backend)
	assert.Empty(t, norm.Parameters())

	y := norm.Forward(x)
	mean, variance := y.ChannelMoments(true)
	for i := range mean.Data() {
		assert.InDelta(t, 0, mean.Data()[i], 1e-5)
		assert.InDelta(t, 1, variance.Data()[i], 1e-3)
	}
}

func TestInstanceNorm2D_Affine(t *testing.T) {
	backend := cpu.New()
	norm := NewInstanceNorm2D(1, true, backend)
	require.Len(t, norm.Parameters(), 2)
	fill(norm.Parameters()[0].Tensor(), 2)
	fill(norm.Parameters()[1].Tensor(), 1)

	x, err := tensor.FromSlice([]float32{0, 2}, tensor.Shape{1, 1, 1, 2}, backend)
	require.NoError(t, err)

	y := norm.Forward(x).Data()
	// Normalized values are ±1/sqrt(1+eps).
	assert.InDelta(t, -1, y[0], 1e-4)
	assert.InDelta(t, 3, y[1], 1e-4)
}

func TestBatchNorm2D_UsesRunningStats(t *testing.T) {
	backend := cpu.New()
	norm := NewBatchNorm2D(2, true, backend)

	params := norm.Parameters()
	require.Len(t, params, 4)
	assert.Equal(t, []string{"weight", "bias", "running_mean", "running_var"},
		[]string{params[0].Name(), params[1].Name(), params[2].Name(), params[3].Name()})
	assert.True(t, params[2].IsBuffer())
	assert.False(t, params[0].IsBuffer())

	copy(params[2].Tensor().Data(), []float32{1, -1})
	copy(params[3].Tensor().Data(), []float32{4, 1})

	x := tensor.Full[float32](tensor.Shape{1, 2, 1, 1}, 3, backend)
	y := norm.Forward(x).Data()
	assert.InDelta(t, 1, y[0], 1e-4)
	assert.InDelta(t, 4, y[1], 1e-4)
}

func TestNewNorm(t *testing.T) {
	backend := cpu.New()
	tests := []struct {
		kind    string
		want    any
		wantErr bool
	}{
		{"instance", &InstanceNorm2D[backendT]{}, false},
		{"in", &InstanceNorm2D[backendT]{}, false},
		{"batch", &BatchNorm2D[backendT]{}, false},
		{"bn", &BatchNorm2D[backendT]{}, false},
		{"none", &Identity[backendT]{}, false},
		{"", &Identity[backendT]{}, false},
		{"layer", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			m, err := NewNorm(tt.kind, 4, false, backend)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)
		})
	}
}

func TestNewActivation(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{-1, 0, 2}, tensor.Shape{3}, backend)
	require.NoError(t, err)

	tests := []struct {
		name string
		want []float32
	}{
		{"relu", []float32{0, 0, 2}},
		{"lrelu", []float32{-0.2, 0, 2}},
		{"sigmoid", []float32{float32(1 / (1 + math.E)), 0.5, float32(1 / (1 + math.Exp(-2)))}},
		{"tanh", []float32{float32(math.Tanh(-1)), 0, float32(math.Tanh(2))}},
		{"none", []float32{-1, 0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, err := NewActivation[backendT](tt.name)
			require.NoError(t, err)
			assert.Nil(t, act.Parameters())
			assert.InDeltaSlice(t, tt.want, act.Forward(x).Data(), 1e-6)
		})
	}

	_, err = NewActivation[backendT]("gelu")
	assert.Error(t, err)
}

func TestPrefixedAndCount(t *testing.T) {
	backend := cpu.New()
	conv := NewConv2D(Conv2DConfig{In: 2, Out: 4, Kernel: 3, Bias: true}, nil, backend)
	bn := NewBatchNorm2D(4, true, backend)

	params := append(Prefixed("enc1.conv", conv.Parameters()), Prefixed("enc1.norm", bn.Parameters())...)
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name()
	}
	assert.Equal(t, []string{
		"enc1.conv.weight", "enc1.conv.bias",
		"enc1.norm.weight", "enc1.norm.bias", "enc1.norm.running_mean", "enc1.norm.running_var",
	}, names)

	assert.Same(t, conv.Weight().Tensor(), params[0].Tensor())
	assert.True(t, params[4].IsBuffer())
	assert.Equal(t, 2*4*9+4+4+4, CountParameters(params))
	assert.Nil(t, Prefixed[backendT]("x", nil))
}
