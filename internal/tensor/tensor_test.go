package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seggen/internal/backend/cpu"
	"github.com/born-ml/seggen/internal/tensor"
)

func TestFromSlice(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())
	assert.Equal(t, tensor.Float32, x.DType())
	assert.Equal(t, float32(6), x.At(1, 2))

	x.Set(42, 0, 1)
	assert.Equal(t, float32(42), x.Data()[1])

	_, err = tensor.FromSlice([]float32{1, 2}, tensor.Shape{3}, backend)
	assert.Error(t, err)
}

func TestValues(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 2}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)

	v := tensor.Values[float64](raw)
	require.Len(t, v, 4)
	v[3] = 2.5
	assert.Equal(t, 2.5, raw.AsFloat64()[3], "view shares the buffer")

	assert.PanicsWithValue(t, "tensor dtype is float64, not float32", func() {
		tensor.Values[float32](raw)
	})
}

func TestAt_OutOfBoundsPanics(t *testing.T) {
	x := tensor.Zeros[float32](tensor.Shape{2, 2}, cpu.New())
	assert.Panics(t, func() { x.At(2, 0) })
	assert.Panics(t, func() { x.At(0) })
}

func TestCreation(t *testing.T) {
	backend := cpu.New()

	assert.Equal(t, []float64{0, 0, 0}, tensor.Zeros[float64](tensor.Shape{3}, backend).Data())
	assert.Equal(t, []float32{1, 1}, tensor.Ones[float32](tensor.Shape{2}, backend).Data())
	assert.Equal(t, []float32{2.5, 2.5}, tensor.Full[float32](tensor.Shape{2}, 2.5, backend).Data())

	u := tensor.Uniform[float32](tensor.Shape{1000}, -0.5, 0.5, rand.New(rand.NewSource(1)), backend)
	for _, v := range u.Data() {
		assert.GreaterOrEqual(t, v, float32(-0.5))
		assert.Less(t, v, float32(0.5))
	}
}

func TestRandn_SeededIsReproducible(t *testing.T) {
	backend := cpu.New()
	a := tensor.Randn[float32](tensor.Shape{64}, rand.New(rand.NewSource(3)), backend)
	b := tensor.Randn[float32](tensor.Shape{64}, rand.New(rand.NewSource(3)), backend)
	c := tensor.Randn[float32](tensor.Shape{64}, rand.New(rand.NewSource(4)), backend)

	assert.Equal(t, a.Data(), b.Data())
	assert.NotEqual(t, a.Data(), c.Data())
}

func TestClone_IsDeep(t *testing.T) {
	x := tensor.Ones[float32](tensor.Shape{2}, cpu.New())
	y := x.Clone()
	y.Data()[0] = 7
	assert.Equal(t, float32(1), x.Data()[0])
}

func TestOps_DoNotMutateOperands(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{-1, 2}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	_ = x.AddScalar(3)
	_ = x.MulScalar(2)
	_ = x.ReLU()
	_ = x.Add(x)

	assert.Equal(t, []float32{-1, 2}, x.Data())
}

func TestPad2D_ZeroIsIdentity(t *testing.T) {
	x := tensor.Ones[float32](tensor.Shape{1, 1, 2, 2}, cpu.New())
	assert.Same(t, x, x.Pad2D(0, tensor.PadReflect))
}

func TestUpsample2x(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2}, backend)
	require.NoError(t, err)

	up := x.Upsample2x()
	assert.Equal(t, tensor.Shape{1, 1, 4, 4}, up.Shape())
	assert.Equal(t, float32(4), up.At(0, 0, 3, 3))
	assert.Equal(t, float32(2), up.At(0, 0, 1, 2))

	assert.Same(t, x, x.Interpolate(2, 2))
}

func TestCat(t *testing.T) {
	backend := cpu.New()
	a := tensor.Ones[float32](tensor.Shape{1, 2, 2, 2}, backend)
	b := tensor.Zeros[float32](tensor.Shape{1, 3, 2, 2}, backend)

	out := tensor.Cat([]*tensor.Tensor[float32, *cpu.CPUBackend]{a, b}, 1)
	assert.Equal(t, tensor.Shape{1, 5, 2, 2}, out.Shape())
	assert.Equal(t, float32(1), out.At(0, 1, 1, 1))
	assert.Equal(t, float32(0), out.At(0, 2, 0, 0))

	single := tensor.Cat([]*tensor.Tensor[float32, *cpu.CPUBackend]{a}, 0)
	assert.NotSame(t, a, single)
	assert.Equal(t, a.Data(), single.Data())
}

func TestNormalizeDim(t *testing.T) {
	assert.Equal(t, 3, tensor.NormalizeDim(-1, 4))
	assert.Equal(t, 0, tensor.NormalizeDim(0, 4))
	assert.Panics(t, func() { tensor.NormalizeDim(4, 4) })
	assert.Panics(t, func() { tensor.NormalizeDim(-5, 4) })
}

func TestReshapeSharesData(t *testing.T) {
	backend := cpu.New()
	x := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
	y := x.Reshape(3, 2)
	assert.Equal(t, tensor.Shape{3, 2}, y.Shape())
	assert.Equal(t, x.Data(), y.Data())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      tensor.Shape
		want      tensor.Shape
		broadcast bool
		wantErr   bool
	}{
		{"equal", tensor.Shape{3, 5}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, false, false},
		{"column", tensor.Shape{3, 1}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, true, false},
		{"rank", tensor.Shape{5}, tensor.Shape{2, 3, 5}, tensor.Shape{2, 3, 5}, true, false},
		{"channel", tensor.Shape{1, 8, 1, 1}, tensor.Shape{2, 8, 4, 4}, tensor.Shape{2, 8, 4, 4}, true, false},
		{"incompatible", tensor.Shape{3, 4}, tensor.Shape{3, 5}, nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := tensor.BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.broadcast, broadcast)
		})
	}
}

func TestShapeHelpers(t *testing.T) {
	s := tensor.Shape{2, 3, 4, 5}
	assert.Equal(t, 120, s.NumElements())
	assert.Equal(t, []int{60, 20, 5, 1}, s.ComputeStrides())
	assert.True(t, s.Equal(s.Clone()))

	n, c, h, w := s.NCHW()
	assert.Equal(t, []int{2, 3, 4, 5}, []int{n, c, h, w})

	assert.Error(t, tensor.Shape{2, 0}.Validate())
	assert.Panics(t, func() { tensor.Shape{2, 3}.NCHW() })
	assert.Equal(t, []int{0, 1}, tensor.BroadcastStrides(tensor.Shape{1, 3}, tensor.Shape{2, 3}))
}

func TestParsePadMode(t *testing.T) {
	tests := []struct {
		in      string
		want    tensor.PadMode
		wantErr bool
	}{
		{"", tensor.PadZero, false},
		{"zero", tensor.PadZero, false},
		{"reflect", tensor.PadReflect, false},
		{"replicate", tensor.PadReplicate, false},
		{"circular", tensor.PadZero, true},
	}
	for _, tt := range tests {
		got, err := tensor.ParsePadMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.want, mustParse(t, got.String()))
	}
}

func mustParse(t *testing.T, name string) tensor.PadMode {
	t.Helper()
	m, err := tensor.ParsePadMode(name)
	require.NoError(t, err)
	return m
}
