package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seggen/internal/tensor"
)

func rawF32(t *testing.T, shape tensor.Shape, values ...float32) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(raw.AsFloat32(), values)
	return raw
}

// buildFile assembles a SafeTensors stream from a literal header.
func buildFile(t *testing.T, header map[string]any, data []byte) []byte {
	t.Helper()
	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(headerJSON))))
	buf.Write(headerJSON)
	buf.Write(data)
	return buf.Bytes()
}

func entry(dtype DType, shape []int, start, end int64) map[string]any {
	return map[string]any{"dtype": dtype, "shape": shape, "data_offsets": []int64{start, end}}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	f64, err := tensor.NewRaw(tensor.Shape{3}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	copy(f64.AsFloat64(), []float64{0.25, -8, 1e-9})

	tensors := map[string]*tensor.RawTensor{
		"enc1.conv_feature.weight": rawF32(t, tensor.Shape{2, 2}, 1, 2, 3, 4),
		"enc1.conv_feature.bias":   rawF32(t, tensor.Shape{2}, -1, 0.5),
		"style_codes":              f64,
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, tensors, map[string]string{"format": "pt"}))

	headerSize := binary.LittleEndian.Uint64(buf.Bytes()[:8])
	assert.Zero(t, headerSize%headerAlign, "data section must be 8-byte aligned")

	file, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, "pt", file.Metadata["format"])
	assert.Len(t, file.Metadata[ChecksumKey], 64)
	require.Len(t, file.Tensors, 3)

	w := file.Tensors["enc1.conv_feature.weight"]
	assert.Equal(t, tensor.Shape{2, 2}, w.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4}, w.AsFloat32())
	assert.Equal(t, []float32{-1, 0.5}, file.Tensors["enc1.conv_feature.bias"].AsFloat32())

	s := file.Tensors["style_codes"]
	assert.Equal(t, tensor.Float64, s.DType())
	assert.Equal(t, []float64{0.25, -8, 1e-9}, s.AsFloat64())
}

func TestEncode_SortedLayout(t *testing.T) {
	tensors := map[string]*tensor.RawTensor{
		"b": rawF32(t, tensor.Shape{1}, 2),
		"a": rawF32(t, tensor.Shape{2}, 1, 1),
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, tensors, nil))

	size := binary.LittleEndian.Uint64(buf.Bytes()[:8])
	var header Header
	require.NoError(t, json.Unmarshal(buf.Bytes()[8:8+size], &header))
	assert.Equal(t, [2]int64{0, 8}, header.Tensors["a"].DataOffsets)
	assert.Equal(t, [2]int64{8, 12}, header.Tensors["b"].DataOffsets)
}

func TestEncode_Errors(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, map[string]*tensor.RawTensor{"../evil": rawF32(t, tensor.Shape{1}, 0)}, nil)
	assert.ErrorIs(t, err, ErrInvalidTensorName)

	err = Encode(&buf, map[string]*tensor.RawTensor{"x": nil}, nil)
	assert.Error(t, err)
}

func TestDecode_HalfPrecisionAndIntegers(t *testing.T) {
	le := binary.LittleEndian
	var data []byte
	// F16: 1.0, -2.0, 0.5
	for _, bits := range []uint16{0x3C00, 0xC000, 0x3800} {
		data = le.AppendUint16(data, bits)
	}
	// BF16: 1.0, -2.5
	for _, bits := range []uint16{0x3F80, 0xC020} {
		data = le.AppendUint16(data, bits)
	}
	// I64: 7, -3
	data = le.AppendUint64(data, 7)
	minusThree := int64(-3)
	data = le.AppendUint64(data, uint64(minusThree))

	stream := buildFile(t, map[string]any{
		"half":  entry(F16, []int{3}, 0, 6),
		"brain": entry(BF16, []int{2}, 6, 10),
		"ids":   entry(I64, []int{2}, 10, 26),
	}, data)

	file, err := Decode(bytes.NewReader(stream))
	require.NoError(t, err)
	assert.Empty(t, file.Metadata)

	assert.Equal(t, []float32{1, -2, 0.5}, file.Tensors["half"].AsFloat32())
	assert.Equal(t, []float32{1, -2.5}, file.Tensors["brain"].AsFloat32())
	assert.Equal(t, []float64{7, -3}, file.Tensors["ids"].AsFloat64())
}

func TestDecode_Errors(t *testing.T) {
	fourBytes := make([]byte, 4)

	tests := []struct {
		name    string
		header  map[string]any
		data    []byte
		wantErr error
	}{
		{"out of bounds", map[string]any{"a": entry(F32, []int{1}, 4, 8)}, fourBytes, ErrOutOfBounds},
		{"negative offset", map[string]any{"a": entry(F32, []int{1}, -4, 0)}, fourBytes, ErrNegativeOffset},
		{"inverted offsets", map[string]any{"a": entry(F32, []int{1}, 4, 0)}, fourBytes, ErrNegativeOffset},
		{"size mismatch", map[string]any{"a": entry(F32, []int{1}, 0, 8)}, make([]byte, 8), ErrSizeMismatch},
		{"unsupported dtype", map[string]any{"a": entry("U8", []int{4}, 0, 4)}, fourBytes, ErrUnsupportedDType},
		{"negative dim", map[string]any{"a": entry(F32, []int{-1}, 0, 4)}, fourBytes, ErrInvalidHeader},
		{"element overflow", map[string]any{"a": entry(F32, []int{1 << 32, 1 << 32}, 0, 0)}, fourBytes, ErrInvalidHeader},
		{"too many elements", map[string]any{"a": entry(F32, []int{2, 3}, 0, 4)}, fourBytes, ErrInvalidHeader},
		{
			"overlap",
			map[string]any{"a": entry(F32, []int{1}, 0, 4), "b": entry(F32, []int{1}, 2, 6)},
			make([]byte, 8),
			ErrOffsetOverlap,
		},
		{
			"checksum",
			map[string]any{"a": entry(F32, []int{1}, 0, 4), MetadataKey: map[string]string{ChecksumKey: "00"}},
			fourBytes,
			ErrChecksumMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(buildFile(t, tt.header, tt.data)))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecode_ZeroDimensionIsAnError(t *testing.T) {
	stream := buildFile(t, map[string]any{"a": entry(F32, []int{0, 3}, 0, 0)}, nil)
	assert.NotPanics(t, func() {
		_, err := Decode(bytes.NewReader(stream))
		assert.Error(t, err)
	})
}

func TestDecode_MalformedStream(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, ErrInvalidHeader)

	huge := binary.LittleEndian.AppendUint64(nil, MaxHeaderSize+1)
	_, err = Decode(bytes.NewReader(huge))
	assert.ErrorIs(t, err, ErrHeaderTooLarge)

	truncated := binary.LittleEndian.AppendUint64(nil, 100)
	_, err = Decode(bytes.NewReader(append(truncated, '{')))
	assert.ErrorIs(t, err, ErrInvalidHeader)

	notJSON := binary.LittleEndian.AppendUint64(nil, 3)
	_, err = Decode(bytes.NewReader(append(notJSON, "abc"...)))
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestDecode_CorruptedData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, map[string]*tensor.RawTensor{"w": rawF32(t, tensor.Shape{2}, 1, 2)}, nil))

	stream := buf.Bytes()
	stream[len(stream)-1] ^= 0xFF
	_, err := Decode(bytes.NewReader(stream))
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestValidateTensorName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid", "dec3.spade.mlp_gamma.weight", nil},
		{"empty", "", ErrInvalidTensorName},
		{"reserved", MetadataKey, ErrInvalidTensorName},
		{"nul", "a\x00b", ErrInvalidTensorName},
		{"dotdot", "enc1/../x", ErrInvalidTensorName},
		{"absolute", "/etc/passwd", ErrInvalidTensorName},
		{"backslash", `a\b`, ErrInvalidTensorName},
		{"too long", strings.Repeat("x", MaxTensorNameLen+1), ErrTensorNameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorName(tt.input)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Kind: ErrOffsetOverlap, Tensor: "a", Tensor2: "b", Details: "x"}
	assert.Equal(t, `tensor offsets overlap: tensors "a" and "b": x`, err.Error())

	err = &ValidationError{Kind: ErrOutOfBounds, Tensor: "a", Details: "y"}
	assert.Equal(t, `tensor extends beyond data section: tensor "a": y`, err.Error())

	err = &ValidationError{Kind: ErrTooManyTensors, Details: "z"}
	assert.Equal(t, "too many tensors in file: z", err.Error())
}

func TestWriteReadSafeTensors_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g3.safetensors")
	tensors := map[string]*tensor.RawTensor{"dec1.conv.bias": rawF32(t, tensor.Shape{3}, 0.1, 0.2, 0.3)}
	require.NoError(t, WriteSafeTensors(path, tensors, map[string]string{"ngf": "32"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	file, err := ReadSafeTensors(path)
	require.NoError(t, err)
	assert.Equal(t, "32", file.Metadata["ngf"])
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, file.Tensors["dec1.conv.bias"].AsFloat32())

	_, err = ReadSafeTensors(filepath.Join(t.TempDir(), "missing.safetensors"))
	assert.Error(t, err)
}

func TestComputeChecksum(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ComputeChecksum(nil))
	assert.NoError(t, ValidateChecksum([]byte("abc"), ComputeChecksum([]byte("abc"))))
	assert.ErrorIs(t, ValidateChecksum([]byte("abc"), "beef"), ErrChecksumMismatch)
}
