package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/x448/float16"

	"github.com/born-ml/seggen/internal/tensor"
)

// Decode reads a SafeTensors stream. The header is fully validated before any
// tensor is materialized.
func Decode(r io.Reader) (*File, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("%w: read header size: %w", ErrInvalidHeader, err)
	}
	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrHeaderTooLarge, headerSize, MaxHeaderSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("%w: read header: %w", ErrInvalidHeader, err)
	}
	var header Header
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read tensor data: %w", err)
	}
	if err := ValidateHeader(&header, int64(len(data))); err != nil {
		return nil, err
	}
	if sum, ok := header.Metadata[ChecksumKey]; ok {
		if err := ValidateChecksum(data, sum); err != nil {
			return nil, err
		}
	}

	file := &File{
		Metadata: header.Metadata,
		Tensors:  make(map[string]*tensor.RawTensor, len(header.Tensors)),
	}
	var errs []error
	for name, info := range header.Tensors {
		raw, err := decodeTensor(info, data[info.DataOffsets[0]:info.DataOffsets[1]])
		if err != nil {
			errs = append(errs, fmt.Errorf("tensor %q: %w", name, err))
			continue
		}
		file.Tensors[name] = raw
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return file, nil
}

// ReadSafeTensors reads the SafeTensors file at path.
func ReadSafeTensors(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is provided by the caller
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	file, err := Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// decodeTensor converts little-endian element bytes into a float tensor.
// Half precision widens to float32 and integers convert to float64.
func decodeTensor(info TensorInfo, src []byte) (*tensor.RawTensor, error) {
	shape := tensor.Shape(info.Shape)
	le := binary.LittleEndian

	switch info.DType {
	case F32, F16, BF16:
		raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
		if err != nil {
			return nil, err
		}
		dst := raw.AsFloat32()
		switch info.DType {
		case F32:
			for i := range dst {
				dst[i] = math.Float32frombits(le.Uint32(src[4*i:]))
			}
		case F16:
			for i := range dst {
				dst[i] = float16.Frombits(le.Uint16(src[2*i:])).Float32()
			}
		case BF16:
			for i := range dst {
				dst[i] = math.Float32frombits(uint32(le.Uint16(src[2*i:])) << 16)
			}
		}
		return raw, nil

	case F64, I32, I64:
		raw, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
		if err != nil {
			return nil, err
		}
		dst := raw.AsFloat64()
		switch info.DType {
		case F64:
			for i := range dst {
				dst[i] = math.Float64frombits(le.Uint64(src[8*i:]))
			}
		case I32:
			for i := range dst {
				dst[i] = float64(int32(le.Uint32(src[4*i:]))) //nolint:gosec // G115: reinterpreting two's complement bits
			}
		case I64:
			for i := range dst {
				dst[i] = float64(int64(le.Uint64(src[8*i:]))) //nolint:gosec // G115: reinterpreting two's complement bits
			}
		}
		return raw, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDType, info.DType)
	}
}
