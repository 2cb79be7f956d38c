package serialization

import (
	"encoding/json"
	"fmt"

	"github.com/born-ml/seggen/internal/tensor"
)

// MetadataKey is the reserved header entry holding string metadata.
const MetadataKey = "__metadata__"

// DType is a SafeTensors element type name.
type DType string

// SafeTensors dtypes understood by the reader.
const (
	F16  DType = "F16"
	BF16 DType = "BF16"
	F32  DType = "F32"
	F64  DType = "F64"
	I32  DType = "I32"
	I64  DType = "I64"
)

// Size returns the element size in bytes, or 0 for an unknown dtype.
func (d DType) Size() int {
	switch d {
	case F16, BF16:
		return 2
	case F32, I32:
		return 4
	case F64, I64:
		return 8
	default:
		return 0
	}
}

// TensorInfo describes a tensor in the header.
type TensorInfo struct {
	DType       DType    `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"` // [start, end) relative to the data section
}

// Header is the decoded JSON header.
type Header struct {
	Metadata map[string]string
	Tensors  map[string]TensorInfo
}

// UnmarshalJSON splits the flat header object into metadata and tensors.
func (h *Header) UnmarshalJSON(data []byte) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawMap); err != nil {
		return err
	}

	h.Tensors = make(map[string]TensorInfo, len(rawMap))
	for key, value := range rawMap {
		if key == MetadataKey {
			if err := json.Unmarshal(value, &h.Metadata); err != nil {
				return fmt.Errorf("metadata: %w", err)
			}
			continue
		}
		var info TensorInfo
		if err := json.Unmarshal(value, &info); err != nil {
			return fmt.Errorf("tensor %q: %w", key, err)
		}
		h.Tensors[key] = info
	}
	return nil
}

// MarshalJSON writes the flat header object.
func (h Header) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(h.Tensors)+1)
	if len(h.Metadata) > 0 {
		out[MetadataKey] = h.Metadata
	}
	for name, info := range h.Tensors {
		out[name] = info
	}
	return json.Marshal(out)
}

// File is a decoded SafeTensors file.
type File struct {
	Metadata map[string]string
	Tensors  map[string]*tensor.RawTensor
}

func dtypeOf(dt tensor.DataType) (DType, error) {
	switch dt {
	case tensor.Float32:
		return F32, nil
	case tensor.Float64:
		return F64, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDType, dt)
	}
}
