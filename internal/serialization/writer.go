package serialization

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/born-ml/seggen/internal/tensor"
)

// headerAlign pads the JSON header with spaces so the data section starts on
// an 8-byte boundary.
const headerAlign = 8

// Encode writes tensors and metadata to w in SafeTensors format. Tensors are
// laid out in name order; metadata is copied and the data checksum added.
func Encode(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := slices.Sorted(maps.Keys(tensors))

	header := Header{
		Metadata: make(map[string]string, len(metadata)+1),
		Tensors:  make(map[string]TensorInfo, len(names)),
	}
	maps.Copy(header.Metadata, metadata)

	var data bytes.Buffer
	for _, name := range names {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		raw := tensors[name]
		if raw == nil {
			return fmt.Errorf("tensor %q is nil", name)
		}
		dtype, err := dtypeOf(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}
		start := int64(data.Len())
		data.Write(raw.Data())
		header.Tensors[name] = TensorInfo{
			DType:       dtype,
			Shape:       slices.Clone([]int(raw.Shape())),
			DataOffsets: [2]int64{start, int64(data.Len())},
		}
	}
	header.Metadata[ChecksumKey] = ComputeChecksum(data.Bytes())

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	if pad := len(headerJSON) % headerAlign; pad != 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte{' '}, headerAlign-pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return fmt.Errorf("write tensor data: %w", err)
	}
	return nil
}

// WriteSafeTensors writes tensors and metadata to path.
func WriteSafeTensors(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) (err error) {
	file, err := os.Create(path) //nolint:gosec // G304: path is provided by the caller
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	bw := bufio.NewWriter(file)
	if err := Encode(bw, tensors, metadata); err != nil {
		return err
	}
	return bw.Flush()
}
