package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

type tensorSpan struct {
	name        string
	start, end  int64
	wantByteLen int64
}

// ValidateHeader checks every tensor entry of h against a data section of
// dataSize bytes: names, dtypes, shapes, byte lengths, bounds and overlaps.
func ValidateHeader(h *Header, dataSize int64) error {
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Kind:    ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}

	spans := make([]tensorSpan, 0, len(h.Tensors))
	for name, info := range h.Tensors {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		size := info.DType.Size()
		if size == 0 {
			return &ValidationError{Kind: ErrUnsupportedDType, Tensor: name, Details: string(info.DType)}
		}
		elems, err := checkedElements(name, info.Shape, dataSize/int64(size))
		if err != nil {
			return err
		}
		spans = append(spans, tensorSpan{
			name:        name,
			start:       info.DataOffsets[0],
			end:         info.DataOffsets[1],
			wantByteLen: elems * int64(size),
		})
	}
	return validateSpans(spans, dataSize)
}

// checkedElements returns the element count of shape, rejecting negative
// dimensions and counts above limit before they can overflow.
func checkedElements(name string, shape []int, limit int64) (int64, error) {
	n := int64(1)
	for _, d := range shape {
		if d < 0 {
			return 0, &ValidationError{
				Kind:    ErrInvalidHeader,
				Tensor:  name,
				Details: fmt.Sprintf("negative dimension in shape %v", shape),
			}
		}
		if d != 0 && n > limit/int64(d) {
			return 0, &ValidationError{
				Kind:    ErrInvalidHeader,
				Tensor:  name,
				Details: fmt.Sprintf("shape %v exceeds the %d elements the data section can hold", shape, limit),
			}
		}
		n *= int64(d)
	}
	return n, nil
}

func validateSpans(spans []tensorSpan, dataSize int64) error {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].name < spans[j].name
	})

	for i, s := range spans {
		if s.start < 0 || s.end < s.start {
			return &ValidationError{
				Kind:    ErrNegativeOffset,
				Tensor:  s.name,
				Details: fmt.Sprintf("data_offsets [%d, %d]", s.start, s.end),
			}
		}
		if s.end > dataSize {
			return &ValidationError{
				Kind:    ErrOutOfBounds,
				Tensor:  s.name,
				Details: fmt.Sprintf("end %d > data_size %d", s.end, dataSize),
			}
		}
		if got := s.end - s.start; got != s.wantByteLen {
			return &ValidationError{
				Kind:    ErrSizeMismatch,
				Tensor:  s.name,
				Details: fmt.Sprintf("got %d bytes, want %d", got, s.wantByteLen),
			}
		}
		if i < len(spans)-1 {
			next := spans[i+1]
			if s.end > next.start {
				return &ValidationError{
					Kind:    ErrOffsetOverlap,
					Tensor:  s.name,
					Tensor2: next.name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap", s.start, s.end, next.start, next.end),
				}
			}
		}
	}
	return nil
}

// ValidateTensorName rejects empty, oversized and path-like names, and the
// reserved metadata key.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Kind: ErrInvalidTensorName, Details: "empty tensor name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Kind:    ErrTensorNameTooLong,
			Tensor:  name[:64] + "...",
			Details: fmt.Sprintf("length %d, max %d", len(name), MaxTensorNameLen),
		}
	}
	if name == MetadataKey {
		return &ValidationError{Kind: ErrInvalidTensorName, Tensor: name, Details: "reserved key"}
	}
	if strings.ContainsRune(name, 0) {
		return &ValidationError{Kind: ErrInvalidTensorName, Tensor: name, Details: "contains NUL byte"}
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, "/") || strings.Contains(name, "\\") {
		return &ValidationError{Kind: ErrInvalidTensorName, Tensor: name, Details: "path-like name"}
	}
	return nil
}
