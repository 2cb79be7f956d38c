package cpu

import (
	"fmt"

	"github.com/born-ml/seggen/internal/tensor"
)

// Reshape returns a tensor with the same data but a different shape.
// The result shares t's buffer; no kernel ever mutates its inputs, so the
// view is safe to hand out.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result, err := t.WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

// Transpose permutes the tensor's dimensions. With no axes it reverses them.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: axes length %d != ndim %d", len(axes), ndim))
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			panic(fmt.Sprintf("transpose: invalid axis %d for %dD tensor", ax, ndim))
		}
		if seen[ax] {
			panic(fmt.Sprintf("transpose: duplicate axis %d", ax))
		}
		seen[ax] = true
	}

	newShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		newShape[i] = shape[ax]
	}
	result := cpu.newResult("transpose", newShape, t.DType())

	// Walk the output in order; srcStrides[i] is the input stride of output axis i.
	inStrides := t.Strides()
	srcStrides := make([]int, ndim)
	for i, ax := range axes {
		srcStrides[i] = inStrides[ax]
	}

	elem := t.DType().Size()
	src, dst := t.Data(), result.Data()
	idx := make([]int, ndim)
	off := 0
	for i := 0; i < result.NumElements(); i++ {
		copy(dst[i*elem:(i+1)*elem], src[off*elem:(off+1)*elem])
		for d := ndim - 1; d >= 0; d-- {
			idx[d]++
			off += srcStrides[d]
			if idx[d] < newShape[d] {
				break
			}
			off -= srcStrides[d] * newShape[d]
			idx[d] = 0
		}
	}
	return result
}

// Cat concatenates tensors along dim. All other dimensions must match.
// Supports negative dim indexing.
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	first := tensors[0].Shape()
	ndim := len(first)
	if dim < -ndim || dim >= ndim {
		panic(fmt.Sprintf("cat: dimension %d out of range for %dD tensors", dim, ndim))
	}
	dim = tensor.NormalizeDim(dim, ndim)

	outShape := first.Clone()
	outShape[dim] = 0
	for i, t := range tensors {
		requireSameDType("cat", tensors[0], t)
		s := t.Shape()
		if len(s) != ndim {
			panic(fmt.Sprintf("cat: tensor %d has %d dims, expected %d", i, len(s), ndim))
		}
		for d := range s {
			if d != dim && s[d] != first[d] {
				panic(fmt.Sprintf("cat: shape mismatch at tensor %d: %v vs %v (dimension %d)", i, s, first, d))
			}
		}
		outShape[dim] += s[dim]
	}

	result := cpu.newResult("cat", outShape, tensors[0].DType())

	// Treat every tensor as [outer, dim*inner] byte rows and interleave them.
	elem := tensors[0].DType().Size()
	outer := first[:dim].NumElements()
	inner := first[dim+1:].NumElements() * elem
	dst := result.Data()
	rowOut := outShape[dim] * inner

	offset := 0
	for _, t := range tensors {
		rowIn := t.Shape()[dim] * inner
		src := t.Data()
		for o := 0; o < outer; o++ {
			copy(dst[o*rowOut+offset:o*rowOut+offset+rowIn], src[o*rowIn:(o+1)*rowIn])
		}
		offset += rowIn
	}
	return result
}
