package tensor

// Cat concatenates tensors along the specified dimension.
//
// All tensors must have the same shape except along the concatenation dimension.
// Supports negative dim indexing (-1 = last dimension).
//
// Example:
//
//	up := x.Upsample2x()                              // [N, 32, 8, 8]
//	h := tensor.Cat([]*Tensor[float32, B]{up, skip}, 1) // [N, 48, 8, 8]
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	if len(tensors) == 1 {
		return tensors[0].Clone()
	}

	rawTensors := make([]*RawTensor, len(tensors))
	backend := tensors[0].backend
	for i, t := range tensors {
		rawTensors[i] = t.raw
	}

	return New[T, B](backend.Cat(rawTensors, dim), backend)
}

// NormalizeDim resolves a possibly negative dimension index against ndim.
// Panics if the dimension is out of range.
func NormalizeDim(dim, ndim int) int {
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic("dimension out of range")
	}
	return dim
}
