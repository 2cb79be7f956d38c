package tensor

// Add performs element-wise addition with broadcasting.
//
// Example:
//
//	a := tensor.Ones[float32](Shape{1, 8, 1, 1}, backend)
//	b := tensor.Ones[float32](Shape{2, 8, 16, 16}, backend)
//	c := b.Add(a) // Shape: [2, 8, 16, 16] (broadcasted)
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Add(t.raw, other.raw), t.backend)
}

// Sub performs element-wise subtraction with broadcasting.
func (t *Tensor[T, B]) Sub(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Sub(t.raw, other.raw), t.backend)
}

// Mul performs element-wise multiplication with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Mul(t.raw, other.raw), t.backend)
}

// Div performs element-wise division with broadcasting.
func (t *Tensor[T, B]) Div(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Div(t.raw, other.raw), t.backend)
}

// AddScalar adds a scalar value to each element of the tensor.
func (t *Tensor[T, B]) AddScalar(scalar T) *Tensor[T, B] {
	return New[T, B](t.backend.AddScalar(t.raw, float64(scalar)), t.backend)
}

// MulScalar multiplies each element of the tensor by a scalar value.
func (t *Tensor[T, B]) MulScalar(scalar T) *Tensor[T, B] {
	return New[T, B](t.backend.MulScalar(t.raw, float64(scalar)), t.backend)
}

// Rsqrt computes 1/sqrt(x) element-wise.
func (t *Tensor[T, B]) Rsqrt() *Tensor[T, B] {
	return New[T, B](t.backend.Rsqrt(t.raw), t.backend)
}

// ReLU applies max(0, x) element-wise.
func (t *Tensor[T, B]) ReLU() *Tensor[T, B] {
	return New[T, B](t.backend.ReLU(t.raw), t.backend)
}

// LeakyReLU applies x for x >= 0 and slope*x otherwise.
func (t *Tensor[T, B]) LeakyReLU(slope float64) *Tensor[T, B] {
	return New[T, B](t.backend.LeakyReLU(t.raw, slope), t.backend)
}

// Sigmoid applies 1 / (1 + exp(-x)) element-wise.
func (t *Tensor[T, B]) Sigmoid() *Tensor[T, B] {
	return New[T, B](t.backend.Sigmoid(t.raw), t.backend)
}

// Tanh applies the hyperbolic tangent element-wise.
func (t *Tensor[T, B]) Tanh() *Tensor[T, B] {
	return New[T, B](t.backend.Tanh(t.raw), t.backend)
}

// Conv2D convolves t ([N, C_in, H, W]) with kernel ([C_out, C_in, K_h, K_w]).
//
// Output spatial size:
//
//	out = (in + 2*padding - dilation*(k-1) - 1) / stride + 1
func (t *Tensor[T, B]) Conv2D(kernel *Tensor[T, B], stride, padding, dilation int) *Tensor[T, B] {
	return New[T, B](t.backend.Conv2D(t.raw, kernel.raw, stride, padding, dilation), t.backend)
}

// Pad2D pads the spatial dimensions of a [N, C, H, W] tensor.
func (t *Tensor[T, B]) Pad2D(pad int, mode PadMode) *Tensor[T, B] {
	if pad == 0 {
		return t
	}
	return New[T, B](t.backend.Pad2D(t.raw, pad, mode), t.backend)
}

// Interpolate resizes the spatial dimensions with nearest-neighbor sampling.
func (t *Tensor[T, B]) Interpolate(height, width int) *Tensor[T, B] {
	_, _, h, w := t.Shape().NCHW()
	if h == height && w == width {
		return t
	}
	return New[T, B](t.backend.Interpolate(t.raw, height, width), t.backend)
}

// Upsample2x doubles both spatial dimensions with nearest-neighbor sampling.
func (t *Tensor[T, B]) Upsample2x() *Tensor[T, B] {
	_, _, h, w := t.Shape().NCHW()
	return t.Interpolate(2*h, 2*w)
}

// ChannelMoments returns the per-channel mean and biased variance over the
// spatial dimensions (and over the batch unless perSample).
func (t *Tensor[T, B]) ChannelMoments(perSample bool) (mean, variance *Tensor[T, B]) {
	m, v := t.backend.ChannelMoments(t.raw, perSample)
	return New[T, B](m, t.backend), New[T, B](v, t.backend)
}

// Reshape returns a tensor with the same data but different shape.
// The new shape must have the same number of elements.
//
// Example:
//
//	t := tensor.Zeros[float32](Shape{2, 8, 4, 4}, backend)
//	flat := t.Reshape(2, 8, 16)
func (t *Tensor[T, B]) Reshape(newShape ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Reshape(t.raw, Shape(newShape)), t.backend)
}

// Transpose permutes the tensor's dimensions.
//
// If axes is empty, reverses all dimensions.
func (t *Tensor[T, B]) Transpose(axes ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Transpose(t.raw, axes...), t.backend)
}

// BatchMatMul performs [B, M, K] @ [B, K, N] -> [B, M, N].
func (t *Tensor[T, B]) BatchMatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.BatchMatMul(t.raw, other.raw), t.backend)
}
