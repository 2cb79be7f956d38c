package nn

import (
	"github.com/born-ml/seggen/internal/tensor"
)

// Parameter is a named tensor owned by a module.
//
// Parameters are weights and biases, or persistent buffers such as batch
// norm running statistics. Buffers are saved in state dicts but are not
// counted as learnable parameters.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
type Parameter[B tensor.Backend] struct {
	name   string                     // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor[float32, B] // The parameter tensor
	buffer bool                       // Persistent buffer, not a learnable weight
}

// NewParameter creates a new parameter.
//
// The tensor should be initialized before creating the Parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// NewBuffer creates a persistent buffer (e.g. "running_mean").
func NewBuffer[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
		buffer: true,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// IsBuffer reports whether p is a persistent buffer rather than a weight.
func (p *Parameter[B]) IsBuffer() bool {
	return p.buffer
}

// Prefixed returns views of params whose names are prefixed with
// "prefix.". The views share tensors with the originals, so loading
// weights through a view updates the owning module.
//
// Example:
//
//	nn.Prefixed("enc1", conv.Parameters()) // enc1.weight, enc1.bias
func Prefixed[B tensor.Backend](prefix string, params []*Parameter[B]) []*Parameter[B] {
	if len(params) == 0 {
		return nil
	}
	out := make([]*Parameter[B], len(params))
	for i, p := range params {
		out[i] = &Parameter[B]{
			name:   prefix + "." + p.name,
			tensor: p.tensor,
			buffer: p.buffer,
		}
	}
	return out
}

// CountParameters returns the number of learnable scalar weights in params.
// Buffers are excluded.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	n := 0
	for _, p := range params {
		if !p.buffer {
			n += p.tensor.NumElements()
		}
	}
	return n
}
