// Package cpu implements the CPU backend: pure Go kernels with BLAS-backed
// convolution and batched matrix multiplication.
package cpu

import (
	"fmt"

	"github.com/born-ml/seggen/internal/parallel"
	"github.com/born-ml/seggen/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
//
// Kernels never write into their operands; every operation allocates its
// result, so intermediate feature maps can be shared between layers.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// Compile-time check that CPUBackend implements tensor.Backend.
var _ tensor.Backend = (*CPUBackend)(nil)

// New creates a new CPU backend using all available cores.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with explicit parallelism settings.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// newResult allocates a zeroed output tensor or panics with an op-prefixed message.
func (cpu *CPUBackend) newResult(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return result
}

func requireSameDType(op string, a, b *tensor.RawTensor) {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, a.DType(), b.DType()))
	}
}

func require4D(op, name string, x *tensor.RawTensor) {
	if len(x.Shape()) != 4 {
		panic(fmt.Sprintf("%s: %s must be 4D [N,C,H,W], got shape %v", op, name, x.Shape()))
	}
}

func unsupported(op string, dt tensor.DataType) string {
	return fmt.Sprintf("%s: unsupported dtype %s", op, dt)
}
