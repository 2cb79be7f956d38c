// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
//
// Convolutions are lowered to GEMM through im2col and run on gonum's BLAS.
// Large feature maps are processed in row bands that are spread over the
// available cores.
//
// The backend holds no mutable state and is safe for concurrent use.
package cpu

import (
	internalcpu "github.com/born-ml/seggen/internal/backend/cpu"
	"github.com/born-ml/seggen/tensor"
)

// Backend is the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	backend := cpu.New()
//	gen, err := generator.New(generator.DefaultConfig(), backend)
func New() *Backend {
	return internalcpu.New()
}
