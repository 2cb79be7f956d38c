// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package generator provides the segmentation-guided inpainting generator.
//
// The generator is a gated encoder/decoder. Nine encoder stages downsample the
// masked image by 128 while conditioning every convolution on the label map
// and mask. Seven upsampling decoder stages concatenate the matching
// encoder features and modulate their normalization with SPADE, blending
// label-derived and per-class style-derived parameters. A final convolution
// maps to RGB in [-1, 1].
//
// Example:
//
//	backend := cpu.New()
//	gen, err := generator.Load("g3.safetensors", nil, backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := gen.Generate(masked, segmap, mask, styleCodes)
package generator

import (
	"fmt"

	internalgen "github.com/born-ml/seggen/internal/generator"
	"github.com/born-ml/seggen/internal/serialization"
	"github.com/born-ml/seggen/tensor"
)

// ConfigMetadataKey is the safetensors metadata entry holding the YAML config
// a weight file was written with.
const ConfigMetadataKey = "seggen.config"

// SizeMultiple is the factor input heights and widths must be a multiple of.
const SizeMultiple = internalgen.SizeMultiple

// Generator is the G3 network.
type Generator[B tensor.Backend] = internalgen.Generator[B]

// Config holds the generator hyperparameters.
type Config = internalgen.Config

// StageInfo describes the output of one stage, as returned by Summary.
type StageInfo = internalgen.StageInfo

// Errors returned by the generator.
var (
	ErrInvalidConfig = internalgen.ErrInvalidConfig
	ErrInvalidInput  = internalgen.ErrInvalidInput
	ErrSpatialSize   = internalgen.ErrSpatialSize
	ErrForward       = internalgen.ErrForward
)

// DefaultConfig returns the configuration used when a key is absent.
func DefaultConfig() Config {
	return internalgen.DefaultConfig()
}

// LoadConfig reads a YAML (or ".json") configuration file.
func LoadConfig(path string) (Config, error) {
	return internalgen.LoadConfig(path)
}

// ParseConfig decodes a YAML (or JSON) configuration over DefaultConfig.
func ParseConfig(data []byte, isJSON bool) (Config, error) {
	return internalgen.ParseConfig(data, isJSON)
}

// New builds a generator with weights initialized from cfg.Seed.
func New[B tensor.Backend](cfg Config, backend B) (*Generator[B], error) {
	return internalgen.New(cfg, backend)
}

// Save writes the generator's weights and configuration to a safetensors file.
func Save[B tensor.Backend](path string, gen *Generator[B]) error {
	metadata := map[string]string{ConfigMetadataKey: gen.Config().String()}
	return serialization.WriteSafeTensors(path, gen.StateDict(), metadata)
}

// Load builds a generator from a safetensors weight file. The configuration is
// cfg if non-nil, otherwise the one stored in the file, otherwise
// DefaultConfig.
func Load[B tensor.Backend](path string, cfg *Config, backend B) (*Generator[B], error) {
	file, err := serialization.ReadSafeTensors(path)
	if err != nil {
		return nil, err
	}

	resolved := DefaultConfig()
	switch embedded, ok := file.Metadata[ConfigMetadataKey]; {
	case cfg != nil:
		resolved = *cfg
	case ok:
		if resolved, err = ParseConfig([]byte(embedded), false); err != nil {
			return nil, fmt.Errorf("%s: embedded config: %w", path, err)
		}
	}

	gen, err := New(resolved, backend)
	if err != nil {
		return nil, err
	}
	if err := gen.LoadStateDict(file.Tensors); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return gen, nil
}
