// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package generator_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seggen/backend/cpu"
	"github.com/born-ml/seggen/generator"
	"github.com/born-ml/seggen/internal/nn"
)

func tinyConfig() generator.Config {
	cfg := generator.DefaultConfig()
	cfg.NGF = 2
	cfg.LabDim = 2
	cfg.StyleDim = 2
	cfg.SPADEHidden = 2
	cfg.Seed = 5
	return cfg
}

func TestSaveLoad_EmbeddedConfig(t *testing.T) {
	backend := cpu.New()
	gen, err := generator.New(tinyConfig(), backend)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "g3.safetensors")
	require.NoError(t, generator.Save(path, gen))

	loaded, err := generator.Load(path, nil, backend)
	require.NoError(t, err)
	assert.Equal(t, gen.Config(), loaded.Config())

	want := gen.StateDict()
	got := loaded.StateDict()
	require.Len(t, got, len(want))
	for name, w := range want {
		require.Contains(t, got, name)
		assert.Equal(t, w.AsFloat32(), got[name].AsFloat32(), name)
	}
}

func TestLoad_ConfigOverride(t *testing.T) {
	backend := cpu.New()
	gen, err := generator.New(tinyConfig(), backend)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "g3.safetensors")
	require.NoError(t, generator.Save(path, gen))

	// A different seed only changes initialization, which the file overwrites.
	override := tinyConfig()
	override.Seed = 99
	loaded, err := generator.Load(path, &override, backend)
	require.NoError(t, err)
	assert.Equal(t, int64(99), loaded.Config().Seed)

	wider := tinyConfig()
	wider.NGF = 4
	_, err = generator.Load(path, &wider, backend)
	assert.ErrorIs(t, err, nn.ErrShapeMismatch)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := generator.Load(filepath.Join(t.TempDir(), "missing.safetensors"), nil, cpu.New())
	assert.Error(t, err)
}
