package generator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, cfg.LabDim+1, cfg.LabNC())
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g3.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input_nc: 4
ngf: 16
lab_dim: 8
G_norm_type: bn
pad_type: reflect
seed: 99
lr: 0.0002  # training keys are ignored
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	want := DefaultConfig()
	want.InputNC = 4
	want.NGF = 16
	want.LabDim = 8
	want.NormType = "bn"
	want.PadType = "reflect"
	want.Seed = 99
	assert.Equal(t, want, cfg)
}

func TestLoadConfig_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g3.JSON")
	require.NoError(t, os.WriteFile(path, []byte(`{"ngf": 8, "style_dim": 0, "output_nc": 1}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.NGF)
	assert.Equal(t, 0, cfg.StyleDim)
	assert.Equal(t, 1, cfg.OutputNC)
	assert.Equal(t, DefaultConfig().LabDim, cfg.LabDim)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ParseConfig([]byte("ngf: [1, 2"), false)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = ParseConfig([]byte("{"), true)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"input_nc", func(c *Config) { c.InputNC = 0 }},
		{"ngf", func(c *Config) { c.NGF = -1 }},
		{"output_nc", func(c *Config) { c.OutputNC = 0 }},
		{"lab_dim", func(c *Config) { c.LabDim = 0 }},
		{"style_dim", func(c *Config) { c.StyleDim = -2 }},
		{"spade_hidden", func(c *Config) { c.SPADEHidden = 0 }},
		{"spade_kernel even", func(c *Config) { c.SPADEKernel = 4 }},
		{"norm", func(c *Config) { c.NormType = "group" }},
		{"spade norm none", func(c *Config) { c.SPADENormType = "none" }},
		{"pad", func(c *Config) { c.PadType = "circular" }},
		{"init", func(c *Config) { c.InitType = "orthogonal" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_String(t *testing.T) {
	s := DefaultConfig().String()
	assert.Contains(t, s, "G_norm_type: instance")
	assert.Contains(t, s, "lab_dim: 19")

	cfg, err := ParseConfig([]byte(s), false)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfig_PlainString(t *testing.T) {
	s := DefaultConfig().plainString()
	assert.Contains(t, s, "NGF:32")
	assert.Contains(t, s, "LabDim:19")
}
