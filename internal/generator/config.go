package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/seggen/internal/nn"
	"github.com/born-ml/seggen/internal/tensor"
)

// Config holds the generator hyperparameters. Keys match the training
// configuration files, so an existing cfg can be loaded as is; unknown keys
// are ignored.
type Config struct {
	InputNC  int    `yaml:"input_nc" json:"input_nc"`
	NGF      int    `yaml:"ngf" json:"ngf"`
	OutputNC int    `yaml:"output_nc" json:"output_nc"`
	LabDim   int    `yaml:"lab_dim" json:"lab_dim"`
	NormType string `yaml:"G_norm_type" json:"G_norm_type"`

	StyleDim      int    `yaml:"style_dim" json:"style_dim"`
	SPADEHidden   int    `yaml:"spade_hidden" json:"spade_hidden"`
	SPADEKernel   int    `yaml:"spade_kernel" json:"spade_kernel"`
	SPADENormType string `yaml:"spade_norm_type" json:"spade_norm_type"`

	PadType  string `yaml:"pad_type" json:"pad_type"`
	InitType string `yaml:"init_type" json:"init_type"`
	Seed     int64  `yaml:"seed" json:"seed"`
}

// DefaultConfig returns the configuration used when a key is absent.
func DefaultConfig() Config {
	return Config{
		InputNC:       3,
		NGF:           32,
		OutputNC:      3,
		LabDim:        19,
		NormType:      nn.NormInstance,
		StyleDim:      64,
		SPADEHidden:   128,
		SPADEKernel:   3,
		SPADENormType: nn.NormInstance,
		PadType:       "zero",
		InitType:      "xavier",
		Seed:          0,
	}
}

// LabNC returns the number of conditioning channels: labels plus the mask.
func (c Config) LabNC() int {
	return c.LabDim + 1
}

// Validate checks the configuration.
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"input_nc", c.InputNC},
		{"ngf", c.NGF},
		{"output_nc", c.OutputNC},
		{"lab_dim", c.LabDim},
		{"spade_hidden", c.SPADEHidden},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %d", ErrInvalidConfig, p.name, p.value)
		}
	}
	if c.StyleDim < 0 {
		return fmt.Errorf("%w: style_dim must be >= 0, got %d", ErrInvalidConfig, c.StyleDim)
	}
	if c.SPADEKernel <= 0 || c.SPADEKernel%2 == 0 {
		return fmt.Errorf("%w: spade_kernel must be odd and positive, got %d", ErrInvalidConfig, c.SPADEKernel)
	}
	if _, err := nn.ParseNorm(c.NormType); err != nil {
		return fmt.Errorf("%w: G_norm_type: %w", ErrInvalidConfig, err)
	}
	if kind, err := nn.ParseNorm(c.SPADENormType); err != nil || kind == nn.NormNone {
		return fmt.Errorf("%w: spade_norm_type must be instance or batch, got %q", ErrInvalidConfig, c.SPADENormType)
	}
	if _, err := tensor.ParsePadMode(c.PadType); err != nil {
		return fmt.Errorf("%w: pad_type: %w", ErrInvalidConfig, err)
	}
	if _, err := nn.ParseInitKind(c.InitType); err != nil {
		return fmt.Errorf("%w: init_type: %w", ErrInvalidConfig, err)
	}
	return nil
}

// LoadConfig reads a YAML configuration file (".json" files are parsed as
// JSON). Keys missing from the file keep their DefaultConfig value.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data, strings.EqualFold(filepath.Ext(path), ".json"))
}

// ParseConfig decodes a YAML (or JSON) configuration over DefaultConfig and
// validates it.
func ParseConfig(data []byte, isJSON bool) (Config, error) {
	cfg := DefaultConfig()
	if isJSON {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// String renders the configuration as YAML.
func (c Config) String() string {
	out, err := yaml.Marshal(c)
	if err != nil {
		return c.plainString()
	}
	return string(out)
}

// plainString formats the fields without going through String.
func (c Config) plainString() string {
	type plain Config
	return fmt.Sprintf("%+v", plain(c))
}
