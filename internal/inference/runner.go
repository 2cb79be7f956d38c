// Package inference runs the generator over image files.
//
// Each Sample names an input image, its label map and hole mask, an optional
// style code file and the output path. The image's masked region is blanked,
// the generator fills it in, and the generated pixels are composited back over
// the original before the result is written as PNG.
package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/born-ml/seggen/internal/generator"
	"github.com/born-ml/seggen/internal/imageio"
	"github.com/born-ml/seggen/internal/serialization"
	"github.com/born-ml/seggen/internal/tensor"
)

// StyleCodesKey is the tensor name read from style code files.
const StyleCodesKey = "style_codes"

// Common errors.
var (
	ErrChannels   = errors.New("generator must map 3-channel images to 3-channel images")
	ErrStyleCodes = errors.New("invalid style codes")
)

// Sample is one unit of work.
type Sample struct {
	Image  string // RGB input image
	Labels string // label map, pixel value = class id
	Mask   string // hole mask, white = synthesize
	Style  string // optional safetensors file with a "style_codes" tensor
	Output string // PNG output path
}

// Runner processes samples with a shared generator.
type Runner[B tensor.Backend] struct {
	gen *generator.Generator[B]

	// Concurrency bounds the number of samples in flight (default 1).
	Concurrency int
	// Width and Height resize every input; 0 keeps each image's native size.
	Width, Height int
	// Done, if set, is called after each sample is written.
	Done func(s Sample, elapsed time.Duration)
}

// NewRunner returns a Runner for gen.
func NewRunner[B tensor.Backend](gen *generator.Generator[B]) (*Runner[B], error) {
	cfg := gen.Config()
	if cfg.InputNC != 3 || cfg.OutputNC != 3 {
		return nil, fmt.Errorf("%w: input_nc=%d output_nc=%d", ErrChannels, cfg.InputNC, cfg.OutputNC)
	}
	return &Runner[B]{gen: gen, Concurrency: 1}, nil
}

// Run processes samples concurrently. The first failure cancels the remaining
// samples and is returned.
func (r *Runner[B]) Run(ctx context.Context, samples []Sample) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Concurrency, 1))

	for _, s := range samples {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			if err := r.Process(s); err != nil {
				return fmt.Errorf("sample %s: %w", s.Image, err)
			}
			if r.Done != nil {
				r.Done(s, time.Since(start))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Process runs a single sample.
func (r *Runner[B]) Process(s Sample) error {
	backend := r.gen.Backend()
	cfg := r.gen.Config()

	img, err := openWith(s.Image, func(rd io.Reader) (*tensor.Tensor[float32, B], error) {
		return imageio.LoadImage(rd, r.Width, r.Height, backend)
	})
	if err != nil {
		return err
	}
	_, _, h, w := img.Shape().NCHW()

	seg, err := openWith(s.Labels, func(rd io.Reader) (*tensor.Tensor[float32, B], error) {
		return imageio.LoadLabelMap(rd, cfg.LabDim, w, h, backend)
	})
	if err != nil {
		return err
	}
	mask, err := openWith(s.Mask, func(rd io.Reader) (*tensor.Tensor[float32, B], error) {
		return imageio.LoadMask(rd, w, h, backend)
	})
	if err != nil {
		return err
	}
	style, err := LoadStyleCodes(s.Style, cfg, backend)
	if err != nil {
		return err
	}

	out, err := r.gen.Generate(imageio.MaskInput(img, mask), seg, mask, style)
	if err != nil {
		return err
	}
	return writePNG(s.Output, imageio.Composite(out, img, mask))
}

// LoadStyleCodes reads the [1, lab_dim, style_dim] style codes from a
// safetensors file. A [lab_dim, style_dim] tensor is accepted as a single
// sample. An empty path yields zero codes, or nil when style_dim is 0.
func LoadStyleCodes[B tensor.Backend](path string, cfg generator.Config, b B) (*tensor.Tensor[float32, B], error) {
	want := tensor.Shape{1, cfg.LabDim, cfg.StyleDim}
	if path == "" {
		if cfg.StyleDim == 0 {
			return nil, nil
		}
		return tensor.Zeros[float32](want, b), nil
	}

	file, err := serialization.ReadSafeTensors(path)
	if err != nil {
		return nil, err
	}
	raw, ok := file.Tensors[StyleCodesKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %q tensor", ErrStyleCodes, path, StyleCodesKey)
	}
	shape := raw.Shape()
	if len(shape) == 2 {
		shape = append(tensor.Shape{1}, shape...)
	}
	if !shape.Equal(want) {
		return nil, fmt.Errorf("%w: shape %v, expected %v", ErrStyleCodes, raw.Shape(), want)
	}

	codes := tensor.Zeros[float32](want, b)
	dst := codes.Data()
	switch raw.DType() {
	case tensor.Float32:
		copy(dst, raw.AsFloat32())
	case tensor.Float64:
		for i, v := range raw.AsFloat64() {
			dst[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("%w: dtype %s", ErrStyleCodes, raw.DType())
	}
	return codes, nil
}

func openWith[T any](path string, load func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path) //nolint:gosec // G304: paths come from the command line
	if err != nil {
		return zero, err
	}
	defer func() { _ = f.Close() }()

	v, err := load(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func writePNG[B tensor.Backend](path string, t *tensor.Tensor[float32, B]) (err error) {
	f, err := os.Create(path) //nolint:gosec // G304: paths come from the command line
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return imageio.EncodeImage(f, t)
}
