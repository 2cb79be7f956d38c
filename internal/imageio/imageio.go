// Package imageio converts between image files and generator tensors.
//
// Images map to [1, 3, H, W] float32 tensors in [-1, 1]. Label maps are
// single-channel images whose pixel value is the class id; they map to one-hot
// [1, labDim, H, W] tensors. Masks map to binary [1, 1, H, W] tensors where 1
// marks the region to synthesize.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	// Registered decoders.
	_ "image/jpeg"

	"golang.org/x/image/draw"

	"github.com/born-ml/seggen/internal/tensor"
)

// Common errors.
var (
	ErrDecode       = errors.New("decode image")
	ErrLabelRange   = errors.New("label id out of range")
	ErrTensorLayout = errors.New("tensor is not a single image")
)

// maskThreshold is the gray level above which a mask pixel is a hole.
const maskThreshold = 127

func decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return img, nil
}

// targetSize is w x h if both are positive, the native size otherwise.
func targetSize(img image.Image, w, h int) image.Rectangle {
	if w > 0 && h > 0 {
		return image.Rect(0, 0, w, h)
	}
	b := img.Bounds()
	return image.Rect(0, 0, b.Dx(), b.Dy())
}

// LoadImage decodes an RGB image, resizes it bilinearly to w x h (native size
// if either is <= 0) and returns a [1, 3, H, W] tensor in [-1, 1].
func LoadImage[B tensor.Backend](r io.Reader, w, h int, b B) (*tensor.Tensor[float32, B], error) {
	img, err := decode(r)
	if err != nil {
		return nil, err
	}
	dr := targetSize(img, w, h)
	rgba := image.NewRGBA(dr)
	draw.BiLinear.Scale(rgba, dr, img, img.Bounds(), draw.Src, nil)

	width, height := dr.Dx(), dr.Dy()
	plane := width * height
	data := make([]float32, 3*plane)
	for y := range height {
		for x := range width {
			off := rgba.PixOffset(x, y)
			i := y*width + x
			for c := range 3 {
				data[c*plane+i] = float32(rgba.Pix[off+c])/127.5 - 1
			}
		}
	}
	return tensor.FromSlice(data, tensor.Shape{1, 3, height, width}, b)
}

// LoadLabelMap decodes a label map and returns its one-hot encoding with
// labDim channels, resized with nearest-neighbour sampling. Paletted images
// use the palette index as the class id; other images use their gray level.
func LoadLabelMap[B tensor.Backend](r io.Reader, labDim, w, h int, b B) (*tensor.Tensor[float32, B], error) {
	img, err := decode(r)
	if err != nil {
		return nil, err
	}
	ids := classIDs(img)
	dr := targetSize(img, w, h)
	scaled := image.NewGray(dr)
	draw.NearestNeighbor.Scale(scaled, dr, ids, ids.Bounds(), draw.Src, nil)

	width, height := dr.Dx(), dr.Dy()
	plane := width * height
	data := make([]float32, labDim*plane)
	for y := range height {
		for x := range width {
			id := int(scaled.Pix[scaled.PixOffset(x, y)])
			if id >= labDim {
				return nil, fmt.Errorf("%w: id %d at (%d, %d), lab_dim %d", ErrLabelRange, id, x, y, labDim)
			}
			data[id*plane+y*width+x] = 1
		}
	}
	return tensor.FromSlice(data, tensor.Shape{1, labDim, height, width}, b)
}

// classIDs returns a gray image whose pixel values are class ids.
func classIDs(img image.Image) *image.Gray {
	bounds := img.Bounds()
	ids := image.NewGray(bounds)
	if p, ok := img.(*image.Paletted); ok {
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				ids.SetGray(x, y, color.Gray{Y: p.ColorIndexAt(x, y)})
			}
		}
		return ids
	}
	draw.Draw(ids, bounds, img, bounds.Min, draw.Src)
	return ids
}

// LoadMask decodes a mask and returns a [1, 1, H, W] tensor holding 1 where
// the gray level exceeds 127 and 0 elsewhere.
func LoadMask[B tensor.Backend](r io.Reader, w, h int, b B) (*tensor.Tensor[float32, B], error) {
	img, err := decode(r)
	if err != nil {
		return nil, err
	}
	gray := image.NewGray(img.Bounds())
	draw.Draw(gray, gray.Bounds(), img, img.Bounds().Min, draw.Src)

	dr := targetSize(img, w, h)
	scaled := image.NewGray(dr)
	draw.NearestNeighbor.Scale(scaled, dr, gray, gray.Bounds(), draw.Src, nil)

	data := make([]float32, len(scaled.Pix))
	for y := range dr.Dy() {
		for x := range dr.Dx() {
			if scaled.Pix[scaled.PixOffset(x, y)] > maskThreshold {
				data[y*dr.Dx()+x] = 1
			}
		}
	}
	return tensor.FromSlice(data, tensor.Shape{1, 1, dr.Dy(), dr.Dx()}, b)
}

// MaskInput zeroes the masked region of an image: image * (1 - mask).
func MaskInput[B tensor.Backend](img, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return img.Mul(keep(mask))
}

// Composite pastes the generated pixels into the masked region of the input:
// input * (1 - mask) + generated * mask.
func Composite[B tensor.Backend](generated, input, mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.Mul(keep(mask)).Add(generated.Mul(mask))
}

func keep[B tensor.Backend](mask *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return mask.MulScalar(-1).AddScalar(1)
}

// ToImage converts a [1, 3, H, W] or [1, 1, H, W] tensor in [-1, 1] to an
// image. Values outside the range are clamped.
func ToImage[B tensor.Backend](t *tensor.Tensor[float32, B]) (image.Image, error) {
	shape := t.Shape()
	if len(shape) != 4 || shape[0] != 1 || (shape[1] != 1 && shape[1] != 3) {
		return nil, fmt.Errorf("%w: shape %v", ErrTensorLayout, shape)
	}
	channels, height, width := shape[1], shape[2], shape[3]
	plane := height * width
	data := t.Data()

	if channels == 1 {
		gray := image.NewGray(image.Rect(0, 0, width, height))
		for i := range plane {
			gray.Pix[i] = toByte(data[i])
		}
		return gray, nil
	}

	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range plane {
		rgba.Pix[4*i] = toByte(data[i])
		rgba.Pix[4*i+1] = toByte(data[plane+i])
		rgba.Pix[4*i+2] = toByte(data[2*plane+i])
		rgba.Pix[4*i+3] = 0xFF
	}
	return rgba, nil
}

// EncodeImage writes t as a PNG image. See ToImage for the accepted layouts.
func EncodeImage[B tensor.Backend](w io.Writer, t *tensor.Tensor[float32, B]) error {
	img, err := ToImage(t)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

func toByte(v float32) uint8 {
	scaled := math.Round(float64(v+1) * 127.5)
	return uint8(min(max(scaled, 0), 255))
}
