package cpu

import (
	"fmt"

	"github.com/born-ml/seggen/internal/parallel"
	"github.com/born-ml/seggen/internal/tensor"
)

// Pad2D pads both spatial dimensions of [N, C, H, W] by pad on each side.
//
// Reflect mode mirrors around the edge pixel without repeating it and
// therefore requires pad < H and pad < W.
func (cpu *CPUBackend) Pad2D(x *tensor.RawTensor, pad int, mode tensor.PadMode) *tensor.RawTensor {
	require4D("pad2d", "input", x)
	if pad < 0 {
		panic(fmt.Sprintf("pad2d: invalid padding %d", pad))
	}
	n, c, h, w := x.Shape().NCHW()
	if mode == tensor.PadReflect && (pad >= h || pad >= w) {
		panic(fmt.Sprintf("pad2d: reflect padding %d requires spatial size > %d, got %dx%d", pad, pad, h, w))
	}

	result := cpu.newResult("pad2d", tensor.Shape{n, c, h + 2*pad, w + 2*pad}, x.DType())
	switch x.DType() {
	case tensor.Float32:
		pad2d[float32](result, x, pad, mode, cpu.par)
	case tensor.Float64:
		pad2d[float64](result, x, pad, mode, cpu.par)
	default:
		panic(unsupported("pad2d", x.DType()))
	}
	return result
}

func pad2d[T tensor.DType](result, x *tensor.RawTensor, pad int, mode tensor.PadMode, cfg parallel.Config) {
	n, c, h, w := x.Shape().NCHW()
	ph, pw := h+2*pad, w+2*pad
	in, out := tensor.Values[T](x), tensor.Values[T](result)

	parallel.ForBatch(n, c, func(b, ch int) {
		src := in[(b*c+ch)*h*w:]
		dst := out[(b*c+ch)*ph*pw:]
		for oy := 0; oy < ph; oy++ {
			iy, okY := padIndex(oy-pad, h, mode)
			for ox := 0; ox < pw; ox++ {
				ix, okX := padIndex(ox-pad, w, mode)
				if okY && okX {
					dst[oy*pw+ox] = src[iy*w+ix]
				}
			}
		}
	}, cfg.Coarse())
}

// padIndex maps a possibly out-of-range coordinate into [0, size).
// ok is false when the tap falls into zero padding.
func padIndex(i, size int, mode tensor.PadMode) (int, bool) {
	if i >= 0 && i < size {
		return i, true
	}
	switch mode {
	case tensor.PadReflect:
		if i < 0 {
			return -i, true
		}
		return 2*(size-1) - i, true
	case tensor.PadReplicate:
		return min(max(i, 0), size-1), true
	default:
		return 0, false
	}
}

// Interpolate resizes [N, C, H, W] to [N, C, height, width] with
// nearest-neighbor sampling: src = floor(dst * in / out).
func (cpu *CPUBackend) Interpolate(x *tensor.RawTensor, height, width int) *tensor.RawTensor {
	require4D("interpolate", "input", x)
	if height <= 0 || width <= 0 {
		panic(fmt.Sprintf("interpolate: invalid output size %dx%d", height, width))
	}
	n, c, _, _ := x.Shape().NCHW()

	result := cpu.newResult("interpolate", tensor.Shape{n, c, height, width}, x.DType())
	switch x.DType() {
	case tensor.Float32:
		interpolate[float32](result, x, cpu.par)
	case tensor.Float64:
		interpolate[float64](result, x, cpu.par)
	default:
		panic(unsupported("interpolate", x.DType()))
	}
	return result
}

func interpolate[T tensor.DType](result, x *tensor.RawTensor, cfg parallel.Config) {
	n, c, h, w := x.Shape().NCHW()
	_, _, oh, ow := result.Shape().NCHW()
	in, out := tensor.Values[T](x), tensor.Values[T](result)

	rows := nearestIndex(oh, h)
	cols := nearestIndex(ow, w)

	parallel.ForBatch(n, c, func(b, ch int) {
		src := in[(b*c+ch)*h*w:]
		dst := out[(b*c+ch)*oh*ow:]
		for y, sy := range rows {
			line := src[sy*w : (sy+1)*w]
			for xx, sx := range cols {
				dst[y*ow+xx] = line[sx]
			}
		}
	}, cfg.Coarse())
}

func nearestIndex(outSize, inSize int) []int {
	idx := make([]int, outSize)
	scale := float64(inSize) / float64(outSize)
	for i := range idx {
		idx[i] = min(int(float64(i)*scale), inSize-1)
	}
	return idx
}
