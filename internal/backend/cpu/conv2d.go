package cpu

import (
	"fmt"

	"github.com/born-ml/seggen/internal/parallel"
	"github.com/born-ml/seggen/internal/tensor"
)

// im2colBudget caps the number of elements in one im2col buffer. Large
// feature maps are processed in bands of output rows that fit the budget.
const im2colBudget = 1 << 22

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
//	H_out = (H + 2*padding - dilation*(K_h-1) - 1) / stride + 1
//
// For every sample, a band of output rows is unfolded into a column matrix
// [C_in*K_h*K_w, rows*W_out] and multiplied by the kernel viewed as
// [C_out, C_in*K_h*K_w]. The product lands directly in NCHW order.
//
// Reference: "High Performance Convolutional Neural Networks for Document Processing"
// (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding, dilation int) *tensor.RawTensor {
	require4D("conv2d", "input", input)
	require4D("conv2d", "kernel", kernel)
	requireSameDType("conv2d", input, kernel)

	if stride <= 0 || dilation <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride=%d padding=%d dilation=%d", stride, padding, dilation))
	}

	n, cIn, h, w := input.Shape().NCHW()
	cOut, cInK, kh, kw := kernel.Shape().NCHW()
	if cIn != cInK {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", cIn, cInK))
	}

	g := convGeometry{
		n: n, cIn: cIn, h: h, w: w,
		cOut: cOut, kh: kh, kw: kw,
		stride: stride, padding: padding, dilation: dilation,
	}
	g.hOut = (h+2*padding-dilation*(kh-1)-1)/stride + 1
	g.wOut = (w+2*padding-dilation*(kw-1)-1)/stride + 1
	if g.hOut <= 0 || g.wOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (input %dx%d, kernel %dx%d)",
			g.hOut, g.wOut, h, w, kh, kw))
	}

	output := cpu.newResult("conv2d", tensor.Shape{n, cOut, g.hOut, g.wOut}, input.DType())

	switch input.DType() {
	case tensor.Float32:
		conv2d[float32](output, input, kernel, g, cpu.par)
	case tensor.Float64:
		conv2d[float64](output, input, kernel, g, cpu.par)
	default:
		panic(unsupported("conv2d", input.DType()))
	}

	return output
}

type convGeometry struct {
	n, cIn, h, w    int
	cOut, kh, kw    int
	hOut, wOut      int
	stride, padding int
	dilation        int
}

func (g convGeometry) colRows() int { return g.cIn * g.kh * g.kw }

// bandRows returns how many output rows fit in one im2col buffer.
func (g convGeometry) bandRows() int {
	return max(1, min(g.hOut, im2colBudget/max(1, g.colRows()*g.wOut)))
}

func conv2d[T tensor.DType](output, input, kernel *tensor.RawTensor, g convGeometry, cfg parallel.Config) {
	in := tensor.Values[T](input)
	k := tensor.Values[T](kernel)
	out := tensor.Values[T](output)

	band := g.bandRows()
	bands := (g.hOut + band - 1) / band
	planeOut := g.hOut * g.wOut
	kRows := g.colRows()

	parallel.For(g.n*bands, func(job int) {
		sample, b := job/bands, job%bands
		r0 := b * band
		r1 := min(r0+band, g.hOut)
		cols := (r1 - r0) * g.wOut

		col := make([]T, kRows*cols)
		im2col(col, in[sample*g.cIn*g.h*g.w:], g, r0, r1)

		// C is the [C_out, cols] window of this sample's output planes.
		c := out[sample*g.cOut*planeOut+r0*g.wOut:]
		gemm(g.cOut, cols, kRows, k, kRows, col, cols, c, planeOut)
	}, cfg.Coarse())
}

// im2col unfolds output rows [r0, r1) of one sample into col, laid out as
// [C_in*K_h*K_w, (r1-r0)*W_out]. Out-of-bounds taps read zero.
func im2col[T tensor.DType](col, in []T, g convGeometry, r0, r1 int) {
	cols := (r1 - r0) * g.wOut
	row := 0
	for c := 0; c < g.cIn; c++ {
		plane := in[c*g.h*g.w : (c+1)*g.h*g.w]
		for ki := 0; ki < g.kh; ki++ {
			for kj := 0; kj < g.kw; kj++ {
				dst := col[row*cols : (row+1)*cols]
				idx := 0
				for oh := r0; oh < r1; oh++ {
					ih := oh*g.stride - g.padding + ki*g.dilation
					if ih < 0 || ih >= g.h {
						for ow := 0; ow < g.wOut; ow++ {
							dst[idx] = 0
							idx++
						}
						continue
					}
					src := plane[ih*g.w : (ih+1)*g.w]
					for ow := 0; ow < g.wOut; ow++ {
						iw := ow*g.stride - g.padding + kj*g.dilation
						if iw >= 0 && iw < g.w {
							dst[idx] = src[iw]
						} else {
							dst[idx] = 0
						}
						idx++
					}
				}
				row++
			}
		}
	}
}

// BatchMatMul performs [B, M, K] @ [B, K, N] -> [B, M, N].
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireSameDType("batchmatmul", a, b)
	as, bs := a.Shape(), b.Shape()
	if len(as) != 3 || len(bs) != 3 {
		panic(fmt.Sprintf("batchmatmul: expected 3D operands, got %v and %v", as, bs))
	}
	if as[0] != bs[0] || as[2] != bs[1] {
		panic(fmt.Sprintf("batchmatmul: incompatible shapes %v @ %v", as, bs))
	}

	batch, m, k, n := as[0], as[1], as[2], bs[2]
	result := cpu.newResult("batchmatmul", tensor.Shape{batch, m, n}, a.DType())

	switch a.DType() {
	case tensor.Float32:
		batchMatMul[float32](result, a, b, batch, m, k, n, cpu.par)
	case tensor.Float64:
		batchMatMul[float64](result, a, b, batch, m, k, n, cpu.par)
	default:
		panic(unsupported("batchmatmul", a.DType()))
	}
	return result
}

func batchMatMul[T tensor.DType](result, a, b *tensor.RawTensor, batch, m, k, n int, cfg parallel.Config) {
	av, bv, out := tensor.Values[T](a), tensor.Values[T](b), tensor.Values[T](result)
	parallel.For(batch, func(i int) {
		gemm(m, n, k, av[i*m*k:(i+1)*m*k], k, bv[i*k*n:(i+1)*k*n], n, out[i*m*n:(i+1)*m*n], n)
	}, cfg.Coarse())
}
