package cpu

import (
	"github.com/born-ml/seggen/internal/parallel"
	"github.com/born-ml/seggen/internal/tensor"
)

// ChannelMoments computes per-channel mean and biased variance of [N, C, H, W].
//
// perSample=true reduces over (H, W) and returns [N, C, 1, 1] (instance
// statistics); perSample=false reduces over (N, H, W) and returns
// [1, C, 1, 1] (batch statistics). Accumulation is done in float64.
func (cpu *CPUBackend) ChannelMoments(x *tensor.RawTensor, perSample bool) (mean, variance *tensor.RawTensor) {
	require4D("channel_moments", "input", x)
	n, c, _, _ := x.Shape().NCHW()

	statShape := tensor.Shape{1, c, 1, 1}
	if perSample {
		statShape = tensor.Shape{n, c, 1, 1}
	}
	mean = cpu.newResult("channel_moments", statShape, x.DType())
	variance = cpu.newResult("channel_moments", statShape, x.DType())

	switch x.DType() {
	case tensor.Float32:
		channelMoments[float32](mean, variance, x, perSample, cpu.par)
	case tensor.Float64:
		channelMoments[float64](mean, variance, x, perSample, cpu.par)
	default:
		panic(unsupported("channel_moments", x.DType()))
	}
	return mean, variance
}

func channelMoments[T tensor.DType](mean, variance, x *tensor.RawTensor, perSample bool, cfg parallel.Config) {
	n, c, h, w := x.Shape().NCHW()
	plane := h * w
	in := tensor.Values[T](x)
	mv, vv := tensor.Values[T](mean), tensor.Values[T](variance)

	// planes lists the (sample, channel) planes pooled into one statistic.
	stat := func(out int, planes func(yield func(off int))) {
		var sum float64
		count := 0
		planes(func(off int) {
			for _, v := range in[off : off+plane] {
				sum += float64(v)
			}
			count += plane
		})
		mu := sum / float64(count)

		var sq float64
		planes(func(off int) {
			for _, v := range in[off : off+plane] {
				d := float64(v) - mu
				sq += d * d
			}
		})
		mv[out] = T(mu)
		vv[out] = T(sq / float64(count))
	}

	if perSample {
		parallel.For(n*c, func(k int) {
			stat(k, func(yield func(int)) { yield(k * plane) })
		}, cfg.Coarse())
		return
	}

	parallel.For(c, func(ch int) {
		stat(ch, func(yield func(int)) {
			for b := 0; b < n; b++ {
				yield((b*c + ch) * plane)
			}
		})
	}, cfg.Coarse())
}
