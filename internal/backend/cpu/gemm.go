package cpu

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/blas/blas64"

	"github.com/born-ml/seggen/internal/tensor"
)

// gemm computes C = A @ B for row-major A [m, k] (stride lda), B [k, n]
// (stride ldb) and C [m, n] (stride ldc), overwriting C.
func gemm[T tensor.DType](m, n, k int, a []T, lda int, b []T, ldb int, c []T, ldc int) {
	switch av := any(a).(type) {
	case []float32:
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1,
			blas32.General{Rows: m, Cols: k, Stride: lda, Data: av},
			blas32.General{Rows: k, Cols: n, Stride: ldb, Data: any(b).([]float32)},
			0,
			blas32.General{Rows: m, Cols: n, Stride: ldc, Data: any(c).([]float32)})
	case []float64:
		blas64.Gemm(blas.NoTrans, blas.NoTrans, 1,
			blas64.General{Rows: m, Cols: k, Stride: lda, Data: av},
			blas64.General{Rows: k, Cols: n, Stride: ldb, Data: any(b).([]float64)},
			0,
			blas64.General{Rows: m, Cols: n, Stride: ldc, Data: any(c).([]float64)})
	default:
		panic("gemm: unsupported element type")
	}
}
