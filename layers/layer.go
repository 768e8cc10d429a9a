// Package layers holds the building blocks of the n_conv graph. Every layer
// works on one sample at a time: rows are sequence positions, columns are
// channels. Layers cache what their backward pass needs and accumulate
// parameter gradients until ZeroGrads is called.
package layers

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/mat"
)

type Activation string

const (
	Linear Activation = "linear"
	ReLU   Activation = "relu"
)

// accumulateTransMul does dst += aᵀ·b without allocating the product.
func accumulateTransMul(dst, a, b *mat.Dense) {
	blas64.Gemm(blas.Trans, blas.NoTrans, 1, a.RawMatrix(), b.RawMatrix(), 1, dst.RawMatrix())
}

func zero(m *mat.Dense) {
	if m != nil {
		m.Zero()
	}
}
