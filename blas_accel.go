//go:build cblas

package main

import (
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/netlib/blas/netlib"
)

// Building with `-tags cblas` routes every gonum matrix product (conv im2col,
// dense layers, gradient accumulation) through a system CBLAS. Link it with
// e.g. CGO_LDFLAGS="-lopenblas" or "-framework Accelerate" on macOS.
func init() {
	blas64.Use(netlib.Implementation{})
}
