package utils

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// UniformArray draws size values from U(-limit, limit) using src.
func UniformArray(size int, limit float64, src rand.Source) []float64 {
	dist := distuv.Uniform{Min: -limit, Max: limit, Src: src}
	out := make([]float64, size)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

// HeUniform initialises a (fanIn x fanOut) weight matrix with limit sqrt(6/fanIn).
func HeUniform(fanIn, fanOut int, src rand.Source) *mat.Dense {
	limit := math.Sqrt(6.0 / float64(fanIn))
	return mat.NewDense(fanIn, fanOut, UniformArray(fanIn*fanOut, limit, src))
}

// GlorotUniform initialises a (fanIn x fanOut) weight matrix with limit
// sqrt(6/(fanIn+fanOut)).
func GlorotUniform(fanIn, fanOut int, src rand.Source) *mat.Dense {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return mat.NewDense(fanIn, fanOut, UniformArray(fanIn*fanOut, limit, src))
}

// OneHot is a (1 x n) row with a 1 at idx. An out-of-range idx gives zeros.
func OneHot(n, idx int) *mat.Dense {
	v := make([]float64, n)
	if idx >= 0 && idx < n {
		v[idx] = 1.0
	}
	return mat.NewDense(1, n, v)
}

func ZerosLike(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	return mat.NewDense(r, c, nil)
}

// ClipGrads scales all grads so their combined norm <= maxNorm.
// Returns the scale actually applied (<=1.0) or 1.0 if no clip.
func ClipGrads(maxNorm float64, grads ...*mat.Dense) float64 {
	if maxNorm <= 0 {
		return 1.0
	}
	sum := 0.0
	for _, g := range grads {
		if g == nil {
			continue
		}
		n := mat.Norm(g, 2)
		sum += n * n
	}
	gn := math.Sqrt(sum)
	if gn <= maxNorm || gn == 0 {
		return 1.0
	}
	s := maxNorm / gn
	for _, g := range grads {
		if g != nil {
			g.Scale(s, g)
		}
	}
	return s
}
