package utils

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestRowSoftmaxSumsToOne(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 1000, 1000, -1000})
	p := RowSoftmax(m)
	for i := 0; i < 2; i++ {
		row := p.RawRowView(i)
		assert.InDelta(t, 1.0, floats.Sum(row), 1e-12)
		for _, v := range row {
			assert.False(t, math.IsNaN(v))
		}
	}
	assert.InDelta(t, 0.5, p.At(1, 0), 1e-12)
}

func TestCategoricalCrossEntropy(t *testing.T) {
	p := mat.NewDense(1, 3, []float64{0.2, 0.5, 0.3})
	loss, grad := CategoricalCrossEntropy(p, OneHot(3, 1))
	assert.InDelta(t, -math.Log(0.5), loss, 1e-9)
	assert.InDeltaSlice(t, []float64{0.2, -0.5, 0.3}, grad.RawRowView(0), 1e-12)
	// input untouched
	assert.Equal(t, 0.5, p.At(0, 1))

	assert.Panics(t, func() { CategoricalCrossEntropy(p, OneHot(2, 1)) })
}

func TestAddRowBiasAndColSums(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	AddRowBias(m, mat.NewDense(1, 2, []float64{10, 20}))
	assert.Equal(t, []float64{11, 22, 13, 24}, m.RawMatrix().Data)

	s := ColSums(m)
	assert.Equal(t, []float64{24, 46}, s.RawRowView(0))
}

func TestReLUBackward(t *testing.T) {
	pre := mat.NewDense(1, 3, []float64{-1, 0, 2})
	g := mat.NewDense(1, 3, []float64{5, 5, 5})
	assert.Equal(t, []float64{0, 0, 5}, ReLUBackward(g, pre).RawRowView(0))
}

func TestInitLimits(t *testing.T) {
	src := rand.NewPCG(1, 2)
	w := HeUniform(12, 8, src)
	limit := math.Sqrt(6.0 / 12)
	r, c := w.Dims()
	require.Equal(t, 12, r)
	require.Equal(t, 8, c)
	for _, v := range w.RawMatrix().Data {
		assert.LessOrEqual(t, math.Abs(v), limit)
	}

	g := GlorotUniform(10, 6, src)
	glimit := math.Sqrt(6.0 / 16)
	for _, v := range g.RawMatrix().Data {
		assert.LessOrEqual(t, math.Abs(v), glimit)
	}
}

func TestClipGrads(t *testing.T) {
	a := mat.NewDense(1, 2, []float64{3, 0})
	b := mat.NewDense(1, 1, []float64{4})
	s := ClipGrads(1, a, b)
	assert.InDelta(t, 0.2, s, 1e-12)
	assert.InDelta(t, 1.0, math.Hypot(mat.Norm(a, 2), mat.Norm(b, 2)), 1e-12)
	assert.Equal(t, 1.0, ClipGrads(0, a))
}

func TestArgmax(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{0.1, 0.7, 0.2, 0.5, 0.1, 0.4})
	assert.Equal(t, 1, Argmax(m, 0))
	assert.Equal(t, 0, Argmax(m, 1))
	assert.Equal(t, []float64{0, 0, 1}, OneHot(3, 2).RawRowView(0))
}
