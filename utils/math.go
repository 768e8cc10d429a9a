package utils

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix helpers shared by the layers. Everything here works on the row
// layout used across the repo: one row per sequence position (or per sample),
// one column per channel.

func Dot(m, n mat.Matrix) *mat.Dense {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Mul(m, n)
	return o
}

// AddRowBias adds the (1 x c) bias to every row of m in place.
func AddRowBias(m, bias *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	if br, bc := bias.Dims(); br != 1 || bc != c {
		panic("AddRowBias: bias must be (1 x c)")
	}
	b := bias.RawRowView(0)
	for i := 0; i < r; i++ {
		floats.Add(m.RawRowView(i), b)
	}
	return m
}

// ColSums sums m over its rows, producing (1 x c).
func ColSums(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(1, c, nil)
	acc := out.RawRowView(0)
	for i := 0; i < r; i++ {
		floats.Add(acc, m.RawRowView(i))
	}
	return out
}

func ReLUApply(_, _ int, v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}

// ReLUBackward zeroes grad wherever the pre-activation was not positive.
func ReLUBackward(grad, preAct *mat.Dense) *mat.Dense {
	r, c := grad.Dims()
	if pr, pc := preAct.Dims(); pr != r || pc != c {
		panic("ReLUBackward: shape mismatch")
	}
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		g, p, o := grad.RawRowView(i), preAct.RawRowView(i), out.RawRowView(i)
		for j := range g {
			if p[j] > 0 {
				o[j] = g[j]
			}
		}
	}
	return out
}

// RowSoftmax applies softmax independently to each row across columns.
func RowSoftmax(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		mat.Row(row, i, m)
		// numerical stability
		mx := floats.Max(row)
		sum := 0.0
		for j := range row {
			row[j] = math.Exp(row[j] - mx)
			sum += row[j]
		}
		floats.Scale(1/sum, row)
	}
	return out
}

// CategoricalCrossEntropy takes a (1 x C) probability row and a (1 x C)
// one-hot target. It returns the loss and the gradient with respect to the
// pre-softmax logits (p - y).
func CategoricalCrossEntropy(probs *mat.Dense, target mat.Matrix) (float64, *mat.Dense) {
	r, c := probs.Dims()
	if tr, tc := target.Dims(); r != 1 || tr != 1 || tc != c {
		panic("CategoricalCrossEntropy expects (1 x C) probabilities and target")
	}
	loss := 0.0
	grad := mat.DenseCopyOf(probs)
	for j := 0; j < c; j++ {
		y := target.At(0, j)
		if y != 0 {
			loss -= y * math.Log(probs.At(0, j)+1e-12)
		}
		grad.Set(0, j, grad.At(0, j)-y)
	}
	return loss, grad
}

// Argmax returns the column index of the largest value in row i.
func Argmax(m mat.Matrix, i int) int {
	_, c := m.Dims()
	best := 0
	bestV := m.At(i, 0)
	for j := 1; j < c; j++ {
		if v := m.At(i, j); v > bestV {
			best, bestV = j, v
		}
	}
	return best
}
