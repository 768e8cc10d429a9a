package optimizations

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// p -= lr * (mhat/(sqrt(vhat)+eps) + wd * p) with bias correction (AdamW).
// With weightDecay == 0 this is plain Adam.
func AdamUpdateInPlace(
	p, g, m, v *mat.Dense,
	t int,
	lr, beta1, beta2, eps, weightDecay float64,
) {
	pr, pc := p.Dims()
	if gr, gc := g.Dims(); gr != pr || gc != pc {
		panic("adamUpdateInPlace: grad shape mismatch")
	}
	if mr, mc := m.Dims(); mr != pr || mc != pc {
		panic("adamUpdateInPlace: m shape mismatch")
	}
	if vr, vc := v.Dims(); vr != pr || vc != pc {
		panic("adamUpdateInPlace: v shape mismatch")
	}
	c1 := 1.0 / (1.0 - math.Pow(beta1, float64(t)))
	c2 := 1.0 / (1.0 - math.Pow(beta2, float64(t)))
	for i := 0; i < pr; i++ {
		pRow, gRow := p.RawRowView(i), g.RawRowView(i)
		mRow, vRow := m.RawRowView(i), v.RawRowView(i)
		for j := range pRow {
			gij := gRow[j]
			mij := beta1*mRow[j] + (1.0-beta1)*gij
			vij := beta2*vRow[j] + (1.0-beta2)*gij*gij
			mhat := mij * c1
			vhat := vij * c2
			update := mhat/(math.Sqrt(vhat)+eps) + weightDecay*pRow[j]
			mRow[j] = mij
			vRow[j] = vij
			pRow[j] -= lr * update
		}
	}
}

// Param pairs a trainable tensor with its gradient accumulator. Decay marks
// weights (biases are never decayed).
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
	Decay bool
}

// Adam keeps first and second moments for every parameter it has seen,
// keyed by the parameter's value matrix.
type Adam struct {
	LR, Beta1, Beta2, Eps, WeightDecay float64

	T    int
	m, v map[*mat.Dense]*mat.Dense
}

func NewAdam(lr, beta1, beta2, eps, weightDecay float64) *Adam {
	return &Adam{
		LR: lr, Beta1: beta1, Beta2: beta2, Eps: eps, WeightDecay: weightDecay,
		m: make(map[*mat.Dense]*mat.Dense),
		v: make(map[*mat.Dense]*mat.Dense),
	}
}

// Step applies one update to every param using its current Grad, scaled by
// gradScale (1/batch size for mean reduction).
func (a *Adam) Step(ps []Param, gradScale float64) {
	a.T++
	for _, p := range ps {
		m, ok := a.m[p.Value]
		if !ok {
			r, c := p.Value.Dims()
			m = mat.NewDense(r, c, nil)
			a.m[p.Value] = m
			a.v[p.Value] = mat.NewDense(r, c, nil)
		}
		g := p.Grad
		if gradScale != 1 {
			g = mat.DenseCopyOf(p.Grad)
			g.Scale(gradScale, g)
		}
		wd := 0.0
		if p.Decay {
			wd = a.WeightDecay
		}
		AdamUpdateInPlace(p.Value, g, m, a.v[p.Value], a.T, a.LR, a.Beta1, a.Beta2, a.Eps, wd)
	}
}
