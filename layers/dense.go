package layers

import (
	"math/rand/v2"

	"github.com/manningwu07/textcnn/optimizations"
	"github.com/manningwu07/textcnn/utils"
	"gonum.org/v1/gonum/mat"
)

// Dense is a fully connected layer, y = act(x·W + b), Glorot-uniform weights.
type Dense struct {
	In, Out    int
	Activation Activation

	W *mat.Dense // (In x Out)
	B *mat.Dense // (1 x Out)

	DW, DB *mat.Dense

	// cache for backprop
	lastInput, preAct *mat.Dense
}

func NewDense(in, out int, act Activation, src rand.Source) *Dense {
	return &Dense{
		In:         in,
		Out:        out,
		Activation: act,
		W:          utils.GlorotUniform(in, out, src),
		B:          mat.NewDense(1, out, nil),
		DW:         mat.NewDense(in, out, nil),
		DB:         mat.NewDense(1, out, nil),
	}
}

// Forward maps (N x In) to (N x Out).
func (d *Dense) Forward(x *mat.Dense) *mat.Dense {
	d.lastInput = x
	pre := utils.AddRowBias(utils.Dot(x, d.W), d.B)
	d.preAct = pre
	if d.Activation != ReLU {
		return pre
	}
	out := utils.ZerosLike(pre)
	out.Apply(utils.ReLUApply, pre)
	return out
}

func (d *Dense) Backward(grad *mat.Dense) *mat.Dense {
	dPre := grad
	if d.Activation == ReLU {
		dPre = utils.ReLUBackward(grad, d.preAct)
	}
	accumulateTransMul(d.DW, d.lastInput, dPre)
	d.DB.Add(d.DB, utils.ColSums(dPre))
	return utils.Dot(dPre, d.W.T())
}

func (d *Dense) ZeroGrads() {
	zero(d.DW)
	zero(d.DB)
}

func (d *Dense) Params(prefix string) []optimizations.Param {
	return []optimizations.Param{
		{Name: prefix + ".W", Value: d.W, Grad: d.DW, Decay: true},
		{Name: prefix + ".B", Value: d.B, Grad: d.DB},
	}
}

func (d *Dense) CloneForGrads() *Dense {
	return &Dense{
		In:         d.In,
		Out:        d.Out,
		Activation: d.Activation,
		W:          d.W,
		B:          d.B,
		DW:         utils.ZerosLike(d.DW),
		DB:         utils.ZerosLike(d.DB),
	}
}

// Dropout zeroes each unit with probability Rate during training and scales
// the survivors by 1/(1-Rate). At inference it is the identity.
type Dropout struct {
	Rate float64
	rng  *rand.Rand
	mask *mat.Dense
}

func NewDropout(rate float64, src rand.Source) *Dropout {
	return &Dropout{Rate: rate, rng: rand.New(src)}
}

// Reseed swaps the mask source, used to give every gradient worker its own
// reproducible stream.
func (d *Dropout) Reseed(src rand.Source) {
	d.rng = rand.New(src)
}

func (d *Dropout) Forward(x *mat.Dense, training bool) *mat.Dense {
	if !training || d.Rate == 0 {
		d.mask = nil
		return x
	}
	r, c := x.Dims()
	keep := 1 - d.Rate
	d.mask = mat.NewDense(r, c, nil)
	raw := d.mask.RawMatrix().Data
	for i := range raw {
		if d.rng.Float64() < keep {
			raw[i] = 1 / keep
		}
	}
	out := mat.NewDense(r, c, nil)
	out.MulElem(x, d.mask)
	return out
}

func (d *Dropout) Backward(grad *mat.Dense) *mat.Dense {
	if d.mask == nil {
		return grad
	}
	out := utils.ZerosLike(grad)
	out.MulElem(grad, d.mask)
	return out
}
