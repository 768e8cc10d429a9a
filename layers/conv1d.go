package layers

import (
	"math/rand/v2"

	"github.com/manningwu07/textcnn/optimizations"
	"github.com/manningwu07/textcnn/utils"
	"gonum.org/v1/gonum/mat"
)

// Conv1D is a "same" padded 1D convolution with ReLU. For even kernels the
// extra padding position goes on the right, so output length equals input
// length for every kernel width.
type Conv1D struct {
	Kernel, In, Filters int

	W *mat.Dense // (Kernel*In x Filters), row block j is the j-th tap
	B *mat.Dense // (1 x Filters)

	DW, DB *mat.Dense

	// SkipInputGrad stops Backward from building dX; set when the input is a
	// frozen embedding.
	SkipInputGrad bool

	// cache for backprop
	lastCols, preAct *mat.Dense
}

// NewConv1D uses He-uniform weights and zero bias.
func NewConv1D(kernel, in, filters int, src rand.Source) *Conv1D {
	return &Conv1D{
		Kernel:  kernel,
		In:      in,
		Filters: filters,
		W:       utils.HeUniform(kernel*in, filters, src),
		B:       mat.NewDense(1, filters, nil),
		DW:      mat.NewDense(kernel*in, filters, nil),
		DB:      mat.NewDense(1, filters, nil),
	}
}

func (c *Conv1D) padLeft() int { return (c.Kernel - 1) / 2 }

// im2col lays each output position's receptive field out as one row
// (T x Kernel*In). Out of range taps stay zero.
func (c *Conv1D) im2col(x *mat.Dense) *mat.Dense {
	T, in := x.Dims()
	if in != c.In {
		panic("conv1d: input channel mismatch")
	}
	cols := mat.NewDense(T, c.Kernel*c.In, nil)
	pl := c.padLeft()
	for t := 0; t < T; t++ {
		row := cols.RawRowView(t)
		for j := 0; j < c.Kernel; j++ {
			p := t - pl + j
			if p < 0 || p >= T {
				continue
			}
			copy(row[j*c.In:(j+1)*c.In], x.RawRowView(p))
		}
	}
	return cols
}

// Forward maps (T x In) to (T x Filters).
func (c *Conv1D) Forward(x *mat.Dense) *mat.Dense {
	cols := c.im2col(x)
	pre := utils.AddRowBias(utils.Dot(cols, c.W), c.B)
	c.lastCols = cols
	c.preAct = pre
	out := mat.NewDense(pre.RawMatrix().Rows, c.Filters, nil)
	out.Apply(utils.ReLUApply, pre)
	return out
}

// Backward accumulates DW and DB and returns dL/dx, or nil when
// SkipInputGrad is set.
func (c *Conv1D) Backward(grad *mat.Dense) *mat.Dense {
	dPre := utils.ReLUBackward(grad, c.preAct)
	accumulateTransMul(c.DW, c.lastCols, dPre)
	c.DB.Add(c.DB, utils.ColSums(dPre))
	if c.SkipInputGrad {
		return nil
	}

	dCols := mat.NewDense(dPre.RawMatrix().Rows, c.Kernel*c.In, nil)
	dCols.Mul(dPre, c.W.T())
	T := dCols.RawMatrix().Rows
	dX := mat.NewDense(T, c.In, nil)
	pl := c.padLeft()
	for t := 0; t < T; t++ {
		row := dCols.RawRowView(t)
		for j := 0; j < c.Kernel; j++ {
			p := t - pl + j
			if p < 0 || p >= T {
				continue
			}
			dst := dX.RawRowView(p)
			for i, v := range row[j*c.In : (j+1)*c.In] {
				dst[i] += v
			}
		}
	}
	return dX
}

func (c *Conv1D) ZeroGrads() {
	zero(c.DW)
	zero(c.DB)
}

func (c *Conv1D) Params(prefix string) []optimizations.Param {
	return []optimizations.Param{
		{Name: prefix + ".W", Value: c.W, Grad: c.DW, Decay: true},
		{Name: prefix + ".B", Value: c.B, Grad: c.DB},
	}
}

// CloneForGrads shares W and B read-only; gradients and caches are private.
func (c *Conv1D) CloneForGrads() *Conv1D {
	return &Conv1D{
		Kernel:        c.Kernel,
		In:            c.In,
		Filters:       c.Filters,
		W:             c.W,
		B:             c.B,
		DW:            utils.ZerosLike(c.DW),
		DB:            utils.ZerosLike(c.DB),
		SkipInputGrad: c.SkipInputGrad,
	}
}
