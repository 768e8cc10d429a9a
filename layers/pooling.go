package layers

import "gonum.org/v1/gonum/mat"

// Concat joins branch outputs along the channel axis.
type Concat struct {
	widths []int
}

func (c *Concat) Forward(xs ...*mat.Dense) *mat.Dense {
	if len(xs) == 0 {
		panic("concat: no inputs")
	}
	T, _ := xs[0].Dims()
	c.widths = c.widths[:0]
	total := 0
	for _, x := range xs {
		r, w := x.Dims()
		if r != T {
			panic("concat: sequence length mismatch")
		}
		c.widths = append(c.widths, w)
		total += w
	}
	out := mat.NewDense(T, total, nil)
	off := 0
	for i, x := range xs {
		out.Slice(0, T, off, off+c.widths[i]).(*mat.Dense).Copy(x)
		off += c.widths[i]
	}
	return out
}

// Backward splits grad back into per-branch pieces.
func (c *Concat) Backward(grad *mat.Dense) []*mat.Dense {
	T, _ := grad.Dims()
	out := make([]*mat.Dense, len(c.widths))
	off := 0
	for i, w := range c.widths {
		out[i] = mat.DenseCopyOf(grad.Slice(0, T, off, off+w))
		off += w
	}
	return out
}

// GlobalMaxPool1D takes, per channel, the max over all positions.
type GlobalMaxPool1D struct {
	argmax []int
	lastT  int
}

// Forward maps (T x C) to (1 x C). Ties go to the earliest position.
func (g *GlobalMaxPool1D) Forward(x *mat.Dense) *mat.Dense {
	T, C := x.Dims()
	out := mat.NewDense(1, C, nil)
	o := out.RawRowView(0)
	g.argmax = make([]int, C)
	g.lastT = T
	copy(o, x.RawRowView(0))
	for t := 1; t < T; t++ {
		row := x.RawRowView(t)
		for ch, v := range row {
			if v > o[ch] {
				o[ch] = v
				g.argmax[ch] = t
			}
		}
	}
	return out
}

// Backward routes each channel's gradient to the position that won the max.
func (g *GlobalMaxPool1D) Backward(grad *mat.Dense) *mat.Dense {
	C := len(g.argmax)
	dX := mat.NewDense(g.lastT, C, nil)
	gr := grad.RawRowView(0)
	for ch, t := range g.argmax {
		dX.Set(t, ch, gr[ch])
	}
	return dX
}
