package layers

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Embedding is a frozen lookup table (rows x dim). The table is shared by
// every model built from it and is never written to.
type Embedding struct {
	Weights *mat.Dense
}

func NewEmbedding(weights *mat.Dense) *Embedding {
	return &Embedding{Weights: weights}
}

func (e *Embedding) Dims() (rows, dim int) {
	return e.Weights.Dims()
}

// Forward maps token ids to a (T x dim) matrix.
func (e *Embedding) Forward(ids []int) *mat.Dense {
	rows, dim := e.Weights.Dims()
	out := mat.NewDense(len(ids), dim, nil)
	for t, id := range ids {
		if id < 0 || id >= rows {
			panic(fmt.Sprintf("embedding: token id %d outside table of %d rows", id, rows))
		}
		copy(out.RawRowView(t), e.Weights.RawRowView(id))
	}
	return out
}
