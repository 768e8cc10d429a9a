package model

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/textcnn/layers"
	"github.com/manningwu07/textcnn/optimizations"
	"github.com/manningwu07/textcnn/params"
	"github.com/manningwu07/textcnn/utils"
)

// Architecture is everything needed to rebuild an NConv besides its weights.
type Architecture struct {
	SeqLen      int
	EmbRows     int
	EmbDim      int
	KernelSizes []int
	Filters     int
	DenseUnits  int
	DropoutRate float64
	NumClasses  int
}

func ArchitectureFromConfig(cfg params.TrainingConfig, embRows int) Architecture {
	return Architecture{
		SeqLen:      cfg.MaxSequenceLength,
		EmbRows:     embRows,
		EmbDim:      cfg.EmbeddingDim,
		KernelSizes: append([]int(nil), cfg.KernelSizes...),
		Filters:     cfg.Filters,
		DenseUnits:  cfg.DenseUnits,
		DropoutRate: cfg.DropoutRate,
		NumClasses:  cfg.NumClasses,
	}
}

// NConv is the multi-branch text CNN:
//
//	ids -> frozen embedding -> Conv1D x len(KernelSizes) (same, relu)
//	    -> concat -> global max pool -> dense relu -> dropout -> dense softmax
type NConv struct {
	Arch Architecture

	Embedding *layers.Embedding
	Branches  []*layers.Conv1D
	Concat    layers.Concat
	Pool      layers.GlobalMaxPool1D
	Hidden    *layers.Dense
	Drop      *layers.Dropout
	Output    *layers.Dense
}

// Builder returns a fresh, independently initialised model on every call.
type Builder func() *NConv

// GenModel assembles the graph over a shared, read-only embedding matrix.
// Shape mismatches between the matrix and the architecture panic.
func GenModel(embedding *mat.Dense, arch Architecture, src rand.Source) *NConv {
	rows, dim := embedding.Dims()
	if rows != arch.EmbRows || dim != arch.EmbDim {
		panic(fmt.Sprintf("GenModel: embedding is %dx%d, architecture wants %dx%d", rows, dim, arch.EmbRows, arch.EmbDim))
	}
	m := &NConv{Arch: arch, Embedding: layers.NewEmbedding(embedding)}
	for _, k := range arch.KernelSizes {
		conv := layers.NewConv1D(k, dim, arch.Filters, src)
		conv.SkipInputGrad = true // embeddings are frozen
		m.Branches = append(m.Branches, conv)
	}
	channels := arch.Filters * len(arch.KernelSizes)
	m.Hidden = layers.NewDense(channels, arch.DenseUnits, layers.ReLU, src)
	m.Drop = layers.NewDropout(arch.DropoutRate, src)
	m.Output = layers.NewDense(arch.DenseUnits, arch.NumClasses, layers.Linear, src)
	return m
}

// NewBuilder closes over the config and embedding matrix. Each call draws
// weights from its own seed (cfg.Seed + call number) so folds are
// reproducible but not identical.
func NewBuilder(embedding *mat.Dense, cfg params.TrainingConfig) Builder {
	rows, _ := embedding.Dims()
	arch := ArchitectureFromConfig(cfg, rows)
	calls := uint64(0)
	return func() *NConv {
		calls++
		return GenModel(embedding, arch, rand.NewPCG(uint64(cfg.Seed), calls))
	}
}

func (m *NConv) checkIDs(ids []int) {
	if len(ids) != m.Arch.SeqLen {
		panic(fmt.Sprintf("nconv: sequence has %d tokens, want %d", len(ids), m.Arch.SeqLen))
	}
}

// Forward runs one padded sequence and returns its (1 x classes) softmax.
// Dropout is only active when training is set.
func (m *NConv) Forward(ids []int, training bool) *mat.Dense {
	m.checkIDs(ids)
	x := m.Embedding.Forward(ids)
	outs := make([]*mat.Dense, len(m.Branches))
	for i, b := range m.Branches {
		outs[i] = b.Forward(x)
	}
	h := m.Pool.Forward(m.Concat.Forward(outs...))
	h = m.Hidden.Forward(h)
	h = m.Drop.Forward(h, training)
	return utils.RowSoftmax(m.Output.Forward(h))
}

// Backward takes dL/dlogits for the last Forward and accumulates gradients.
func (m *NConv) Backward(dLogits *mat.Dense) {
	g := m.Output.Backward(dLogits)
	g = m.Drop.Backward(g)
	g = m.Hidden.Backward(g)
	g = m.Pool.Backward(g)
	for i, part := range m.Concat.Backward(g) {
		m.Branches[i].Backward(part)
	}
}

// Predict returns an (N x classes) probability matrix, dropout off.
func (m *NConv) Predict(batch [][]int) *mat.Dense {
	out := mat.NewDense(len(batch), m.Arch.NumClasses, nil)
	for i, ids := range batch {
		copy(out.RawRowView(i), m.Forward(ids, false).RawRowView(0))
	}
	return out
}

// BranchOutputs exposes the per-branch activations and their concatenation
// for one sequence.
func (m *NConv) BranchOutputs(ids []int) ([]*mat.Dense, *mat.Dense) {
	m.checkIDs(ids)
	x := m.Embedding.Forward(ids)
	outs := make([]*mat.Dense, len(m.Branches))
	for i, b := range m.Branches {
		outs[i] = b.Forward(x)
	}
	var cat layers.Concat
	return outs, cat.Forward(outs...)
}

// Params lists every trainable tensor; the embedding is not included.
func (m *NConv) Params() []optimizations.Param {
	var ps []optimizations.Param
	for i, b := range m.Branches {
		ps = append(ps, b.Params(fmt.Sprintf("conv%d_k%d", i, b.Kernel))...)
	}
	ps = append(ps, m.Hidden.Params("dense_hidden")...)
	ps = append(ps, m.Output.Params("dense_out")...)
	return ps
}

func (m *NConv) ZeroGrads() {
	for _, b := range m.Branches {
		b.ZeroGrads()
	}
	m.Hidden.ZeroGrads()
	m.Output.ZeroGrads()
}

// AddGrads adds other's accumulated gradients into m's. Both must share an
// architecture.
func (m *NConv) AddGrads(other *NConv) {
	mine, theirs := m.Params(), other.Params()
	if len(mine) != len(theirs) {
		panic("AddGrads: parameter count mismatch")
	}
	for i := range mine {
		mine[i].Grad.Add(mine[i].Grad, theirs[i].Grad)
	}
}

// CountParams returns (trainable, frozen) scalar counts.
func (m *NConv) CountParams() (int, int) {
	trainable := 0
	for _, p := range m.Params() {
		r, c := p.Value.Dims()
		trainable += r * c
	}
	rows, dim := m.Embedding.Dims()
	return trainable, rows * dim
}

// Summary is a short layer table, printed once per run.
func (m *NConv) Summary() string {
	var sb strings.Builder
	T := m.Arch.SeqLen
	fmt.Fprintf(&sb, "input            (%d)\n", T)
	fmt.Fprintf(&sb, "embedding        (%d, %d) frozen\n", T, m.Arch.EmbDim)
	for _, b := range m.Branches {
		fmt.Fprintf(&sb, "conv1d k=%-7d (%d, %d) relu\n", b.Kernel, T, b.Filters)
	}
	fmt.Fprintf(&sb, "concat           (%d, %d)\n", T, m.Arch.Filters*len(m.Branches))
	fmt.Fprintf(&sb, "global max pool  (%d)\n", m.Arch.Filters*len(m.Branches))
	fmt.Fprintf(&sb, "dense            (%d) relu\n", m.Arch.DenseUnits)
	fmt.Fprintf(&sb, "dropout %.2f     (%d)\n", m.Arch.DropoutRate, m.Arch.DenseUnits)
	fmt.Fprintf(&sb, "dense            (%d) softmax\n", m.Arch.NumClasses)
	trainable, frozen := m.CountParams()
	fmt.Fprintf(&sb, "params: %d trainable, %d frozen\n", trainable, frozen)
	return sb.String()
}
