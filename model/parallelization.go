package model

import (
	"math/rand/v2"

	"github.com/manningwu07/textcnn/layers"
)

// CloneForGrads creates a shallow clone where all weights, biases and the
// embedding table are shared read-only, but caches and gradient buffers are
// private. Safe for concurrent Forward/Backward as long as nobody updates
// the weights at the same time.
func (m *NConv) CloneForGrads(dropoutSrc rand.Source) *NConv {
	out := &NConv{
		Arch:      m.Arch,
		Embedding: m.Embedding, // frozen, read-only
		Branches:  make([]*layers.Conv1D, len(m.Branches)),
		Hidden:    m.Hidden.CloneForGrads(),
		Drop:      layers.NewDropout(m.Drop.Rate, dropoutSrc),
		Output:    m.Output.CloneForGrads(),
	}
	for i, b := range m.Branches {
		out.Branches[i] = b.CloneForGrads()
	}
	return out
}
