package model

import (
	"bytes"
	"encoding/gob"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var ErrCheckpointMismatch = errors.New("checkpoint does not match model")

type tensorData struct {
	Name string
	R, C int
	Data []float64
}

type modelData struct {
	Arch Architecture

	// Frozen embedding table, stored so predict does not need the vector file.
	EmbR, EmbC int
	EmbData    []float64

	Params []tensorData

	Classes []string
	Epoch   int
	Score   float64
}

// Meta is the bookkeeping stored next to the weights.
type Meta struct {
	Classes []string
	Epoch   int     // 1-based epoch the weights come from
	Score   float64 // monitored metric at that epoch
}

func tensorOf(name string, m *mat.Dense) tensorData {
	r, c := m.Dims()
	raw := mat.DenseCopyOf(m).RawMatrix()
	return tensorData{Name: name, R: r, C: c, Data: append([]float64(nil), raw.Data...)}
}

// SaveNConv persists the architecture, all weights and meta with gob.
// The parent directory is created if needed.
func SaveNConv(m *NConv, filename string, meta Meta) error {
	data := modelData{
		Arch:    m.Arch,
		Classes: append([]string(nil), meta.Classes...),
		Epoch:   meta.Epoch,
		Score:   meta.Score,
	}
	emb := tensorOf("embedding", m.Embedding.Weights)
	data.EmbR, data.EmbC, data.EmbData = emb.R, emb.C, emb.Data
	for _, p := range m.Params() {
		data.Params = append(data.Params, tensorOf(p.Name, p.Value))
	}

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(data); err != nil {
		return errors.Wrap(err, "encode checkpoint")
	}
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create checkpoint dir")
		}
	}
	return errors.Wrap(os.WriteFile(filename, buf.Bytes(), 0o644), "write checkpoint")
}

func readModelData(filename string) (*modelData, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "read checkpoint")
	}
	var data modelData
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&data); err != nil {
		return nil, errors.Wrapf(err, "decode %s", filename)
	}
	return &data, nil
}

// LoadNConv rebuilds a model from a checkpoint written by SaveNConv.
func LoadNConv(filename string) (*NConv, Meta, error) {
	data, err := readModelData(filename)
	if err != nil {
		return nil, Meta{}, err
	}
	if len(data.EmbData) != data.EmbR*data.EmbC || data.EmbR == 0 {
		return nil, Meta{}, errors.Wrap(ErrCheckpointMismatch, "bad embedding table")
	}
	if data.Arch.EmbRows != data.EmbR || data.Arch.EmbDim != data.EmbC {
		return nil, Meta{}, errors.Wrapf(ErrCheckpointMismatch, "embedding table is %dx%d, architecture wants %dx%d",
			data.EmbR, data.EmbC, data.Arch.EmbRows, data.Arch.EmbDim)
	}
	emb := mat.NewDense(data.EmbR, data.EmbC, data.EmbData)
	// init values are overwritten below, any source works
	m := GenModel(emb, data.Arch, rand.NewPCG(0, 0))
	if err := m.restore(data); err != nil {
		return nil, Meta{}, err
	}
	return m, Meta{Classes: data.Classes, Epoch: data.Epoch, Score: data.Score}, nil
}

// LoadWeights copies trainable weights from a checkpoint into m, keeping m's
// embedding table. Used to roll a fold back to its best epoch.
func LoadWeights(m *NConv, filename string) (Meta, error) {
	data, err := readModelData(filename)
	if err != nil {
		return Meta{}, err
	}
	if err := m.restore(data); err != nil {
		return Meta{}, err
	}
	return Meta{Classes: data.Classes, Epoch: data.Epoch, Score: data.Score}, nil
}

func (m *NConv) restore(data *modelData) error {
	ps := m.Params()
	if len(ps) != len(data.Params) {
		return errors.Wrapf(ErrCheckpointMismatch, "have %d tensors, file has %d", len(ps), len(data.Params))
	}
	for i, p := range ps {
		td := data.Params[i]
		r, c := p.Value.Dims()
		if td.Name != p.Name || td.R != r || td.C != c || len(td.Data) != r*c {
			return errors.Wrapf(ErrCheckpointMismatch, "tensor %s (%dx%d) vs file %s (%dx%d)", p.Name, r, c, td.Name, td.R, td.C)
		}
		copy(p.Value.RawMatrix().Data, td.Data)
	}
	return nil
}
