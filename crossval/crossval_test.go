package crossval

import (
	"context"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/textcnn/IO"
	"github.com/manningwu07/textcnn/model"
	"github.com/manningwu07/textcnn/params"
)

func TestKFoldPartitions(t *testing.T) {
	for _, tc := range []struct{ n, k int }{{10, 10}, {23, 5}, {100, 10}, {7, 2}} {
		splits, err := KFold(tc.n, tc.k, 42)
		require.NoError(t, err)
		require.Len(t, splits, tc.k)

		seen := make(map[int]int)
		minSize, maxSize := tc.n, 0
		for _, s := range splits {
			assert.Equal(t, tc.n, len(s.Train)+len(s.Val))
			for _, i := range s.Val {
				seen[i]++
			}
			inVal := make(map[int]bool)
			for _, i := range s.Val {
				inVal[i] = true
			}
			for _, i := range s.Train {
				assert.False(t, inVal[i], "sample %d in both train and val", i)
			}
			minSize, maxSize = min(minSize, len(s.Val)), max(maxSize, len(s.Val))
		}
		assert.Len(t, seen, tc.n)
		for i, c := range seen {
			assert.Equal(t, 1, c, "sample %d", i)
		}
		assert.LessOrEqual(t, maxSize-minSize, 1)
	}
}

func TestKFoldDeterministicAndShuffled(t *testing.T) {
	a, err := KFold(50, 5, 1)
	require.NoError(t, err)
	b, _ := KFold(50, 5, 1)
	c, _ := KFold(50, 5, 2)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, a[0].Val)
}

func TestKFoldErrors(t *testing.T) {
	_, err := KFold(5, 1, 0)
	assert.ErrorIs(t, err, ErrBadSplit)
	_, err = KFold(3, 4, 0)
	assert.ErrorIs(t, err, ErrBadSplit)
}

func TestHoldoutSplit(t *testing.T) {
	s, err := HoldoutSplit(20, 0.1)
	require.NoError(t, err)
	assert.Equal(t, []int{18, 19}, s.Val)
	assert.Len(t, s.Train, 18)

	_, err = HoldoutSplit(1, 0.5)
	assert.ErrorIs(t, err, ErrBadSplit)
	_, err = HoldoutSplit(5, 1)
	assert.ErrorIs(t, err, ErrBadSplit)
}

func TestChunks(t *testing.T) {
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunks([]int{1, 2, 3, 4, 5}, 3))
	assert.Equal(t, [][]int{{1}, {2}}, chunks([]int{1, 2}, 8))
	assert.Empty(t, chunks(nil, 4))
}

func TestScore(t *testing.T) {
	gold := []int{0, 0, 1, 1, 2, 2}
	pred := []int{0, 1, 1, 1, 2, 0}
	ev := Score(gold, pred, 3.0, 3)
	assert.InDelta(t, 0.5, ev.Loss, 1e-12)
	assert.InDelta(t, 4.0/6, ev.Accuracy, 1e-12)
	assert.Equal(t, [][]int{{1, 1, 0}, {0, 2, 0}, {1, 0, 1}}, ev.Confusion)
	// class 0: p=1/2 r=1/2; class 1: p=2/3 r=1; class 2: p=1 r=1/2
	assert.InDelta(t, 0.5, ev.PerClassF1[0], 1e-12)
	assert.InDelta(t, 0.8, ev.PerClassF1[1], 1e-12)
	assert.InDelta(t, 2.0/3, ev.PerClassF1[2], 1e-12)
	assert.InDelta(t, (0.5+0.8+2.0/3)/3, ev.MacroF1, 1e-12)

	empty := Score(nil, nil, 0, 3)
	assert.Zero(t, empty.Accuracy)
}

func TestAggregate(t *testing.T) {
	s := Aggregate([]FoldResult{
		{Eval: Evaluation{Accuracy: 0.6, Loss: 1, MacroF1: 0.5}},
		{Eval: Evaluation{Accuracy: 0.8, Loss: 3, MacroF1: 0.7}},
	})
	assert.InDelta(t, 0.7, s.MeanAcc, 1e-12)
	assert.InDelta(t, 0.1, s.StdAcc, 1e-12)
	assert.InDelta(t, 2, s.MeanLoss, 1e-12)
	assert.InDelta(t, 1, s.StdLoss, 1e-12)
	assert.InDelta(t, 0.6, s.MeanF1, 1e-12)
}

// toyProblem is a separable 3-class task: the class is whichever of the
// tokens 1, 2, 3 the sequence contains.
func toyProblem(n int) ([][]int, []int, *mat.Dense) {
	rng := rand.New(rand.NewPCG(5, 5))
	data := make([][]int, n)
	labels := make([]int, n)
	for i := range data {
		labels[i] = i % 3
		seq := make([]int, 6)
		for j := range seq {
			if rng.IntN(2) == 0 {
				seq[j] = 4
			}
		}
		seq[rng.IntN(6)] = labels[i] + 1
		data[i] = seq
	}
	emb := mat.NewDense(5, 3, []float64{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		0.2, 0.2, 0.2,
	})
	return data, labels, emb
}

func toyBuilder(emb *mat.Dense) model.Builder {
	arch := model.Architecture{
		SeqLen: 6, EmbRows: 5, EmbDim: 3,
		KernelSizes: []int{5, 3, 7, 4}, Filters: 4,
		DenseUnits: 8, DropoutRate: 0.5, NumClasses: 3,
	}
	calls := uint64(0)
	return func() *model.NConv {
		calls++
		return model.GenModel(emb, arch, rand.NewPCG(11, calls))
	}
}

func toyOptions() Options {
	opts := OptionsFromConfig(params.Config, []string{"neg", "neu", "pos"})
	opts.Folds = 3
	opts.Epochs = 4
	opts.BatchSize = 8
	opts.LearningRate = 0.01
	opts.Workers = 3
	opts.PlotCurves = false
	return opts
}

func TestTrainModelCVWritesArtifacts(t *testing.T) {
	data, labels, emb := toyProblem(30)
	prefix := filepath.Join(t.TempDir(), "n_conv", "n_conv-model")
	opts := toyOptions()
	opts.PlotCurves = true

	res, err := TrainModelCV(context.Background(), toyBuilder(emb), prefix, data, labels, opts)
	require.NoError(t, err)
	require.Len(t, res.Folds, 3)

	for i, f := range res.Folds {
		assert.Equal(t, i+1, f.Fold)
		assert.Equal(t, CheckpointPath(prefix, i+1), f.Checkpoint)
		assert.True(t, IO.FileExists(f.Checkpoint))
		assert.True(t, IO.FileExists(fmt.Sprintf("%s-fold%02d.png", prefix, i+1)))
		assert.Len(t, f.History, 4)
		assert.GreaterOrEqual(t, f.BestEpoch, 1)
		assert.LessOrEqual(t, f.BestEpoch, 4)

		// reported score is the checkpointed epoch's validation loss
		assert.InDelta(t, f.History[f.BestEpoch-1].ValLoss, f.Eval.Loss, 1e-9)

		loaded, meta, err := model.LoadNConv(f.Checkpoint)
		require.NoError(t, err)
		assert.Equal(t, f.BestEpoch, meta.Epoch)
		assert.Equal(t, []string{"neg", "neu", "pos"}, meta.Classes)
		assert.Equal(t, 6, loaded.Arch.SeqLen)
	}

	rows, err := ReadReport(prefix + "-cv.csv")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "1", rows[0].Fold)
	assert.Equal(t, "mean", rows[3].Fold)
	assert.InDelta(t, res.Summary.MeanAcc, rows[3].Accuracy, 1e-9)
	assert.Equal(t, "std", rows[4].Fold)
}

func TestTrainingIsReproducible(t *testing.T) {
	data, labels, emb := toyProblem(24)
	run := func() []EpochStats {
		fr, err := TrainHoldout(context.Background(), toyBuilder(emb), filepath.Join(t.TempDir(), "m"), data, labels, toyOptions())
		require.NoError(t, err)
		return fr.History
	}
	a, b := run(), run()
	require.Len(t, a, len(b))
	for i := range a {
		assert.Equal(t, a[i].Loss, b[i].Loss)
		assert.Equal(t, a[i].ValLoss, b[i].ValLoss)
	}
}

func TestTrainingLowersLoss(t *testing.T) {
	data, labels, emb := toyProblem(60)
	opts := toyOptions()
	opts.Epochs = 15
	opts.ValidationSplit = 0.2
	fr, err := TrainHoldout(context.Background(), toyBuilder(emb), filepath.Join(t.TempDir(), "m"), data, labels, opts)
	require.NoError(t, err)
	assert.Less(t, fr.History[len(fr.History)-1].Loss, fr.History[0].Loss)
}

func TestEarlyStopping(t *testing.T) {
	data, labels, emb := toyProblem(24)
	opts := toyOptions()
	opts.Epochs = 10
	opts.Patience = 1
	opts.LearningRate = 0 // weights never move, so val_loss never improves after epoch 1
	fr, err := TrainHoldout(context.Background(), toyBuilder(emb), filepath.Join(t.TempDir(), "m"), data, labels, opts)
	require.NoError(t, err)
	assert.Len(t, fr.History, 2)
	assert.Equal(t, 1, fr.BestEpoch)
}

func TestMonitorValAcc(t *testing.T) {
	assert.True(t, improved(params.MonitorValAcc, 0.6, 0.5))
	assert.False(t, improved(params.MonitorValAcc, 0.5, 0.5))
	assert.True(t, improved(params.MonitorValLoss, 0.4, 0.5))
	assert.Equal(t, 0.9, monitored(params.MonitorValAcc, Evaluation{Accuracy: 0.9, Loss: 2}))
	assert.Equal(t, 2.0, monitored(params.MonitorValLoss, Evaluation{Accuracy: 0.9, Loss: 2}))
}

func TestCancelledContextStops(t *testing.T) {
	data, labels, emb := toyProblem(30)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := TrainModelCV(ctx, toyBuilder(emb), filepath.Join(t.TempDir(), "m"), data, labels, toyOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRejectsBadLabels(t *testing.T) {
	data, labels, emb := toyProblem(9)
	labels[3] = 7
	_, err := TrainModelCV(context.Background(), toyBuilder(emb), filepath.Join(t.TempDir(), "m"), data, labels, toyOptions())
	assert.ErrorIs(t, err, ErrBadSplit)

	_, err = TrainModelCV(context.Background(), toyBuilder(emb), "m", data, labels[:4], toyOptions())
	assert.ErrorIs(t, err, ErrBadSplit)
}

func TestWriteReportReportsWriteFailure(t *testing.T) {
	if !IO.FileExists("/dev/full") {
		t.Skip("no /dev/full")
	}
	res := &CVResult{Folds: []FoldResult{{Fold: 1, BestEpoch: 2, Checkpoint: "m-fold01.gob"}}}
	assert.Error(t, WriteReport("/dev/full", res))
}

func TestTrainerTargetsAreOneHot(t *testing.T) {
	data, labels, emb := toyProblem(6)
	opts := toyOptions()
	tr := newTrainer(toyBuilder(emb)(), data, labels, opts, 1)
	for i, l := range labels {
		row := mat.Row(nil, 0, tr.target(i))
		assert.Equal(t, 1.0, row[l])
		assert.InDelta(t, 1.0, floats.Sum(row), 1e-12)
	}
}
