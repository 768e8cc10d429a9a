package crossval

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/textcnn/IO"
	"github.com/manningwu07/textcnn/model"
	"github.com/manningwu07/textcnn/optimizations"
	"github.com/manningwu07/textcnn/params"
	"github.com/manningwu07/textcnn/utils"
)

// Options controls fitting. OptionsFromConfig fills it from a TrainingConfig.
type Options struct {
	Folds           int
	ValidationSplit float64
	Epochs          int
	BatchSize       int

	LearningRate float64
	Beta1, Beta2 float64
	Eps          float64
	WeightDecay  float64
	GradClip     float64 // 0 disables clipping

	Patience int    // epochs without improvement before stopping, 0 = never
	Monitor  string // params.MonitorValLoss or params.MonitorValAcc
	Seed     int64
	Workers  int // 0 = GOMAXPROCS

	NumClasses int
	Classes    []string
	PlotCurves bool
}

func OptionsFromConfig(cfg params.TrainingConfig, classes []string) Options {
	return Options{
		Folds:           cfg.Folds,
		ValidationSplit: cfg.ValidationSplit,
		Epochs:          cfg.Epochs,
		BatchSize:       cfg.BatchSize,
		LearningRate:    cfg.LearningRate,
		Beta1:           cfg.AdamBeta1,
		Beta2:           cfg.AdamBeta2,
		Eps:             cfg.AdamEps,
		WeightDecay:     cfg.WeightDecay,
		GradClip:        cfg.GradClip,
		Patience:        cfg.Patience,
		Monitor:         cfg.Monitor,
		Seed:            cfg.Seed,
		Workers:         cfg.Workers,
		NumClasses:      cfg.NumClasses,
		Classes:         classes,
		PlotCurves:      cfg.PlotCurves,
	}
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// EpochStats is one row of a learning curve.
type EpochStats struct {
	Epoch   int
	Loss    float64
	Acc     float64
	ValLoss float64
	ValAcc  float64
	Elapsed time.Duration
}

// FoldResult is what one fold leaves behind once its best weights are
// reloaded and scored.
type FoldResult struct {
	Fold       int // 1-based
	BestEpoch  int
	Checkpoint string
	Eval       Evaluation
	History    []EpochStats
}

type CVResult struct {
	Folds   []FoldResult
	Summary Summary
}

// CheckpointPath names the best-weights file of a fold.
func CheckpointPath(prefix string, fold int) string {
	return fmt.Sprintf("%s-fold%02d.gob", prefix, fold)
}

func validateInputs(data [][]int, labels []int, opts Options) error {
	if len(data) == 0 {
		return errors.Wrap(ErrBadSplit, "no samples")
	}
	if len(data) != len(labels) {
		return errors.Wrapf(ErrBadSplit, "%d sequences but %d labels", len(data), len(labels))
	}
	for i, l := range labels {
		if l < 0 || l >= opts.NumClasses {
			return errors.Wrapf(ErrBadSplit, "label %d of sample %d outside [0,%d)", l, i, opts.NumClasses)
		}
	}
	if opts.Epochs < 1 || opts.BatchSize < 1 {
		return errors.Wrap(ErrBadSplit, "epochs and batch size must be positive")
	}
	return nil
}

// TrainModelCV runs k-fold cross-validation. Each fold gets a fresh model from
// builder, is fit on the other folds, checkpoints its best epoch to
// CheckpointPath(prefix, fold) and is scored after reloading that checkpoint.
// Folds run one after another. Cancelling ctx stops between batches.
func TrainModelCV(ctx context.Context, builder model.Builder, prefix string, data [][]int, labels []int, opts Options) (*CVResult, error) {
	if err := validateInputs(data, labels, opts); err != nil {
		return nil, err
	}
	splits, err := KFold(len(data), opts.Folds, opts.Seed)
	if err != nil {
		return nil, err
	}

	res := &CVResult{}
	for f, split := range splits {
		fold := f + 1
		fr, err := trainSplit(ctx, builder, CheckpointPath(prefix, fold), fold, split, data, labels, opts)
		if err != nil {
			return res, errors.Wrapf(err, "fold %d", fold)
		}
		if opts.PlotCurves {
			if err := PlotHistory(fmt.Sprintf("%s-fold%02d.png", prefix, fold), fold, fr.History); err != nil {
				params.Log.Warn().Err(err).Int("fold", fold).Msg("could not plot learning curves")
			}
		}
		res.Folds = append(res.Folds, *fr)
	}
	res.Summary = Aggregate(res.Folds)

	if err := WriteReport(prefix+"-cv.csv", res); err != nil {
		return res, err
	}
	params.Log.Info().
		Float64("meanAcc", res.Summary.MeanAcc).
		Float64("stdAcc", res.Summary.StdAcc).
		Float64("meanF1", res.Summary.MeanF1).
		Float64("meanLoss", res.Summary.MeanLoss).
		Msg("cross-validation done")
	return res, nil
}

// TrainHoldout fits a single model on the first 1-ValidationSplit of the data
// and validates on the rest, checkpointing to <prefix>-holdout.gob.
func TrainHoldout(ctx context.Context, builder model.Builder, prefix string, data [][]int, labels []int, opts Options) (*FoldResult, error) {
	if err := validateInputs(data, labels, opts); err != nil {
		return nil, err
	}
	split, err := HoldoutSplit(len(data), opts.ValidationSplit)
	if err != nil {
		return nil, err
	}
	fr, err := trainSplit(ctx, builder, prefix+"-holdout.gob", 0, split, data, labels, opts)
	if err != nil {
		return nil, err
	}
	if opts.PlotCurves {
		if err := PlotHistory(prefix+"-holdout.png", 0, fr.History); err != nil {
			params.Log.Warn().Err(err).Msg("could not plot learning curves")
		}
	}
	return fr, nil
}

// improved reports whether score beats best under the monitored metric.
func improved(monitor string, score, best float64) bool {
	if monitor == params.MonitorValAcc {
		return score > best
	}
	return score < best
}

func monitored(monitor string, ev Evaluation) float64 {
	if monitor == params.MonitorValAcc {
		return ev.Accuracy
	}
	return ev.Loss
}

func trainSplit(ctx context.Context, builder model.Builder, ckpt string, fold int, split Split, data [][]int, labels []int, opts Options) (*FoldResult, error) {
	log := params.Log.With().Int("fold", fold).Logger()
	m := builder()
	tr := newTrainer(m, data, labels, opts, uint64(fold))

	best := math.Inf(1)
	if opts.Monitor == params.MonitorValAcc {
		best = math.Inf(-1)
	}
	bestEpoch, patience := 0, 0
	var history []EpochStats
	log.Info().Int("train", len(split.Train)).Int("val", len(split.Val)).Str("checkpoint", ckpt).Msg("fold start")

	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		start := time.Now()
		loss, acc, err := tr.epoch(ctx, split.Train, epoch)
		if err != nil {
			return nil, err
		}
		ev := tr.evaluate(split.Val)
		st := EpochStats{Epoch: epoch, Loss: loss, Acc: acc, ValLoss: ev.Loss, ValAcc: ev.Accuracy, Elapsed: time.Since(start)}
		history = append(history, st)

		score := monitored(opts.Monitor, ev)
		entry := log.Info()
		if improved(opts.Monitor, score, best) {
			best, bestEpoch, patience = score, epoch, 0
			meta := model.Meta{Classes: opts.Classes, Epoch: epoch, Score: score}
			if err := model.SaveNConv(m, ckpt, meta); err != nil {
				return nil, err
			}
			entry = entry.Bool("saved", true)
		} else {
			patience++
		}
		entry.Int("epoch", epoch).
			Float64("loss", loss).
			Float64("acc", acc).
			Float64("valLoss", ev.Loss).
			Float64("valAcc", ev.Accuracy).
			Dur("took", st.Elapsed).
			Msg("epoch")

		if opts.Patience > 0 && patience >= opts.Patience {
			log.Info().Int("epoch", epoch).Int("bestEpoch", bestEpoch).Msg("early stop: no improvement")
			break
		}
	}

	if bestEpoch == 0 {
		// monitored metric was NaN every epoch; keep the final weights
		if err := model.SaveNConv(m, ckpt, model.Meta{Classes: opts.Classes, Epoch: len(history)}); err != nil {
			return nil, err
		}
		bestEpoch = len(history)
	}
	if _, err := model.LoadWeights(m, ckpt); err != nil {
		return nil, errors.Wrap(err, "reload best weights")
	}
	ev := tr.evaluate(split.Val)
	logConfusion(log, ev, opts.Classes)
	return &FoldResult{Fold: fold, BestEpoch: bestEpoch, Checkpoint: ckpt, Eval: ev, History: history}, nil
}

func logConfusion(log zerolog.Logger, ev Evaluation, classes []string) {
	for gold, row := range ev.Confusion {
		name := fmt.Sprint(gold)
		if gold < len(classes) {
			name = classes[gold]
		}
		log.Debug().Str("gold", name).Ints("predicted", row).Msg("confusion")
	}
	log.Info().Float64("acc", ev.Accuracy).Float64("macroF1", ev.MacroF1).Float64("loss", ev.Loss).Msg("best weights")
}

// trainer owns the model, its optimizer and one gradient clone per worker.
// Clones share the model's weights, so Adam's in-place updates are visible
// to them on the next batch.
type trainer struct {
	m       *model.NConv
	data    [][]int
	labels  []int
	targets *mat.Dense // one-hot rows of labels
	opts    Options
	adam    *optimizations.Adam
	clones  []*model.NConv
	stream  uint64
	step    uint64
}

func newTrainer(m *model.NConv, data [][]int, labels []int, opts Options, stream uint64) *trainer {
	tr := &trainer{
		m: m, data: data, labels: labels, opts: opts, stream: stream,
		targets: IO.ToCategorical(labels, opts.NumClasses),
		adam:    optimizations.NewAdam(opts.LearningRate, opts.Beta1, opts.Beta2, opts.Eps, opts.WeightDecay),
	}
	for w := 0; w < opts.workers(); w++ {
		tr.clones = append(tr.clones, m.CloneForGrads(rand.NewPCG(uint64(opts.Seed), stream)))
	}
	return tr
}

func (tr *trainer) target(i int) mat.Matrix {
	return tr.targets.Slice(i, i+1, 0, tr.opts.NumClasses)
}

// chunks deals idx into at most n contiguous pieces.
func chunks(idx []int, n int) [][]int {
	if n > len(idx) {
		n = len(idx)
	}
	out := make([][]int, 0, n)
	size := (len(idx) + n - 1) / max(n, 1)
	for start := 0; start < len(idx); start += size {
		out = append(out, idx[start:min(start+size, len(idx))])
	}
	return out
}

func (tr *trainer) epoch(ctx context.Context, train []int, epoch int) (float64, float64, error) {
	order := append([]int(nil), train...)
	rng := rand.New(rand.NewPCG(uint64(tr.opts.Seed)+tr.stream, uint64(epoch)))
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	lossSum, correct := 0.0, 0
	for start := 0; start < len(order); start += tr.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return 0, 0, errors.Wrap(err, "training interrupted")
		}
		batch := order[start:min(start+tr.opts.BatchSize, len(order))]
		l, c := tr.batch(batch)
		lossSum += l
		correct += c
	}
	n := float64(len(order))
	return lossSum / n, float64(correct) / n, nil
}

// batch computes gradients for one mini-batch across the worker clones, sums
// them in worker order and takes one Adam step on the mean gradient.
func (tr *trainer) batch(batch []int) (float64, int) {
	tr.step++
	parts := chunks(batch, len(tr.clones))
	losses := make([]float64, len(parts))
	correct := make([]int, len(parts))

	p := pool.New().WithMaxGoroutines(len(parts))
	for w, part := range parts {
		clone := tr.clones[w]
		clone.Drop.Reseed(rand.NewPCG(tr.step, tr.stream<<32|uint64(w)))
		p.Go(func() {
			clone.ZeroGrads()
			for _, i := range part {
				probs := clone.Forward(tr.data[i], true)
				l, g := utils.CategoricalCrossEntropy(probs, tr.target(i))
				clone.Backward(g)
				losses[w] += l
				if utils.Argmax(probs, 0) == tr.labels[i] {
					correct[w]++
				}
			}
		})
	}
	p.Wait()

	tr.m.ZeroGrads()
	for w := range parts {
		tr.m.AddGrads(tr.clones[w])
	}
	ps := tr.m.Params()
	scale := 1 / float64(len(batch))
	if tr.opts.GradClip > 0 {
		grads := make([]*mat.Dense, len(ps))
		for i, prm := range ps {
			prm.Grad.Scale(scale, prm.Grad)
			grads[i] = prm.Grad
		}
		utils.ClipGrads(tr.opts.GradClip, grads...)
		scale = 1
	}
	tr.adam.Step(ps, scale)

	lossSum, hits := 0.0, 0
	for w := range parts {
		lossSum += losses[w]
		hits += correct[w]
	}
	return lossSum, hits
}

// evaluate scores the current weights on idx with dropout off.
func (tr *trainer) evaluate(idx []int) Evaluation {
	parts := chunks(idx, len(tr.clones))
	preds := make([][]int, len(parts))
	losses := make([]float64, len(parts))

	p := pool.New().WithMaxGoroutines(max(len(parts), 1))
	for w, part := range parts {
		clone := tr.clones[w]
		p.Go(func() {
			preds[w] = make([]int, len(part))
			for k, i := range part {
				probs := clone.Forward(tr.data[i], false)
				l, _ := utils.CategoricalCrossEntropy(probs, tr.target(i))
				losses[w] += l
				preds[w][k] = utils.Argmax(probs, 0)
			}
		})
	}
	p.Wait()

	gold := make([]int, 0, len(idx))
	pred := make([]int, 0, len(idx))
	lossSum := 0.0
	for w, part := range parts {
		for k, i := range part {
			gold = append(gold, tr.labels[i])
			pred = append(pred, preds[w][k])
		}
		lossSum += losses[w]
	}
	return Score(gold, pred, lossSum, tr.opts.NumClasses)
}
