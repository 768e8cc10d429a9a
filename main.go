package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"

	"github.com/alexflint/go-arg"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/textcnn/IO"
	"github.com/manningwu07/textcnn/crossval"
	"github.com/manningwu07/textcnn/model"
	"github.com/manningwu07/textcnn/params"
)

type trainCmd struct {
	Folds  int `arg:"--folds" help:"override the number of folds"`
	Epochs int `arg:"--epochs" help:"override the epoch budget per fold"`
}

type holdoutCmd struct {
	Epochs int `arg:"--epochs" help:"override the epoch budget"`
}

type predictCmd struct {
	Checkpoint string `arg:"positional,required" help:"checkpoint written by train or holdout (.gob)"`
	Vocab      string `arg:"--vocab" help:"vocab file written at train time [default: <outputPrefix>-vocab.json]"`
}

type args struct {
	Config  string      `arg:"-c,--config" help:"YAML file overriding the built-in settings"`
	Data    string      `arg:"--data" help:"dataset CSV with text,label columns"`
	Out     string      `arg:"--out" help:"output prefix for checkpoints and reports"`
	Train   *trainCmd   `arg:"subcommand:train" help:"k-fold cross-validation (default)"`
	Holdout *holdoutCmd `arg:"subcommand:holdout" help:"single train/validation split"`
	Predict *predictCmd `arg:"subcommand:predict" help:"classify lines from stdin with a checkpoint"`
}

func (args) Description() string {
	return "n_conv: multi-branch Conv1D text classifier over frozen GloVe embeddings\n"
}

func main() {
	var a args
	arg.MustParse(&a)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, a, os.Stdin, os.Stdout); err != nil {
		params.Log.Fatal().Err(err).Msg("run failed")
	}
}

func run(ctx context.Context, a args, stdin io.Reader, stdout io.Writer) error {
	cfg, err := params.LoadConfig(a.Config)
	if err != nil {
		return err
	}
	if a.Data != "" {
		cfg.DatasetPath = a.Data
	}
	if a.Out != "" {
		cfg.OutputPrefix = a.Out
	}

	params.SetupLogger(os.Stderr, cfg.LogLevel)
	runID := uuid.NewString()
	params.Log = params.Log.With().Str("run", runID).Logger()

	switch {
	case a.Predict != nil:
		vocab := a.Predict.Vocab
		if vocab == "" {
			vocab = cfg.OutputPrefix + "-vocab.json"
		}
		return predict(a.Predict.Checkpoint, vocab, stdin, stdout)
	case a.Holdout != nil:
		if a.Holdout.Epochs > 0 {
			cfg.Epochs = a.Holdout.Epochs
		}
		return holdout(ctx, *cfg, stdout)
	default:
		if a.Train != nil {
			if a.Train.Folds > 0 {
				cfg.Folds = a.Train.Folds
			}
			if a.Train.Epochs > 0 {
				cfg.Epochs = a.Train.Epochs
			}
		}
		return train(ctx, *cfg, stdout)
	}
}

// corpus is everything derived from the dataset once per run and shared
// read-only by every fold.
type corpus struct {
	data      [][]int
	labels    []int
	classes   []string
	embedding *mat.Dense
}

func prepare(cfg params.TrainingConfig) (*corpus, error) {
	texts, labels, labelMap, err := IO.LoadBoth(cfg.DatasetPath)
	if err != nil {
		return nil, err
	}
	classes := IO.LabelNames(labelMap)
	if len(classes) != cfg.NumClasses {
		return nil, errors.Errorf("dataset has %d labels %v, model expects %d", len(classes), classes, cfg.NumClasses)
	}
	params.Log.Debug().Strs("classes", classes).Msg("label ids")

	data, wordIndex := IO.PrepareTokenizedData(texts, cfg.MaxNbWords, cfg.MaxSequenceLength)
	emb, err := IO.LoadEmbeddingMatrix(cfg.EmbeddingPath(), wordIndex, cfg.MaxNbWords, cfg.EmbeddingDim)
	if err != nil {
		return nil, err
	}

	vocabPath := cfg.OutputPrefix + "-vocab.json"
	numWords := IO.NumWords(wordIndex, cfg.MaxNbWords)
	if err := IO.ExportVocabJSON(vocabPath, wordIndex, numWords, cfg.MaxSequenceLength, classes); err != nil {
		return nil, err
	}
	params.Log.Info().Str("path", vocabPath).Msg("exported vocab")
	return &corpus{data: data, labels: labels, classes: classes, embedding: emb}, nil
}

func logSummary(emb *mat.Dense, cfg params.TrainingConfig) {
	rows, _ := emb.Dims()
	m := model.GenModel(emb, model.ArchitectureFromConfig(cfg, rows), rand.NewPCG(0, 0))
	params.Log.Info().Msg("model\n" + m.Summary())
}

func train(ctx context.Context, cfg params.TrainingConfig, stdout io.Writer) error {
	c, err := prepare(cfg)
	if err != nil {
		return err
	}
	logSummary(c.embedding, cfg)

	opts := crossval.OptionsFromConfig(cfg, c.classes)
	res, err := crossval.TrainModelCV(ctx, model.NewBuilder(c.embedding, cfg), cfg.OutputPrefix, c.data, c.labels, opts)
	if err != nil {
		return err
	}
	printFoldCurves(stdout, res.Folds)
	fmt.Fprintf(stdout, "✅ %d folds: acc %.4f ± %.4f, macro F1 %.4f ± %.4f\n",
		len(res.Folds), res.Summary.MeanAcc, res.Summary.StdAcc, res.Summary.MeanF1, res.Summary.StdF1)
	return nil
}

func holdout(ctx context.Context, cfg params.TrainingConfig, stdout io.Writer) error {
	c, err := prepare(cfg)
	if err != nil {
		return err
	}
	logSummary(c.embedding, cfg)

	opts := crossval.OptionsFromConfig(cfg, c.classes)
	fr, err := crossval.TrainHoldout(ctx, model.NewBuilder(c.embedding, cfg), cfg.OutputPrefix, c.data, c.labels, opts)
	if err != nil {
		return err
	}
	printFoldCurves(stdout, []crossval.FoldResult{*fr})
	fmt.Fprintf(stdout, "✅ holdout: best epoch %d, acc %.4f, macro F1 %.4f, loss %.4f\n",
		fr.BestEpoch, fr.Eval.Accuracy, fr.Eval.MacroF1, fr.Eval.Loss)
	return nil
}

func predict(checkpoint, vocabPath string, stdin io.Reader, stdout io.Writer) error {
	m, meta, err := model.LoadNConv(checkpoint)
	if err != nil {
		return err
	}
	vf, err := IO.ImportVocabJSON(vocabPath)
	if err != nil {
		return err
	}
	if vf.MaxSequenceLength != m.Arch.SeqLen {
		return errors.Errorf("vocab was built for %d tokens, checkpoint expects %d", vf.MaxSequenceLength, m.Arch.SeqLen)
	}
	if vf.NumWords < 1 || vf.NumWords > m.Arch.EmbRows {
		return errors.Errorf("vocab keeps %d words, checkpoint embedding has %d rows", vf.NumWords, m.Arch.EmbRows)
	}
	classes := meta.Classes
	if len(classes) == 0 {
		classes = vf.Labels
	}
	params.Log.Info().Str("checkpoint", checkpoint).Int("epoch", meta.Epoch).Msg("loaded model")
	tk := IO.NewTokenizerFromVocab(vf.Vocabulary(), vf.NumWords)
	return PredictCLI(stdin, stdout, m, tk, classes)
}
