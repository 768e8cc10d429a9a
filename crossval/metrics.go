package crossval

import (
	"github.com/montanaflynn/stats"
)

// Evaluation is the score of one model on one set of samples.
type Evaluation struct {
	Loss       float64
	Accuracy   float64
	MacroF1    float64
	PerClassF1 []float64
	Confusion  [][]int // [gold][predicted]
}

// Score builds an Evaluation from gold labels, predictions and the summed
// cross-entropy.
func Score(gold, pred []int, lossSum float64, numClasses int) Evaluation {
	conf := make([][]int, numClasses)
	for i := range conf {
		conf[i] = make([]int, numClasses)
	}
	correct := 0
	for i := range gold {
		conf[gold[i]][pred[i]]++
		if gold[i] == pred[i] {
			correct++
		}
	}
	ev := Evaluation{Confusion: conf, PerClassF1: make([]float64, numClasses)}
	if len(gold) == 0 {
		return ev
	}
	ev.Loss = lossSum / float64(len(gold))
	ev.Accuracy = float64(correct) / float64(len(gold))

	for c := 0; c < numClasses; c++ {
		tp := conf[c][c]
		predicted, actual := 0, 0
		for o := 0; o < numClasses; o++ {
			predicted += conf[o][c]
			actual += conf[c][o]
		}
		if tp == 0 {
			continue
		}
		p := float64(tp) / float64(predicted)
		r := float64(tp) / float64(actual)
		ev.PerClassF1[c] = 2 * p * r / (p + r)
	}
	ev.MacroF1, _ = stats.Mean(ev.PerClassF1)
	return ev
}

// Summary is mean and population standard deviation over folds.
type Summary struct {
	MeanLoss, StdLoss float64
	MeanAcc, StdAcc   float64
	MeanF1, StdF1     float64
}

func meanStd(xs []float64) (float64, float64) {
	mean, err := stats.Mean(xs)
	if err != nil {
		return 0, 0
	}
	std, err := stats.StandardDeviationPopulation(xs)
	if err != nil {
		return mean, 0
	}
	return mean, std
}

// Aggregate summarises the best-epoch evaluations of every fold.
func Aggregate(folds []FoldResult) Summary {
	var loss, acc, f1 []float64
	for _, f := range folds {
		loss = append(loss, f.Eval.Loss)
		acc = append(acc, f.Eval.Accuracy)
		f1 = append(f1, f.Eval.MacroF1)
	}
	var s Summary
	s.MeanLoss, s.StdLoss = meanStd(loss)
	s.MeanAcc, s.StdAcc = meanStd(acc)
	s.MeanF1, s.StdF1 = meanStd(f1)
	return s
}
