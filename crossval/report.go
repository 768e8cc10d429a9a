package crossval

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// ReportRow is one line of the cross-validation CSV.
type ReportRow struct {
	Fold       string  `csv:"fold"`
	BestEpoch  int     `csv:"best_epoch"`
	Loss       float64 `csv:"val_loss"`
	Accuracy   float64 `csv:"val_acc"`
	MacroF1    float64 `csv:"macro_f1"`
	Checkpoint string  `csv:"checkpoint"`
}

// WriteReport writes one row per fold followed by mean and std rows.
func WriteReport(path string, res *CVResult) error {
	rows := make([]*ReportRow, 0, len(res.Folds)+2)
	for _, f := range res.Folds {
		rows = append(rows, &ReportRow{
			Fold:       fmt.Sprint(f.Fold),
			BestEpoch:  f.BestEpoch,
			Loss:       f.Eval.Loss,
			Accuracy:   f.Eval.Accuracy,
			MacroF1:    f.Eval.MacroF1,
			Checkpoint: f.Checkpoint,
		})
	}
	s := res.Summary
	rows = append(rows,
		&ReportRow{Fold: "mean", Loss: s.MeanLoss, Accuracy: s.MeanAcc, MacroF1: s.MeanF1},
		&ReportRow{Fold: "std", Loss: s.StdLoss, Accuracy: s.StdAcc, MacroF1: s.StdF1},
	)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create report dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create report")
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		return errors.Wrap(err, "write report")
	}
	return errors.Wrap(f.Close(), "close report")
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) ([]*ReportRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open report")
	}
	defer f.Close()
	var rows []*ReportRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return rows, nil
}
