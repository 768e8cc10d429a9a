package crossval

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart"
)

// PlotHistory renders loss and accuracy curves for one fold into a PNG.
// Fold 0 is the holdout run.
func PlotHistory(path string, fold int, history []EpochStats) error {
	if len(history) < 2 {
		// a line needs two points
		return errors.Errorf("history has %d epochs, need at least 2", len(history))
	}
	epochs := make([]float64, len(history))
	curves := map[string][]float64{}
	names := []string{"loss", "val_loss", "acc", "val_acc"}
	for _, n := range names {
		curves[n] = make([]float64, len(history))
	}
	for i, h := range history {
		epochs[i] = float64(h.Epoch)
		curves["loss"][i] = h.Loss
		curves["val_loss"][i] = h.ValLoss
		curves["acc"][i] = h.Acc
		curves["val_acc"][i] = h.ValAcc
	}

	var series []chart.Series
	for i, n := range names {
		var dashes []float64
		if i%2 == 1 {
			dashes = []float64{5.0, 5.0} // validation curves
		}
		series = append(series, chart.ContinuousSeries{
			Name:    n,
			XValues: epochs,
			YValues: curves[n],
			Style: chart.Style{
				Show:            true,
				StrokeColor:     chart.GetAlternateColor(i / 2),
				StrokeDashArray: dashes,
			},
		})
	}

	title := "holdout"
	if fold > 0 {
		title = fmt.Sprintf("fold %d", fold)
	}
	graph := chart.Chart{
		Title:      title,
		TitleStyle: chart.StyleShow(),
		XAxis: chart.XAxis{
			Name:      "epoch",
			NameStyle: chart.StyleShow(),
			Style:     chart.StyleShow(),
		},
		YAxis: chart.YAxis{
			Style: chart.StyleShow(),
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create plot dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create plot")
	}
	if err := graph.Render(chart.PNG, f); err != nil {
		f.Close()
		return errors.Wrap(err, "render plot")
	}
	return errors.Wrap(f.Close(), "close plot")
}
