package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/manningwu07/textcnn/crossval"
)

// asciiPlot draws a crude vertical bar chart of values in [0,1], one column
// per value.
func asciiPlot(w io.Writer, values []float64) {
	const height = 10 // number of text rows
	n := len(values)
	if n == 0 {
		fmt.Fprintln(w, "no data to plot")
		return
	}
	for row := height; row >= 1; row-- {
		threshold := float64(row) / float64(height)
		var sb strings.Builder
		for _, v := range values {
			if v >= threshold {
				sb.WriteString("█")
			} else {
				sb.WriteString(" ")
			}
		}
		fmt.Fprintln(w, sb.String())
	}
	fmt.Fprintln(w, strings.Repeat("─", n))
	var sb strings.Builder
	for i := range values {
		if i%5 == 0 {
			sb.WriteString(strconv.Itoa((i + 1) % 10))
		} else {
			sb.WriteString(" ")
		}
	}
	fmt.Fprintln(w, sb.String())
}

// printFoldCurves shows the validation accuracy of every epoch of every fold.
func printFoldCurves(w io.Writer, folds []crossval.FoldResult) {
	for _, f := range folds {
		acc := make([]float64, len(f.History))
		for i, h := range f.History {
			acc[i] = h.ValAcc
		}
		fmt.Fprintf(w, "fold %d val_acc (best epoch %d, %.4f)\n", f.Fold, f.BestEpoch, f.Eval.Accuracy)
		asciiPlot(w, acc)
	}
}
