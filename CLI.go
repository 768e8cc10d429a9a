package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/manningwu07/textcnn/IO"
	"github.com/manningwu07/textcnn/model"
	"github.com/manningwu07/textcnn/utils"
)

// Prediction is the classification of one input line.
type Prediction struct {
	Label string
	Probs []float64
	Known int // tokens found in the vocabulary
}

// Classify tokenizes text the way training did and runs it through m.
func Classify(m *model.NConv, tk *IO.Tokenizer, classes []string, text string) Prediction {
	seq := tk.TextsToSequences([]string{text})[0]
	ids := IO.PadSequences([][]int{seq}, m.Arch.SeqLen, 0)[0]
	probs := m.Predict([][]int{ids})
	best := utils.Argmax(probs, 0)
	label := fmt.Sprint(best)
	if best < len(classes) {
		label = classes[best]
	}
	return Prediction{Label: label, Probs: append([]float64(nil), probs.RawRowView(0)...), Known: len(seq)}
}

// PredictCLI reads one text per line until EOF or "exit" and prints its
// predicted label with the class probabilities.
func PredictCLI(in io.Reader, out io.Writer, m *model.NConv, tk *IO.Tokenizer, classes []string) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	fmt.Fprintln(out, "Type a sentence to classify, 'exit' to quit.")
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			break
		}
		input := strings.TrimSpace(sc.Text())
		if input == "exit" {
			break
		}
		if input == "" {
			continue
		}
		p := Classify(m, tk, classes, input)
		var sb strings.Builder
		for i, v := range p.Probs {
			name := fmt.Sprint(i)
			if i < len(classes) {
				name = classes[i]
			}
			fmt.Fprintf(&sb, " %s=%.3f", name, v)
		}
		fmt.Fprintf(out, "%s\t[%s ] known=%d\n", p.Label, sb.String(), p.Known)
	}
	fmt.Fprintln(out)
	return sc.Err()
}
