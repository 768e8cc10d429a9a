package IO

import (
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/textcnn/params"
	"github.com/manningwu07/textcnn/utils"
)

// PadSequences makes every sequence exactly maxLen long. Short sequences are
// padded at the front with value, long ones keep their last maxLen tokens.
func PadSequences(seqs [][]int, maxLen, value int) [][]int {
	out := make([][]int, len(seqs))
	for i, s := range seqs {
		row := make([]int, maxLen)
		if len(s) >= maxLen {
			copy(row, s[len(s)-maxLen:])
		} else {
			pad := maxLen - len(s)
			for j := 0; j < pad; j++ {
				row[j] = value
			}
			copy(row[pad:], s)
		}
		out[i] = row
	}
	return out
}

// PrepareTokenizedData fits a word index on texts and returns the padded
// sequences. Only the min(maxNbWords, |vocab|) top ranked indices are kept,
// which is also the embedding matrix row count.
func PrepareTokenizedData(texts []string, maxNbWords, maxSeqLen int) ([][]int, params.Vocabulary) {
	tk := NewTokenizer(0)
	tk.FitOnTexts(texts)
	wordIndex := tk.WordIndex()
	tk.NumWords = NumWords(wordIndex, maxNbWords)

	data := PadSequences(tk.TextsToSequences(texts), maxSeqLen, 0)
	params.Log.Info().
		Int("uniqueTokens", wordIndex.Size()).
		Int("numWords", tk.NumWords).
		Int("maxSequenceLength", maxSeqLen).
		Msg("tokenized corpus")
	return data, wordIndex
}

// NumWords is the embedding row count for a word index under the cap.
func NumWords(wordIndex params.Vocabulary, maxNbWords int) int {
	return min(maxNbWords, wordIndex.Size())
}

// ToCategorical one-hot encodes labels into an (N x numClasses) matrix, the
// training targets.
func ToCategorical(labels []int, numClasses int) *mat.Dense {
	out := mat.NewDense(len(labels), numClasses, nil)
	for i, l := range labels {
		if l < 0 || l >= numClasses {
			panic("ToCategorical: label out of range")
		}
		out.SetRow(i, utils.OneHot(numClasses, l).RawRowView(0))
	}
	return out
}
