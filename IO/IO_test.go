package IO

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"The cat sat on the mat.",
	"The dog ate the cat!",
	"A bird, a plane; a dog?",
}

func TestTextToWordSequence(t *testing.T) {
	assert.Equal(t, []string{"hello", "world", "it's", "me"},
		TextToWordSequence("Hello, WORLD!\tit's me..."))
	assert.Empty(t, TextToWordSequence(" ?!... "))
}

func TestFitOnTextsRanksByCountThenFirstSeen(t *testing.T) {
	tk := NewTokenizer(0)
	tk.FitOnTexts(corpus)
	v := tk.WordIndex()

	// the:4, a:3, cat:2, dog:2, then singletons in order of appearance
	assert.Equal(t, 1, v.TokenToID["the"])
	assert.Equal(t, 2, v.TokenToID["a"])
	assert.Equal(t, 3, v.TokenToID["cat"])
	assert.Equal(t, 4, v.TokenToID["dog"])
	assert.Equal(t, 5, v.TokenToID["sat"])
	assert.Equal(t, "", v.IDToToken[0])
	assert.Equal(t, 10, v.Size())
	for w, id := range v.TokenToID {
		assert.Equal(t, w, v.IDToToken[id])
	}
}

func TestTextsToSequencesHonoursNumWords(t *testing.T) {
	tk := NewTokenizer(0)
	tk.FitOnTexts(corpus)
	tk.NumWords = 4

	seqs := tk.TextsToSequences([]string{"the cat and the dog sat", "unknown words only"})
	assert.Equal(t, []int{1, 3, 1}, seqs[0])
	assert.Empty(t, seqs[1])
}

func TestPadSequences(t *testing.T) {
	seqs := [][]int{{}, {1, 2}, {1, 2, 3, 4, 5, 6}}
	out := PadSequences(seqs, 4, 0)
	assert.Equal(t, [][]int{{0, 0, 0, 0}, {0, 0, 1, 2}, {3, 4, 5, 6}}, out)
}

func TestPrepareTokenizedDataFixedLength(t *testing.T) {
	texts := append([]string{strings.Repeat("word ", 500)}, corpus...)
	data, wordIndex := PrepareTokenizedData(texts, 5, 140)
	require.Len(t, data, len(texts))
	for _, row := range data {
		assert.Len(t, row, 140)
		for _, id := range row {
			assert.Less(t, id, NumWords(wordIndex, 5))
		}
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadEmbeddingMatrixShape(t *testing.T) {
	tk := NewTokenizer(0)
	tk.FitOnTexts(corpus)
	wordIndex := tk.WordIndex()

	var sb strings.Builder
	sb.WriteString("the 0.1 0.2 0.3\n")
	sb.WriteString("cat 1 2 3\n")
	sb.WriteString("broken 1 2\n")
	sb.WriteString("dog x y z\n")
	sb.WriteString("zebra 9 9 9\n")
	path := writeFile(t, "vec.txt", sb.String())

	for _, limit := range []int{3, 9, 100} {
		m, err := LoadEmbeddingMatrix(path, wordIndex, limit, 3)
		require.NoError(t, err)
		r, c := m.Dims()
		assert.Equal(t, min(limit, wordIndex.Size()), r, "cap %d", limit)
		assert.Equal(t, 3, c)
		assert.Equal(t, []float64{0, 0, 0}, m.RawRowView(0))
		assert.Equal(t, []float64{0.1, 0.2, 0.3}, m.RawRowView(1))
	}

	m, err := LoadEmbeddingMatrix(path, wordIndex, 100, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, m.RawRowView(3))
	// malformed vector for "dog" leaves the row zero
	assert.Equal(t, []float64{0, 0, 0}, m.RawRowView(4))
}

func TestLoadEmbeddingIndexErrors(t *testing.T) {
	_, _, err := LoadEmbeddingIndex(filepath.Join(t.TempDir(), "missing.txt"), 3, nil)
	assert.Error(t, err)

	path := writeFile(t, "bad.txt", "a 1\nb 2\n")
	_, skipped, err := LoadEmbeddingIndex(path, 3, nil)
	assert.ErrorIs(t, err, ErrNoVectors)
	assert.Equal(t, 2, skipped)

	path = writeFile(t, "spaced.txt", "new york 1 2 3\nlast 4 5 6")
	idx, _, err := LoadEmbeddingIndex(path, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, idx["new york"])
	assert.Equal(t, []float64{4, 5, 6}, idx["last"])
}

func TestLoadBoth(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("text,label\n")
	for i := 0; i < 6; i++ {
		sb.WriteString(fmt.Sprintf("\"sample %d, with comma\",%s\n", i, []string{"neg", "neu", "pos"}[i%3]))
	}
	path := writeFile(t, "both.csv", sb.String())

	texts, labels, labelMap, err := LoadBoth(path)
	require.NoError(t, err)
	assert.Len(t, texts, 6)
	assert.Equal(t, "sample 0, with comma", texts[0])
	assert.Equal(t, map[string]int{"neg": 0, "neu": 1, "pos": 2}, labelMap)
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, labels)
	assert.Equal(t, []string{"neg", "neu", "pos"}, LabelNames(labelMap))
}

func TestLoadBothErrors(t *testing.T) {
	_, _, _, err := LoadBoth(filepath.Join(t.TempDir(), "none.csv"))
	assert.Error(t, err)

	_, _, _, err = fromSamples(nil)
	assert.ErrorIs(t, err, ErrEmptyDataset)

	_, _, _, err = fromSamples([]*Sample{{Text: "x", Label: " "}})
	assert.Error(t, err)
}

func TestToCategorical(t *testing.T) {
	m := ToCategorical([]int{2, 0}, 3)
	assert.Equal(t, []float64{0, 0, 1, 1, 0, 0}, m.RawMatrix().Data)
	assert.Panics(t, func() { ToCategorical([]int{3}, 3) })
}

func TestVocabJSONRoundTrip(t *testing.T) {
	tk := NewTokenizer(0)
	tk.FitOnTexts(corpus)
	path := filepath.Join(t.TempDir(), "out", "vocab.json")

	require.NoError(t, ExportVocabJSON(path, tk.WordIndex(), 6, 140, []string{"a", "b", "c"}))
	assert.True(t, FileExists(path))

	vf, err := ImportVocabJSON(path)
	require.NoError(t, err)
	assert.Equal(t, tk.WordIndex(), vf.Vocabulary())
	assert.Equal(t, 6, vf.NumWords)
	assert.Equal(t, []string{"a", "b", "c"}, vf.Labels)

	tk.NumWords = vf.NumWords
	again := NewTokenizerFromVocab(vf.Vocabulary(), vf.NumWords)
	assert.Equal(t, tk.TextsToSequences(corpus[:1]), again.TextsToSequences(corpus[:1]))
}

func TestExportVocabJSONReportsWriteFailure(t *testing.T) {
	if !FileExists("/dev/full") {
		t.Skip("no /dev/full")
	}
	tk := NewTokenizer(0)
	tk.FitOnTexts(corpus)
	assert.Error(t, ExportVocabJSON("/dev/full", tk.WordIndex(), 6, 140, nil))
}
