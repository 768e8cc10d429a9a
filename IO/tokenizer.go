package IO

import (
	"sort"
	"strings"

	"github.com/sugarme/tokenizer/normalizer"

	"github.com/manningwu07/textcnn/params"
)

// Characters treated as word separators.
const filters = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~\t\n"

var filterReplacer = func() *strings.Replacer {
	pairs := make([]string, 0, 2*len(filters))
	for _, c := range filters {
		pairs = append(pairs, string(c), " ")
	}
	return strings.NewReplacer(pairs...)
}()

// Cleans control chars and lowercases; accents and CJK are left alone.
var bertNorm = normalizer.NewBertNormalizer(true, true, false, false)

// TextToWordSequence normalises text and splits it into words.
func TextToWordSequence(text string) []string {
	s := strings.ToLower(text)
	if n, err := bertNorm.Normalize(normalizer.NewNormalizedFrom(text)); err == nil {
		s = n.GetNormalized()
	}
	return strings.Fields(filterReplacer.Replace(s))
}

// Tokenizer builds a frequency ranked word index and turns texts into index
// sequences. Index 0 is reserved for padding.
type Tokenizer struct {
	// NumWords caps the indices TextsToSequences emits to [1, NumWords).
	// 0 disables the cap.
	NumWords int

	counts map[string]int
	order  []string // first appearance
	vocab  params.Vocabulary
}

func NewTokenizer(numWords int) *Tokenizer {
	return &Tokenizer{NumWords: numWords, counts: make(map[string]int)}
}

// NewTokenizerFromVocab rebuilds a fitted tokenizer, e.g. from vocab.json.
func NewTokenizerFromVocab(v params.Vocabulary, numWords int) *Tokenizer {
	return &Tokenizer{NumWords: numWords, counts: make(map[string]int), vocab: v}
}

// FitOnTexts counts words across texts and rebuilds the word index: most
// frequent first, ties broken by first appearance.
func (tk *Tokenizer) FitOnTexts(texts []string) {
	for _, text := range texts {
		for _, w := range TextToWordSequence(text) {
			if _, seen := tk.counts[w]; !seen {
				tk.order = append(tk.order, w)
			}
			tk.counts[w]++
		}
	}
	ranked := append([]string(nil), tk.order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return tk.counts[ranked[i]] > tk.counts[ranked[j]]
	})
	id2tok := make([]string, 1, len(ranked)+1)
	tok2id := make(map[string]int, len(ranked))
	for _, w := range ranked {
		tok2id[w] = len(id2tok)
		id2tok = append(id2tok, w)
	}
	tk.vocab = params.Vocabulary{TokenToID: tok2id, IDToToken: id2tok}
}

func (tk *Tokenizer) WordIndex() params.Vocabulary {
	return tk.vocab
}

// TextsToSequences drops unknown words and words ranked at or past NumWords.
func (tk *Tokenizer) TextsToSequences(texts []string) [][]int {
	out := make([][]int, len(texts))
	for i, text := range texts {
		words := TextToWordSequence(text)
		seq := make([]int, 0, len(words))
		for _, w := range words {
			id, ok := tk.vocab.TokenToID[w]
			if !ok {
				continue
			}
			if tk.NumWords > 0 && id >= tk.NumWords {
				continue
			}
			seq = append(seq, id)
		}
		out[i] = seq
	}
	return out
}
