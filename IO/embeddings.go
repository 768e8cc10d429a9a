package IO

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/textcnn/params"
)

var ErrNoVectors = errors.New("embedding file has no usable vectors")

// LoadEmbeddingIndex reads a GloVe style text file ("word f1 ... fdim" per
// line). When want is non-nil only words present in it are kept, which keeps
// memory bounded for large vector files. Lines with the wrong number of
// components are skipped and counted.
func LoadEmbeddingIndex(path string, dim int, want map[string]int) (map[string][]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, "open embedding file")
	}
	defer f.Close()

	index, skipped, err := readEmbeddings(f, dim, want)
	if err != nil {
		return nil, skipped, errors.Wrapf(err, "read %s", path)
	}
	return index, skipped, nil
}

func readEmbeddings(r io.Reader, dim int, want map[string]int) (map[string][]float64, int, error) {
	br := bufio.NewReaderSize(r, 1<<20) // 1MB buffer
	index := make(map[string][]float64)
	skipped, usable := 0, 0
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			fields := strings.Fields(line)
			if len(fields) < dim+1 {
				if len(fields) > 0 {
					skipped++
				}
			} else {
				// some vector files have words containing spaces
				word := strings.Join(fields[:len(fields)-dim], " ")
				vec, ok := parseVector(fields[len(fields)-dim:])
				if !ok {
					skipped++
				} else {
					usable++
					if want == nil {
						index[word] = vec
					} else if _, hit := want[word]; hit {
						index[word] = vec
					}
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, err
		}
	}
	if usable == 0 {
		return nil, skipped, ErrNoVectors
	}
	return index, skipped, nil
}

func parseVector(fields []string) ([]float64, bool) {
	vec := make([]float64, len(fields))
	for i, s := range fields {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		vec[i] = v
	}
	return vec, true
}

// LoadEmbeddingMatrix builds the (min(maxNbWords, |vocab|) x dim) lookup
// table. Row i holds the vector of the word with index i; padding row 0 and
// words missing from the file stay zero.
func LoadEmbeddingMatrix(path string, wordIndex params.Vocabulary, maxNbWords, dim int) (*mat.Dense, error) {
	rows := NumWords(wordIndex, maxNbWords)
	if rows < 1 {
		return nil, errors.Wrap(ErrEmptyDataset, "word index is empty")
	}
	want := make(map[string]int, rows)
	for id := 1; id < rows; id++ {
		want[wordIndex.IDToToken[id]] = id
	}
	index, skipped, err := LoadEmbeddingIndex(path, dim, want)
	if err != nil {
		return nil, err
	}
	m, found := EmbeddingMatrixFromIndex(index, wordIndex, maxNbWords, dim)
	params.Log.Info().
		Int("rows", rows).
		Int("found", found).
		Int("missing", rows-1-found).
		Int("skippedLines", skipped).
		Msg("built embedding matrix")
	return m, nil
}

// EmbeddingMatrixFromIndex fills the table from an already loaded index and
// reports how many rows got a vector.
func EmbeddingMatrixFromIndex(index map[string][]float64, wordIndex params.Vocabulary, maxNbWords, dim int) (*mat.Dense, int) {
	rows := NumWords(wordIndex, maxNbWords)
	m := mat.NewDense(rows, dim, nil)
	found := 0
	for id := 1; id < rows; id++ {
		vec, ok := index[wordIndex.IDToToken[id]]
		if !ok || len(vec) != dim {
			continue
		}
		copy(m.RawRowView(id), vec)
		found++
	}
	return m, found
}
