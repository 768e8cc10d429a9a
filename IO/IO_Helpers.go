package IO

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/manningwu07/textcnn/params"
)

// VocabFile is what predict needs to tokenize text the way training did.
type VocabFile struct {
	TokenToID         map[string]int `json:"TokenToID"`
	IDToToken         []string       `json:"IDToToken"`
	NumWords          int            `json:"NumWords"`
	MaxSequenceLength int            `json:"MaxSequenceLength"`
	Labels            []string       `json:"Labels"`
}

func ExportVocabJSON(path string, v params.Vocabulary, numWords, maxSeqLen int, labels []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create vocab dir")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create vocab file")
	}
	data := VocabFile{
		TokenToID:         v.TokenToID,
		IDToToken:         v.IDToToken,
		NumWords:          numWords,
		MaxSequenceLength: maxSeqLen,
		Labels:            labels,
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		return errors.Wrap(err, "write vocab file")
	}
	return errors.Wrap(f.Close(), "close vocab file")
}

// ImportVocabJSON loads a file written by ExportVocabJSON.
func ImportVocabJSON(path string) (*VocabFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open vocab file")
	}
	defer f.Close()
	var data VocabFile
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return &data, nil
}

func (vf *VocabFile) Vocabulary() params.Vocabulary {
	return params.Vocabulary{TokenToID: vf.TokenToID, IDToToken: vf.IDToToken}
}

func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
