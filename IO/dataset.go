package IO

import (
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/manningwu07/textcnn/params"
)

var ErrEmptyDataset = errors.New("dataset has no samples")

// Sample is one row of the labeled dataset file (header: text,label).
type Sample struct {
	Text  string `csv:"text"`
	Label string `csv:"label"`
}

// LoadBoth reads the labeled dataset at path and returns the texts, their
// integer labels and the label name -> id mapping. Ids follow the sorted
// label names so they are stable across runs.
func LoadBoth(path string) (texts []string, labels []int, labelMap map[string]int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "open dataset")
	}
	defer f.Close()

	var rows []*Sample
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, nil, nil, errors.Wrapf(err, "parse dataset %s", path)
	}
	return fromSamples(rows)
}

func fromSamples(rows []*Sample) ([]string, []int, map[string]int, error) {
	if len(rows) == 0 {
		return nil, nil, nil, ErrEmptyDataset
	}
	names := make(map[string]struct{})
	for i, r := range rows {
		r.Label = strings.TrimSpace(r.Label)
		if r.Label == "" {
			return nil, nil, nil, errors.Errorf("row %d has an empty label", i+1)
		}
		names[r.Label] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	labelMap := make(map[string]int, len(sorted))
	for i, n := range sorted {
		labelMap[n] = i
	}

	texts := make([]string, len(rows))
	labels := make([]int, len(rows))
	for i, r := range rows {
		texts[i] = r.Text
		labels[i] = labelMap[r.Label]
	}
	params.Log.Info().Int("samples", len(rows)).Int("classes", len(labelMap)).Msg("loaded dataset")
	return texts, labels, labelMap, nil
}

// LabelNames inverts a label map into id order.
func LabelNames(labelMap map[string]int) []string {
	out := make([]string, len(labelMap))
	for name, id := range labelMap {
		out[id] = name
	}
	return out
}
