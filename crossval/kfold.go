package crossval

import (
	"math/rand/v2"
	"sort"

	"github.com/pkg/errors"
)

var ErrBadSplit = errors.New("cannot split dataset")

// Split is one train/validation partition of sample indices.
type Split struct {
	Train []int
	Val   []int
}

// KFold shuffles 0..n-1 with seed and deals it into k validation folds. The
// first n%k folds get one extra sample. Index lists are sorted.
func KFold(n, k int, seed int64) ([]Split, error) {
	if k < 2 || k > n {
		return nil, errors.Wrapf(ErrBadSplit, "%d folds over %d samples", k, n)
	}
	perm := rand.New(rand.NewPCG(uint64(seed), 0x6b666f6c64)).Perm(n)
	splits := make([]Split, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		val := append([]int(nil), perm[start:start+size]...)
		sort.Ints(val)
		inVal := make(map[int]bool, size)
		for _, i := range val {
			inVal[i] = true
		}
		train := make([]int, 0, n-size)
		for i := 0; i < n; i++ {
			if !inVal[i] {
				train = append(train, i)
			}
		}
		splits[f] = Split{Train: train, Val: val}
		start += size
	}
	return splits, nil
}

// HoldoutSplit keeps the last fraction of the samples for validation, in
// their original order.
func HoldoutSplit(n int, fraction float64) (Split, error) {
	at := int(float64(n) * (1 - fraction))
	if fraction <= 0 || fraction >= 1 || at <= 0 || at >= n {
		return Split{}, errors.Wrapf(ErrBadSplit, "validation fraction %.3f of %d samples", fraction, n)
	}
	s := Split{Train: make([]int, at), Val: make([]int, n-at)}
	for i := range s.Train {
		s.Train[i] = i
	}
	for i := range s.Val {
		s.Val[i] = at + i
	}
	return s, nil
}
