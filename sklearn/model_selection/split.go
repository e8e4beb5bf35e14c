// Package model_selection provides train/test splitting, cross-validation
// splitters, cross-validated scoring and randomized hyperparameter search.
package model_selection

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/matutil"
	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/core/random"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// Split holds the four parts returned by TrainTestSplit.
// XTrain and XTest keep the storage kind of X (dense or sparse).
type Split struct {
	XTrain, XTest mat.Matrix
	YTrain, YTest *mat.Dense
	// TrainIndex and TestIndex are the original row numbers.
	TrainIndex, TestIndex []int
}

// TrainTestSplitIndices permutes [0, n) with a PCG stream seeded by
// randomState and returns the first ceil(testSize*n) indices as the test set.
func TrainTestSplitIndices(n int, testSize float64, randomState int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTrain <= 0 || nTest <= 0 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			"with the given test_size the resulting train set would be empty")
	}
	perm := random.Permutation(random.New(randomState), n)
	return perm[nTest:], perm[:nTest], nil
}

// TrainTestSplit splits X and y into random train and test subsets.
func TrainTestSplit(X, y mat.Matrix, testSize float64, randomState int64) (*Split, error) {
	rows, _, err := model.CheckXy("TrainTestSplit", X, y)
	if err != nil {
		return nil, err
	}
	train, test, err := TrainTestSplitIndices(rows, testSize, randomState)
	if err != nil {
		return nil, err
	}
	return split(X, y, train, test), nil
}

// StratifiedTrainTestSplit keeps the class proportions of y in both parts.
func StratifiedTrainTestSplit(X, y mat.Matrix, testSize float64, randomState int64) (*Split, error) {
	rows, _, err := model.CheckXy("StratifiedTrainTestSplit", X, y)
	if err != nil {
		return nil, err
	}
	if testSize <= 0 || testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	labels := model.Labels(y)
	classes := model.UniqueLabels(labels)
	nTest := int(math.Ceil(testSize * float64(rows)))
	if nTest < len(classes) || rows-nTest < len(classes) {
		return nil, errors.NewValueError("StratifiedTrainTestSplit",
			"train and test sizes must be at least the number of classes")
	}
	rng := random.New(randomState)
	byClass := make(map[float64][]int, len(classes))
	for _, i := range random.Permutation(rng, rows) {
		byClass[labels[i]] = append(byClass[labels[i]], i)
	}

	// 最大剰余法でテスト件数をクラスに割り当てる
	alloc := make([]int, len(classes))
	type rem struct {
		k    int
		frac float64
	}
	rems := make([]rem, len(classes))
	assigned := 0
	for k, c := range classes {
		exact := float64(len(byClass[c])) * float64(nTest) / float64(rows)
		alloc[k] = int(exact)
		assigned += alloc[k]
		rems[k] = rem{k, exact - float64(alloc[k])}
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for i := 0; assigned < nTest; i++ {
		alloc[rems[i%len(rems)].k]++
		assigned++
	}

	var train, test []int
	for k, c := range classes {
		idx := byClass[c]
		n := min(alloc[k], len(idx))
		test = append(test, idx[:n]...)
		train = append(train, idx[n:]...)
	}
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return split(X, y, train, test), nil
}

func split(X, y mat.Matrix, train, test []int) *Split {
	return &Split{
		XTrain:     matutil.SelectRows(X, train),
		XTest:      matutil.SelectRows(X, test),
		YTrain:     matutil.ToDense(matutil.SelectRows(y, train)),
		YTest:      matutil.ToDense(matutil.SelectRows(y, test)),
		TrainIndex: train,
		TestIndex:  test,
	}
}
