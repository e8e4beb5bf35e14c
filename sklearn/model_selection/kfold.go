package model_selection

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/core/random"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// Fold is one train/test partition of the row indices.
type Fold struct {
	Train []int
	Test  []int
}

// Splitter generates cross-validation folds.
type Splitter interface {
	Split(X, y mat.Matrix) ([]Fold, error)
	NSplits() int
}

// KFold splits rows into n consecutive folds (optionally shuffled first).
// The first n_samples % n_splits folds get one extra row.
type KFold struct {
	nSplits     int
	shuffle     bool
	randomState int64
}

// NewKFold creates a KFold. randomState only matters when shuffle is true.
func NewKFold(nSplits int, shuffle bool, randomState int64) *KFold {
	return &KFold{nSplits: nSplits, shuffle: shuffle, randomState: randomState}
}

func (k *KFold) NSplits() int { return k.nSplits }

func checkSplits(op string, nSplits, rows int) error {
	if nSplits < 2 {
		return errors.NewValidationError("n_splits", "must be at least 2", nSplits)
	}
	if nSplits > rows {
		return errors.NewValueError(op, fmt.Sprintf("cannot have n_splits=%d greater than the number of samples: n_samples=%d", nSplits, rows))
	}
	return nil
}

// Split returns the folds in order.
func (k *KFold) Split(X, y mat.Matrix) ([]Fold, error) {
	rows, _ := X.Dims()
	if err := checkSplits("KFold.Split", k.nSplits, rows); err != nil {
		return nil, err
	}
	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}
	if k.shuffle {
		indices = random.Permutation(random.New(k.randomState), rows)
	}

	folds := make([]Fold, 0, k.nSplits)
	start := 0
	for f := 0; f < k.nSplits; f++ {
		size := rows / k.nSplits
		if f < rows%k.nSplits {
			size++
		}
		test := append([]int(nil), indices[start:start+size]...)
		train := make([]int, 0, rows-size)
		train = append(train, indices[:start]...)
		train = append(train, indices[start+size:]...)
		folds = append(folds, Fold{Train: train, Test: test})
		start += size
	}
	return folds, nil
}

// StratifiedKFold keeps the class proportions of y in every fold.
//
// Rows are sorted by class and dealt to folds round robin, so fold sizes
// differ by at most one per class.
type StratifiedKFold struct {
	nSplits     int
	shuffle     bool
	randomState int64
}

// NewStratifiedKFold creates a StratifiedKFold.
func NewStratifiedKFold(nSplits int, shuffle bool, randomState int64) *StratifiedKFold {
	return &StratifiedKFold{nSplits: nSplits, shuffle: shuffle, randomState: randomState}
}

func (s *StratifiedKFold) NSplits() int { return s.nSplits }

// Split returns the folds; y must be a column of class labels.
func (s *StratifiedKFold) Split(X, y mat.Matrix) ([]Fold, error) {
	const op = "StratifiedKFold.Split"
	rows, _, err := model.CheckXy(op, X, y)
	if err != nil {
		return nil, err
	}
	if err := checkSplits(op, s.nSplits, rows); err != nil {
		return nil, err
	}
	labels := model.Labels(y)
	classes := model.UniqueLabels(labels)
	codes, err := model.EncodeLabels(op, labels, classes)
	if err != nil {
		return nil, err
	}
	K := len(classes)
	counts := make([]int, K)
	for _, c := range codes {
		counts[c]++
	}
	minCount := rows
	for _, c := range counts {
		minCount = min(minCount, c)
	}
	if s.nSplits > minCount {
		log.GetLoggerWithName("model_selection.StratifiedKFold").Warn(
			"The least populated class has fewer members than n_splits",
			"min_class_count", minCount, "n_splits", s.nSplits)
	}

	// ソート済みラベルを fold に順番に配る
	allocation := make([][]int, s.nSplits)
	for f := range allocation {
		allocation[f] = make([]int, K)
	}
	pos := 0
	for k := 0; k < K; k++ {
		for c := 0; c < counts[k]; c++ {
			allocation[pos%s.nSplits][k]++
			pos++
		}
	}

	rng := random.New(s.randomState)
	testFold := make([]int, rows)
	for k := 0; k < K; k++ {
		folds := make([]int, 0, counts[k])
		for f := 0; f < s.nSplits; f++ {
			for c := 0; c < allocation[f][k]; c++ {
				folds = append(folds, f)
			}
		}
		if s.shuffle {
			rng.Shuffle(len(folds), func(i, j int) { folds[i], folds[j] = folds[j], folds[i] })
		}
		next := 0
		for i, c := range codes {
			if c == k {
				testFold[i] = folds[next]
				next++
			}
		}
	}

	out := make([]Fold, s.nSplits)
	for i, f := range testFold {
		out[f].Test = append(out[f].Test, i)
		for g := range out {
			if g != f {
				out[g].Train = append(out[g].Train, i)
			}
		}
	}
	return out, nil
}

// CheckCV turns an int fold count into the default splitter: stratified
// for classifiers, plain KFold otherwise. A nil Splitter means 5 folds.
func CheckCV(cv interface{}, est interface{}) (Splitter, error) {
	switch c := cv.(type) {
	case nil:
		return CheckCV(5, est)
	case Splitter:
		return c, nil
	case int:
		if model.IsClassifier(est) {
			return NewStratifiedKFold(c, false, -1), nil
		}
		return NewKFold(c, false, -1), nil
	}
	return nil, errors.NewValidationError("cv", "must be nil, an int or a Splitter", cv)
}
