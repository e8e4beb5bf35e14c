// Package feature_selection ranks input features by how well they separate
// the classes.
package feature_selection

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/supervised-learning/core/matutil"
	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// FisherScore computes, for every column j of X,
//
//	F_j = Σ_k n_k (μ_kj − μ_j)² / Σ_k n_k σ²_kj
//
// where k runs over the classes of y and σ² is the population variance.
// A feature with zero within-class variance scores +Inf when its class
// means differ and 0 otherwise.
func FisherScore(X, y mat.Matrix) (scores []float64, err error) {
	const op = "FisherScore"
	defer errors.Recover(&err, op)

	rows, cols, err := model.CheckXy(op, X, y)
	if err != nil {
		return nil, err
	}
	labels := model.Labels(y)
	classes := model.UniqueLabels(labels)
	if len(classes) < 2 {
		return nil, errors.Wrapf(errors.ErrSingleClass, "%s: got %d class", op, len(classes))
	}
	codes, err := model.EncodeLabels(op, labels, classes)
	if err != nil {
		return nil, err
	}

	members := make([][]int, len(classes))
	for i, c := range codes {
		members[c] = append(members[c], i)
	}

	scores = make([]float64, cols)
	for j := 0; j < cols; j++ {
		col := matutil.Column(X, j)
		mu := stat.Mean(col, nil)
		var between, within float64
		buf := make([]float64, 0, rows)
		for _, idx := range members {
			buf = buf[:0]
			for _, i := range idx {
				buf = append(buf, col[i])
			}
			n := float64(len(buf))
			muK, varK := stat.PopMeanVariance(buf, nil)
			between += n * (muK - mu) * (muK - mu)
			within += n * varK
		}
		switch {
		case within > 0:
			scores[j] = between / within
		case between > 0:
			scores[j] = math.Inf(1)
		default:
			scores[j] = 0
		}
	}

	log.GetLoggerWithName("feature_selection.FisherScore").Debug("Scored features",
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.ClassesKey, len(classes),
	)
	return scores, nil
}

// RankFeatures returns feature indices ordered by decreasing score.
// Ties keep their column order; NaN scores go last.
func RankFeatures(scores []float64) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	key := func(i int) float64 {
		if math.IsNaN(scores[i]) {
			return math.Inf(-1)
		}
		return scores[i]
	}
	sort.SliceStable(idx, func(a, b int) bool { return key(idx[a]) > key(idx[b]) })
	return idx
}
