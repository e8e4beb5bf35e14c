package model

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// CheckXy validates a training pair and returns its shape.
// y must be a column vector with one row per sample of X.
func CheckXy(op string, X, y mat.Matrix) (rows, cols int, err error) {
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.Wrapf(errors.ErrEmptyData, "%s", op)
	}
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if yRows != rows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	return rows, cols, nil
}

// CheckX validates a prediction input and returns its shape.
func CheckX(op string, X mat.Matrix) (rows, cols int, err error) {
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.Wrapf(errors.ErrEmptyData, "%s", op)
	}
	return rows, cols, nil
}

// Labels copies a column vector (or a single row) into a slice.
func Labels(y mat.Matrix) []float64 {
	r, c := y.Dims()
	if c == 1 {
		out := make([]float64, r)
		for i := range out {
			out[i] = y.At(i, 0)
		}
		return out
	}
	out := make([]float64, c)
	for j := range out {
		out[j] = y.At(0, j)
	}
	return out
}

// UniqueLabels returns the distinct values of y in ascending order.
func UniqueLabels(y []float64) []float64 {
	seen := make(map[float64]struct{}, 8)
	for _, v := range y {
		seen[v] = struct{}{}
	}
	out := make([]float64, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Float64s(out)
	return out
}

// EncodeLabels maps each label to its index in classes.
func EncodeLabels(op string, y, classes []float64) ([]int, error) {
	index := make(map[float64]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	out := make([]int, len(y))
	for i, v := range y {
		k, ok := index[v]
		if !ok {
			return nil, errors.NewValueError(op, "y contains a label not seen during fit")
		}
		out[i] = k
	}
	return out, nil
}

// ColumnVector builds an n×1 matrix from values.
func ColumnVector(values []float64) *mat.Dense {
	return mat.NewDense(len(values), 1, values)
}

// AccuracyScore is the shared Score implementation of classifiers.
func AccuracyScore(est Predictor, X, y mat.Matrix) (float64, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue := Labels(y)
	yPred := Labels(pred)
	if len(yTrue) != len(yPred) {
		return 0, errors.NewDimensionError("Score", len(yTrue), len(yPred), 0)
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}
