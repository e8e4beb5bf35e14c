// Package matutil holds small helpers over gonum matrices that several
// estimators and model selection utilities share.
package matutil

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// RowSelector is implemented by matrices that can gather rows without
// densifying, such as sparse.CSR.
type RowSelector interface {
	SelectRows(rows []int) mat.Matrix
}

// SelectRows gathers the given rows of X in order.
func SelectRows(X mat.Matrix, rows []int) mat.Matrix {
	if rs, ok := X.(RowSelector); ok {
		return rs.SelectRows(rows)
	}
	_, c := X.Dims()
	out := mat.NewDense(len(rows), c, nil)
	if rv, ok := X.(mat.RawRowViewer); ok {
		for i, r := range rows {
			copy(out.RawRowView(i), rv.RawRowView(r))
		}
		return out
	}
	for i, r := range rows {
		for j := 0; j < c; j++ {
			out.Set(i, j, X.At(r, j))
		}
	}
	return out
}

// SelectColumns gathers the given columns of a dense copy of X.
func SelectColumns(X mat.Matrix, cols []int) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, len(cols), nil)
	for i := 0; i < r; i++ {
		for k, j := range cols {
			out.Set(i, k, X.At(i, j))
		}
	}
	return out
}

// ToDense returns X itself when it is already a *mat.Dense, otherwise a copy.
func ToDense(X mat.Matrix) *mat.Dense {
	if d, ok := X.(*mat.Dense); ok {
		return d
	}
	return mat.DenseCopyOf(X)
}

// MinMax returns the smallest and largest element of X.
func MinMax(X mat.Matrix) (lo, hi float64) {
	r, c := X.Dims()
	lo, hi = math.Inf(1), math.Inf(-1)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return lo, hi
}

// Column copies column j of X into a slice.
func Column(X mat.Matrix, j int) []float64 {
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = X.At(i, j)
	}
	return out
}

// ArgMax returns the index of the largest value, first one on ties.
func ArgMax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
