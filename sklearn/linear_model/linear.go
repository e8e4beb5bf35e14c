// Package linear_model implements scikit-learn compatible linear models:
// ordinary least squares, L-BFGS logistic regression and SGD classifiers.
package linear_model

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/matutil"
	"github.com/YuminosukeSato/supervised-learning/core/random"
)

// linearScores は各行について coef[k]·x + intercept[k] を並べた n×K 行列を返す
func linearScores(X mat.Matrix, coef [][]float64, intercept []float64) *mat.Dense {
	rows, cols := X.Dims()
	k := len(coef)
	w := mat.NewDense(k, cols, nil)
	for c := range coef {
		w.SetRow(c, coef[c])
	}
	scores := mat.NewDense(rows, k, nil)
	scores.Mul(matutil.ToDense(X), w.T())
	for i := 0; i < rows; i++ {
		row := scores.RawRowView(i)
		for c := range row {
			row[c] += intercept[c]
		}
	}
	return scores
}

// labelsFromScores は決定関数の値をクラスラベルへ変換する
// 1列なら符号で二値判定、それ以外は argmax
func labelsFromScores(scores *mat.Dense, classes []float64) *mat.Dense {
	rows, k := scores.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		if k == 1 {
			if scores.At(i, 0) > 0 {
				out.Set(i, 0, classes[1])
			} else {
				out.Set(i, 0, classes[0])
			}
			continue
		}
		out.Set(i, 0, classes[matutil.ArgMax(scores.RawRowView(i))])
	}
	return out
}

// binaryTargets は one-vs-rest の二値問題用に codes を ±1 に変換する
func binaryTargets(codes []int, positive int) []float64 {
	y := make([]float64, len(codes))
	for i, c := range codes {
		if c == positive {
			y[i] = 1
		} else {
			y[i] = -1
		}
	}
	return y
}

// newRand は seed < 0 のとき非決定的なストリームを返す
func newRand(seed int64) *rand.Rand {
	return random.New(seed)
}
