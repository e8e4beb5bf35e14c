// Package metrics implements scikit-learn style regression and
// classification metrics over gonum vectors and column matrices.
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return mse(t, p), nil
}

// MSEMatrix は n×1 行列に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return mse(t, p), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	m, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(m), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return mae(t, p), nil
}

// MAEMatrix は n×1 行列に対してMAEを計算する
func MAEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("MAEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return mae(t, p), nil
}

// R2Score は決定係数（R²）を計算する。yTrue が定数なら完全一致で1、それ以外は0
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return r2(t, p)
}

// R2ScoreMatrix は n×1 行列に対してR²を計算する
func R2ScoreMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("R2ScoreMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return r2(t, p)
}

// MAPE は平均絶対パーセンテージ誤差を計算する。yTrue が0の要素は除外する
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	var sum float64
	valid := 0
	for i := range t {
		if t[i] != 0 {
			sum += math.Abs(t[i]-p[i]) / math.Abs(t[i])
			valid++
		}
	}
	if valid == 0 {
		return 0, errors.NewValueError("MAPE", "all yTrue values are zero")
	}
	return sum / float64(valid) * 100, nil
}

// ExplainedVarianceScore は 1 - Var(yTrue - yPred) / Var(yTrue) を計算する
func ExplainedVarianceScore(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("ExplainedVarianceScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	diff := make([]float64, len(t))
	for i := range t {
		diff[i] = t[i] - p[i]
	}
	varTrue := stat.PopVariance(t, nil)
	varDiff := stat.PopVariance(diff, nil)
	if varTrue == 0 {
		return constantTruthScore(varDiff), nil
	}
	return 1 - varDiff/varTrue, nil
}

// constantTruthScore は分散0の yTrue に対するスコア（scikit-learn と同じ）
func constantTruthScore(residual float64) float64 {
	if residual == 0 {
		return 1
	}
	return 0
}

func mse(t, p []float64) float64 {
	var sum float64
	for i := range t {
		d := t[i] - p[i]
		sum += d * d
	}
	return sum / float64(len(t))
}

func mae(t, p []float64) float64 {
	var sum float64
	for i := range t {
		sum += math.Abs(t[i] - p[i])
	}
	return sum / float64(len(t))
}

func r2(t, p []float64) (float64, error) {
	mean := stat.Mean(t, nil)
	var tss, rss float64
	for i := range t {
		tss += (t[i] - mean) * (t[i] - mean)
		rss += (t[i] - p[i]) * (t[i] - p[i])
	}
	if tss == 0 {
		return constantTruthScore(rss), nil
	}
	return 1 - rss/tss, nil
}

// vecPair は2つのベクトルを検証してスライスとして返す
func vecPair(op string, yTrue, yPred *mat.VecDense) ([]float64, []float64, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return nil, nil, errors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return nil, nil, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	t := make([]float64, n)
	p := make([]float64, n)
	for i := 0; i < n; i++ {
		t[i] = yTrue.AtVec(i)
		p[i] = yPred.AtVec(i)
	}
	return t, p, nil
}

// columnPair は2つの n×1 行列を検証してスライスとして返す
func columnPair(op string, yTrue, yPred mat.Matrix) ([]float64, []float64, error) {
	if yTrue == nil || yPred == nil {
		return nil, nil, errors.NewValueError(op, "nil matrix")
	}
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()
	if rTrue == 0 || cTrue == 0 {
		return nil, nil, errors.NewValueError(op, "empty matrix")
	}
	if cTrue != 1 || cPred != 1 {
		return nil, nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	if rTrue != rPred {
		return nil, nil, errors.NewDimensionError(op, rTrue, rPred, 0)
	}
	return mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yPred), nil
}
