package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// logLossEps はログ損失の確率クリップ幅
const logLossEps = 1e-15

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return accuracy(t, p), nil
}

// ClassificationError は 1 - 正解率 を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("ClassificationError", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - accuracy(t, p), nil
}

// AccuracyScore は n×1 行列の正解率を計算する（sklearn.metrics.accuracy_score）
func AccuracyScore(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("AccuracyScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return accuracy(t, p), nil
}

func accuracy(t, p []float64) float64 {
	correct := 0
	for i := range t {
		if t[i] == p[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(t))
}

// BinaryLogLoss は陽性クラスの確率 yPred に対する二値クロスエントロピーを計算する
func BinaryLogLoss(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := vecPair("BinaryLogLoss", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	if err := requireBinary("BinaryLogLoss", t); err != nil {
		return 0, err
	}
	var sum float64
	for i := range t {
		q := errors.ClipValue(p[i], logLossEps, 1-logLossEps)
		if t[i] == 1 {
			sum -= math.Log(q)
		} else {
			sum -= math.Log(1 - q)
		}
	}
	return sum / float64(len(t)), nil
}

// LogLoss は多クラスのログ損失を計算する（sklearn.metrics.log_loss）
//
// proba は n×k でその列は classes の順。classes が nil の場合は yTrue の
// ユニーク値（昇順）を使う。n×1 の proba は陽性クラスの確率とみなす。
// 各行は [eps, 1-eps] にクリップした後で再正規化される。
func LogLoss(yTrue, proba mat.Matrix, classes []float64) (float64, error) {
	if yTrue == nil || proba == nil {
		return 0, errors.NewValueError("LogLoss", "nil matrix")
	}
	y := model.Labels(yTrue)
	if len(y) == 0 {
		return 0, errors.NewValueError("LogLoss", "empty input")
	}
	if classes == nil {
		classes = model.UniqueLabels(y)
	}
	n, k := proba.Dims()
	if n != len(y) {
		return 0, errors.NewDimensionError("LogLoss", len(y), n, 0)
	}
	binaryColumn := k == 1
	if binaryColumn {
		k = 2
	}
	if len(classes) < 2 {
		return 0, errors.NewValueError("LogLoss", "y_true contains only one label; pass classes explicitly")
	}
	if k != len(classes) {
		return 0, errors.NewValueError("LogLoss", "number of classes in y_true does not match the number of columns in proba")
	}
	codes, err := model.EncodeLabels("LogLoss", y, classes)
	if err != nil {
		return 0, err
	}

	row := make([]float64, k)
	var total float64
	for i := 0; i < n; i++ {
		if binaryColumn {
			row[1] = proba.At(i, 0)
			row[0] = 1 - row[1]
		} else {
			mat.Row(row, i, proba)
		}
		var sum float64
		for j := range row {
			row[j] = errors.ClipValue(row[j], logLossEps, 1-logLossEps)
			sum += row[j]
		}
		total -= math.Log(row[codes[i]] / sum)
	}
	return total / float64(n), nil
}

// AUC はROC曲線下面積を順位統計量から計算する。同順位は平均順位で扱う
// 片方のクラスしか存在しない場合は 0.5 を返す
func AUC(yTrue, yScore *mat.VecDense) (float64, error) {
	t, s, err := vecPair("AUC", yTrue, yScore)
	if err != nil {
		return 0, err
	}
	return auc(t, s)
}

// AUCMatrix は行列の先頭列同士でAUCを計算する
func AUCMatrix(yTrue, yScore mat.Matrix) (float64, error) {
	if yTrue == nil || yScore == nil {
		return 0, errors.NewValueError("AUCMatrix", "nil matrix")
	}
	r, c := yTrue.Dims()
	rs, cs := yScore.Dims()
	if r == 0 || c == 0 || cs == 0 {
		return 0, errors.NewValueError("AUCMatrix", "empty matrix")
	}
	if r != rs {
		return 0, errors.NewDimensionError("AUCMatrix", r, rs, 0)
	}
	return auc(mat.Col(nil, 0, yTrue), mat.Col(nil, 0, yScore))
}

func auc(t, s []float64) (float64, error) {
	if err := requireBinary("AUC", t); err != nil {
		return 0, err
	}
	order := make([]int, len(s))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return s[order[a]] < s[order[b]] })

	var nPos, nNeg, rankSum float64
	for i := 0; i < len(order); {
		j := i
		for j < len(order) && s[order[j]] == s[order[i]] {
			j++
		}
		avgRank := float64(i+j+1) / 2 // 1始まりの順位 i+1..j の平均
		for _, idx := range order[i:j] {
			if t[idx] == 1 {
				nPos++
				rankSum += avgRank
			} else {
				nNeg++
			}
		}
		i = j
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5, nil
	}
	return (rankSum - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

func requireBinary(op string, t []float64) error {
	for _, v := range t {
		if v != 0 && v != 1 {
			return errors.NewValueError(op, "labels must be 0 or 1")
		}
	}
	return nil
}
