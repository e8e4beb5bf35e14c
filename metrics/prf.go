package metrics

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// Average は多クラスの適合率・再現率・F値の集約方法
type Average string

const (
	// AverageBinary は PosLabel=1 のクラスのみを評価する
	AverageBinary Average = "binary"
	// AverageMacro はクラスごとの値の単純平均
	AverageMacro Average = "macro"
	// AverageMicro は全クラスの TP/FP/FN を合算して計算する
	AverageMicro Average = "micro"
	// AverageWeighted はサポート数（正解ラベルの件数）で重み付けした平均
	AverageWeighted Average = "weighted"
)

// PosLabel は AverageBinary で陽性とみなすラベル
const PosLabel = 1.0

// ClassScores はクラス別の評価値
type ClassScores struct {
	Labels    []float64
	Precision []float64
	Recall    []float64
	F1        []float64
	Support   []int
}

// PrecisionRecallFscoreSupport はクラス別の適合率・再現率・F1・サポートを返す
// ラベルは yTrue と yPred の和集合（昇順）。0/0 の値は 0 として警告を出す
func PrecisionRecallFscoreSupport(yTrue, yPred mat.Matrix) (*ClassScores, error) {
	t, p, err := columnPair("PrecisionRecallFscoreSupport", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	labels := model.UniqueLabels(append(append([]float64{}, t...), p...))
	tp, fp, fn, support := countPerLabel(t, p, labels)

	s := &ClassScores{
		Labels:    labels,
		Precision: make([]float64, len(labels)),
		Recall:    make([]float64, len(labels)),
		F1:        make([]float64, len(labels)),
		Support:   support,
	}
	var warnedP, warnedR bool
	for k := range labels {
		s.Precision[k], warnedP = ratio(tp[k], tp[k]+fp[k], "precision", "no predicted samples", warnedP)
		s.Recall[k], warnedR = ratio(tp[k], tp[k]+fn[k], "recall", "no true samples", warnedR)
		if denom := 2*tp[k] + fp[k] + fn[k]; denom > 0 {
			s.F1[k] = float64(2*tp[k]) / float64(denom)
		}
	}
	return s, nil
}

func ratio(num, den int, metric, condition string, warned bool) (float64, bool) {
	if den == 0 {
		if !warned {
			errors.Warn(errors.NewUndefinedMetricWarning(metric, condition, 0))
		}
		return 0, true
	}
	return float64(num) / float64(den), warned
}

func countPerLabel(t, p, labels []float64) (tp, fp, fn, support []int) {
	index := make(map[float64]int, len(labels))
	for k, l := range labels {
		index[l] = k
	}
	tp = make([]int, len(labels))
	fp = make([]int, len(labels))
	fn = make([]int, len(labels))
	support = make([]int, len(labels))
	for i := range t {
		kt, kp := index[t[i]], index[p[i]]
		support[kt]++
		if kt == kp {
			tp[kt]++
			continue
		}
		fp[kp]++
		fn[kt]++
	}
	return tp, fp, fn, support
}

// F1Score は sklearn.metrics.f1_score と同じ集約でF1を計算する
func F1Score(yTrue, yPred mat.Matrix, average Average) (float64, error) {
	return averaged(yTrue, yPred, average, func(s *ClassScores) []float64 { return s.F1 })
}

// PrecisionScore は適合率を計算する
func PrecisionScore(yTrue, yPred mat.Matrix, average Average) (float64, error) {
	return averaged(yTrue, yPred, average, func(s *ClassScores) []float64 { return s.Precision })
}

// RecallScore は再現率を計算する
func RecallScore(yTrue, yPred mat.Matrix, average Average) (float64, error) {
	return averaged(yTrue, yPred, average, func(s *ClassScores) []float64 { return s.Recall })
}

func averaged(yTrue, yPred mat.Matrix, average Average, pick func(*ClassScores) []float64) (float64, error) {
	s, err := PrecisionRecallFscoreSupport(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	values := pick(s)
	switch average {
	case AverageBinary:
		if len(s.Labels) > 2 {
			return 0, errors.NewValueError("average", "target is multiclass but average='binary'")
		}
		for k, l := range s.Labels {
			if l == PosLabel {
				return values[k], nil
			}
		}
		// 陽性ラベルが一度も現れない
		errors.Warn(errors.NewUndefinedMetricWarning("f-score", fmt.Sprintf("pos_label=%g not present", PosLabel), 0))
		return 0, nil
	case AverageMacro, AverageWeighted:
		return averagedFrom(s, values, average), nil
	case AverageMicro:
		// 単一ラベル分類では micro 平均の P/R/F1 はいずれも正解率に等しい
		return AccuracyScore(yTrue, yPred)
	default:
		return 0, errors.NewValidationError("average", "must be one of binary, macro, micro, weighted", average)
	}
}

// ConfusionMatrix は行が正解ラベル、列が予測ラベルの混同行列を返す
func ConfusionMatrix(yTrue, yPred mat.Matrix) (*mat.Dense, []float64, error) {
	t, p, err := columnPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, nil, err
	}
	labels := model.UniqueLabels(append(append([]float64{}, t...), p...))
	index := make(map[float64]int, len(labels))
	for k, l := range labels {
		index[l] = k
	}
	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := range t {
		r, c := index[t[i]], index[p[i]]
		cm.Set(r, c, cm.At(r, c)+1)
	}
	return cm, labels, nil
}

// ClassificationReport はクラス別の precision / recall / f1-score / support を表にする
// names はラベルの表示名（nil ならラベル値）
func ClassificationReport(yTrue, yPred mat.Matrix, names map[float64]string) (string, error) {
	s, err := PrecisionRecallFscoreSupport(yTrue, yPred)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%14s %10s %10s %10s %10s\n", "", "precision", "recall", "f1-score", "support")
	total := 0
	for k, l := range s.Labels {
		name := fmt.Sprintf("%g", l)
		if n, ok := names[l]; ok {
			name = n
		}
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", name, s.Precision[k], s.Recall[k], s.F1[k], s.Support[k])
		total += s.Support[k]
	}
	acc, _ := AccuracyScore(yTrue, yPred)
	fmt.Fprintf(&b, "\n%14s %10s %10s %10.2f %10d\n", "accuracy", "", "", acc, total)
	for _, avg := range []Average{AverageMacro, AverageWeighted} {
		p := averagedFrom(s, s.Precision, avg)
		r := averagedFrom(s, s.Recall, avg)
		f := averagedFrom(s, s.F1, avg)
		fmt.Fprintf(&b, "%14s %10.2f %10.2f %10.2f %10d\n", string(avg)+" avg", p, r, f, total)
	}
	return b.String(), nil
}

func averagedFrom(s *ClassScores, values []float64, avg Average) float64 {
	var sum, total float64
	for k, v := range values {
		w := 1.0
		if avg == AverageWeighted {
			w = float64(s.Support[k])
		}
		sum += v * w
		total += w
	}
	return errors.SafeDivide(sum, total)
}
