// Package naive_bayes implements discrete naive Bayes classifiers
// (Bernoulli and multinomial) over dense or sparse.CSR inputs.
package naive_bayes

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/matutil"
	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/core/sparse"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// discreteNB は離散NBの共通部分: クラスごとの特徴量カウントと事前確率
type discreteNB struct {
	name     string
	alpha    float64
	fitPrior bool
	binarize *float64 // BernoulliNB のみ

	classes      []float64
	classCount   []float64
	featureCount [][]float64
	nFeatures    int
	nSeen        int

	classLogPrior  []float64
	featureLogProb [][]float64
}

func (d *discreteNB) validate() error {
	if d.alpha < 0 {
		return errors.NewValidationError("alpha", "must be non-negative", d.alpha)
	}
	return nil
}

// reset は学習済みのカウントを捨てる
func (d *discreteNB) reset() {
	d.classes = nil
	d.classCount = nil
	d.featureCount = nil
	d.nFeatures = 0
	d.nSeen = 0
}

// init はクラス一覧と特徴量数でカウントを初期化する
func (d *discreteNB) init(classes []float64, nFeatures int) {
	d.classes = append([]float64(nil), classes...)
	sort.Float64s(d.classes)
	d.classCount = make([]float64, len(d.classes))
	d.featureCount = make([][]float64, len(d.classes))
	for k := range d.featureCount {
		d.featureCount[k] = make([]float64, nFeatures)
	}
	d.nFeatures = nFeatures
}

// count は X の各行を transform した値をクラスごとに加算する
func (d *discreteNB) count(op string, X mat.Matrix, y mat.Matrix, transform func(float64) float64) error {
	rows, _ := X.Dims()
	codes, err := model.EncodeLabels(op, model.Labels(y), d.classes)
	if err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		k := codes[i]
		d.classCount[k]++
		fc := d.featureCount[k]
		sparse.ForEachNonZero(X, i, func(j int, v float64) {
			fc[j] += transform(v)
		})
	}
	d.nSeen += rows
	return nil
}

func (d *discreteNB) updateClassLogPrior() {
	k := len(d.classes)
	d.classLogPrior = make([]float64, k)
	if !d.fitPrior {
		for c := range d.classLogPrior {
			d.classLogPrior[c] = -math.Log(float64(k))
		}
		return
	}
	var total float64
	for _, n := range d.classCount {
		total += n
	}
	for c, n := range d.classCount {
		d.classLogPrior[c] = math.Log(n) - math.Log(total)
	}
}

// checkPredictInput は予測入力の形を確認する
func (d *discreteNB) checkPredictInput(state *model.StateManager, method string, X mat.Matrix) error {
	if err := state.RequireFitted(d.name, method); err != nil {
		return err
	}
	_, cols, err := model.CheckX(d.name+"."+method, X)
	if err != nil {
		return err
	}
	return state.RequireFeatures(d.name+"."+method, cols)
}

// logProbaFrom は結合対数尤度を行ごとに正規化する
func logProbaFrom(jll *mat.Dense) *mat.Dense {
	rows, _ := jll.Dims()
	out := mat.DenseCopyOf(jll)
	for i := 0; i < rows; i++ {
		row := out.RawRowView(i)
		lse := errors.LogSumExp(row)
		for c := range row {
			row[c] -= lse
		}
	}
	return out
}

func predictFrom(jll *mat.Dense, classes []float64) *mat.Dense {
	rows, _ := jll.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, classes[matutil.ArgMax(jll.RawRowView(i))])
	}
	return out
}

func expInPlace(m *mat.Dense) *mat.Dense {
	m.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, m)
	return m
}
