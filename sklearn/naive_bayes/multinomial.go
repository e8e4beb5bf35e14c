package naive_bayes

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/core/sparse"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// minAlpha は alpha が小さすぎるときに使う下限
const minAlpha = 1e-10

// Option は離散NBのオプション
type Option func(*discreteNB)

// WithAlpha は加法（Laplace/Lidstone）スムージングの強さを設定
func WithAlpha(alpha float64) Option {
	return func(d *discreteNB) { d.alpha = alpha }
}

// WithFitPrior は事前確率を学習するかどうかを設定。false なら一様分布
func WithFitPrior(fitPrior bool) Option {
	return func(d *discreteNB) { d.fitPrior = fitPrior }
}

// MultinomialNB は多項分布ナイーブベイズ分類器
//
// 単語の出現回数のような非負の離散特徴量を想定する。
// PartialFit によるオンライン学習が可能。
type MultinomialNB struct {
	state *model.StateManager
	discreteNB
}

// NewMultinomialNB は新しいMultinomialNBを作成
func NewMultinomialNB(opts ...Option) *MultinomialNB {
	nb := &MultinomialNB{
		state:      model.NewStateManager(),
		discreteNB: discreteNB{name: "MultinomialNB", alpha: 1.0, fitPrior: true},
	}
	for _, opt := range opts {
		opt(&nb.discreteNB)
	}
	return nb
}

// Fit はモデルを学習する。以前の学習結果は破棄される
func (nb *MultinomialNB) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "MultinomialNB.Fit")
	nb.state.Reset()
	nb.reset()
	return nb.PartialFit(X, y, nil)
}

// PartialFit はバッチを追加で学習する
//
// 最初の呼び出しでは classes に全クラスを渡す。nil の場合は y から推定する。
func (nb *MultinomialNB) PartialFit(X, y mat.Matrix, classes []float64) (err error) {
	defer errors.Recover(&err, "MultinomialNB.PartialFit")
	const op = "MultinomialNB.PartialFit"
	if err := nb.validate(); err != nil {
		return err
	}
	rows, cols, err := model.CheckXy(op, X, y)
	if err != nil {
		return err
	}
	if err := checkNonNegative(op, X); err != nil {
		return err
	}

	if nb.classes == nil {
		if classes == nil {
			classes = model.UniqueLabels(model.Labels(y))
		}
		if len(classes) < 1 {
			return errors.NewValueError(op, "classes must not be empty")
		}
		nb.init(model.UniqueLabels(classes), cols)
	} else if cols != nb.nFeatures {
		return errors.NewDimensionError(op, nb.nFeatures, cols, 1)
	}

	logger := log.GetLoggerWithName("naive_bayes.MultinomialNB")
	logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.ClassesKey, len(nb.classes),
	)

	if err := nb.count(op, X, y, func(v float64) float64 { return v }); err != nil {
		return err
	}
	nb.updateFeatureLogProb()
	nb.updateClassLogPrior()

	nb.state.SetDimensions(cols, nb.nSeen)
	nb.state.SetFitted()
	logger.Debug("Training completed", log.OperationKey, log.OperationFit, log.SamplesKey, nb.nSeen)
	return nil
}

func checkNonNegative(op string, X mat.Matrix) error {
	if err := errors.CheckMatrix(op, X); err != nil {
		return err
	}
	rows, _ := X.Dims()
	negative := false
	for i := 0; i < rows && !negative; i++ {
		sparse.ForEachNonZero(X, i, func(_ int, v float64) {
			if v < 0 {
				negative = true
			}
		})
	}
	if negative {
		return errors.NewValueError(op, "negative values in X are not allowed")
	}
	return nil
}

// effectiveAlpha は alpha を下限で切り上げ、その場合は警告を出す
func (d *discreteNB) effectiveAlpha() float64 {
	if d.alpha < minAlpha {
		errors.Warn(errors.NewDataConversionWarning(
			fmt.Sprintf("alpha=%g", d.alpha),
			fmt.Sprintf("alpha=%g", minAlpha),
			"alpha too small will result in numeric errors",
		))
		return minAlpha
	}
	return d.alpha
}

func (nb *MultinomialNB) updateFeatureLogProb() {
	alpha := nb.effectiveAlpha()
	nb.featureLogProb = make([][]float64, len(nb.classes))
	for k, fc := range nb.featureCount {
		var total float64
		for _, v := range fc {
			total += v + alpha
		}
		logTotal := math.Log(total)
		flp := make([]float64, len(fc))
		for j, v := range fc {
			flp[j] = math.Log(v+alpha) - logTotal
		}
		nb.featureLogProb[k] = flp
	}
}

// jointLogLikelihood は log P(c) + Σ x_j log P(j|c)
func (nb *MultinomialNB) jointLogLikelihood(X mat.Matrix) *mat.Dense {
	rows, _ := X.Dims()
	K := len(nb.classes)
	jll := mat.NewDense(rows, K, nil)
	for i := 0; i < rows; i++ {
		row := jll.RawRowView(i)
		copy(row, nb.classLogPrior)
		sparse.ForEachNonZero(X, i, func(j int, v float64) {
			for k := 0; k < K; k++ {
				row[k] += v * nb.featureLogProb[k][j]
			}
		})
	}
	return jll
}

// Predict はクラスラベルを予測する
func (nb *MultinomialNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := nb.checkPredictInput(nb.state, "Predict", X); err != nil {
		return nil, err
	}
	return predictFrom(nb.jointLogLikelihood(X), nb.classes), nil
}

// PredictLogProba は各クラスの対数確率を返す
func (nb *MultinomialNB) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	if err := nb.checkPredictInput(nb.state, "PredictLogProba", X); err != nil {
		return nil, err
	}
	return logProbaFrom(nb.jointLogLikelihood(X)), nil
}

// PredictProba は各クラスの確率を返す
func (nb *MultinomialNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := nb.checkPredictInput(nb.state, "PredictProba", X); err != nil {
		return nil, err
	}
	return expInPlace(logProbaFrom(nb.jointLogLikelihood(X))), nil
}

// Score は正解率を返す
func (nb *MultinomialNB) Score(X, y mat.Matrix) (float64, error) {
	return model.AccuracyScore(nb, X, y)
}

// Classes は学習したクラスラベル
func (nb *MultinomialNB) Classes() []float64 {
	return append([]float64(nil), nb.classes...)
}

// NSamplesSeen は学習に使ったサンプル数の累計
func (nb *MultinomialNB) NSamplesSeen() int {
	return nb.nSeen
}

// FeatureLogProb は log P(x_j | c) を K×p で返す
func (nb *MultinomialNB) FeatureLogProb() *mat.Dense {
	return denseFrom(nb.featureLogProb)
}

// ClassLogPrior は log P(c)
func (nb *MultinomialNB) ClassLogPrior() []float64 {
	return append([]float64(nil), nb.classLogPrior...)
}

// IsFitted reports whether Fit or PartialFit has run.
func (nb *MultinomialNB) IsFitted() bool {
	return nb.state.IsFitted()
}

// GetParams はハイパーパラメータを返す
func (nb *MultinomialNB) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{
		"alpha":     nb.alpha,
		"fit_prior": nb.fitPrior,
	}
}

// SetParams はハイパーパラメータを設定する
func (nb *MultinomialNB) SetParams(params map[string]interface{}) error {
	return nb.setParams("MultinomialNB", params)
}

// Clone は未学習のコピーを返す
func (nb *MultinomialNB) Clone() model.SKLearnCompatible {
	clone := NewMultinomialNB()
	_ = clone.SetParams(nb.GetParams(false))
	return clone
}

func (nb *MultinomialNB) String() string {
	return fmt.Sprintf("MultinomialNB(alpha=%g, fit_prior=%t)", nb.alpha, nb.fitPrior)
}

func (d *discreteNB) setParams(name string, params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "alpha":
			d.alpha, err = model.ParamFloat(key, value)
		case "fit_prior":
			d.fitPrior, err = model.ParamBool(key, value)
		case "binarize":
			if name != "BernoulliNB" {
				return model.UnknownParam(name, key)
			}
			if value == nil {
				d.binarize = nil
				continue
			}
			var t float64
			t, err = model.ParamFloat(key, value)
			d.binarize = &t
		default:
			return model.UnknownParam(name, key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func denseFrom(rows [][]float64) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	out := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		out.SetRow(i, r)
	}
	return out
}
