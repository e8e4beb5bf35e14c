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

// WithBinarize sets the threshold used to map features to {0, 1}
// (BernoulliNB only). Values strictly greater than threshold become 1.
func WithBinarize(threshold float64) Option {
	return func(d *discreteNB) { d.binarize = &threshold }
}

// WithoutBinarize tells BernoulliNB that X is already binary.
func WithoutBinarize() Option {
	return func(d *discreteNB) { d.binarize = nil }
}

// BernoulliNB is naive Bayes for binary (present / absent) features.
//
// Unlike MultinomialNB it penalizes the absence of a feature that is
// typical for a class, which suits short documents encoded as word sets.
type BernoulliNB struct {
	state *model.StateManager
	discreteNB

	negLogProb [][]float64 // log(1 - P(x_j=1|c))
	negSum     []float64
}

// NewBernoulliNB creates a BernoulliNB with alpha=1, binarize=0, fit_prior=true.
func NewBernoulliNB(opts ...Option) *BernoulliNB {
	threshold := 0.0
	nb := &BernoulliNB{
		state: model.NewStateManager(),
		discreteNB: discreteNB{
			name:     "BernoulliNB",
			alpha:    1.0,
			fitPrior: true,
			binarize: &threshold,
		},
	}
	for _, opt := range opts {
		opt(&nb.discreteNB)
	}
	return nb
}

// binaryRow calls fn for every feature of row i whose binarized value is 1.
func (nb *BernoulliNB) binaryRow(X mat.Matrix, i int, fn func(j int, v float64)) {
	if nb.binarize == nil {
		sparse.ForEachNonZero(X, i, fn)
		return
	}
	t := *nb.binarize
	if t < 0 {
		// 0 も 1 に写るので全列を見る
		_, cols := X.Dims()
		for j := 0; j < cols; j++ {
			if X.At(i, j) > t {
				fn(j, 1)
			}
		}
		return
	}
	sparse.ForEachNonZero(X, i, func(j int, v float64) {
		if v > t {
			fn(j, 1)
		}
	})
}

// Fit learns the class priors and feature probabilities from scratch.
func (nb *BernoulliNB) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "BernoulliNB.Fit")
	nb.state.Reset()
	nb.reset()
	return nb.PartialFit(X, y, nil)
}

// PartialFit accumulates counts from another batch. classes must list every
// class on the first call unless y already contains all of them.
func (nb *BernoulliNB) PartialFit(X, y mat.Matrix, classes []float64) (err error) {
	defer errors.Recover(&err, "BernoulliNB.PartialFit")
	const op = "BernoulliNB.PartialFit"
	if err := nb.validate(); err != nil {
		return err
	}
	rows, cols, err := model.CheckXy(op, X, y)
	if err != nil {
		return err
	}
	if err := errors.CheckMatrix(op, X); err != nil {
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

	logger := log.GetLoggerWithName("naive_bayes.BernoulliNB")
	logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.ClassesKey, len(nb.classes),
	)

	codes, err := model.EncodeLabels(op, model.Labels(y), nb.classes)
	if err != nil {
		return err
	}
	for i := 0; i < rows; i++ {
		k := codes[i]
		nb.classCount[k]++
		fc := nb.featureCount[k]
		nb.binaryRow(X, i, func(j int, v float64) { fc[j] += v })
	}
	nb.nSeen += rows

	nb.updateFeatureLogProb()
	nb.updateClassLogPrior()

	nb.state.SetDimensions(cols, nb.nSeen)
	nb.state.SetFitted()
	logger.Debug("Training completed", log.OperationKey, log.OperationFit, log.SamplesKey, nb.nSeen)
	return nil
}

// P(x_j=1|c) = (N_cj + α) / (N_c + 2α)
func (nb *BernoulliNB) updateFeatureLogProb() {
	alpha := nb.effectiveAlpha()
	K := len(nb.classes)
	nb.featureLogProb = make([][]float64, K)
	nb.negLogProb = make([][]float64, K)
	nb.negSum = make([]float64, K)
	for k, fc := range nb.featureCount {
		denom := math.Log(nb.classCount[k] + 2*alpha)
		flp := make([]float64, len(fc))
		neg := make([]float64, len(fc))
		for j, v := range fc {
			flp[j] = math.Log(v+alpha) - denom
			neg[j] = math.Log1p(-math.Exp(flp[j]))
			nb.negSum[k] += neg[j]
		}
		nb.featureLogProb[k] = flp
		nb.negLogProb[k] = neg
	}
}

// jointLogLikelihood is log P(c) + Σ_j [x_j log p_cj + (1-x_j) log(1-p_cj)].
func (nb *BernoulliNB) jointLogLikelihood(X mat.Matrix) *mat.Dense {
	rows, _ := X.Dims()
	K := len(nb.classes)
	jll := mat.NewDense(rows, K, nil)
	for i := 0; i < rows; i++ {
		row := jll.RawRowView(i)
		for k := 0; k < K; k++ {
			row[k] = nb.classLogPrior[k] + nb.negSum[k]
		}
		nb.binaryRow(X, i, func(j int, v float64) {
			for k := 0; k < K; k++ {
				row[k] += v * (nb.featureLogProb[k][j] - nb.negLogProb[k][j])
			}
		})
	}
	return jll
}

// Predict returns the most probable class of each row.
func (nb *BernoulliNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := nb.checkPredictInput(nb.state, "Predict", X); err != nil {
		return nil, err
	}
	return predictFrom(nb.jointLogLikelihood(X), nb.classes), nil
}

// PredictLogProba returns log P(c|x) normalized with log-sum-exp.
func (nb *BernoulliNB) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	if err := nb.checkPredictInput(nb.state, "PredictLogProba", X); err != nil {
		return nil, err
	}
	return logProbaFrom(nb.jointLogLikelihood(X)), nil
}

// PredictProba returns P(c|x); columns follow Classes().
func (nb *BernoulliNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := nb.checkPredictInput(nb.state, "PredictProba", X); err != nil {
		return nil, err
	}
	return expInPlace(logProbaFrom(nb.jointLogLikelihood(X))), nil
}

// Score returns the mean accuracy.
func (nb *BernoulliNB) Score(X, y mat.Matrix) (float64, error) {
	return model.AccuracyScore(nb, X, y)
}

// Classes returns the sorted class labels.
func (nb *BernoulliNB) Classes() []float64 {
	return append([]float64(nil), nb.classes...)
}

// NSamplesSeen is the number of samples over all Fit/PartialFit calls.
func (nb *BernoulliNB) NSamplesSeen() int { return nb.nSeen }

// FeatureLogProb returns log P(x_j=1|c) as a K×p matrix.
func (nb *BernoulliNB) FeatureLogProb() *mat.Dense { return denseFrom(nb.featureLogProb) }

// ClassLogPrior returns log P(c).
func (nb *BernoulliNB) ClassLogPrior() []float64 {
	return append([]float64(nil), nb.classLogPrior...)
}

func (nb *BernoulliNB) IsFitted() bool { return nb.state.IsFitted() }

// GetParams returns alpha, binarize (nil when disabled) and fit_prior.
func (nb *BernoulliNB) GetParams(deep bool) map[string]interface{} {
	var binarize interface{}
	if nb.binarize != nil {
		binarize = *nb.binarize
	}
	return map[string]interface{}{
		"alpha":     nb.alpha,
		"binarize":  binarize,
		"fit_prior": nb.fitPrior,
	}
}

func (nb *BernoulliNB) SetParams(params map[string]interface{}) error {
	return nb.setParams("BernoulliNB", params)
}

func (nb *BernoulliNB) Clone() model.SKLearnCompatible {
	clone := NewBernoulliNB()
	_ = clone.SetParams(nb.GetParams(false))
	return clone
}

func (nb *BernoulliNB) String() string {
	binarize := "None"
	if nb.binarize != nil {
		binarize = fmt.Sprintf("%g", *nb.binarize)
	}
	return fmt.Sprintf("BernoulliNB(alpha=%g, binarize=%s, fit_prior=%t)", nb.alpha, binarize, nb.fitPrior)
}
