package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/matutil"
	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/metrics"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// LinearRegression is ordinary least squares linear regression.
// Compatible with scikit-learn's LinearRegression.
//
// The coefficients are the minimum-norm least-squares solution, so the fit
// stays well defined when there are more features than samples (for example
// after a high degree PolynomialFeatures expansion).
type LinearRegression struct {
	state *model.StateManager

	// Hyperparameters
	fitIntercept bool

	// Learned parameters
	coef      []float64
	intercept float64
	rank      int
}

// LinearRegressionOption is a functional option for LinearRegression
type LinearRegressionOption func(*LinearRegression)

// NewLinearRegression creates a new LinearRegression model
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// WithLRFitIntercept sets whether to fit the intercept
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// Fit trains the model on X (n×p) and y (n×1)
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	rows, cols, err := model.CheckXy("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}
	if err := errors.CheckMatrix("LinearRegression.Fit", X); err != nil {
		return err
	}

	logger := log.GetLoggerWithName("linear_model.LinearRegression")
	logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
	)

	// X は呼び出し元のものを壊さないようにコピーしてから中心化する
	xc := mat.DenseCopyOf(X)
	yc := model.Labels(y)
	xMean := make([]float64, cols)
	var yMean float64
	if lr.fitIntercept {
		for j := 0; j < cols; j++ {
			var s float64
			for i := 0; i < rows; i++ {
				s += xc.At(i, j)
			}
			xMean[j] = s / float64(rows)
		}
		for i := 0; i < rows; i++ {
			row := xc.RawRowView(i)
			for j := range row {
				row[j] -= xMean[j]
			}
		}
		for _, v := range yc {
			yMean += v
		}
		yMean /= float64(rows)
		for i := range yc {
			yc[i] -= yMean
		}
	}

	var coef []float64
	var rank int
	if rows >= cols {
		coef, rank, err = lstsqSVD(xc, yc)
	} else {
		coef, rank, err = lstsqGram(xc, yc)
	}
	if err != nil {
		return err
	}

	lr.coef = coef
	lr.rank = rank
	lr.intercept = 0
	if lr.fitIntercept {
		lr.intercept = yMean
		for j, c := range coef {
			lr.intercept -= xMean[j] * c
		}
	}
	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()

	logger.Debug("Training completed", log.OperationKey, log.OperationFit, "rank", rank)
	return nil
}

// numpy.linalg.lstsq と同じ既定の打ち切り: rcond = eps * max(n, p)
func rcond(rows, cols int) float64 {
	return float64(max(rows, cols)) * 2.220446049250313e-16
}

// lstsqSVD は n >= p のときの最小ノルム解 V Σ⁺ Uᵀ y
func lstsqSVD(X *mat.Dense, y []float64) ([]float64, int, error) {
	rows, cols := X.Dims()
	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDThin); !ok {
		return nil, 0, errors.NewModelError("LinearRegression.Fit", "svd", errors.ErrSingularMatrix)
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	cutoff := rcond(rows, cols) * s[0]
	coef := make([]float64, cols)
	rank := 0
	for k, sk := range s {
		if sk <= cutoff {
			continue
		}
		rank++
		var uty float64
		for i := 0; i < rows; i++ {
			uty += u.At(i, k) * y[i]
		}
		w := uty / sk
		for j := 0; j < cols; j++ {
			coef[j] += w * v.At(j, k)
		}
	}
	return coef, rank, nil
}

// lstsqGram は p > n のときの最小ノルム解 Xᵀ (X Xᵀ)⁺ y
// n×n のグラム行列だけを固有値分解する
func lstsqGram(X *mat.Dense, y []float64) ([]float64, int, error) {
	rows, cols := X.Dims()
	var g mat.SymDense
	g.SymOuterK(1, X)

	var es mat.EigenSym
	if ok := es.Factorize(&g, true); !ok {
		return nil, 0, errors.NewModelError("LinearRegression.Fit", "eigen", errors.ErrSingularMatrix)
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	lmax := 0.0
	for _, l := range vals {
		lmax = math.Max(lmax, l)
	}
	cutoff := rcond(rows, cols) * lmax

	alpha := make([]float64, rows)
	rank := 0
	for k, l := range vals {
		if l <= cutoff {
			continue
		}
		rank++
		var vty float64
		for i := 0; i < rows; i++ {
			vty += vecs.At(i, k) * y[i]
		}
		w := vty / l
		for i := 0; i < rows; i++ {
			alpha[i] += w * vecs.At(i, k)
		}
	}

	var coef mat.VecDense
	coef.MulVec(X.T(), mat.NewVecDense(rows, alpha))
	return coef.RawVector().Data, rank, nil
}

// Predict returns X·coef + intercept as an n×1 matrix
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	rows, cols, err := model.CheckX("LinearRegression.Predict", X)
	if err != nil {
		return nil, err
	}
	if err := lr.state.RequireFeatures("LinearRegression.Predict", cols); err != nil {
		return nil, err
	}

	var out mat.VecDense
	out.MulVec(matutil.ToDense(X), mat.NewVecDense(cols, lr.coef))
	pred := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		pred.Set(i, 0, out.AtVec(i)+lr.intercept)
	}
	return pred, nil
}

// Score returns the coefficient of determination R² of the prediction
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// Coef returns a copy of the learned coefficients
func (lr *LinearRegression) Coef() []float64 {
	if lr.coef == nil {
		return nil
	}
	out := make([]float64, len(lr.coef))
	copy(out, lr.coef)
	return out
}

// Intercept returns the learned intercept
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept
}

// Rank returns the numerical rank of the (centred) design matrix
func (lr *LinearRegression) Rank() int {
	return lr.rank
}

// GetParams gets the hyperparameters of the model
func (lr *LinearRegression) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
	}
}

// SetParams sets the hyperparameters of the model
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "fit_intercept":
			b, err := model.ParamBool(k, v)
			if err != nil {
				return err
			}
			lr.fitIntercept = b
		default:
			return model.UnknownParam("LinearRegression", k)
		}
	}
	return nil
}

// IsFitted returns whether the model has been fitted
func (lr *LinearRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// Clone returns an unfitted copy with the same hyperparameters
func (lr *LinearRegression) Clone() model.SKLearnCompatible {
	return NewLinearRegression(WithLRFitIntercept(lr.fitIntercept))
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	if !lr.state.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
	}
	nFeatures, _ := lr.state.GetDimensions()
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d, rank=%d)",
		lr.fitIntercept, nFeatures, lr.rank)
}
