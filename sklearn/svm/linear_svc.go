// Package svm implements support vector classifiers: LinearSVC trained by
// dual coordinate descent and kernel SVC trained by SMO.
package svm

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/matutil"
	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/core/parallel"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// LinearSVC is a linear support vector classifier with L2 penalty and
// squared hinge loss. Compatible with scikit-learn's LinearSVC (liblinear).
//
// The intercept is learned as the weight of an extra feature whose value is
// interceptScaling, so it is regularized like the other weights.
type LinearSVC struct {
	state *model.StateManager

	// Hyperparameters
	penalty          string
	loss             string
	C                float64
	tol              float64
	maxIter          int
	fitIntercept     bool
	interceptScaling float64
	randomState      int64
	verbose          int
	nJobs            int

	// Fitted values
	coef      [][]float64
	intercept []float64
	classes   []float64
	nIter     int
}

// LinearSVCOption is a functional option for LinearSVC
type LinearSVCOption func(*LinearSVC)

// NewLinearSVC creates a new LinearSVC with scikit-learn's defaults
func NewLinearSVC(opts ...LinearSVCOption) *LinearSVC {
	s := &LinearSVC{
		state:            model.NewStateManager(),
		penalty:          "l2",
		loss:             "squared_hinge",
		C:                1.0,
		tol:              1e-4,
		maxIter:          1000,
		fitIntercept:     true,
		interceptScaling: 1.0,
		randomState:      -1,
		nJobs:            1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithLinearSVCC sets the penalty parameter C
func WithLinearSVCC(c float64) LinearSVCOption {
	return func(s *LinearSVC) { s.C = c }
}

// WithLinearSVCPenalty sets the penalty; only "l2" is supported
func WithLinearSVCPenalty(penalty string) LinearSVCOption {
	return func(s *LinearSVC) { s.penalty = penalty }
}

// WithLinearSVCLoss sets the loss: "squared_hinge" or "hinge"
func WithLinearSVCLoss(loss string) LinearSVCOption {
	return func(s *LinearSVC) { s.loss = loss }
}

// WithLinearSVCTol sets the stopping tolerance on the projected gradient
func WithLinearSVCTol(tol float64) LinearSVCOption {
	return func(s *LinearSVC) { s.tol = tol }
}

// WithLinearSVCMaxIter sets the maximum number of passes over the data
func WithLinearSVCMaxIter(maxIter int) LinearSVCOption {
	return func(s *LinearSVC) { s.maxIter = maxIter }
}

// WithLinearSVCFitIntercept sets whether to learn an intercept
func WithLinearSVCFitIntercept(fit bool) LinearSVCOption {
	return func(s *LinearSVC) { s.fitIntercept = fit }
}

// WithLinearSVCRandomState seeds the order of coordinate updates
func WithLinearSVCRandomState(seed int64) LinearSVCOption {
	return func(s *LinearSVC) { s.randomState = seed }
}

// WithLinearSVCVerbose logs solver progress at info level when verbose > 0
func WithLinearSVCVerbose(verbose int) LinearSVCOption {
	return func(s *LinearSVC) { s.verbose = verbose }
}

// WithLinearSVCNJobs sets the number of one-vs-rest problems solved concurrently
func WithLinearSVCNJobs(n int) LinearSVCOption {
	return func(s *LinearSVC) { s.nJobs = n }
}

func (s *LinearSVC) validate() error {
	if s.penalty != "l2" {
		return errors.NewValidationError("penalty", "only 'l2' is supported", s.penalty)
	}
	if s.loss != "squared_hinge" && s.loss != "hinge" {
		return errors.NewValidationError("loss", "must be 'squared_hinge' or 'hinge'", s.loss)
	}
	if s.C <= 0 {
		return errors.NewValidationError("C", "must be positive", s.C)
	}
	if s.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", s.maxIter)
	}
	return nil
}

// Fit trains the model; multiclass targets are handled one-vs-rest
func (s *LinearSVC) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearSVC.Fit")

	if err := s.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckXy("LinearSVC.Fit", X, y)
	if err != nil {
		return err
	}
	if err := errors.CheckMatrix("LinearSVC.Fit", X); err != nil {
		return err
	}
	labels := model.Labels(y)
	classes := model.UniqueLabels(labels)
	if len(classes) < 2 {
		return errors.Wrapf(errors.ErrSingleClass, "LinearSVC.Fit: got class %v", classes)
	}
	codes, err := model.EncodeLabels("LinearSVC.Fit", labels, classes)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("svm.LinearSVC")
	logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, len(classes),
	)

	Xd := matutil.ToDense(X)
	nProblems := len(classes)
	if nProblems == 2 {
		nProblems = 1
	}
	seed := uint64(s.randomState)
	if s.randomState < 0 {
		seed = rand.Uint64()
	}

	coef := make([][]float64, nProblems)
	intercept := make([]float64, nProblems)
	iters := make([]int, nProblems)
	err = parallel.ForEach(context.Background(), nProblems, s.nJobs, func(_ context.Context, k int) error {
		positive := k
		if nProblems == 1 {
			positive = 1
		}
		yb := make([]float64, nSamples)
		for i, c := range codes {
			if c == positive {
				yb[i] = 1
			} else {
				yb[i] = -1
			}
		}
		plog := logger
		if nProblems > 1 {
			plog = logger.With("ovr.class", classes[positive])
		}
		rng := rand.New(rand.NewPCG(seed, uint64(k)))
		w, b, it := s.solveDual(Xd, yb, rng, plog)
		coef[k], intercept[k], iters[k] = w, b, it
		return nil
	})
	if err != nil {
		return err
	}

	s.coef = coef
	s.intercept = intercept
	s.classes = classes
	s.nIter = 0
	for _, it := range iters {
		s.nIter = max(s.nIter, it)
	}
	s.state.SetDimensions(nFeatures, nSamples)
	s.state.SetFitted()
	logger.Debug("Training completed", log.OperationKey, log.OperationFit, log.IterationKey, s.nIter)
	return nil
}

// solveDual is liblinear's dual coordinate descent for L2-regularized
// L2-loss (or L1-loss) SVM, with active set shrinking.
func (s *LinearSVC) solveDual(X *mat.Dense, y []float64, rng *rand.Rand, logger log.Logger) ([]float64, float64, int) {
	l, p := X.Dims()
	bias := 0.0
	if s.fitIntercept {
		bias = s.interceptScaling
	}

	diag, upper := 0.5/s.C, math.Inf(1)
	if s.loss == "hinge" {
		diag, upper = 0, s.C
	}

	w := make([]float64, p)
	var wb float64
	alpha := make([]float64, l)
	qd := make([]float64, l)
	index := make([]int, l)
	for i := 0; i < l; i++ {
		row := X.RawRowView(i)
		qd[i] = diag + floats.Dot(row, row) + bias*bias
		index[i] = i
	}

	pgMaxOld, pgMinOld := math.Inf(1), math.Inf(-1)
	activeSize := l
	iter := 0
	for iter < s.maxIter {
		pgMaxNew, pgMinNew := math.Inf(-1), math.Inf(1)
		for i := 0; i < activeSize; i++ {
			j := i + rng.IntN(activeSize-i)
			index[i], index[j] = index[j], index[i]
		}

		for n := 0; n < activeSize; n++ {
			i := index[n]
			row := X.RawRowView(i)
			yi := y[i]
			G := yi*(floats.Dot(w, row)+wb*bias) - 1 + alpha[i]*diag

			PG := 0.0
			switch {
			case alpha[i] == 0:
				if G > pgMaxOld {
					activeSize--
					index[n], index[activeSize] = index[activeSize], index[n]
					n--
					continue
				}
				if G < 0 {
					PG = G
				}
			case alpha[i] == upper:
				if G < pgMinOld {
					activeSize--
					index[n], index[activeSize] = index[activeSize], index[n]
					n--
					continue
				}
				if G > 0 {
					PG = G
				}
			default:
				PG = G
			}
			pgMaxNew = math.Max(pgMaxNew, PG)
			pgMinNew = math.Min(pgMinNew, PG)

			if math.Abs(PG) > 1e-12 {
				old := alpha[i]
				alpha[i] = math.Min(math.Max(alpha[i]-G/qd[i], 0), upper)
				d := (alpha[i] - old) * yi
				floats.AddScaled(w, d, row)
				wb += d * bias
			}
		}

		iter++
		if s.verbose > 0 && iter%10 == 0 {
			logger.Info("liblinear iteration", log.IterationKey, iter, "active", activeSize)
		}

		if pgMaxNew-pgMinNew <= s.tol {
			if activeSize == l {
				break
			}
			activeSize = l
			pgMaxOld, pgMinOld = math.Inf(1), math.Inf(-1)
			continue
		}
		pgMaxOld, pgMinOld = pgMaxNew, pgMinNew
		if pgMaxOld <= 0 {
			pgMaxOld = math.Inf(1)
		}
		if pgMinOld >= 0 {
			pgMinOld = math.Inf(-1)
		}
	}

	if iter >= s.maxIter {
		errors.Warn(errors.NewConvergenceWarning("liblinear", iter,
			"increase the number of iterations"))
	}

	if s.verbose > 0 {
		// 双対問題の目的関数値
		v := floats.Dot(w, w) + wb*wb
		nSV := 0
		for _, a := range alpha {
			v += a * (a*diag - 2)
			if a > 0 {
				nSV++
			}
		}
		logger.Info("optimization finished",
			log.IterationKey, iter,
			"objective", v/2,
			"n_sv", nSV,
		)
	}
	return w, wb * bias, iter
}

// DecisionFunction returns the signed distances to the hyperplanes
func (s *LinearSVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	return s.scores("DecisionFunction", X)
}

func (s *LinearSVC) scores(method string, X mat.Matrix) (*mat.Dense, error) {
	if err := s.state.RequireFitted("LinearSVC", method); err != nil {
		return nil, err
	}
	rows, cols, err := model.CheckX("LinearSVC."+method, X)
	if err != nil {
		return nil, err
	}
	if err := s.state.RequireFeatures("LinearSVC."+method, cols); err != nil {
		return nil, err
	}
	Xd := matutil.ToDense(X)
	out := mat.NewDense(rows, len(s.coef), nil)
	for i := 0; i < rows; i++ {
		x := Xd.RawRowView(i)
		for k, w := range s.coef {
			out.Set(i, k, floats.Dot(w, x)+s.intercept[k])
		}
	}
	return out, nil
}

// Predict predicts class labels
func (s *LinearSVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := s.scores("Predict", X)
	if err != nil {
		return nil, err
	}
	rows, k := scores.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		if k == 1 {
			c := 0
			if scores.At(i, 0) > 0 {
				c = 1
			}
			out.Set(i, 0, s.classes[c])
			continue
		}
		out.Set(i, 0, s.classes[matutil.ArgMax(scores.RawRowView(i))])
	}
	return out, nil
}

// PredictProba is not available for LinearSVC
func (s *LinearSVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return nil, errors.NewModelError("LinearSVC.PredictProba", "unsupported",
		errors.New("probability estimates are not available for LinearSVC"))
}

// Score returns the mean accuracy on the given data
func (s *LinearSVC) Score(X, y mat.Matrix) (float64, error) {
	return model.AccuracyScore(s, X, y)
}

// Classes returns the class labels seen during Fit
func (s *LinearSVC) Classes() []float64 {
	return append([]float64(nil), s.classes...)
}

// Coef returns one weight row per binary problem
func (s *LinearSVC) Coef() [][]float64 {
	out := make([][]float64, len(s.coef))
	for k := range s.coef {
		out[k] = append([]float64(nil), s.coef[k]...)
	}
	return out
}

// Intercept returns the intercept of each row of Coef
func (s *LinearSVC) Intercept() []float64 {
	return append([]float64(nil), s.intercept...)
}

// NIter returns the largest number of passes used by a binary problem
func (s *LinearSVC) NIter() int {
	return s.nIter
}

// IsFitted returns whether the model has been fitted
func (s *LinearSVC) IsFitted() bool {
	return s.state.IsFitted()
}

// GetParams returns the hyperparameters
func (s *LinearSVC) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{
		"penalty":           s.penalty,
		"loss":              s.loss,
		"C":                 s.C,
		"tol":               s.tol,
		"max_iter":          s.maxIter,
		"fit_intercept":     s.fitIntercept,
		"intercept_scaling": s.interceptScaling,
		"random_state":      s.randomState,
		"verbose":           s.verbose,
		"n_jobs":            s.nJobs,
	}
}

// SetParams sets the hyperparameters
func (s *LinearSVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "penalty":
			s.penalty, err = model.ParamString(key, value)
		case "loss":
			s.loss, err = model.ParamString(key, value)
		case "C":
			s.C, err = model.ParamFloat(key, value)
		case "tol":
			s.tol, err = model.ParamFloat(key, value)
		case "max_iter":
			s.maxIter, err = model.ParamInt(key, value)
		case "fit_intercept":
			s.fitIntercept, err = model.ParamBool(key, value)
		case "intercept_scaling":
			s.interceptScaling, err = model.ParamFloat(key, value)
		case "random_state":
			var seed int
			seed, err = model.ParamInt(key, value)
			s.randomState = int64(seed)
		case "verbose":
			s.verbose, err = model.ParamInt(key, value)
		case "n_jobs":
			s.nJobs, err = model.ParamInt(key, value)
		default:
			return model.UnknownParam("LinearSVC", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters
func (s *LinearSVC) Clone() model.SKLearnCompatible {
	clone := NewLinearSVC()
	_ = clone.SetParams(s.GetParams(false))
	return clone
}

// String returns the string representation of the model
func (s *LinearSVC) String() string {
	return fmt.Sprintf("LinearSVC(penalty=%s, loss=%s, C=%g, max_iter=%d)", s.penalty, s.loss, s.C, s.maxIter)
}
