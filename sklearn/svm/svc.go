package svm

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/matutil"
	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/core/parallel"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// SVC is a kernel support vector classifier.
// Compatible with scikit-learn's SVC (libsvm C-SVC).
//
// Multiclass problems are trained one-vs-one; Predict votes over all pairs.
// decisionFunctionShape only changes the shape of DecisionFunction.
type SVC struct {
	state *model.StateManager

	// Hyperparameters
	C                     float64
	kernel                string
	degree                int
	gamma                 interface{} // "scale", "auto" or a positive number
	coef0                 float64
	tol                   float64
	cacheSize             float64 // MB
	maxIter               int     // -1 for no limit
	decisionFunctionShape string  // "ovo" or "ovr"
	verbose               int
	nJobs                 int

	// Fitted values
	classes  []float64
	pairs    []svcPair
	gammaVal float64
	support  []int
	nSupport []int
}

// svcPair is the binary machine between classes[i] (positive) and classes[j].
type svcPair struct {
	i, j     int
	vectors  *mat.Dense
	sqNorms  []float64
	dualCoef []float64 // alpha * y
	rho      float64
}

// SVCOption is a functional option for SVC
type SVCOption func(*SVC)

// NewSVC creates a new SVC with scikit-learn's defaults
func NewSVC(opts ...SVCOption) *SVC {
	s := &SVC{
		state:                 model.NewStateManager(),
		C:                     1.0,
		kernel:                KernelRBF,
		degree:                3,
		gamma:                 "scale",
		coef0:                 0.0,
		tol:                   1e-3,
		cacheSize:             200,
		maxIter:               -1,
		decisionFunctionShape: "ovr",
		nJobs:                 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithSVCC sets the penalty parameter C
func WithSVCC(c float64) SVCOption {
	return func(s *SVC) { s.C = c }
}

// WithKernel sets the kernel: "linear", "rbf", "poly" or "sigmoid"
func WithKernel(kernel string) SVCOption {
	return func(s *SVC) { s.kernel = kernel }
}

// WithDegree sets the degree of the polynomial kernel
func WithDegree(degree int) SVCOption {
	return func(s *SVC) { s.degree = degree }
}

// WithGamma sets gamma: "scale", "auto" or a positive float64
func WithGamma(gamma interface{}) SVCOption {
	return func(s *SVC) { s.gamma = gamma }
}

// WithCoef0 sets the independent term of the poly and sigmoid kernels
func WithCoef0(coef0 float64) SVCOption {
	return func(s *SVC) { s.coef0 = coef0 }
}

// WithSVCTol sets the KKT tolerance of SMO
func WithSVCTol(tol float64) SVCOption {
	return func(s *SVC) { s.tol = tol }
}

// WithSVCMaxIter limits SMO iterations per binary problem; -1 for no limit
func WithSVCMaxIter(maxIter int) SVCOption {
	return func(s *SVC) { s.maxIter = maxIter }
}

// WithDecisionFunctionShape selects "ovo" or "ovr" output for DecisionFunction
func WithDecisionFunctionShape(shape string) SVCOption {
	return func(s *SVC) { s.decisionFunctionShape = shape }
}

// WithSVCNJobs sets the number of binary problems solved concurrently
func WithSVCNJobs(n int) SVCOption {
	return func(s *SVC) { s.nJobs = n }
}

// WithSVCVerbose logs each binary problem at info level when verbose > 0
func WithSVCVerbose(verbose int) SVCOption {
	return func(s *SVC) { s.verbose = verbose }
}

func (s *SVC) validate() error {
	if s.C <= 0 {
		return errors.NewValidationError("C", "must be positive", s.C)
	}
	switch s.kernel {
	case KernelLinear, KernelRBF, KernelPoly, KernelSigmoid:
	default:
		return errors.NewValidationError("kernel", "must be one of linear, rbf, poly, sigmoid", s.kernel)
	}
	if s.kernel == KernelPoly && s.degree < 0 {
		return errors.NewValidationError("degree", "must be non-negative", s.degree)
	}
	switch s.decisionFunctionShape {
	case "ovo", "ovr":
	default:
		return errors.NewValidationError("decision_function_shape", "must be 'ovo' or 'ovr'", s.decisionFunctionShape)
	}
	if s.tol <= 0 {
		return errors.NewValidationError("tol", "must be positive", s.tol)
	}
	return nil
}

// Fit trains one binary machine per pair of classes
func (s *SVC) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "SVC.Fit")

	if err := s.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckXy("SVC.Fit", X, y)
	if err != nil {
		return err
	}
	if err := errors.CheckMatrix("SVC.Fit", X); err != nil {
		return err
	}
	labels := model.Labels(y)
	classes := model.UniqueLabels(labels)
	if len(classes) < 2 {
		return errors.Wrapf(errors.ErrSingleClass, "SVC.Fit: got class %v", classes)
	}
	codes, err := model.EncodeLabels("SVC.Fit", labels, classes)
	if err != nil {
		return err
	}

	Xd := matutil.ToDense(X)
	gamma, err := resolveGamma(s.gamma, Xd)
	if err != nil {
		return err
	}
	k := kernel{kind: s.kernel, gamma: gamma, coef0: s.coef0, degree: s.degree}

	logger := log.GetLoggerWithName("svm.SVC")
	logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, len(classes),
		"kernel", s.kernel,
		"gamma", gamma,
	)

	byClass := make([][]int, len(classes))
	for i, c := range codes {
		byClass[c] = append(byClass[c], i)
	}
	sqNorms := make([]float64, nSamples)
	for i := range sqNorms {
		row := Xd.RawRowView(i)
		sqNorms[i] = floats.Dot(row, row)
	}

	type job struct{ i, j int }
	var jobs []job
	for i := range classes {
		for j := i + 1; j < len(classes); j++ {
			jobs = append(jobs, job{i, j})
		}
	}
	pairs := make([]svcPair, len(jobs))
	svMask := make([][]bool, len(jobs))
	err = parallel.ForEach(context.Background(), len(jobs), s.nJobs, func(_ context.Context, n int) error {
		pi, pj := jobs[n].i, jobs[n].j
		rows := append(append([]int(nil), byClass[pi]...), byClass[pj]...)
		yb := make([]float64, len(rows))
		for r := range rows {
			if r < len(byClass[pi]) {
				yb[r] = 1
			} else {
				yb[r] = -1
			}
		}
		pair, mask, err := s.fitPair(Xd, sqNorms, rows, yb, k, logger)
		if err != nil {
			return err
		}
		pair.i, pair.j = pi, pj
		pairs[n] = pair
		svMask[n] = mask
		return nil
	})
	if err != nil {
		return err
	}

	// support_ は少なくとも一つのペアでサポートベクトルになった学習サンプル
	isSV := make([]bool, nSamples)
	for n, jb := range jobs {
		rows := append(append([]int(nil), byClass[jb.i]...), byClass[jb.j]...)
		for r, sv := range svMask[n] {
			if sv {
				isSV[rows[r]] = true
			}
		}
	}
	s.support = s.support[:0]
	s.nSupport = make([]int, len(classes))
	for i, sv := range isSV {
		if sv {
			s.support = append(s.support, i)
			s.nSupport[codes[i]]++
		}
	}
	sort.SliceStable(s.support, func(a, b int) bool { return codes[s.support[a]] < codes[s.support[b]] })

	s.classes = classes
	s.pairs = pairs
	s.gammaVal = gamma
	s.state.SetDimensions(nFeatures, nSamples)
	s.state.SetFitted()
	logger.Debug("Training completed", log.OperationKey, log.OperationFit, "n_support", len(s.support))
	return nil
}

func (s *SVC) fitPair(X *mat.Dense, sqNorms []float64, rows []int, y []float64, k kernel, logger log.Logger) (svcPair, []bool, error) {
	l := len(rows)
	qd := make([]float64, l)
	for r, i := range rows {
		row := X.RawRowView(i)
		qd[r] = k.eval(row, row, sqNorms[i], sqNorms[i])
	}
	cache := newRowCache(l, int(s.cacheSize*1024*1024), func(r int, dst []float64) {
		xr := X.RawRowView(rows[r])
		for c, i := range rows {
			dst[c] = y[r] * y[c] * k.eval(xr, X.RawRowView(i), sqNorms[rows[r]], sqNorms[i])
		}
	})
	problem := &smoProblem{y: y, qd: qd, q: cache, C: s.C, eps: s.tol, maxIter: s.maxIter}
	sol := problem.solve()
	if !sol.converged {
		errors.Warn(errors.NewConvergenceWarning("SVC", sol.iterations,
			"solver terminated early (max_iter reached); consider pre-processing your data"))
	}

	var svRows []int
	var coef []float64
	mask := make([]bool, l)
	for r, a := range sol.alpha {
		if a > 0 {
			mask[r] = true
			svRows = append(svRows, rows[r])
			coef = append(coef, a*y[r])
		}
	}
	if len(svRows) == 0 {
		return svcPair{}, nil, errors.NewModelError("SVC.Fit", "smo", errors.New("no support vectors found"))
	}
	vectors := matutil.ToDense(matutil.SelectRows(X, svRows))
	norms := make([]float64, len(svRows))
	for n, i := range svRows {
		norms[n] = sqNorms[i]
	}

	if s.verbose > 0 {
		logger.Info("optimization finished",
			log.IterationKey, sol.iterations,
			"n_sv", len(svRows),
			"rho", sol.rho,
		)
	}
	return svcPair{vectors: vectors, sqNorms: norms, dualCoef: coef, rho: sol.rho}, mask, nil
}

// pairValues returns the raw libsvm decision values, one column per pair.
// A positive value is a vote for the first class of the pair.
func (s *SVC) pairValues(method string, X mat.Matrix) (*mat.Dense, error) {
	if err := s.state.RequireFitted("SVC", method); err != nil {
		return nil, err
	}
	rows, cols, err := model.CheckX("SVC."+method, X)
	if err != nil {
		return nil, err
	}
	if err := s.state.RequireFeatures("SVC."+method, cols); err != nil {
		return nil, err
	}
	Xd := matutil.ToDense(X)
	k := kernel{kind: s.kernel, gamma: s.gammaVal, coef0: s.coef0, degree: s.degree}
	out := mat.NewDense(rows, len(s.pairs), nil)
	parallel.ParallelizeWithThreshold(rows, 64, func(start, end int) {
		for i := start; i < end; i++ {
			x := Xd.RawRowView(i)
			sq := floats.Dot(x, x)
			for p, pair := range s.pairs {
				v := -pair.rho
				for n, c := range pair.dualCoef {
					v += c * k.eval(pair.vectors.RawRowView(n), x, pair.sqNorms[n], sq)
				}
				out.Set(i, p, v)
			}
		}
	})
	return out, nil
}

// Predict predicts class labels by one-vs-one voting
func (s *SVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	values, err := s.pairValues("Predict", X)
	if err != nil {
		return nil, err
	}
	rows, _ := values.Dims()
	out := mat.NewDense(rows, 1, nil)
	votes := make([]float64, len(s.classes))
	for i := 0; i < rows; i++ {
		for c := range votes {
			votes[c] = 0
		}
		for p, pair := range s.pairs {
			if values.At(i, p) > 0 {
				votes[pair.i]++
			} else {
				votes[pair.j]++
			}
		}
		out.Set(i, 0, s.classes[matutil.ArgMax(votes)])
	}
	return out, nil
}

// DecisionFunction returns n×1 for binary problems (positive means
// Classes()[1]), n×n_pairs for "ovo" and n×n_classes for "ovr".
func (s *SVC) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	values, err := s.pairValues("DecisionFunction", X)
	if err != nil {
		return nil, err
	}
	rows, _ := values.Dims()
	if len(s.classes) == 2 {
		out := mat.NewDense(rows, 1, nil)
		for i := 0; i < rows; i++ {
			out.Set(i, 0, -values.At(i, 0))
		}
		return out, nil
	}
	if s.decisionFunctionShape == "ovo" {
		return values, nil
	}
	return s.ovrDecision(values), nil
}

// ovrDecision aggregates pair values into votes plus a bounded confidence term
func (s *SVC) ovrDecision(values *mat.Dense) *mat.Dense {
	rows, _ := values.Dims()
	k := len(s.classes)
	out := mat.NewDense(rows, k, nil)
	conf := make([]float64, k)
	for i := 0; i < rows; i++ {
		for c := range conf {
			conf[c] = 0
		}
		row := out.RawRowView(i)
		for p, pair := range s.pairs {
			v := values.At(i, p)
			conf[pair.i] += v
			conf[pair.j] -= v
			if v > 0 {
				row[pair.i]++
			} else {
				row[pair.j]++
			}
		}
		for c := range row {
			row[c] += conf[c] / (3 * (math.Abs(conf[c]) + 1))
		}
	}
	return out
}

// PredictProba is not available: SVC is trained without Platt scaling.
func (s *SVC) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	return nil, errors.NewModelError("SVC.PredictProba", "unsupported",
		errors.New("probability estimates are not available for SVC"))
}

// Score returns the mean accuracy on the given data
func (s *SVC) Score(X, y mat.Matrix) (float64, error) {
	return model.AccuracyScore(s, X, y)
}

// Classes returns the class labels seen during Fit
func (s *SVC) Classes() []float64 {
	return append([]float64(nil), s.classes...)
}

// Support returns the indices of the support vectors, grouped by class
func (s *SVC) Support() []int {
	return append([]int(nil), s.support...)
}

// NSupport returns the number of support vectors per class
func (s *SVC) NSupport() []int {
	return append([]int(nil), s.nSupport...)
}

// Gamma returns the kernel coefficient used by the fitted model
func (s *SVC) Gamma() float64 {
	return s.gammaVal
}

// IsFitted returns whether the model has been fitted
func (s *SVC) IsFitted() bool {
	return s.state.IsFitted()
}

// GetParams returns the hyperparameters
func (s *SVC) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{
		"C":                       s.C,
		"kernel":                  s.kernel,
		"degree":                  s.degree,
		"gamma":                   s.gamma,
		"coef0":                   s.coef0,
		"tol":                     s.tol,
		"cache_size":              s.cacheSize,
		"max_iter":                s.maxIter,
		"decision_function_shape": s.decisionFunctionShape,
		"verbose":                 s.verbose,
		"n_jobs":                  s.nJobs,
	}
}

// SetParams sets the hyperparameters
func (s *SVC) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "C":
			s.C, err = model.ParamFloat(key, value)
		case "kernel":
			s.kernel, err = model.ParamString(key, value)
		case "degree":
			s.degree, err = model.ParamInt(key, value)
		case "gamma":
			switch value.(type) {
			case string, float64, int:
				s.gamma = value
			default:
				err = errors.NewValidationError(key, "must be 'scale', 'auto' or a number", value)
			}
		case "coef0":
			s.coef0, err = model.ParamFloat(key, value)
		case "tol":
			s.tol, err = model.ParamFloat(key, value)
		case "cache_size":
			s.cacheSize, err = model.ParamFloat(key, value)
		case "max_iter":
			s.maxIter, err = model.ParamInt(key, value)
		case "decision_function_shape":
			s.decisionFunctionShape, err = model.ParamString(key, value)
		case "verbose":
			s.verbose, err = model.ParamInt(key, value)
		case "n_jobs":
			s.nJobs, err = model.ParamInt(key, value)
		default:
			return model.UnknownParam("SVC", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters
func (s *SVC) Clone() model.SKLearnCompatible {
	clone := NewSVC()
	_ = clone.SetParams(s.GetParams(false))
	return clone
}

// String returns the string representation of the model
func (s *SVC) String() string {
	return fmt.Sprintf("SVC(C=%g, kernel=%s, gamma=%v, decision_function_shape=%s)",
		s.C, s.kernel, s.gamma, s.decisionFunctionShape)
}
