package linear_model

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/supervised-learning/core/matutil"
	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/core/parallel"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// LogisticRegression implements logistic regression for classification
// Compatible with scikit-learn's LogisticRegression
//
// The objective C·Σ logloss + ½‖w‖² (intercept unpenalized) is minimized
// with gonum's L-BFGS.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2", "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	solver       string  // Solver: "lbfgs"
	maxIter      int     // Maximum iterations
	multiClass   string  // Multi-class: "auto", "ovr", "multinomial"
	verbose      int     // Verbosity level
	tol          float64 // Tolerance for stopping (max |gradient|)
	nJobs        int     // Workers for one-vs-rest problems

	// Model parameters
	coef        [][]float64 // Coefficients (n_classes x n_features or 1 x n_features for binary)
	intercept   []float64   // Intercept terms
	classes     []float64   // Unique class labels
	nClasses    int         // Number of classes
	nIter       []int       // Actual iterations per problem
	multinomial bool        // Whether the fitted model is a softmax model
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		solver:       "lbfgs",
		maxIter:      100,
		multiClass:   "auto",
		tol:          1e-4,
		nJobs:        1,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRSolver sets the optimization solver
func WithLRSolver(solver string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.solver = solver
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// WithLRMultiClass selects "auto", "ovr" or "multinomial"
func WithLRMultiClass(multiClass string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.multiClass = multiClass
	}
}

// WithLRVerbose logs every L-BFGS iteration at info level when verbose > 0
func WithLRVerbose(verbose int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.verbose = verbose
	}
}

// WithLRNJobs sets the number of one-vs-rest problems solved concurrently
func WithLRNJobs(n int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.nJobs = n
	}
}

func (lr *LogisticRegression) validate() error {
	switch lr.penalty {
	case "l2", "none":
	default:
		return errors.NewValidationError("penalty", "lbfgs supports only 'l2' or 'none'", lr.penalty)
	}
	if lr.solver != "lbfgs" {
		return errors.NewValidationError("solver", "only 'lbfgs' is implemented", lr.solver)
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.maxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", lr.maxIter)
	}
	switch lr.multiClass {
	case "auto", "ovr", "multinomial":
	default:
		return errors.NewValidationError("multi_class", "must be 'auto', 'ovr' or 'multinomial'", lr.multiClass)
	}
	return nil
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	if err := lr.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, err := model.CheckXy("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	if err := errors.CheckMatrix("LogisticRegression.Fit", X); err != nil {
		return err
	}

	labels := model.Labels(y)
	classes := model.UniqueLabels(labels)
	if len(classes) < 2 {
		return errors.Wrapf(errors.ErrSingleClass, "LogisticRegression.Fit: got class %v", classes)
	}
	codes, err := model.EncodeLabels("LogisticRegression.Fit", labels, classes)
	if err != nil {
		return err
	}

	logger := log.GetLoggerWithName("linear_model.LogisticRegression")
	logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, len(classes),
	)

	lr.state.Reset()
	lr.classes = classes
	lr.nClasses = len(classes)
	Xd := matutil.ToDense(X)

	switch {
	case lr.nClasses == 2:
		lr.multinomial = false
		w, it, err := lr.fitBinary(Xd, binaryTargets(codes, 1), logger)
		if err != nil {
			return err
		}
		lr.setCoef([][]float64{w}, nFeatures)
		lr.nIter = []int{it}
	case lr.multiClass == "ovr":
		lr.multinomial = false
		if err := lr.fitOVR(Xd, codes, logger); err != nil {
			return err
		}
	default:
		lr.multinomial = true
		if err := lr.fitMultinomial(Xd, codes, logger); err != nil {
			return err
		}
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	logger.Debug("Training completed", log.OperationKey, log.OperationFit, "n_iter", lr.nIter)
	return nil
}

// setCoef は [w..., b] 形式の解を coef と intercept に分ける
func (lr *LogisticRegression) setCoef(solutions [][]float64, nFeatures int) {
	lr.coef = make([][]float64, len(solutions))
	lr.intercept = make([]float64, len(solutions))
	for k, x := range solutions {
		lr.coef[k] = append([]float64(nil), x[:nFeatures]...)
		if lr.fitIntercept {
			lr.intercept[k] = x[nFeatures]
		}
	}
}

func (lr *LogisticRegression) fitOVR(X *mat.Dense, codes []int, logger log.Logger) error {
	_, nFeatures := X.Dims()
	solutions := make([][]float64, lr.nClasses)
	iters := make([]int, lr.nClasses)
	err := parallel.ForEach(context.Background(), lr.nClasses, lr.nJobs, func(_ context.Context, k int) error {
		return errors.SafeExecute("LogisticRegression.fitOVR", func() error {
			w, it, err := lr.fitBinary(X, binaryTargets(codes, k), logger.With("ovr.class", lr.classes[k]))
			if err != nil {
				return err
			}
			solutions[k] = w
			iters[k] = it
			return nil
		})
	})
	if err != nil {
		return err
	}
	lr.setCoef(solutions, nFeatures)
	lr.nIter = iters
	return nil
}

func (lr *LogisticRegression) fitBinary(X *mat.Dense, y []float64, logger log.Logger) ([]float64, int, error) {
	obj := &binaryLogistic{X: X, y: y, C: lr.C, l2: lr.penalty == "l2", fitIntercept: lr.fitIntercept}
	_, nFeatures := X.Dims()
	size := nFeatures
	if lr.fitIntercept {
		size++
	}
	return lr.minimize(optimize.Problem{Func: obj.Func, Grad: obj.Grad}, size, logger)
}

func (lr *LogisticRegression) fitMultinomial(X *mat.Dense, codes []int, logger log.Logger) error {
	_, nFeatures := X.Dims()
	obj := &softmaxLogistic{X: X, codes: codes, k: lr.nClasses, C: lr.C, l2: lr.penalty == "l2", fitIntercept: lr.fitIntercept}
	x, it, err := lr.minimize(optimize.Problem{Func: obj.Func, Grad: obj.Grad}, lr.nClasses*obj.stride(), logger)
	if err != nil {
		return err
	}
	stride := obj.stride()
	solutions := make([][]float64, lr.nClasses)
	for k := range solutions {
		solutions[k] = x[k*stride : (k+1)*stride]
	}
	lr.setCoef(solutions, nFeatures)
	lr.nIter = []int{it}
	return nil
}

// minimize はゼロ初期値からL-BFGSを実行する
func (lr *LogisticRegression) minimize(p optimize.Problem, size int, logger log.Logger) ([]float64, int, error) {
	settings := &optimize.Settings{
		GradientThreshold: lr.tol,
		MajorIterations:   lr.maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-10,
			Iterations: 5,
		},
	}
	if lr.verbose > 0 {
		settings.Recorder = &iterationRecorder{logger: logger}
	}

	result, err := optimize.Minimize(p, make([]float64, size), settings, &optimize.LBFGS{})
	if result == nil {
		return nil, 0, errors.NewModelError("LogisticRegression.Fit", "lbfgs", err)
	}
	iters := result.Stats.MajorIterations
	switch {
	case err != nil:
		errors.Warn(errors.NewConvergenceWarning("lbfgs", iters, err.Error()))
	case result.Status == optimize.IterationLimit:
		errors.Warn(errors.NewConvergenceWarning("lbfgs", iters, ""))
	}
	if cerr := errors.CheckVector("LogisticRegression.Fit", result.X, iters); cerr != nil {
		return nil, iters, cerr
	}
	return result.X, iters, nil
}

// iterationRecorder は verbose 時にL-BFGSの各反復をログに出す
type iterationRecorder struct {
	logger log.Logger
}

func (r *iterationRecorder) Init() error { return nil }

func (r *iterationRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op != optimize.MajorIteration {
		return nil
	}
	gradNorm := 0.0
	if loc.Gradient != nil {
		gradNorm = floats.Norm(loc.Gradient, math.Inf(1))
	}
	r.logger.Info("lbfgs iteration",
		log.IterationKey, stats.MajorIterations,
		log.LossKey, loc.F,
		log.GradNormKey, gradNorm,
	)
	return nil
}

// binaryLogistic は y ∈ {-1, +1} の二値ロジスティック損失
// x は [w_1..w_p, b] (b は fitIntercept のときのみ)
type binaryLogistic struct {
	X            *mat.Dense
	y            []float64
	C            float64
	l2           bool
	fitIntercept bool

	lastX []float64
	z     *mat.VecDense
}

// margins は z = Xw + b を計算する。同じ x での再計算は省く
func (b *binaryLogistic) margins(x []float64) *mat.VecDense {
	if b.z != nil && floats.Equal(b.lastX, x) {
		return b.z
	}
	rows, cols := b.X.Dims()
	if b.z == nil {
		b.z = mat.NewVecDense(rows, nil)
	}
	b.z.MulVec(b.X, mat.NewVecDense(cols, x[:cols]))
	if b.fitIntercept {
		for i := 0; i < rows; i++ {
			b.z.SetVec(i, b.z.AtVec(i)+x[cols])
		}
	}
	b.lastX = append(b.lastX[:0], x...)
	return b.z
}

func (b *binaryLogistic) Func(x []float64) float64 {
	z := b.margins(x)
	_, cols := b.X.Dims()
	var loss float64
	for i, yi := range b.y {
		loss += logistic1p(-yi * z.AtVec(i))
	}
	loss *= b.C
	if b.l2 {
		loss += 0.5 * floats.Dot(x[:cols], x[:cols])
	}
	return loss
}

func (b *binaryLogistic) Grad(grad, x []float64) {
	z := b.margins(x)
	rows, cols := b.X.Dims()
	g := mat.NewVecDense(rows, nil)
	var gb float64
	for i, yi := range b.y {
		// d/dz log(1+exp(-yz)) = -y σ(-yz)
		gi := -yi * errors.Sigmoid(-yi*z.AtVec(i)) * b.C
		g.SetVec(i, gi)
		gb += gi
	}
	gw := mat.NewVecDense(cols, grad[:cols])
	gw.MulVec(b.X.T(), g)
	if b.l2 {
		floats.Add(grad[:cols], x[:cols])
	}
	if b.fitIntercept {
		grad[cols] = gb
	}
}

// softmaxLogistic は多項ロジスティック損失
// x はクラスごとに [w_1..w_p, b] を並べたもの
type softmaxLogistic struct {
	X            *mat.Dense
	codes        []int
	k            int
	C            float64
	l2           bool
	fitIntercept bool

	lastX []float64
	proba *mat.Dense
	loss  float64
}

func (s *softmaxLogistic) stride() int {
	_, cols := s.X.Dims()
	if s.fitIntercept {
		return cols + 1
	}
	return cols
}

// evaluate はクラス確率とデータ項の損失を計算してキャッシュする
func (s *softmaxLogistic) evaluate(x []float64) {
	if s.proba != nil && floats.Equal(s.lastX, x) {
		return
	}
	rows, cols := s.X.Dims()
	stride := s.stride()
	w := mat.NewDense(s.k, cols, nil)
	for c := 0; c < s.k; c++ {
		w.SetRow(c, x[c*stride:c*stride+cols])
	}
	if s.proba == nil {
		s.proba = mat.NewDense(rows, s.k, nil)
	}
	s.proba.Mul(s.X, w.T())
	s.loss = 0
	for i := 0; i < rows; i++ {
		row := s.proba.RawRowView(i)
		if s.fitIntercept {
			for c := range row {
				row[c] += x[c*stride+cols]
			}
		}
		lse := errors.LogSumExp(row)
		s.loss += lse - row[s.codes[i]]
		for c := range row {
			row[c] = math.Exp(row[c] - lse)
		}
	}
	s.lastX = append(s.lastX[:0], x...)
}

func (s *softmaxLogistic) Func(x []float64) float64 {
	s.evaluate(x)
	loss := s.C * s.loss
	if s.l2 {
		_, cols := s.X.Dims()
		stride := s.stride()
		for c := 0; c < s.k; c++ {
			w := x[c*stride : c*stride+cols]
			loss += 0.5 * floats.Dot(w, w)
		}
	}
	return loss
}

func (s *softmaxLogistic) Grad(grad, x []float64) {
	s.evaluate(x)
	rows, cols := s.X.Dims()
	stride := s.stride()

	// G = C (P - Y)
	g := mat.DenseCopyOf(s.proba)
	for i := 0; i < rows; i++ {
		g.Set(i, s.codes[i], g.At(i, s.codes[i])-1)
	}
	g.Scale(s.C, g)

	var gw mat.Dense
	gw.Mul(g.T(), s.X)
	for c := 0; c < s.k; c++ {
		dst := grad[c*stride : c*stride+cols]
		mat.Row(dst, c, &gw)
		if s.l2 {
			floats.Add(dst, x[c*stride:c*stride+cols])
		}
		if s.fitIntercept {
			var sum float64
			for i := 0; i < rows; i++ {
				sum += g.At(i, c)
			}
			grad[c*stride+cols] = sum
		}
	}
}

// logistic1p は log(1 + exp(t)) をオーバーフローせずに計算する
func logistic1p(t float64) float64 {
	if t > 0 {
		return t + math.Log1p(math.Exp(-t))
	}
	return math.Log1p(math.Exp(t))
}

// DecisionFunction returns the signed distances to the hyperplanes.
// Binary problems give n×1, multiclass problems n×n_classes.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	return lr.scores("DecisionFunction", X)
}

func (lr *LogisticRegression) scores(method string, X mat.Matrix) (*mat.Dense, error) {
	if err := lr.state.RequireFitted("LogisticRegression", method); err != nil {
		return nil, err
	}
	_, cols, err := model.CheckX("LogisticRegression."+method, X)
	if err != nil {
		return nil, err
	}
	if err := lr.state.RequireFeatures("LogisticRegression."+method, cols); err != nil {
		return nil, err
	}
	return linearScores(X, lr.coef, lr.intercept), nil
}

// Predict predicts class labels for samples in X
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.scores("Predict", X)
	if err != nil {
		return nil, err
	}
	return labelsFromScores(scores, lr.classes), nil
}

// PredictProba returns class probabilities with columns in Classes() order.
// One-vs-rest sigmoid scores are normalized per row.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.scores("PredictProba", X)
	if err != nil {
		return nil, err
	}
	rows, k := scores.Dims()
	proba := mat.NewDense(rows, lr.nClasses, nil)
	for i := 0; i < rows; i++ {
		row := proba.RawRowView(i)
		switch {
		case k == 1:
			p := errors.Sigmoid(scores.At(i, 0))
			row[0], row[1] = 1-p, p
		case lr.multinomial:
			mat.Row(row, i, scores)
			errors.Softmax(row)
		default:
			for c := range row {
				row[c] = errors.Sigmoid(scores.At(i, c))
			}
			floats.Scale(1/floats.Sum(row), row)
		}
	}
	return proba, nil
}

// PredictLogProba returns the log of PredictProba
func (lr *LogisticRegression) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	out := mat.DenseCopyOf(proba)
	out.Apply(func(_, _ int, v float64) float64 { return errors.StabilizeLog(v) }, out)
	return out, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	return model.AccuracyScore(lr, X, y)
}

// Classes returns the class labels seen during Fit in ascending order
func (lr *LogisticRegression) Classes() []float64 {
	return append([]float64(nil), lr.classes...)
}

// Coef returns the coefficients, one row per binary problem or class
func (lr *LogisticRegression) Coef() [][]float64 {
	out := make([][]float64, len(lr.coef))
	for k := range lr.coef {
		out[k] = append([]float64(nil), lr.coef[k]...)
	}
	return out
}

// Intercept returns the intercept of each row of Coef
func (lr *LogisticRegression) Intercept() []float64 {
	return append([]float64(nil), lr.intercept...)
}

// NIter returns the L-BFGS iterations used per problem
func (lr *LogisticRegression) NIter() []int {
	return append([]int(nil), lr.nIter...)
}

// IsFitted returns whether the model has been fitted
func (lr *LogisticRegression) IsFitted() bool {
	return lr.state.IsFitted()
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"solver":        lr.solver,
		"max_iter":      lr.maxIter,
		"multi_class":   lr.multiClass,
		"verbose":       lr.verbose,
		"tol":           lr.tol,
		"n_jobs":        lr.nJobs,
	}
}

// SetParams sets the model hyperparameters. Values are checked by Fit.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "penalty":
			lr.penalty, err = model.ParamString(key, value)
		case "C":
			lr.C, err = model.ParamFloat(key, value)
		case "fit_intercept":
			lr.fitIntercept, err = model.ParamBool(key, value)
		case "solver":
			lr.solver, err = model.ParamString(key, value)
		case "max_iter":
			lr.maxIter, err = model.ParamInt(key, value)
		case "multi_class":
			lr.multiClass, err = model.ParamString(key, value)
		case "verbose":
			lr.verbose, err = model.ParamInt(key, value)
		case "tol":
			lr.tol, err = model.ParamFloat(key, value)
		case "n_jobs":
			lr.nJobs, err = model.ParamInt(key, value)
		default:
			return model.UnknownParam("LogisticRegression", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted copy with the same hyperparameters
func (lr *LogisticRegression) Clone() model.SKLearnCompatible {
	clone := NewLogisticRegression()
	_ = clone.SetParams(lr.GetParams(false))
	return clone
}

// String returns the string representation of the model
func (lr *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(penalty=%s, C=%g, solver=%s, max_iter=%d, multi_class=%s)",
		lr.penalty, lr.C, lr.solver, lr.maxIter, lr.multiClass)
}
