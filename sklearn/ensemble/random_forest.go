// Package ensemble implements bagged tree ensembles.
package ensemble

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/matutil"
	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/core/parallel"
	"github.com/YuminosukeSato/supervised-learning/core/random"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
	"github.com/YuminosukeSato/supervised-learning/sklearn/tree"
)

// RandomForestClassifier averages the class probabilities of decision trees
// grown on bootstrap samples with random feature subsets at each split.
type RandomForestClassifier struct {
	state *model.StateManager

	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     interface{}
	bootstrap       bool
	oobScore        bool
	randomState     int64
	nJobs           int
	verbose         int

	estimators []*tree.DecisionTreeClassifier
	// treeClass[t][k] は木 t の k 番目のクラスのフォレスト内インデックス
	treeClass   [][]int
	classes     []float64
	importances []float64
	oob         float64
	oobDecision *mat.Dense
}

// Option configures a RandomForestClassifier.
type Option func(*RandomForestClassifier)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nEstimators = n }
}

// WithCriterion sets the split criterion of every tree.
func WithCriterion(c string) Option {
	return func(rf *RandomForestClassifier) { rf.criterion = c }
}

// WithMaxDepth limits tree depth; 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(rf *RandomForestClassifier) { rf.maxDepth = d }
}

func WithMinSamplesSplit(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesSplit = n }
}

func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestClassifier) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures sets features per split: nil, "sqrt", "log2", int or float.
func WithMaxFeatures(v interface{}) Option {
	return func(rf *RandomForestClassifier) { rf.maxFeatures = v }
}

// WithBootstrap toggles bootstrap sampling; without it every tree sees all rows.
func WithBootstrap(b bool) Option {
	return func(rf *RandomForestClassifier) { rf.bootstrap = b }
}

// WithOOBScore computes the out-of-bag accuracy after Fit.
func WithOOBScore(b bool) Option {
	return func(rf *RandomForestClassifier) { rf.oobScore = b }
}

// WithRandomState seeds bootstrap and feature sampling.
func WithRandomState(seed int64) Option {
	return func(rf *RandomForestClassifier) { rf.randomState = seed }
}

// WithNJobs bounds the number of trees grown concurrently.
func WithNJobs(n int) Option {
	return func(rf *RandomForestClassifier) { rf.nJobs = n }
}

func WithVerbose(v int) Option {
	return func(rf *RandomForestClassifier) { rf.verbose = v }
}

// NewRandomForestClassifier returns a forest with scikit-learn defaults.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       tree.CriterionGini,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

func (rf *RandomForestClassifier) validate() error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", rf.nEstimators)
	}
	if rf.oobScore && !rf.bootstrap {
		return errors.NewValidationError("oob_score", "out of bag estimation requires bootstrap=true", rf.oobScore)
	}
	return nil
}

func (rf *RandomForestClassifier) newTree(seed int64) *tree.DecisionTreeClassifier {
	return tree.NewDecisionTreeClassifier(
		tree.WithCriterion(rf.criterion),
		tree.WithMaxDepth(rf.maxDepth),
		tree.WithMinSamplesSplit(rf.minSamplesSplit),
		tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
		tree.WithMaxFeatures(rf.maxFeatures),
		tree.WithRandomState(seed),
	)
}

// Fit grows nEstimators trees in parallel.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")
	const op = "RandomForestClassifier.Fit"
	if err := rf.validate(); err != nil {
		return err
	}
	rows, cols, err := model.CheckXy(op, X, y)
	if err != nil {
		return err
	}
	if _, err := tree.ResolveMaxFeatures(rf.maxFeatures, cols); err != nil {
		return err
	}
	labels := model.Labels(y)
	rf.classes = model.UniqueLabels(labels)
	if len(rf.classes) < 2 {
		return errors.Wrapf(errors.ErrSingleClass, "%s: got %d class", op, len(rf.classes))
	}

	logger := log.GetLoggerWithName("ensemble.RandomForestClassifier")
	logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.ClassesKey, len(rf.classes),
		"n_estimators", rf.nEstimators,
	)

	Xd := mat.DenseCopyOf(X)
	rf.estimators = make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	rf.treeClass = make([][]int, rf.nEstimators)
	weights := make([][]float64, rf.nEstimators)

	err = parallel.ForEach(context.Background(), rf.nEstimators, rf.nJobs, func(_ context.Context, t int) error {
		rng := random.New(random.Derive(rf.randomState, t))
		w := make([]float64, rows)
		if rf.bootstrap {
			for i := 0; i < rows; i++ {
				w[rng.IntN(rows)]++
			}
		} else {
			for i := range w {
				w[i] = 1
			}
		}
		treeSeed := int64(-1)
		if rf.randomState >= 0 {
			treeSeed = int64(rng.Uint64() >> 1)
		}
		est := rf.newTree(treeSeed)
		if err := est.FitWithWeights(Xd, y, w); err != nil {
			return errors.Wrapf(err, "%s: tree %d", op, t)
		}
		mapping, err := model.EncodeLabels(op, est.Classes(), rf.classes)
		if err != nil {
			return err
		}
		rf.estimators[t] = est
		rf.treeClass[t] = mapping
		weights[t] = w
		if rf.verbose > 0 {
			logger.Info("Built estimator", log.IterationKey, t+1, "tree.leaves", est.NLeaves())
		}
		return nil
	})
	if err != nil {
		return err
	}

	rf.importances = rf.averageImportances(cols)
	rf.state.SetDimensions(cols, rows)
	rf.state.SetFitted()

	if rf.oobScore {
		if err := rf.computeOOB(Xd, labels, weights); err != nil {
			return err
		}
	}
	logger.Debug("Training completed", log.OperationKey, log.OperationFit, "n_estimators", len(rf.estimators))
	return nil
}

// averageImportances は分割を持つ木の重要度の平均を正規化する
func (rf *RandomForestClassifier) averageImportances(p int) []float64 {
	out := make([]float64, p)
	used := 0
	for _, est := range rf.estimators {
		if est.NLeaves() <= 1 {
			continue
		}
		used++
		for j, v := range est.FeatureImportances() {
			out[j] += v
		}
	}
	if used == 0 {
		return out
	}
	var total float64
	for j := range out {
		out[j] /= float64(used)
		total += out[j]
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

func (rf *RandomForestClassifier) computeOOB(X *mat.Dense, labels []float64, weights [][]float64) error {
	rows, _ := X.Dims()
	K := len(rf.classes)
	sum := mat.NewDense(rows, K, nil)
	seen := make([]int, rows)
	for t, est := range rf.estimators {
		var oobRows []int
		for i, w := range weights[t] {
			if w == 0 {
				oobRows = append(oobRows, i)
			}
		}
		if len(oobRows) == 0 {
			continue
		}
		proba, err := est.PredictProba(matutil.SelectRows(X, oobRows))
		if err != nil {
			return err
		}
		for r, i := range oobRows {
			seen[i]++
			for k, c := range rf.treeClass[t] {
				sum.Set(i, c, sum.At(i, c)+proba.At(r, k))
			}
		}
	}
	var correct, counted int
	missing := 0
	for i := 0; i < rows; i++ {
		if seen[i] == 0 {
			missing++
			continue
		}
		row := sum.RawRowView(i)
		for k := range row {
			row[k] /= float64(seen[i])
		}
		counted++
		if rf.classes[matutil.ArgMax(row)] == labels[i] {
			correct++
		}
	}
	if missing > 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("oob_score",
			fmt.Sprintf("%d samples were never out of bag", missing), 0))
	}
	if counted > 0 {
		rf.oob = float64(correct) / float64(counted)
	}
	rf.oobDecision = sum
	return nil
}

func (rf *RandomForestClassifier) checkInput(method string, X mat.Matrix) error {
	if err := rf.state.RequireFitted("RandomForestClassifier", method); err != nil {
		return err
	}
	_, cols, err := model.CheckX("RandomForestClassifier."+method, X)
	if err != nil {
		return err
	}
	return rf.state.RequireFeatures("RandomForestClassifier."+method, cols)
}

// PredictProba is the mean of the trees' class probabilities.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.checkInput("PredictProba", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	K := len(rf.classes)
	probas := make([]mat.Matrix, len(rf.estimators))
	err := parallel.ForEach(context.Background(), len(rf.estimators), rf.nJobs, func(_ context.Context, t int) error {
		p, err := rf.estimators[t].PredictProba(X)
		probas[t] = p
		return err
	})
	if err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, K, nil)
	for t, p := range probas {
		for i := 0; i < rows; i++ {
			row := out.RawRowView(i)
			for k, c := range rf.treeClass[t] {
				row[c] += p.At(i, k)
			}
		}
	}
	out.Scale(1/float64(len(rf.estimators)), out)
	return out, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	p := proba.(*mat.Dense)
	rows, _ := p.Dims()
	out := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		out.Set(i, 0, rf.classes[matutil.ArgMax(p.RawRowView(i))])
	}
	return out, nil
}

// Score returns the mean accuracy.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	return model.AccuracyScore(rf, X, y)
}

func (rf *RandomForestClassifier) Classes() []float64 {
	return append([]float64(nil), rf.classes...)
}

// FeatureImportances is the mean impurity-based importance over trees.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), rf.importances...)
}

// Estimators returns the fitted trees.
func (rf *RandomForestClassifier) Estimators() []*tree.DecisionTreeClassifier {
	return rf.estimators
}

// OOBScore is the out-of-bag accuracy; only set when oob_score is enabled.
func (rf *RandomForestClassifier) OOBScore() (float64, error) {
	if !rf.state.IsFitted() || rf.oobDecision == nil {
		return 0, errors.NewNotFittedError("RandomForestClassifier", "OOBScore")
	}
	return rf.oob, nil
}

func (rf *RandomForestClassifier) IsFitted() bool { return rf.state.IsFitted() }

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams(deep bool) map[string]interface{} {
	var maxDepth interface{}
	if rf.maxDepth > 0 {
		maxDepth = rf.maxDepth
	}
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"oob_score":         rf.oobScore,
		"random_state":      rf.randomState,
		"n_jobs":            rf.nJobs,
		"verbose":           rf.verbose,
	}
}

// SetParams sets hyperparameters by their scikit-learn names.
func (rf *RandomForestClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "n_estimators":
			rf.nEstimators, err = model.ParamInt(key, value)
		case "criterion":
			rf.criterion, err = model.ParamString(key, value)
		case "max_depth":
			if value == nil {
				rf.maxDepth = 0
				continue
			}
			rf.maxDepth, err = model.ParamInt(key, value)
		case "min_samples_split":
			rf.minSamplesSplit, err = model.ParamInt(key, value)
		case "min_samples_leaf":
			rf.minSamplesLeaf, err = model.ParamInt(key, value)
		case "max_features":
			rf.maxFeatures = value
		case "bootstrap":
			rf.bootstrap, err = model.ParamBool(key, value)
		case "oob_score":
			rf.oobScore, err = model.ParamBool(key, value)
		case "random_state":
			var seed int
			seed, err = model.ParamInt(key, value)
			rf.randomState = int64(seed)
		case "n_jobs":
			rf.nJobs, err = model.ParamInt(key, value)
		case "verbose":
			rf.verbose, err = model.ParamInt(key, value)
		default:
			return model.UnknownParam("RandomForestClassifier", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted forest with the same hyperparameters.
func (rf *RandomForestClassifier) Clone() model.SKLearnCompatible {
	clone := NewRandomForestClassifier()
	_ = clone.SetParams(rf.GetParams(false))
	return clone
}

func (rf *RandomForestClassifier) String() string {
	return fmt.Sprintf("RandomForestClassifier(n_estimators=%d, criterion=%s, max_features=%v, bootstrap=%t)",
		rf.nEstimators, rf.criterion, rf.maxFeatures, rf.bootstrap)
}
