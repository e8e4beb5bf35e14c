package tree

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/matutil"
	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/core/random"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// Criterion names.
const (
	CriterionGini    = "gini"
	CriterionEntropy = "entropy"
)

// DecisionTreeClassifier is a CART classifier.
//
// Splits are axis aligned (x_f <= threshold goes left) and chosen to
// maximize the weighted impurity decrease. Thresholds are midpoints between
// consecutive distinct values.
type DecisionTreeClassifier struct {
	state *model.StateManager

	criterion           string
	maxDepth            int // 0 なら無制限
	minSamplesSplit     int
	minSamplesLeaf      int
	maxFeatures         interface{}
	minImpurityDecrease float64
	randomState         int64

	nodes       []node
	classes     []float64
	nClasses    int
	importances []float64
}

// Option configures a DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// WithCriterion sets "gini" or "entropy".
func WithCriterion(c string) Option {
	return func(t *DecisionTreeClassifier) { t.criterion = c }
}

// WithMaxDepth limits the depth; 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(t *DecisionTreeClassifier) { t.maxDepth = d }
}

func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.minSamplesSplit = n }
}

func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.minSamplesLeaf = n }
}

// WithMaxFeatures sets the features considered per split:
// nil (all), "sqrt", "log2", an int count or a float fraction.
func WithMaxFeatures(v interface{}) Option {
	return func(t *DecisionTreeClassifier) { t.maxFeatures = v }
}

func WithMinImpurityDecrease(v float64) Option {
	return func(t *DecisionTreeClassifier) { t.minImpurityDecrease = v }
}

// WithRandomState seeds feature sampling. Negative means nondeterministic.
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeClassifier) { t.randomState = seed }
}

// NewDecisionTreeClassifier returns a tree with scikit-learn defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	t := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       CriterionGini,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		randomState:     -1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *DecisionTreeClassifier) validate() error {
	if t.criterion != CriterionGini && t.criterion != CriterionEntropy {
		return errors.NewValidationError("criterion", "must be 'gini' or 'entropy'", t.criterion)
	}
	if t.maxDepth < 0 {
		return errors.NewValidationError("max_depth", "must be >= 0 (0 means unlimited)", t.maxDepth)
	}
	if t.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", t.minSamplesSplit)
	}
	if t.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", t.minSamplesLeaf)
	}
	if t.minImpurityDecrease < 0 {
		return errors.NewValidationError("min_impurity_decrease", "must be non-negative", t.minImpurityDecrease)
	}
	return nil
}

// ResolveMaxFeatures turns a max_features setting into a feature count.
func ResolveMaxFeatures(v interface{}, nFeatures int) (int, error) {
	switch m := v.(type) {
	case nil:
		return nFeatures, nil
	case string:
		switch m {
		case "sqrt":
			return max(1, int(math.Sqrt(float64(nFeatures)))), nil
		case "log2":
			return max(1, int(math.Log2(float64(nFeatures)))), nil
		}
	case int:
		if m >= 1 && m <= nFeatures {
			return m, nil
		}
	case float64:
		if m > 0 && m <= 1 {
			return max(1, int(m*float64(nFeatures))), nil
		}
	}
	return 0, errors.NewValidationError("max_features", "must be nil, 'sqrt', 'log2', an int in [1, n_features] or a float in (0, 1]", v)
}

// Fit grows the tree on X and y.
func (t *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return t.FitWithWeights(X, y, nil)
}

// FitWithWeights grows the tree with per-sample weights. Samples of weight
// zero are left out, which is how bootstrap counts are passed in.
func (t *DecisionTreeClassifier) FitWithWeights(X, y mat.Matrix, sampleWeight []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")
	const op = "DecisionTreeClassifier.Fit"
	if err := t.validate(); err != nil {
		return err
	}
	rows, cols, err := model.CheckXy(op, X, y)
	if err != nil {
		return err
	}
	if err := errors.CheckMatrix(op, X); err != nil {
		return err
	}
	if sampleWeight != nil && len(sampleWeight) != rows {
		return errors.NewDimensionError(op, rows, len(sampleWeight), 0)
	}
	maxFeatures, err := ResolveMaxFeatures(t.maxFeatures, cols)
	if err != nil {
		return err
	}

	labels := model.Labels(y)
	weight := sampleWeight
	if weight == nil {
		weight = make([]float64, rows)
		for i := range weight {
			weight[i] = 1
		}
	}
	samples := make([]int, 0, rows)
	inBag := make([]float64, 0, rows)
	for i, w := range weight {
		if w < 0 {
			return errors.NewValueError(op, "sample weights must be non-negative")
		}
		if w > 0 {
			samples = append(samples, i)
			inBag = append(inBag, labels[i])
		}
	}
	if len(samples) == 0 {
		return errors.NewValueError(op, "sum of sample weights is zero")
	}
	t.classes = model.UniqueLabels(inBag)
	t.nClasses = len(t.classes)
	codes := make([]int, rows)
	index := make(map[float64]int, t.nClasses)
	for k, c := range t.classes {
		index[c] = k
	}
	for _, i := range samples {
		codes[i] = index[labels[i]]
	}

	logger := log.GetLoggerWithName("tree.DecisionTreeClassifier")
	logger.Debug("Training started",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, len(samples),
		log.FeaturesKey, cols,
		log.ClassesKey, t.nClasses,
	)

	crit := gini
	if t.criterion == CriterionEntropy {
		crit = entropy
	}
	b := &builder{
		X:                   denseRows(X),
		y:                   codes,
		weight:              weight,
		nClasses:            t.nClasses,
		crit:                crit,
		maxDepth:            t.maxDepth,
		minSamplesSplit:     t.minSamplesSplit,
		minSamplesLeaf:      t.minSamplesLeaf,
		maxFeatures:         maxFeatures,
		minImpurityDecrease: t.minImpurityDecrease,
		rng:                 random.New(t.randomState),
		importances:         make([]float64, cols),
	}
	b.build(samples)

	t.nodes = b.nodes
	var total float64
	for _, v := range b.importances {
		total += v
	}
	t.importances = make([]float64, cols)
	if total > 0 {
		for j, v := range b.importances {
			t.importances[j] = v / total
		}
	}

	t.state.SetDimensions(cols, rows)
	t.state.SetFitted()
	logger.Debug("Training completed",
		log.OperationKey, log.OperationFit,
		"tree.depth", t.Depth(),
		"tree.leaves", t.NLeaves(),
	)
	return nil
}

func denseRows(X mat.Matrix) [][]float64 {
	rows, cols := X.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = mat.Row(make([]float64, cols), i, X)
	}
	return out
}

// leaf returns the leaf reached by row x.
func (t *DecisionTreeClassifier) leaf(x []float64) *node {
	n := &t.nodes[0]
	for !n.isLeaf() {
		if x[n.feature] <= n.threshold {
			n = &t.nodes[n.left]
		} else {
			n = &t.nodes[n.right]
		}
	}
	return n
}

func (t *DecisionTreeClassifier) checkInput(method string, X mat.Matrix) error {
	if err := t.state.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	_, cols, err := model.CheckX("DecisionTreeClassifier."+method, X)
	if err != nil {
		return err
	}
	return t.state.RequireFeatures("DecisionTreeClassifier."+method, cols)
}

// PredictProba returns the class frequencies of the leaf each row falls in.
func (t *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := t.checkInput("PredictProba", X); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	out := mat.NewDense(rows, t.nClasses, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		n := t.leaf(x)
		row := out.RawRowView(i)
		for k, v := range n.value {
			row[k] = v / n.weightedN
		}
	}
	return out, nil
}

// Predict returns the majority class of each row's leaf.
func (t *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.checkInput("Predict", X); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(x, i, X)
		out.Set(i, 0, t.classes[matutil.ArgMax(t.leaf(x).value)])
	}
	return out, nil
}

// Score returns the mean accuracy.
func (t *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	return model.AccuracyScore(t, X, y)
}

func (t *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), t.classes...)
}

// FeatureImportances are the normalized total impurity decreases per feature.
func (t *DecisionTreeClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), t.importances...)
}

// Depth is the maximum depth of a leaf; the root has depth 0.
func (t *DecisionTreeClassifier) Depth() int {
	d := 0
	for i := range t.nodes {
		d = max(d, t.nodes[i].depth)
	}
	return d
}

// NLeaves returns the number of leaves.
func (t *DecisionTreeClassifier) NLeaves() int {
	n := 0
	for i := range t.nodes {
		if t.nodes[i].isLeaf() {
			n++
		}
	}
	return n
}

// NodeCount returns the number of nodes, internal and leaf.
func (t *DecisionTreeClassifier) NodeCount() int { return len(t.nodes) }

func (t *DecisionTreeClassifier) IsFitted() bool { return t.state.IsFitted() }

// GetParams returns the hyperparameters; max_depth is nil when unlimited.
func (t *DecisionTreeClassifier) GetParams(deep bool) map[string]interface{} {
	var maxDepth interface{}
	if t.maxDepth > 0 {
		maxDepth = t.maxDepth
	}
	return map[string]interface{}{
		"criterion":             t.criterion,
		"max_depth":             maxDepth,
		"min_samples_split":     t.minSamplesSplit,
		"min_samples_leaf":      t.minSamplesLeaf,
		"max_features":          t.maxFeatures,
		"min_impurity_decrease": t.minImpurityDecrease,
		"random_state":          t.randomState,
	}
}

// SetParams sets hyperparameters by their scikit-learn names.
func (t *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "criterion":
			t.criterion, err = model.ParamString(key, value)
		case "max_depth":
			if value == nil {
				t.maxDepth = 0
				continue
			}
			t.maxDepth, err = model.ParamInt(key, value)
		case "min_samples_split":
			t.minSamplesSplit, err = model.ParamInt(key, value)
		case "min_samples_leaf":
			t.minSamplesLeaf, err = model.ParamInt(key, value)
		case "max_features":
			t.maxFeatures = value
		case "min_impurity_decrease":
			t.minImpurityDecrease, err = model.ParamFloat(key, value)
		case "random_state":
			var seed int
			seed, err = model.ParamInt(key, value)
			t.randomState = int64(seed)
		default:
			return model.UnknownParam("DecisionTreeClassifier", key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone returns an unfitted tree with the same hyperparameters.
func (t *DecisionTreeClassifier) Clone() model.SKLearnCompatible {
	clone := NewDecisionTreeClassifier()
	_ = clone.SetParams(t.GetParams(false))
	return clone
}

func (t *DecisionTreeClassifier) String() string {
	depth := "None"
	if t.maxDepth > 0 {
		depth = fmt.Sprint(t.maxDepth)
	}
	return fmt.Sprintf("DecisionTreeClassifier(criterion=%s, max_depth=%s, min_samples_split=%d, min_samples_leaf=%d)",
		t.criterion, depth, t.minSamplesSplit, t.minSamplesLeaf)
}
