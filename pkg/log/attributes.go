package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "LinearSVC".
	ModelNameKey = "model.name"

	// EstimatorIDKey identifies one estimator instance, e.g. a search candidate.
	EstimatorIDKey = "estimator.id"

	// RunIDKey identifies one walkthrough run.
	RunIDKey = "run.id"

	// OperationKey is one of the Operation* values below.
	OperationKey = "ml.operation"

	// ComponentKey names the package doing the work ("datasets", "model_selection", ...).
	ComponentKey = "ml.component"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	ClassesKey  = "data.classes"
	SourceKey   = "data.source"
)

// Metrics and training progress.
const (
	DurationMsKey   = "perf.duration_ms"
	AccuracyKey     = "metrics.accuracy"
	LossKey         = "metrics.loss"
	ScoreKey        = "metrics.score"
	IterationKey    = "training.iteration"
	EpochKey        = "training.epoch"
	FoldKey         = "cv.fold"
	GradNormKey     = "training.grad_norm"
	RandomSeedKey   = "config.random_seed"
	HyperParamsKey  = "model.hyperparams"
	LearningRateKey = "hyperparams.learning_rate"
)

// Error context.
const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
	AttemptKey        = "retry.attempt"
)

// Operation values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"
	OperationLoad         = "load"
	OperationSearch       = "search"
)
