package model_selection

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/core/parallel"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// CVResults mirrors scikit-learn's cv_results_: one entry per candidate.
type CVResults struct {
	Params        []map[string]interface{}
	SplitScores   [][]float64 // [candidate][fold]
	MeanTestScore []float64
	StdTestScore  []float64
	RankTestScore []int
	MeanFitTime   []time.Duration
}

// SearchOption configures RandomizedSearchCV and GridSearchCV.
type SearchOption func(*search)

// WithCV sets the folds: an int (stratified for classifiers) or a Splitter.
func WithCV(cv interface{}) SearchOption {
	return func(s *search) { s.cv = cv }
}

// WithScoring selects a scorer by scikit-learn name, e.g. "accuracy".
func WithScoring(name string) SearchOption {
	return func(s *search) { s.scoring = name }
}

// WithScorer sets a custom scorer; it takes precedence over WithScoring.
func WithScorer(scorer Scorer) SearchOption {
	return func(s *search) { s.scorer = scorer }
}

// WithRefit toggles refitting the best candidate on the whole data.
func WithRefit(refit bool) SearchOption {
	return func(s *search) { s.refit = refit }
}

// WithSearchNJobs bounds concurrent candidate/fold fits.
func WithSearchNJobs(n int) SearchOption {
	return func(s *search) { s.nJobs = n }
}

// WithSearchVerbose logs every candidate/fold score at info level.
func WithSearchVerbose(v int) SearchOption {
	return func(s *search) { s.verbose = v }
}

// WithNIter sets how many settings RandomizedSearchCV samples.
func WithNIter(n int) SearchOption {
	return func(s *search) { s.nIter = n }
}

// WithSearchRandomState seeds RandomizedSearchCV's parameter sampling.
func WithSearchRandomState(seed int64) SearchOption {
	return func(s *search) { s.randomState = seed }
}

// search はグリッド探索とランダム探索の共通部分
type search struct {
	name      string
	estimator model.SKLearnCompatible
	cv        interface{}
	scoring   string
	scorer    Scorer
	refit     bool
	nJobs     int
	verbose   int

	nIter       int
	randomState int64

	results       *CVResults
	bestIndex     int
	bestEstimator model.SKLearnCompatible
}

func newSearch(name string, est model.SKLearnCompatible, opts []SearchOption) search {
	s := search{
		name:        name,
		estimator:   est,
		refit:       true,
		nIter:       10,
		randomState: -1,
		bestIndex:   -1,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

type task struct {
	candidate, fold int
}

func (s *search) run(ctx context.Context, candidates []map[string]interface{}, X, y mat.Matrix) error {
	op := s.name + ".Fit"
	if _, _, err := model.CheckXy(op, X, y); err != nil {
		return err
	}
	cv, err := CheckCV(s.cv, s.estimator)
	if err != nil {
		return err
	}
	scorer := s.scorer
	if scorer == nil {
		if scorer, err = GetScorer(s.scoring); err != nil {
			return err
		}
	}
	folds, err := cv.Split(X, y)
	if err != nil {
		return err
	}
	// 候補のパラメータを事前に検証する
	for _, p := range candidates {
		if err := s.estimator.Clone().SetParams(p); err != nil {
			return errors.Wrapf(err, "%s: invalid candidate %v", op, p)
		}
	}

	searchID := uuid.NewString()
	logger := log.GetLoggerWithName("model_selection."+s.name).With(log.EstimatorIDKey, searchID)
	logger.Info("Fitting candidates",
		log.OperationKey, log.OperationSearch,
		"n_candidates", len(candidates),
		"n_splits", len(folds),
	)

	nC, nF := len(candidates), len(folds)
	scores := make([][]float64, nC)
	fitTimes := make([][]time.Duration, nC)
	for c := range scores {
		scores[c] = make([]float64, nF)
		fitTimes[c] = make([]time.Duration, nF)
	}
	tasks := make([]task, 0, nC*nF)
	for c := 0; c < nC; c++ {
		for f := 0; f < nF; f++ {
			tasks = append(tasks, task{c, f})
		}
	}

	err = parallel.ForEach(ctx, len(tasks), s.nJobs, func(_ context.Context, i int) error {
		t := tasks[i]
		est := s.estimator.Clone()
		if err := est.SetParams(candidates[t.candidate]); err != nil {
			return err
		}
		start := time.Now()
		score, err := fitAndScore(est, X, y, folds[t.fold], scorer)
		fitTimes[t.candidate][t.fold] = time.Since(start)
		if err != nil {
			// 失敗した fit は NaN として扱い探索を続ける
			logger.Warn("Estimator fit failed, score set to NaN", log.ErrAttrKey, err.Error(),
				log.FoldKey, t.fold, log.HyperParamsKey, fmt.Sprint(candidates[t.candidate]))
			score = math.NaN()
		}
		scores[t.candidate][t.fold] = score
		if s.verbose > 0 {
			logger.Info("Candidate scored", log.IterationKey, t.candidate, log.FoldKey, t.fold, log.ScoreKey, score,
				log.DurationMsKey, fitTimes[t.candidate][t.fold].Milliseconds())
		}
		return nil
	})
	if err != nil {
		return err
	}

	res := &CVResults{
		Params:        candidates,
		SplitScores:   scores,
		MeanTestScore: make([]float64, nC),
		StdTestScore:  make([]float64, nC),
		MeanFitTime:   make([]time.Duration, nC),
	}
	failed := 0
	for c := range candidates {
		res.MeanTestScore[c], res.StdTestScore[c] = MeanStd(scores[c])
		if math.IsNaN(res.MeanTestScore[c]) {
			failed++
		}
		var total time.Duration
		for _, d := range fitTimes[c] {
			total += d
		}
		res.MeanFitTime[c] = total / time.Duration(nF)
	}
	if failed == nC {
		return errors.NewValueError(op, "all candidate fits failed")
	}
	res.RankTestScore = rankScores(res.MeanTestScore)
	s.results = res
	s.bestIndex = 0
	for c, r := range res.RankTestScore {
		if r == 1 {
			s.bestIndex = c
			break
		}
	}
	logger.Info("Search completed",
		log.OperationKey, log.OperationSearch,
		log.ScoreKey, res.MeanTestScore[s.bestIndex],
		log.HyperParamsKey, fmt.Sprint(candidates[s.bestIndex]),
	)

	s.bestEstimator = nil
	if s.refit {
		best := s.estimator.Clone()
		if err := best.SetParams(candidates[s.bestIndex]); err != nil {
			return err
		}
		if err := errors.SafeExecute(op+" refit", func() error { return best.Fit(X, y) }); err != nil {
			return err
		}
		s.bestEstimator = best
	}
	return nil
}

// rankScores gives rank 1 to the highest mean; ties share the lowest rank
// and NaN ranks last.
func rankScores(means []float64) []int {
	order := make([]int, len(means))
	for i := range order {
		order[i] = i
	}
	key := func(i int) float64 {
		if math.IsNaN(means[i]) {
			return math.Inf(-1)
		}
		return means[i]
	}
	sort.SliceStable(order, func(a, b int) bool { return key(order[a]) > key(order[b]) })
	ranks := make([]int, len(means))
	for pos, i := range order {
		if pos > 0 && key(i) == key(order[pos-1]) {
			ranks[i] = ranks[order[pos-1]]
		} else {
			ranks[i] = pos + 1
		}
	}
	return ranks
}

func (s *search) requireResults(method string) error {
	if s.results == nil {
		return errors.NewNotFittedError(s.name, method)
	}
	return nil
}

// BestParams returns the parameter setting with the best mean score.
func (s *search) BestParams() map[string]interface{} {
	if s.results == nil {
		return nil
	}
	return s.results.Params[s.bestIndex]
}

// BestScore is the mean cross-validated score of the best candidate.
func (s *search) BestScore() float64 {
	if s.results == nil {
		return math.NaN()
	}
	return s.results.MeanTestScore[s.bestIndex]
}

// BestIndex is the index of the best candidate in CVResults.
func (s *search) BestIndex() int { return s.bestIndex }

// BestEstimator is the best candidate refitted on the whole data, or nil
// when refit is disabled.
func (s *search) BestEstimator() model.SKLearnCompatible { return s.bestEstimator }

// CVResults returns the per-candidate cross-validation results.
func (s *search) CVResults() *CVResults { return s.results }

// Predict delegates to the refitted best estimator.
func (s *search) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := s.requireResults("Predict"); err != nil {
		return nil, err
	}
	if s.bestEstimator == nil {
		return nil, errors.NewValueError(s.name+".Predict", "refit=false, no best estimator is available")
	}
	return s.bestEstimator.Predict(X)
}

// Score evaluates the refitted best estimator with the search's scorer.
func (s *search) Score(X, y mat.Matrix) (float64, error) {
	if err := s.requireResults("Score"); err != nil {
		return 0, err
	}
	if s.bestEstimator == nil {
		return 0, errors.NewValueError(s.name+".Score", "refit=false, no best estimator is available")
	}
	scorer := s.scorer
	if scorer == nil {
		var err error
		if scorer, err = GetScorer(s.scoring); err != nil {
			return 0, err
		}
	}
	return scorer(s.bestEstimator, X, y)
}

// RandomizedSearchCV evaluates nIter parameter settings sampled from
// distributions with cross-validation.
type RandomizedSearchCV struct {
	search
	distributions map[string]interface{}
}

// NewRandomizedSearchCV creates a randomized search over distributions.
// Values are []interface{} candidate lists or Distribution values.
func NewRandomizedSearchCV(est model.SKLearnCompatible, distributions map[string]interface{}, opts ...SearchOption) *RandomizedSearchCV {
	return &RandomizedSearchCV{
		search:        newSearch("RandomizedSearchCV", est, opts),
		distributions: distributions,
	}
}

// Fit samples the candidates and cross-validates each of them.
func (r *RandomizedSearchCV) Fit(X, y mat.Matrix) error {
	return r.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation.
func (r *RandomizedSearchCV) FitContext(ctx context.Context, X, y mat.Matrix) error {
	candidates, err := ParameterSampler(r.distributions, r.nIter, r.randomState)
	if err != nil {
		return err
	}
	return r.run(ctx, candidates, X, y)
}

// GridSearchCV cross-validates every combination of a parameter grid.
type GridSearchCV struct {
	search
	grid map[string][]interface{}
}

// NewGridSearchCV creates an exhaustive search over grid.
func NewGridSearchCV(est model.SKLearnCompatible, grid map[string][]interface{}, opts ...SearchOption) *GridSearchCV {
	return &GridSearchCV{search: newSearch("GridSearchCV", est, opts), grid: grid}
}

// Fit evaluates every grid point.
func (g *GridSearchCV) Fit(X, y mat.Matrix) error {
	return g.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation.
func (g *GridSearchCV) FitContext(ctx context.Context, X, y mat.Matrix) error {
	return g.run(ctx, ParameterGrid(g.grid), X, y)
}
