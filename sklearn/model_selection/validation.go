package model_selection

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/matutil"
	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/core/parallel"
	"github.com/YuminosukeSato/supervised-learning/metrics"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// Scorer evaluates a fitted estimator; greater is better.
type Scorer func(est model.Estimator, X, y mat.Matrix) (float64, error)

// DefaultScorer calls the estimator's own Score method.
func DefaultScorer(est model.Estimator, X, y mat.Matrix) (float64, error) {
	s, ok := est.(model.Scorer)
	if !ok {
		return 0, errors.NewValueError("DefaultScorer", fmt.Sprintf("%T has no Score method", est))
	}
	return s.Score(X, y)
}

func predictScorer(metric func(yTrue, yPred mat.Matrix) (float64, error), sign float64) Scorer {
	return func(est model.Estimator, X, y mat.Matrix) (float64, error) {
		pred, err := est.Predict(X)
		if err != nil {
			return 0, err
		}
		v, err := metric(y, pred)
		return sign * v, err
	}
}

func averagedScorer(metric func(yTrue, yPred mat.Matrix, avg metrics.Average) (float64, error), avg metrics.Average) Scorer {
	return predictScorer(func(yTrue, yPred mat.Matrix) (float64, error) {
		return metric(yTrue, yPred, avg)
	}, 1)
}

// GetScorer returns the scorer registered under a scikit-learn scoring name.
func GetScorer(name string) (Scorer, error) {
	switch name {
	case "", "score":
		return DefaultScorer, nil
	case "accuracy":
		return predictScorer(metrics.AccuracyScore, 1), nil
	case "r2":
		return predictScorer(metrics.R2ScoreMatrix, 1), nil
	case "neg_mean_squared_error":
		return predictScorer(metrics.MSEMatrix, -1), nil
	case "neg_mean_absolute_error":
		return predictScorer(metrics.MAEMatrix, -1), nil
	case "f1":
		return averagedScorer(metrics.F1Score, metrics.AverageBinary), nil
	case "f1_macro":
		return averagedScorer(metrics.F1Score, metrics.AverageMacro), nil
	case "f1_micro":
		return averagedScorer(metrics.F1Score, metrics.AverageMicro), nil
	case "f1_weighted":
		return averagedScorer(metrics.F1Score, metrics.AverageWeighted), nil
	case "precision_macro":
		return averagedScorer(metrics.PrecisionScore, metrics.AverageMacro), nil
	case "recall_macro":
		return averagedScorer(metrics.RecallScore, metrics.AverageMacro), nil
	case "neg_log_loss":
		return func(est model.Estimator, X, y mat.Matrix) (float64, error) {
			clf, ok := est.(model.Classifier)
			if !ok {
				return 0, errors.NewValueError("neg_log_loss", fmt.Sprintf("%T has no PredictProba", est))
			}
			proba, err := clf.PredictProba(X)
			if err != nil {
				return 0, err
			}
			v, err := metrics.LogLoss(y, proba, clf.Classes())
			return -v, err
		}, nil
	}
	return nil, errors.NewValidationError("scoring", "unknown scoring name", name)
}

// CrossValScore fits a clone of est on every training fold and scores it on
// the matching test fold. Folds run on all CPUs.
func CrossValScore(est model.SKLearnCompatible, X, y mat.Matrix, cv Splitter, scorer Scorer) ([]float64, error) {
	return CrossValScoreContext(context.Background(), est, X, y, cv, scorer, -1)
}

// CrossValScoreContext is CrossValScore with a context and an n_jobs bound.
// A panic inside Fit or the scorer is returned as an error for that fold.
func CrossValScoreContext(ctx context.Context, est model.SKLearnCompatible, X, y mat.Matrix, cv Splitter, scorer Scorer, nJobs int) ([]float64, error) {
	const op = "CrossValScore"
	if _, _, err := model.CheckXy(op, X, y); err != nil {
		return nil, err
	}
	if cv == nil {
		var err error
		if cv, err = CheckCV(nil, est); err != nil {
			return nil, err
		}
	}
	if scorer == nil {
		scorer = DefaultScorer
	}
	folds, err := cv.Split(X, y)
	if err != nil {
		return nil, err
	}

	logger := log.GetLoggerWithName("model_selection.CrossValScore")
	scores := make([]float64, len(folds))
	err = parallel.ForEach(ctx, len(folds), nJobs, func(_ context.Context, f int) error {
		s, err := fitAndScore(est.Clone(), X, y, folds[f], scorer)
		if err != nil {
			return errors.Wrapf(err, "%s: fold %d", op, f)
		}
		scores[f] = s
		logger.Debug("Fold scored", log.FoldKey, f, log.ScoreKey, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// fitAndScore は fold の学習・評価を行い、panic をエラーに変換する
func fitAndScore(est model.SKLearnCompatible, X, y mat.Matrix, fold Fold, scorer Scorer) (float64, error) {
	var score float64
	err := errors.SafeExecute("fit_and_score", func() error {
		XTrain := matutil.SelectRows(X, fold.Train)
		yTrain := matutil.SelectRows(y, fold.Train)
		if err := est.Fit(XTrain, yTrain); err != nil {
			return err
		}
		s, err := scorer(est, matutil.SelectRows(X, fold.Test), matutil.SelectRows(y, fold.Test))
		score = s
		return err
	})
	return score, err
}

// MeanStd returns the mean and population standard deviation of scores.
// Both are NaN when any score is NaN.
func MeanStd(scores []float64) (mean, std float64) {
	if len(scores) == 0 {
		return math.NaN(), math.NaN()
	}
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))
	for _, s := range scores {
		std += (s - mean) * (s - mean)
	}
	return mean, math.Sqrt(std / float64(len(scores)))
}
