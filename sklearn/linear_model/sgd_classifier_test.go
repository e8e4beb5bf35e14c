package linear_model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// separable は2クラスが x0+x1 = 0 で分かれるデータ
func separable(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := math.Sin(float64(i)*1.7) * 2
		b := math.Cos(float64(i)*0.9) * 2
		sign := 1.0
		if i%2 == 0 {
			sign = -1
		}
		X.Set(i, 0, a+sign*1.5)
		X.Set(i, 1, -a+sign*1.5+0.1*b)
		if sign > 0 {
			y.Set(i, 0, 1)
		}
	}
	return X, y
}

func TestSGDClassifier_Losses(t *testing.T) {
	X, y := separable(80)
	for _, loss := range []string{"hinge", "log_loss", "modified_huber", "squared_hinge", "perceptron"} {
		t.Run(loss, func(t *testing.T) {
			clf := NewSGDClassifier(WithSGDLoss(loss), WithSGDRandomState(0), WithSGDTol(-1), WithSGDMaxIter(50))
			require.NoError(t, clf.Fit(X, y))
			score, err := clf.Score(X, y)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, score, 0.95)
			assert.Equal(t, 50, clf.NIter())
		})
	}
}

func TestSGDClassifier_Reproducible(t *testing.T) {
	X, y := separable(40)
	a := NewSGDClassifier(WithSGDRandomState(42))
	b := a.Clone().(*SGDClassifier)
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.Coef(), b.Coef())
	assert.Equal(t, a.Intercept(), b.Intercept())
}

func TestSGDClassifier_Multiclass(t *testing.T) {
	X, y := threeBlobs()
	clf := NewSGDClassifier(WithSGDRandomState(1), WithSGDNJobs(3), WithSGDLoss("log_loss"))
	require.NoError(t, clf.Fit(X, y))
	assert.Len(t, clf.Coef(), 3)

	score, err := clf.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.88)

	proba, err := clf.PredictProba(X)
	require.NoError(t, err)
	r, c := proba.Dims()
	require.Equal(t, 9, r)
	require.Equal(t, 3, c)
	for i := 0; i < r; i++ {
		assert.InDelta(t, 1.0, mat.Sum(proba.(*mat.Dense).RowView(i)), 1e-9)
	}
}

func TestSGDClassifier_EarlyStopping(t *testing.T) {
	X, y := separable(100)
	clf := NewSGDClassifier(
		WithSGDLoss("perceptron"),
		WithSGDEarlyStopping(0.1),
		WithSGDRandomState(0),
	)
	require.NoError(t, clf.Fit(X, y))
	// 検証正解率は NIterNoChange エポックで頭打ちになる
	assert.Less(t, clf.NIter(), 1000)
	assert.GreaterOrEqual(t, clf.NIter(), 5)
}

func TestSGDClassifier_ConvergenceWarning(t *testing.T) {
	var warnings []error
	errors.SetZerologWarnFunc(nil)
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	X, y := separable(30)
	clf := NewSGDClassifier(WithSGDMaxIter(1), WithSGDRandomState(0))
	require.NoError(t, clf.Fit(X, y))
	require.Len(t, warnings, 1)
	var cw *errors.ConvergenceWarning
	assert.True(t, errors.As(warnings[0], &cw))
}

func TestSGDClassifier_Errors(t *testing.T) {
	X, y := separable(20)

	clf := NewSGDClassifier()
	_, err := clf.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, clf.Fit(X, y))
	_, err = clf.PredictProba(X)
	assert.Error(t, err, "hinge loss has no probabilities")

	invalid := []SGDOption{
		WithSGDLoss("huber"),
		WithSGDPenalty("elasticnet"),
		WithSGDLearningRate("constant", 0),
		WithSGDEarlyStopping(1.5),
	}
	for _, opt := range invalid {
		var ve *errors.ValidationError
		assert.True(t, errors.As(NewSGDClassifier(opt).Fit(X, y), &ve))
	}
}

func TestSGDClassifier_Params(t *testing.T) {
	clf := NewSGDClassifier()
	require.NoError(t, clf.SetParams(map[string]interface{}{
		"loss":           "perceptron",
		"alpha":          0.001,
		"early_stopping": true,
		"random_state":   7,
	}))
	params := clf.Clone().GetParams(false)
	assert.Equal(t, "perceptron", params["loss"])
	assert.Equal(t, 0.001, params["alpha"])
	assert.Equal(t, true, params["early_stopping"])
	assert.Equal(t, int64(7), params["random_state"])
	assert.Error(t, clf.SetParams(map[string]interface{}{"l1_ratio": 0.5}))
}

func TestSGDLoss_Derivatives(t *testing.T) {
	// 数値微分と比べる（微分可能な点のみ）
	points := []float64{-2.5, -0.3, 0.4, 0.8, 2.2}
	for _, name := range []string{"log_loss", "modified_huber", "squared_hinge"} {
		l, err := lossFor(name)
		require.NoError(t, err)
		for _, p := range points {
			for _, y := range []float64{-1, 1} {
				h := 1e-6
				numeric := (l.loss(p+h, y) - l.loss(p-h, y)) / (2 * h)
				assert.InDelta(t, numeric, l.dloss(p, y), 1e-5, "%s p=%v y=%v", name, p, y)
			}
		}
	}
}
