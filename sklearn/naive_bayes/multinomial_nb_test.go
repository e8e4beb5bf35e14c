package naive_bayes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/model"
)

// 単語カウント: 0 は語0寄り、1 は語2寄り
func wordCounts() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 3, []float64{
		3, 0, 0,
		2, 1, 0,
		1, 0, 0,
		0, 0, 3,
		0, 1, 2,
		0, 0, 1,
	})
	return X, mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
}

func TestMultinomialNB_Fit(t *testing.T) {
	X, y := wordCounts()
	nb := NewMultinomialNB()
	require.NoError(t, nb.Fit(X, y))

	assert.True(t, nb.IsFitted())
	assert.Equal(t, []float64{0, 1}, nb.Classes())
	assert.Equal(t, 6, nb.NSamplesSeen())
	assert.InDeltaSlice(t, []float64{math.Log(0.5), math.Log(0.5)}, nb.ClassLogPrior(), 1e-12)
}

func TestMultinomialNB_PartialFit(t *testing.T) {
	X, y := wordCounts()
	first := mat.DenseCopyOf(X.Slice(0, 3, 0, 3))
	second := mat.DenseCopyOf(X.Slice(3, 6, 0, 3))

	nb := NewMultinomialNB()
	require.NoError(t, nb.PartialFit(first, mat.DenseCopyOf(y.Slice(0, 3, 0, 1)), []float64{0, 1}))
	require.NoError(t, nb.PartialFit(second, mat.DenseCopyOf(y.Slice(3, 6, 0, 1)), nil))
	assert.True(t, nb.IsFitted())
	assert.Equal(t, 6, nb.NSamplesSeen())

	// 一括学習と同じパラメータになる
	batch := NewMultinomialNB()
	require.NoError(t, batch.Fit(X, y))
	assert.True(t, mat.EqualApprox(batch.FeatureLogProb(), nb.FeatureLogProb(), 1e-12))
}

func TestMultinomialNB_Predict(t *testing.T) {
	X, y := wordCounts()
	nb := NewMultinomialNB()
	require.NoError(t, nb.Fit(X, y))

	XTest := mat.NewDense(2, 3, []float64{2, 0, 0, 0, 0, 2})
	pred, err := nb.Predict(XTest)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, model.Labels(pred))

	proba, err := nb.PredictProba(XTest)
	require.NoError(t, err)
	logProba, err := nb.PredictLogProba(XTest)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		row := mat.Row(nil, i, proba)
		assert.InDelta(t, 1.0, floats.Sum(row), 1e-10)
		assert.Equal(t, i, floats.MaxIdx(row))
		for j := 0; j < 2; j++ {
			assert.LessOrEqual(t, logProba.At(i, j), 0.0)
			assert.InDelta(t, row[j], math.Exp(logProba.At(i, j)), 1e-12)
		}
	}

	score, err := nb.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestMultinomialNB_Alpha(t *testing.T) {
	X := mat.NewDense(4, 3, []float64{2, 0, 0, 1, 0, 0, 0, 0, 2, 0, 0, 1})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})
	XTest := mat.NewDense(1, 3, []float64{1, 1, 1})

	prevGap := math.Inf(1)
	for _, alpha := range []float64{0, 1, 10} {
		nb := NewMultinomialNB(WithAlpha(alpha))
		require.NoError(t, nb.Fit(X, y), "alpha=%g", alpha)
		proba, err := nb.PredictProba(XTest)
		require.NoError(t, err)
		for j := 0; j < 2; j++ {
			p := proba.At(0, j)
			assert.False(t, math.IsNaN(p) || math.IsInf(p, 0), "alpha=%g", alpha)
		}
		// 平滑化が強いほど特徴量の影響は小さい
		gap := math.Abs(proba.At(0, 0) - proba.At(0, 1))
		assert.LessOrEqual(t, gap, prevGap+1e-12, "alpha=%g", alpha)
		prevGap = gap
	}
}

func TestMultinomialNB_FitPrior(t *testing.T) {
	// クラス0が4件、クラス1が1件
	X := mat.NewDense(5, 2, []float64{2, 1, 1, 2, 1, 1, 1, 0, 0, 1})
	y := mat.NewDense(5, 1, []float64{0, 0, 0, 0, 1})
	XTest := mat.NewDense(1, 2, []float64{1, 1})

	gap := func(opts ...Option) float64 {
		nb := NewMultinomialNB(opts...)
		require.NoError(t, nb.Fit(X, y))
		proba, err := nb.PredictProba(XTest)
		require.NoError(t, err)
		return math.Abs(proba.At(0, 0) - proba.At(0, 1))
	}
	assert.Greater(t, gap(), gap(WithFitPrior(false)))
}

func TestMultinomialNB_Errors(t *testing.T) {
	bad := mat.NewDense(2, 2, []float64{1, -1, 2, 3})
	y := mat.NewDense(2, 1, []float64{0, 1})

	assert.Error(t, NewMultinomialNB().Fit(bad, y), "negative counts")
	_, err := NewMultinomialNB().Predict(bad)
	assert.Error(t, err, "not fitted")
}
