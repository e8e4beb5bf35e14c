package linear_model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

func synthetic(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, math.Sin(float64(i)/10.0))
		X.Set(i, 1, math.Cos(float64(i)/10.0))
		X.Set(i, 2, float64(i)/50.0)
		// y = 2*x1 + 3*x2 - x3 + 5
		y.Set(i, 0, 2*X.At(i, 0)+3*X.At(i, 1)-X.At(i, 2)+5)
	}
	return X, y
}

func TestLinearRegression_ExactRecovery(t *testing.T) {
	X, y := synthetic(100)
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	want := []float64{2, 3, -1}
	for j, c := range lr.Coef() {
		assert.InDelta(t, want[j], c, 1e-9, "coef[%d]", j)
	}
	assert.InDelta(t, 5.0, lr.Intercept(), 1e-9)
	assert.Equal(t, 3, lr.Rank())

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)
}

func TestLinearRegression_Reproducible(t *testing.T) {
	X, y := synthetic(50)
	a := NewLinearRegression()
	b := a.Clone().(*LinearRegression)
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.Coef(), b.Coef())
	assert.Equal(t, a.Intercept(), b.Intercept())
}

func TestLinearRegression_NoIntercept(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{2, 4, 6})
	lr := NewLinearRegression(WithLRFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))
	assert.InDelta(t, 2.0, lr.Coef()[0], 1e-12)
	assert.Equal(t, 0.0, lr.Intercept())
}

// 特徴量がサンプル数より多い場合は最小ノルム解になる
func TestLinearRegression_MinimumNorm(t *testing.T) {
	X := mat.NewDense(2, 4, []float64{
		1, 0, 1, 0,
		0, 1, 0, 1,
	})
	y := mat.NewDense(2, 1, []float64{2, 4})
	lr := NewLinearRegression(WithLRFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))

	// 最小ノルム解は x1=x3=1, x2=x4=2
	want := []float64{1, 2, 1, 2}
	for j, c := range lr.Coef() {
		assert.InDelta(t, want[j], c, 1e-9, "coef[%d]", j)
	}
	pred, err := lr.Predict(X)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, pred.At(0, 0), 1e-9)
	assert.InDelta(t, 4.0, pred.At(1, 0), 1e-9)
	assert.Equal(t, 2, lr.Rank())
}

func TestLinearRegression_MinimumNormWithIntercept(t *testing.T) {
	// 多項式展開のように p > n でも学習データは完全に再現される
	X := mat.NewDense(3, 6, []float64{
		1, 2, 3, 4, 5, 6,
		2, 1, 0, 1, 2, 3,
		0, 0, 1, 3, 1, 2,
	})
	y := mat.NewDense(3, 1, []float64{1, -1, 3})
	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	r2, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, r2, 1e-9)
}

func TestLinearRegression_Errors(t *testing.T) {
	lr := NewLinearRegression()
	_, err := lr.Predict(mat.NewDense(1, 3, nil))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	X, y := synthetic(10)
	require.NoError(t, lr.Fit(X, y))
	_, err = lr.Predict(mat.NewDense(1, 2, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	err = lr.Fit(X, mat.NewDense(9, 1, nil))
	assert.True(t, errors.As(err, &de))

	bad := mat.DenseCopyOf(X)
	bad.Set(0, 0, math.NaN())
	assert.Error(t, lr.Fit(bad, y))
}

func TestLinearRegression_Params(t *testing.T) {
	lr := NewLinearRegression()
	assert.Equal(t, true, lr.GetParams(false)["fit_intercept"])
	require.NoError(t, lr.SetParams(map[string]interface{}{"fit_intercept": false}))
	assert.Equal(t, false, lr.GetParams(false)["fit_intercept"])
	assert.Error(t, lr.SetParams(map[string]interface{}{"normalize": true}))
	assert.Contains(t, lr.String(), "fit_intercept=false")
}
