package svm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

func blobs() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(12, 2, []float64{
		0, 0, 0.5, 0.2, 0.1, 0.6, 0.4, 0.4,
		4, 4, 4.5, 4.2, 4.1, 4.6, 4.4, 4.4,
		0, 4, 0.5, 4.2, 0.1, 4.6, 0.4, 4.4,
	})
	y := mat.NewDense(12, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2})
	return X, y
}

// rings は原点中心の内側(0)と外側(1)の2つの円: 線形分離できない
func rings() (*mat.Dense, *mat.Dense) {
	n := 24
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / 12
		r := 1.0
		if i >= 12 {
			r = 3
			y.Set(i, 0, 1)
		}
		X.Set(i, 0, r*math.Cos(theta))
		X.Set(i, 1, r*math.Sin(theta))
	}
	return X, y
}

func TestLinearSVC_Binary(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		0, 0, 1, 0, 0, 1,
		3, 3, 4, 3, 3, 4,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})
	clf := NewLinearSVC(WithLinearSVCRandomState(0))
	require.NoError(t, clf.Fit(X, y))

	score, err := clf.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
	assert.Len(t, clf.Coef(), 1)

	d, err := clf.DecisionFunction(mat.NewDense(2, 2, []float64{-1, -1, 5, 5}))
	require.NoError(t, err)
	assert.Less(t, d.At(0, 0), 0.0)
	assert.Greater(t, d.At(1, 0), 0.0)
}

func TestLinearSVC_RegularizationShrinksWeights(t *testing.T) {
	X, y := blobs()
	norm := func(c float64) float64 {
		clf := NewLinearSVC(WithLinearSVCC(c), WithLinearSVCRandomState(0))
		require.NoError(t, clf.Fit(X, y))
		var s float64
		for _, row := range clf.Coef() {
			for _, w := range row {
				s += w * w
			}
		}
		return s
	}
	assert.Less(t, norm(0.01), norm(10))
}

func TestLinearSVC_Multiclass(t *testing.T) {
	X, y := blobs()
	clf := NewLinearSVC(WithLinearSVCRandomState(0), WithLinearSVCNJobs(3), WithLinearSVCLoss("hinge"))
	require.NoError(t, clf.Fit(X, y))
	score, err := clf.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
	assert.Len(t, clf.Coef(), 3)
	assert.Equal(t, []float64{0, 1, 2}, clf.Classes())

	_, err = clf.PredictProba(X)
	assert.Error(t, err)
}

func TestLinearSVC_Errors(t *testing.T) {
	X, y := blobs()
	_, err := NewLinearSVC().Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	var ve *errors.ValidationError
	assert.True(t, errors.As(NewLinearSVC(WithLinearSVCPenalty("l1")).Fit(X, y), &ve))
	assert.True(t, errors.As(NewLinearSVC(WithLinearSVCC(0)).Fit(X, y), &ve))
}

func TestSVC_Kernels(t *testing.T) {
	X, y := blobs()
	tests := []struct {
		kernel string
		gamma  interface{}
		coef0  float64
	}{
		{KernelLinear, "scale", 0},
		{KernelRBF, "scale", 0},
		{KernelRBF, 1.0, 0},
		{KernelPoly, "auto", 1},
	}
	for _, tt := range tests {
		t.Run(tt.kernel, func(t *testing.T) {
			clf := NewSVC(WithKernel(tt.kernel), WithGamma(tt.gamma), WithCoef0(tt.coef0), WithSVCC(10))
			require.NoError(t, clf.Fit(X, y))
			score, err := clf.Score(X, y)
			require.NoError(t, err)
			assert.Equal(t, 1.0, score)
		})
	}
}

func TestSVC_RBFSeparatesRings(t *testing.T) {
	X, y := rings()
	linear := NewSVC(WithKernel(KernelLinear))
	require.NoError(t, linear.Fit(X, y))
	linearScore, _ := linear.Score(X, y)

	rbf := NewSVC(WithKernel(KernelRBF), WithGamma(1.0), WithSVCC(10))
	require.NoError(t, rbf.Fit(X, y))
	rbfScore, err := rbf.Score(X, y)
	require.NoError(t, err)

	assert.Equal(t, 1.0, rbfScore)
	assert.Less(t, linearScore, 1.0)
	assert.Greater(t, len(rbf.Support()), 0)
	assert.Equal(t, len(rbf.Support()), rbf.NSupport()[0]+rbf.NSupport()[1])
}

func TestSVC_DecisionFunctionShape(t *testing.T) {
	X, y := blobs()

	ovo := NewSVC(WithKernel(KernelLinear), WithDecisionFunctionShape("ovo"))
	require.NoError(t, ovo.Fit(X, y))
	d, err := ovo.DecisionFunction(X)
	require.NoError(t, err)
	_, c := d.Dims()
	assert.Equal(t, 3, c, "3 classes give 3 pairs")
	// (0,1) のペアは class 0 のサンプルで正
	assert.Greater(t, d.At(0, 0), 0.0)

	ovr := NewSVC(WithKernel(KernelLinear), WithDecisionFunctionShape("ovr"))
	require.NoError(t, ovr.Fit(X, y))
	d, err = ovr.DecisionFunction(X)
	require.NoError(t, err)
	rows, c := d.Dims()
	assert.Equal(t, 3, c)
	pred, _ := ovr.Predict(X)
	for i := 0; i < rows; i++ {
		best := 0
		for k := 1; k < c; k++ {
			if d.At(i, k) > d.At(i, best) {
				best = k
			}
		}
		assert.Equal(t, pred.At(i, 0), float64(best), "row %d", i)
	}
}

func TestSVC_BinaryDecisionSign(t *testing.T) {
	X, y := rings()
	clf := NewSVC(WithGamma(1.0))
	require.NoError(t, clf.Fit(X, y))
	d, err := clf.DecisionFunction(X)
	require.NoError(t, err)
	pred, _ := clf.Predict(X)
	for i := 0; i < 24; i++ {
		assert.Equal(t, d.At(i, 0) > 0, pred.At(i, 0) == 1, "row %d", i)
	}
}

func TestSVC_Params(t *testing.T) {
	clf := NewSVC()
	require.NoError(t, clf.SetParams(map[string]interface{}{
		"C":                       100,
		"kernel":                  "poly",
		"gamma":                   "auto",
		"decision_function_shape": "ovo",
	}))
	clone := clf.Clone()
	params := clone.GetParams(false)
	assert.Equal(t, 100.0, params["C"])
	assert.Equal(t, "poly", params["kernel"])
	assert.Equal(t, "auto", params["gamma"])

	assert.Error(t, clf.SetParams(map[string]interface{}{"gamma": []int{1}}))
	assert.Error(t, clf.SetParams(map[string]interface{}{"probability": true}))

	X, y := blobs()
	var ve *errors.ValidationError
	assert.True(t, errors.As(NewSVC(WithGamma(-1.0)).Fit(X, y), &ve))
	assert.True(t, errors.As(NewSVC(WithKernel("precomputed")).Fit(X, y), &ve))
}

func TestSVC_MaxIterWarns(t *testing.T) {
	var warnings []error
	errors.SetZerologWarnFunc(nil)
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	X, y := rings()
	clf := NewSVC(WithSVCMaxIter(1), WithGamma(1.0))
	require.NoError(t, clf.Fit(X, y))
	require.NotEmpty(t, warnings)
	var cw *errors.ConvergenceWarning
	assert.True(t, errors.As(warnings[0], &cw))
}

func TestRowCache_Evicts(t *testing.T) {
	computed := 0
	c := newRowCache(4, 8*4*2, func(i int, dst []float64) {
		computed++
		for j := range dst {
			dst[j] = float64(i * j)
		}
	})
	assert.Equal(t, 2.0, c.row(1)[2])
	c.row(1)
	c.row(2)
	c.row(3) // 1 を追い出す
	assert.Equal(t, 3, computed)
	assert.Equal(t, 2.0, c.row(1)[2])
	assert.Equal(t, 4, computed)
}
