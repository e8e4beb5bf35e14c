package naive_bayes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/core/sparse"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

func TestBernoulliNB_HandComputedPosterior(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1, 0,
		1, 1,
		0, 1,
	})
	y := mat.NewDense(3, 1, []float64{0, 0, 1})

	nb := NewBernoulliNB()
	require.NoError(t, nb.Fit(X, y))

	// class 0: p = (3/4, 1/2), prior 2/3; class 1: p = (1/3, 2/3), prior 1/3
	// x = [1 0]: 2/3*3/4*1/2 = 1/4, 1/3*1/3*1/3 = 1/27
	proba, err := nb.PredictProba(mat.NewDense(1, 2, []float64{1, 0}))
	require.NoError(t, err)
	assert.InDelta(t, 27.0/31.0, proba.At(0, 0), 1e-12)
	assert.InDelta(t, 4.0/31.0, proba.At(0, 1), 1e-12)

	flp := nb.FeatureLogProb()
	assert.InDelta(t, math.Log(0.75), flp.At(0, 0), 1e-12)
	assert.InDelta(t, math.Log(2.0/3.0), flp.At(1, 1), 1e-12)
	assert.InDeltaSlice(t, []float64{math.Log(2.0 / 3.0), math.Log(1.0 / 3.0)}, nb.ClassLogPrior(), 1e-12)
}

func TestBernoulliNB_SparseMatchesDense(t *testing.T) {
	dense := mat.NewDense(4, 3, []float64{
		2, 0, 0,
		1, 0, 3,
		0, 1, 1,
		0, 4, 0,
	})
	b := sparse.NewBuilder(3)
	b.AddRow([]int{0}, []float64{2})
	b.AddRow([]int{0, 2}, []float64{1, 3})
	b.AddRow([]int{1, 2}, []float64{1, 1})
	b.AddRow([]int{1}, []float64{4})
	csr := b.Build()
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	fromDense := NewBernoulliNB()
	require.NoError(t, fromDense.Fit(dense, y))
	fromSparse := NewBernoulliNB()
	require.NoError(t, fromSparse.Fit(csr, y))

	pd, err := fromDense.PredictLogProba(dense)
	require.NoError(t, err)
	ps, err := fromSparse.PredictLogProba(csr)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(pd, ps, 1e-12))

	pred, err := fromSparse.Predict(csr)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 1}, model.Labels(pred))
}

func TestBernoulliNB_Binarize(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0.9, 0.1,
		0.8, 0.2,
		0.1, 0.7,
		0.2, 0.9,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	// 閾値 0 だとすべて 1 になり区別できない
	flat := NewBernoulliNB()
	require.NoError(t, flat.Fit(X, y))
	p, err := flat.PredictProba(X)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p.At(0, 0), 1e-12)

	split := NewBernoulliNB(WithBinarize(0.5))
	require.NoError(t, split.Fit(X, y))
	score, err := split.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	already := NewBernoulliNB(WithoutBinarize())
	assert.Nil(t, already.GetParams(false)["binarize"])
	assert.Contains(t, already.String(), "binarize=None")
}

func TestBernoulliNB_ProbaRowsSumToOne(t *testing.T) {
	X := mat.NewDense(6, 3, []float64{
		1, 0, 0,
		1, 1, 0,
		0, 1, 0,
		0, 1, 1,
		0, 0, 1,
		1, 0, 1,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 1, 1, 2, 2})
	nb := NewBernoulliNB(WithAlpha(0.5))
	require.NoError(t, nb.Fit(X, y))

	proba, err := nb.PredictProba(X)
	require.NoError(t, err)
	logProba, err := nb.PredictLogProba(X)
	require.NoError(t, err)
	rows, cols := proba.Dims()
	assert.Equal(t, 3, cols)
	for i := 0; i < rows; i++ {
		var sum float64
		for j := 0; j < cols; j++ {
			sum += proba.At(i, j)
			assert.InDelta(t, math.Log(proba.At(i, j)), logProba.At(i, j), 1e-12)
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
}

func TestBernoulliNB_PartialFitMatchesFit(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{1, 0, 1, 1, 0, 1, 0, 0})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	full := NewBernoulliNB()
	require.NoError(t, full.Fit(X, y))

	online := NewBernoulliNB()
	require.NoError(t, online.PartialFit(X.Slice(0, 2, 0, 2), y.Slice(0, 2, 0, 1), []float64{0, 1}))
	require.NoError(t, online.PartialFit(X.Slice(2, 4, 0, 2), y.Slice(2, 4, 0, 1), nil))

	assert.Equal(t, 4, online.NSamplesSeen())
	assert.True(t, mat.EqualApprox(full.FeatureLogProb(), online.FeatureLogProb(), 1e-12))

	err := online.PartialFit(mat.NewDense(1, 3, nil), mat.NewDense(1, 1, nil), nil)
	var dimErr *errors.DimensionError
	assert.ErrorAs(t, err, &dimErr)
}

func TestBernoulliNB_Errors(t *testing.T) {
	nb := NewBernoulliNB()
	_, err := nb.Predict(mat.NewDense(1, 2, nil))
	var nf *errors.NotFittedError
	assert.ErrorAs(t, err, &nf)

	bad := NewBernoulliNB(WithAlpha(-1))
	assert.Error(t, bad.Fit(mat.NewDense(2, 1, []float64{1, 0}), mat.NewDense(2, 1, []float64{0, 1})))

	require.NoError(t, nb.Fit(mat.NewDense(2, 2, []float64{1, 0, 0, 1}), mat.NewDense(2, 1, []float64{0, 1})))
	_, err = nb.Predict(mat.NewDense(1, 3, nil))
	assert.Error(t, err)
}

func TestBernoulliNB_Params(t *testing.T) {
	nb := NewBernoulliNB(WithAlpha(0.3), WithBinarize(0.5), WithFitPrior(false))
	clone := nb.Clone()
	assert.Equal(t, nb.GetParams(false), clone.GetParams(false))

	require.NoError(t, clone.SetParams(map[string]interface{}{"binarize": nil}))
	assert.Nil(t, clone.GetParams(false)["binarize"])
	assert.Error(t, clone.SetParams(map[string]interface{}{"gamma": 1}))

	assert.Error(t, NewMultinomialNB().SetParams(map[string]interface{}{"binarize": 0.0}))
}
