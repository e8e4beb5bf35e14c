package tree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

func TestImpurity(t *testing.T) {
	tests := []struct {
		name   string
		crit   criterion
		counts []float64
		want   float64
	}{
		{"gini pure", gini, []float64{4, 0}, 0},
		{"gini balanced", gini, []float64{2, 2}, 0.5},
		{"gini three", gini, []float64{1, 1, 1}, 2.0 / 3.0},
		{"entropy balanced", entropy, []float64{2, 2}, 1},
		{"entropy pure", entropy, []float64{0, 3}, 0},
		{"entropy skewed", entropy, []float64{1, 3}, -(0.25*math.Log2(0.25) + 0.75*math.Log2(0.75))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var total float64
			for _, c := range tt.counts {
				total += c
			}
			assert.InDelta(t, tt.want, tt.crit(tt.counts, total), 1e-12)
		})
	}
}

func TestDecisionTree_StumpStructure(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	assert.Equal(t, 3, dt.NodeCount())
	assert.Equal(t, 1, dt.Depth())
	assert.Equal(t, 2, dt.NLeaves())
	assert.Equal(t, 2.5, dt.nodes[0].threshold)
	assert.Equal(t, []float64{1}, dt.FeatureImportances())

	pred, err := dt.Predict(mat.NewDense(3, 1, []float64{2.5, 2.6, -10}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 0}, model.Labels(pred))
}

func TestDecisionTree_SampleWeights(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 0, 0})
	y := mat.NewDense(3, 1, []float64{0, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.FitWithWeights(X, y, []float64{3, 1, 1}))
	proba, err := dt.PredictProba(mat.NewDense(1, 1, []float64{0}))
	require.NoError(t, err)
	assert.InDelta(t, 0.6, proba.At(0, 0), 1e-12)
	assert.InDelta(t, 0.4, proba.At(0, 1), 1e-12)

	// 重み 0 のサンプルは学習に含まれない
	require.NoError(t, dt.FitWithWeights(X, y, []float64{0, 2, 1}))
	assert.Equal(t, []float64{1}, dt.Classes())

	assert.Error(t, dt.FitWithWeights(X, y, []float64{1, 1}))
	assert.Error(t, dt.FitWithWeights(X, y, []float64{0, 0, 0}))
	assert.Error(t, dt.FitWithWeights(X, y, []float64{-1, 1, 1}))
}

func TestDecisionTree_MaxFeaturesReproducible(t *testing.T) {
	X := mat.NewDense(40, 6, nil)
	y := mat.NewDense(40, 1, nil)
	for i := 0; i < 40; i++ {
		for j := 0; j < 6; j++ {
			X.Set(i, j, float64((i*(j+3))%11))
		}
		y.Set(i, 0, float64(i%3))
	}
	a := NewDecisionTreeClassifier(WithMaxFeatures("sqrt"), WithRandomState(3))
	b := NewDecisionTreeClassifier(WithMaxFeatures("sqrt"), WithRandomState(3))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.FeatureImportances(), b.FeatureImportances())
	assert.Equal(t, a.NodeCount(), b.NodeCount())
}

func TestResolveMaxFeatures(t *testing.T) {
	tests := []struct {
		in      interface{}
		want    int
		wantErr bool
	}{
		{nil, 64, false},
		{"sqrt", 8, false},
		{"log2", 6, false},
		{10, 10, false},
		{0.25, 16, false},
		{0, 0, true},
		{100, 0, true},
		{1.5, 0, true},
		{"cube", 0, true},
	}
	for _, tt := range tests {
		got, err := ResolveMaxFeatures(tt.in, 64)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestDecisionTree_InvalidParams(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})
	for _, opt := range []Option{
		WithCriterion("mse"),
		WithMaxDepth(-1),
		WithMinSamplesSplit(1),
		WithMinSamplesLeaf(0),
		WithMinImpurityDecrease(-0.1),
	} {
		err := NewDecisionTreeClassifier(opt).Fit(X, y)
		var ve *errors.ValidationError
		assert.ErrorAs(t, err, &ve)
	}
}

func TestDecisionTree_MinImpurityDecreaseStopsSplitting(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{0, 1, 0, 1})
	dt := NewDecisionTreeClassifier(WithMinImpurityDecrease(0.4))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1, dt.NLeaves())
	assert.Equal(t, []float64{0}, dt.FeatureImportances())
}

func TestDecisionTree_ParamsRoundTrip(t *testing.T) {
	dt := NewDecisionTreeClassifier(WithCriterion("entropy"), WithMaxDepth(4), WithMaxFeatures("log2"), WithRandomState(9))
	clone := dt.Clone()
	assert.Equal(t, dt.GetParams(false), clone.GetParams(false))

	assert.Nil(t, NewDecisionTreeClassifier().GetParams(false)["max_depth"])
	require.NoError(t, clone.SetParams(map[string]interface{}{"max_depth": nil}))
	assert.Nil(t, clone.GetParams(false)["max_depth"])
	assert.Error(t, clone.SetParams(map[string]interface{}{"splitter": "best"}))
	assert.Contains(t, dt.String(), "max_depth=4")
}
