package feature_selection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

func TestFisherScore(t *testing.T) {
	// col0: class means 1 and 3, within variance 1 per class
	// col1: constant within class, different means -> +Inf
	// col2: constant everywhere -> 0
	X := mat.NewDense(4, 3, []float64{
		0, 5, 7,
		2, 5, 7,
		2, 9, 7,
		4, 9, 7,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 1, 1})

	scores, err := FisherScore(X, y)
	require.NoError(t, err)
	require.Len(t, scores, 3)

	// between = 2*(1-2)^2 + 2*(3-2)^2 = 4, within = 2*1 + 2*1 = 4
	assert.InDelta(t, 1.0, scores[0], 1e-12)
	assert.True(t, math.IsInf(scores[1], 1))
	assert.Equal(t, 0.0, scores[2])

	assert.Equal(t, []int{1, 0, 2}, RankFeatures(scores))
}

func TestFisherScore_Errors(t *testing.T) {
	tests := []struct {
		name string
		X    mat.Matrix
		y    mat.Matrix
		want error
	}{
		{
			name: "single class",
			X:    mat.NewDense(2, 1, []float64{1, 2}),
			y:    mat.NewDense(2, 1, []float64{1, 1}),
			want: errors.ErrSingleClass,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FisherScore(tt.X, tt.y)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("row mismatch", func(t *testing.T) {
		_, err := FisherScore(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{0, 1}))
		var de *errors.DimensionError
		assert.ErrorAs(t, err, &de)
	})
}

func TestRankFeatures(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   []int
	}{
		{"descending", []float64{0.1, 3, 2}, []int{1, 2, 0}},
		{"ties keep order", []float64{1, 1, 2}, []int{2, 0, 1}},
		{"nan last", []float64{math.NaN(), 0, math.Inf(1)}, []int{2, 1, 0}},
		{"empty", nil, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RankFeatures(tt.scores))
		})
	}
}
