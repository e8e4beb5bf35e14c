package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type vecCase struct {
	name    string
	yTrue   []float64
	yPred   []float64
	want    float64
	wantErr bool
}

func runVecCases(t *testing.T, fn func(a, b *mat.VecDense) (float64, error), delta float64, cases []vecCase) {
	t.Helper()
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fn(vec(tt.yTrue...), vec(tt.yPred...))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, delta)
		})
	}
}

func TestAUC(t *testing.T) {
	runVecCases(t, AUC, 1e-9, []vecCase{
		{name: "perfect", yTrue: []float64{0, 0, 0, 1, 1, 1}, yPred: []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9}, want: 1},
		{name: "inverted", yTrue: []float64{0, 0, 0, 1, 1, 1}, yPred: []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1}, want: 0},
		{name: "all ties", yTrue: []float64{0, 1, 0, 1}, yPred: []float64{0.5, 0.5, 0.5, 0.5}, want: 0.5},
		{name: "one swapped pair", yTrue: []float64{0, 0, 1, 1}, yPred: []float64{0.1, 0.4, 0.35, 0.8}, want: 0.75},
		// 片方のクラスしかない場合は 0.5
		{name: "only positives", yTrue: []float64{1, 1, 1, 1}, yPred: []float64{0.1, 0.4, 0.35, 0.8}, want: 0.5},
		{name: "only negatives", yTrue: []float64{0, 0, 0, 0}, yPred: []float64{0.1, 0.4, 0.35, 0.8}, want: 0.5},
		{name: "non-binary labels", yTrue: []float64{0, 0.5, 1}, yPred: []float64{0.1, 0.5, 0.9}, wantErr: true},
		{name: "length mismatch", yTrue: []float64{0, 1}, yPred: []float64{0.5}, wantErr: true},
		{name: "empty", wantErr: true},
	})
}

func TestAUCMatrix(t *testing.T) {
	got, err := AUCMatrix(
		mat.NewDense(4, 1, []float64{0, 0, 1, 1}),
		mat.NewDense(4, 1, []float64{0.1, 0.4, 0.35, 0.8}),
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got, 1e-9)

	// 先頭列だけを使う
	got, err = AUCMatrix(
		mat.NewDense(4, 2, []float64{0, 9, 0, 9, 1, 9, 1, 9}),
		mat.NewDense(4, 2, []float64{0.1, 9, 0.4, 9, 0.35, 9, 0.8, 9}),
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got, 1e-9)

	_, err = AUCMatrix(nil, mat.NewDense(1, 1, []float64{0.5}))
	assert.Error(t, err)
	_, err = AUCMatrix(&mat.Dense{}, &mat.Dense{})
	assert.Error(t, err)
}

func TestBinaryLogLoss(t *testing.T) {
	typical := -(2*math.Log(0.9) + 2*math.Log(0.8)) / 4
	runVecCases(t, BinaryLogLoss, 1e-6, []vecCase{
		// クリップにより log(0) にはならない
		{name: "perfect", yTrue: []float64{0, 0, 1, 1}, yPred: []float64{0, 0, 1, 1}, want: 0},
		{name: "typical", yTrue: []float64{0, 0, 1, 1}, yPred: []float64{0.1, 0.2, 0.8, 0.9}, want: typical},
		{name: "confidently wrong", yTrue: []float64{0, 0, 1, 1}, yPred: []float64{0.9, 0.9, 0.1, 0.1}, want: -math.Log(0.1)},
		{name: "non-binary labels", yTrue: []float64{0, 0.5, 1}, yPred: []float64{0.1, 0.5, 0.9}, wantErr: true},
		{name: "empty", wantErr: true},
	})
}

func TestAccuracyAndError(t *testing.T) {
	cases := []vecCase{
		{name: "perfect", yTrue: []float64{0, 1, 2, 1, 0}, yPred: []float64{0, 1, 2, 1, 0}, want: 1},
		{name: "one miss", yTrue: []float64{0, 1, 2, 1, 0}, yPred: []float64{0, 1, 1, 1, 0}, want: 0.8},
		{name: "all wrong", yTrue: []float64{0, 0, 0}, yPred: []float64{1, 1, 1}, want: 0},
		{name: "binary half", yTrue: []float64{0, 0, 1, 1}, yPred: []float64{0, 1, 1, 0}, want: 0.5},
		{name: "length mismatch", yTrue: []float64{0, 1}, yPred: []float64{0}, wantErr: true},
		{name: "empty", wantErr: true},
	}
	t.Run("Accuracy", func(t *testing.T) { runVecCases(t, Accuracy, 1e-12, cases) })

	errCases := make([]vecCase, len(cases))
	for i, c := range cases {
		c.want = 1 - c.want
		errCases[i] = c
	}
	t.Run("ClassificationError", func(t *testing.T) { runVecCases(t, ClassificationError, 1e-12, errCases) })
}

func TestAccuracyScore(t *testing.T) {
	got, err := AccuracyScore(col(0, 1, 1, 0), mat.NewDense(4, 1, []float64{0, 1, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, 0.75, got)

	_, err = AccuracyScore(col(0, 1), col(0, 1, 1))
	assert.Error(t, err)
}

func benchScores(n int) (*mat.VecDense, *mat.VecDense) {
	yTrue, yScore := mat.NewVecDense(n, nil), mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		yTrue.SetVec(i, float64(i%2))
		yScore.SetVec(i, float64((i*7919)%n)/float64(n))
	}
	return yTrue, yScore
}

func BenchmarkAUC(b *testing.B) {
	yTrue, yScore := benchScores(10000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = AUC(yTrue, yScore)
	}
}

func BenchmarkBinaryLogLoss(b *testing.B) {
	yTrue, yScore := benchScores(10000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = BinaryLogLoss(yTrue, yScore)
	}
}
