package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

func col(v ...float64) *mat.Dense { return mat.NewDense(len(v), 1, v) }

func TestF1Score(t *testing.T) {
	// sklearn: f1_score([0,1,2,0,1,2], [0,2,1,0,0,1], average=...)
	yTrue := col(0, 1, 2, 0, 1, 2)
	yPred := col(0, 2, 1, 0, 0, 1)

	tests := []struct {
		average Average
		want    float64
	}{
		{AverageMacro, 0.26666666666666666},
		{AverageMicro, 0.3333333333333333},
		{AverageWeighted, 0.26666666666666666},
	}
	for _, tt := range tests {
		t.Run(string(tt.average), func(t *testing.T) {
			got, err := F1Score(yTrue, yPred, tt.average)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	_, err := F1Score(yTrue, yPred, AverageBinary)
	assert.Error(t, err, "binary average on multiclass target")
	_, err = F1Score(yTrue, yPred, Average("samples"))
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestF1Score_Binary(t *testing.T) {
	yTrue := col(0, 1, 1, 1, 0, 0)
	yPred := col(0, 1, 0, 1, 1, 0)
	f1, err := F1Score(yTrue, yPred, AverageBinary)
	require.NoError(t, err)
	// tp=2 fp=1 fn=1
	assert.InDelta(t, 2.0/3.0, f1, 1e-12)

	p, _ := PrecisionScore(yTrue, yPred, AverageBinary)
	r, _ := RecallScore(yTrue, yPred, AverageBinary)
	assert.InDelta(t, 2.0/3.0, p, 1e-12)
	assert.InDelta(t, 2.0/3.0, r, 1e-12)
}

func TestPrecision_UndefinedWarns(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(nil)

	// クラス2は一度も予測されない
	p, err := PrecisionScore(col(0, 1, 2), col(0, 1, 1), AverageMacro)
	require.NoError(t, err)
	assert.InDelta(t, (1+0.5+0)/3.0, p, 1e-12)
	require.NotEmpty(t, warnings)
	var uw *errors.UndefinedMetricWarning
	assert.True(t, errors.As(warnings[0], &uw))
}

func TestConfusionMatrix(t *testing.T) {
	cm, labels, err := ConfusionMatrix(col(2, 0, 2, 2, 0, 1), col(0, 0, 2, 2, 0, 2))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2}, labels)
	want := mat.NewDense(3, 3, []float64{
		2, 0, 0,
		0, 0, 1,
		1, 0, 2,
	})
	assert.True(t, mat.Equal(cm, want), "got %v", mat.Formatted(cm))
}

func TestLogLoss(t *testing.T) {
	// sklearn: log_loss(["spam","ham","ham","spam"], [[.1,.9],[.9,.1],[.8,.2],[.35,.65]]) = 0.21616...
	yTrue := col(1, 0, 0, 1)
	proba := mat.NewDense(4, 2, []float64{
		0.1, 0.9,
		0.9, 0.1,
		0.8, 0.2,
		0.35, 0.65,
	})
	got, err := LogLoss(yTrue, proba, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.21616187468057912, got, 1e-9)

	// 陽性確率の1列だけでも同じ値
	got1, err := LogLoss(yTrue, col(0.9, 0.1, 0.2, 0.65), nil)
	require.NoError(t, err)
	assert.InDelta(t, got, got1, 1e-12)

	// 行は再正規化される
	unnorm := mat.NewDense(1, 2, []float64{0.2, 0.6})
	got2, err := LogLoss(col(1), unnorm, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, -math.Log(0.75), got2, 1e-9)

	// クリップしてから正規化するので [1, 3] は [1-eps, 1-eps] になる
	clipped := mat.NewDense(1, 2, []float64{1, 3})
	got3, err := LogLoss(col(1), clipped, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, math.Log(2), got3, 1e-9)

	_, err = LogLoss(col(0, 1, 2), proba.Slice(0, 3, 0, 2), nil)
	assert.Error(t, err, "3 labels vs 2 columns")
	_, err = LogLoss(col(1, 1), mat.NewDense(2, 2, nil), nil)
	assert.Error(t, err, "single label without explicit classes")
}

func TestClassificationReport(t *testing.T) {
	report, err := ClassificationReport(col(0, 1, 1, 0), col(0, 1, 0, 0), map[float64]string{0: "benign", 1: "malignant"})
	require.NoError(t, err)
	assert.Contains(t, report, "malignant")
	assert.Contains(t, report, "macro avg")
	assert.Contains(t, report, "accuracy")
}

func TestMatrixRegressionMetrics(t *testing.T) {
	yTrue := col(3, -0.5, 2, 7)
	yPred := col(2.5, 0.0, 2, 8)
	mae, err := MAEMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, mae, 1e-12)
	mse, err := MSEMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.375, mse, 1e-12)
	r2, err := R2ScoreMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 0.9486081370449679, r2, 1e-12)

	acc, err := AccuracyScore(col(1, 0, 1), col(1, 1, 1))
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3.0, acc, 1e-12)
}
