package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/supervised-learning/core/matutil"
	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// scaleEpsilon 未満の標準偏差（範囲）は 1 として扱う（定数特徴量）
const scaleEpsilon = 1e-8

// StandardScaler はscikit-learn互換の標準化スケーラー
// 学習データの各特徴量を平均0、標準偏差1に変換する
type StandardScaler struct {
	state *model.StateManager

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の母標準偏差（ddof=0）
	Scale []float64

	// WithMean は平均を引くかどうか
	WithMean bool

	// WithStd は標準偏差で割るかどうか
	WithStd bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XTrain, err := scaler.FitTransform(XTrain)
//	XTest, err := scaler.Transform(XTest)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		state:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は学習データから平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c, err := model.CheckX("StandardScaler.Fit", X)
	if err != nil {
		return err
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	for j := 0; j < c; j++ {
		mean, std := stat.PopMeanStdDev(matutil.Column(X, j), nil)
		if s.WithMean {
			s.Mean[j] = mean
		}
		s.Scale[j] = 1
		if s.WithStd && std >= scaleEpsilon {
			s.Scale[j] = std
		}
	}

	s.state.SetDimensions(c, r)
	s.state.SetFitted()
	return nil
}

// Transform は (x - mean) / scale を返す
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	return applyColumnwise("StandardScaler.Transform", s.state, X, func(j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	})
}

// FitTransform は Fit してから同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	return applyColumnwise("StandardScaler.InverseTransform", s.state, X, func(j int, v float64) float64 {
		return v*s.Scale[j] + s.Mean[j]
	})
}

// IsFitted は学習済みかどうかを返す
func (s *StandardScaler) IsFitted() bool { return s.state.IsFitted() }

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
}

// MinMaxScaler はscikit-learn互換のMin-Maxスケーラー
// 学習データの各特徴量を FeatureRange（デフォルト[0,1]）に線形に写す
type MinMaxScaler struct {
	state *model.StateManager

	// DataMin, DataMax は学習データの列ごとの最小値・最大値
	DataMin []float64
	DataMax []float64

	// DataRange は DataMax - DataMin（定数特徴量は 1）
	DataRange []float64

	// FeatureRange はスケーリング後の範囲 [min, max]
	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		state:        model.NewStateManager(),
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault は [0,1] 範囲のMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit は学習データから列ごとの最小値・最大値を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c, err := model.CheckX("MinMaxScaler.Fit", X)
	if err != nil {
		return err
	}
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return errors.NewValidationError("feature_range", "minimum of desired feature range must be smaller than maximum", m.FeatureRange)
	}

	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.DataRange = make([]float64, c)
	for j := 0; j < c; j++ {
		col := matutil.Column(X, j)
		lo, hi := col[0], col[0]
		for _, v := range col[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		m.DataMin[j], m.DataMax[j] = lo, hi
		m.DataRange[j] = hi - lo
		if m.DataRange[j] < scaleEpsilon {
			m.DataRange[j] = 1
		}
	}

	m.state.SetDimensions(c, r)
	m.state.SetFitted()
	return nil
}

// Transform は (x - data_min) / data_range * (max - min) + min を返す
// テストデータは学習データの範囲外になりうるのでクリップしない
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("MinMaxScaler", "Transform"); err != nil {
		return nil, err
	}
	width := m.FeatureRange[1] - m.FeatureRange[0]
	return applyColumnwise("MinMaxScaler.Transform", m.state, X, func(j int, v float64) float64 {
		return (v-m.DataMin[j])/m.DataRange[j]*width + m.FeatureRange[0]
	})
}

// FitTransform は Fit してから同じデータを変換する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// InverseTransform はスケーリングされたデータを元の範囲に戻す
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("MinMaxScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	width := m.FeatureRange[1] - m.FeatureRange[0]
	return applyColumnwise("MinMaxScaler.InverseTransform", m.state, X, func(j int, v float64) float64 {
		return (v-m.FeatureRange[0])/width*m.DataRange[j] + m.DataMin[j]
	})
}

// IsFitted は学習済みかどうかを返す
func (m *MinMaxScaler) IsFitted() bool { return m.state.IsFitted() }

// GetParams はスケーラーのパラメータを取得する
func (m *MinMaxScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"feature_range": m.FeatureRange,
	}
}

// String はスケーラーの文字列表現を返す
func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=(%g, %g))", m.FeatureRange[0], m.FeatureRange[1])
}

func applyColumnwise(op string, state *model.StateManager, X mat.Matrix, fn func(j int, v float64) float64) (mat.Matrix, error) {
	r, c := X.Dims()
	if err := state.RequireFeatures(op, c); err != nil {
		return nil, err
	}
	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := result.RawRowView(i)
		for j := range row {
			row[j] = fn(j, X.At(i, j))
		}
	}
	return result, nil
}
