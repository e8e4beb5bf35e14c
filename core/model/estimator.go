// Package model defines the estimator contracts shared by every learner,
// together with fitted-state bookkeeping and input validation.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は n×1 の予測値を返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は教師あり学習モデルの基本インターフェース
type Estimator interface {
	Fitter
	Predictor
}

// Scorer はモデルの既定スコア（分類: 正解率, 回帰: R²）を計算する
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Classifier は分類器のインターフェース
type Classifier interface {
	Estimator
	Scorer

	// PredictProba は n×k のクラス確率を返す。列は Classes() の順
	PredictProba(X mat.Matrix) (mat.Matrix, error)

	// Classes は学習時に見たクラスラベルを昇順で返す
	Classes() []float64
}

// DecisionFunctioner は決定関数の値を返すモデル
type DecisionFunctioner interface {
	DecisionFunction(X mat.Matrix) (mat.Matrix, error)
}

// Transformer はデータ変換のインターフェース
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// InverseTransformer は逆変換可能な変換器
type InverseTransformer interface {
	Transformer
	InverseTransform(X mat.Matrix) (mat.Matrix, error)
}

// SKLearnCompatible はscikit-learn互換のハイパーパラメータ操作を持つ推定器
//
// Clone は同じハイパーパラメータを持つ未学習のインスタンスを返す。
// 交差検証やハイパーパラメータ探索は Clone したモデルを学習する。
type SKLearnCompatible interface {
	Estimator
	GetParams(deep bool) map[string]interface{}
	SetParams(params map[string]interface{}) error
	Clone() SKLearnCompatible
}

// IsClassifier reports whether est predicts class labels.
func IsClassifier(est interface{}) bool {
	_, ok := est.(interface{ Classes() []float64 })
	return ok
}
