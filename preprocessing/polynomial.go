package preprocessing

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// PolynomialFeatures は次数 Degree 以下の全ての単項式を特徴量として生成する
//
// 出力列の順序はscikit-learnと同じ: バイアス列、1次の項、2次の重複組合せ（辞書順）、…
type PolynomialFeatures struct {
	state *model.StateManager

	Degree          int
	IncludeBias     bool
	InteractionOnly bool

	// terms[k] は出力列 k の単項式。parent は最後の因子を除いた単項式の列番号
	terms []polyTerm
}

type polyTerm struct {
	parent  int // -1: 定数項または1次の項
	feature int // 掛ける入力特徴量（定数項は -1）
}

// PolynomialOption はPolynomialFeaturesのオプション
type PolynomialOption func(*PolynomialFeatures)

// WithIncludeBias は定数列（全て1）を含めるかどうかを設定する（デフォルト: true）
func WithIncludeBias(include bool) PolynomialOption {
	return func(p *PolynomialFeatures) { p.IncludeBias = include }
}

// WithInteractionOnly は同じ特徴量の累乗を除外する
func WithInteractionOnly(only bool) PolynomialOption {
	return func(p *PolynomialFeatures) { p.InteractionOnly = only }
}

// NewPolynomialFeatures は新しいPolynomialFeaturesを作成する
func NewPolynomialFeatures(degree int, opts ...PolynomialOption) *PolynomialFeatures {
	p := &PolynomialFeatures{
		state:       model.NewStateManager(),
		Degree:      degree,
		IncludeBias: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fit は入力特徴量数から出力する単項式を列挙する
func (p *PolynomialFeatures) Fit(X mat.Matrix) error {
	r, c, err := model.CheckX("PolynomialFeatures.Fit", X)
	if err != nil {
		return err
	}
	if p.Degree < 0 {
		return errors.NewValidationError("degree", "must be non-negative", p.Degree)
	}

	p.terms = p.terms[:0]
	if p.IncludeBias {
		p.terms = append(p.terms, polyTerm{parent: -1, feature: -1})
	}
	if p.Degree >= 1 {
		// prev[k] は直前の次数の単項式 (列番号, 最後の因子)
		type frontier struct{ col, last int }
		var prev []frontier
		for j := 0; j < c; j++ {
			prev = append(prev, frontier{col: len(p.terms), last: j})
			p.terms = append(p.terms, polyTerm{parent: -1, feature: j})
		}
		for d := 2; d <= p.Degree; d++ {
			var next []frontier
			for _, f := range prev {
				start := f.last
				if p.InteractionOnly {
					start = f.last + 1
				}
				for j := start; j < c; j++ {
					next = append(next, frontier{col: len(p.terms), last: j})
					p.terms = append(p.terms, polyTerm{parent: f.col, feature: j})
				}
			}
			prev = next
		}
	}
	if len(p.terms) == 0 {
		return errors.NewValueError("PolynomialFeatures.Fit", "no output features: degree 0 without bias")
	}

	p.state.SetDimensions(c, r)
	p.state.SetFitted()
	return nil
}

// NOutputFeatures は出力列数を返す
func (p *PolynomialFeatures) NOutputFeatures() int { return len(p.terms) }

// Transform は単項式の値を計算する。各列は親の列に1因子を掛けて求める
func (p *PolynomialFeatures) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("PolynomialFeatures", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := p.state.RequireFeatures("PolynomialFeatures.Transform", c); err != nil {
		return nil, err
	}

	out := mat.NewDense(r, len(p.terms), nil)
	x := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(x, i, X)
		row := out.RawRowView(i)
		for k, t := range p.terms {
			switch {
			case t.feature < 0:
				row[k] = 1
			case t.parent < 0:
				row[k] = x[t.feature]
			default:
				row[k] = row[t.parent] * x[t.feature]
			}
		}
	}
	return out, nil
}

// FitTransform は Fit してから同じデータを変換する
func (p *PolynomialFeatures) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// Powers は出力列ごとの各入力特徴量の指数を返す（n_output × n_input）
func (p *PolynomialFeatures) Powers() [][]int {
	nIn, _ := p.state.GetDimensions()
	powers := make([][]int, len(p.terms))
	for k, t := range p.terms {
		powers[k] = make([]int, nIn)
		if t.parent >= 0 {
			copy(powers[k], powers[t.parent])
		}
		if t.feature >= 0 {
			powers[k][t.feature]++
		}
	}
	return powers
}

// FeatureNames は "x0^2 x1" 形式の出力列名を返す。inputNames が nil なら x0, x1, ...
func (p *PolynomialFeatures) FeatureNames(inputNames []string) []string {
	powers := p.Powers()
	names := make([]string, len(powers))
	for k, pw := range powers {
		var parts []string
		for j, e := range pw {
			if e == 0 {
				continue
			}
			name := fmt.Sprintf("x%d", j)
			if j < len(inputNames) {
				name = inputNames[j]
			}
			if e > 1 {
				name = fmt.Sprintf("%s^%d", name, e)
			}
			parts = append(parts, name)
		}
		if len(parts) == 0 {
			names[k] = "1"
			continue
		}
		names[k] = strings.Join(parts, " ")
	}
	return names
}
