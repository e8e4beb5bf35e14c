package preprocessing

import (
	"sort"

	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// LabelEncoder は文字列ラベルを 0..n_classes-1 の整数コードに変換する
// クラスは辞書順に並べられる（例: "neg" -> 0, "pos" -> 1）
type LabelEncoder struct {
	state   *model.StateManager
	classes []string
	index   map[string]int
}

// NewLabelEncoder は新しいLabelEncoderを作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{state: model.NewStateManager()}
}

// Fit はラベルの種類を学習する
func (l *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "LabelEncoder.Fit")
	}
	seen := make(map[string]struct{})
	for _, s := range labels {
		seen[s] = struct{}{}
	}
	l.classes = make([]string, 0, len(seen))
	for s := range seen {
		l.classes = append(l.classes, s)
	}
	sort.Strings(l.classes)
	l.index = make(map[string]int, len(l.classes))
	for i, s := range l.classes {
		l.index[s] = i
	}
	l.state.SetDimensions(1, len(labels))
	l.state.SetFitted()
	return nil
}

// Transform はラベルを整数コード（float64）に変換する
func (l *LabelEncoder) Transform(labels []string) ([]float64, error) {
	if err := l.state.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}
	out := make([]float64, len(labels))
	for i, s := range labels {
		k, ok := l.index[s]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", "y contains previously unseen label "+s)
		}
		out[i] = float64(k)
	}
	return out, nil
}

// FitTransform は Fit してから同じラベルを変換する
func (l *LabelEncoder) FitTransform(labels []string) ([]float64, error) {
	if err := l.Fit(labels); err != nil {
		return nil, err
	}
	return l.Transform(labels)
}

// InverseTransform は整数コードを元のラベルに戻す
func (l *LabelEncoder) InverseTransform(codes []float64) ([]string, error) {
	if err := l.state.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		k := int(c)
		if float64(k) != c || k < 0 || k >= len(l.classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", "code out of range")
		}
		out[i] = l.classes[k]
	}
	return out, nil
}

// Classes は学習したラベルを辞書順で返す
func (l *LabelEncoder) Classes() []string {
	return append([]string(nil), l.classes...)
}
