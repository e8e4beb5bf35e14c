package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})
	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	if err != nil {
		t.Fatal(err)
	}

	if math.Abs(s.Mean[0]-2.5) > 1e-12 {
		t.Errorf("Mean[0] = %v", s.Mean[0])
	}
	// 母標準偏差 sqrt(1.25)
	if math.Abs(s.Scale[0]-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("Scale[0] = %v", s.Scale[0])
	}
	// 定数列はスケール1で0に写る
	if s.Scale[1] != 1 || out.At(0, 1) != 0 {
		t.Errorf("constant column: scale=%v value=%v", s.Scale[1], out.At(0, 1))
	}

	back, err := s.InverseTransform(out)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(back, X, 1e-12) {
		t.Errorf("InverseTransform did not round trip: %v", mat.Formatted(back))
	}
}

func TestStandardScaler_Errors(t *testing.T) {
	s := NewStandardScalerDefault()
	if _, err := s.Transform(mat.NewDense(1, 2, nil)); err == nil {
		t.Error("Transform before Fit should fail")
	} else {
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFittedError, got %T", err)
		}
	}
	if err := s.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatal(err)
	}
	_, err := s.Transform(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	if !errors.As(err, &dimErr) {
		t.Errorf("expected DimensionError, got %v", err)
	}
}

func TestMinMaxScaler(t *testing.T) {
	train := mat.NewDense(3, 2, []float64{
		0, 5,
		5, 5,
		10, 5,
	})
	test := mat.NewDense(1, 2, []float64{20, 5})

	tests := []struct {
		name      string
		rng       [2]float64
		wantTrain float64 // 中央行の値
		wantTest  float64
	}{
		{"unit", [2]float64{0, 1}, 0.5, 2},
		{"symmetric", [2]float64{-1, 1}, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMinMaxScaler(tt.rng)
			out, err := m.FitTransform(train)
			if err != nil {
				t.Fatal(err)
			}
			if got := out.At(1, 0); math.Abs(got-tt.wantTrain) > 1e-12 {
				t.Errorf("train value = %v, want %v", got, tt.wantTrain)
			}
			if got := out.At(0, 1); got != tt.rng[0] {
				t.Errorf("constant column = %v, want %v", got, tt.rng[0])
			}
			outTest, err := m.Transform(test)
			if err != nil {
				t.Fatal(err)
			}
			// テストデータは範囲外でもクリップされない
			if got := outTest.At(0, 0); math.Abs(got-tt.wantTest) > 1e-12 {
				t.Errorf("test value = %v, want %v", got, tt.wantTest)
			}
			back, _ := m.InverseTransform(out)
			if !mat.EqualApprox(back, train, 1e-12) {
				t.Error("InverseTransform did not round trip")
			}
		})
	}

	if err := NewMinMaxScaler([2]float64{1, 0}).Fit(train); err == nil {
		t.Error("inverted feature range should fail")
	}
}

func TestPolynomialFeatures(t *testing.T) {
	X := mat.NewDense(1, 2, []float64{2, 3})

	tests := []struct {
		name  string
		poly  *PolynomialFeatures
		want  []float64
		names []string
	}{
		{
			name:  "degree 2 with bias",
			poly:  NewPolynomialFeatures(2),
			want:  []float64{1, 2, 3, 4, 6, 9},
			names: []string{"1", "a", "b", "a^2", "a b", "b^2"},
		},
		{
			name:  "degree 3 without bias",
			poly:  NewPolynomialFeatures(3, WithIncludeBias(false)),
			want:  []float64{2, 3, 4, 6, 9, 8, 12, 18, 27},
			names: []string{"a", "b", "a^2", "a b", "b^2", "a^3", "a^2 b", "a b^2", "b^3"},
		},
		{
			name:  "interaction only",
			poly:  NewPolynomialFeatures(2, WithInteractionOnly(true)),
			want:  []float64{1, 2, 3, 6},
			names: []string{"1", "a", "b", "a b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.poly.FitTransform(X)
			if err != nil {
				t.Fatal(err)
			}
			_, c := out.Dims()
			if c != len(tt.want) {
				t.Fatalf("got %d columns, want %d", c, len(tt.want))
			}
			for j, w := range tt.want {
				if out.At(0, j) != w {
					t.Errorf("column %d = %v, want %v", j, out.At(0, j), w)
				}
			}
			names := tt.poly.FeatureNames([]string{"a", "b"})
			for j, n := range tt.names {
				if names[j] != n {
					t.Errorf("name %d = %q, want %q", j, names[j], n)
				}
			}
		})
	}
}

func TestPolynomialFeatures_OutputCount(t *testing.T) {
	// C(n+d, d) 列: 10特徴量・10次 = 184756
	p := NewPolynomialFeatures(4)
	if err := p.Fit(mat.NewDense(1, 10, nil)); err != nil {
		t.Fatal(err)
	}
	if got := p.NOutputFeatures(); got != 1001 {
		t.Errorf("NOutputFeatures = %d, want 1001", got)
	}
}

func TestLabelEncoder(t *testing.T) {
	le := NewLabelEncoder()
	codes, err := le.FitTransform([]string{"pos", "neg", "pos"})
	if err != nil {
		t.Fatal(err)
	}
	if codes[0] != 1 || codes[1] != 0 {
		t.Errorf("codes = %v", codes)
	}
	if classes := le.Classes(); classes[0] != "neg" || classes[1] != "pos" {
		t.Errorf("classes = %v", classes)
	}
	labels, err := le.InverseTransform([]float64{0, 1})
	if err != nil || labels[0] != "neg" || labels[1] != "pos" {
		t.Errorf("InverseTransform = %v, %v", labels, err)
	}
	if _, err := le.Transform([]string{"neutral"}); err == nil {
		t.Error("unseen label should fail")
	}
}
