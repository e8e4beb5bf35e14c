package dataframe

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

func nonNull(v []float64) []float64 {
	out := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// quantile は numpy の既定（linear, type 7）と同じ補間。sorted は昇順
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := q * float64(n-1)
	lo := int(math.Floor(h))
	hi := min(lo+1, n-1)
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

var describeStats = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

// Describe summarises every numeric column: count, mean, sample std, min,
// quartiles and max. Nulls are skipped.
func (f *Frame) Describe() *Frame {
	cols := []*Series{NewString("", append([]string(nil), describeStats...))}
	for _, c := range f.cols {
		if !c.IsNumeric() {
			continue
		}
		v := nonNull(c.num)
		sort.Float64s(v)
		mean, std := math.NaN(), math.NaN()
		if len(v) > 0 {
			mean = stat.Mean(v, nil)
		}
		if len(v) > 1 {
			std = stat.StdDev(v, nil)
		}
		lo, hi := math.NaN(), math.NaN()
		if len(v) > 0 {
			lo, hi = v[0], v[len(v)-1]
		}
		cols = append(cols, NewNumeric(c.Name, []float64{
			float64(len(v)), mean, std, lo,
			quantile(v, 0.25), quantile(v, 0.5), quantile(v, 0.75), hi,
		}))
	}
	return mustNew(cols...)
}

// pearson は両方が非欠損の行だけで相関を計算する
func pearson(x, y []float64) float64 {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

// Corr returns the Pearson correlation matrix of the numeric columns, using
// pairwise complete observations.
func (f *Frame) Corr() *Frame {
	var numeric []*Series
	for _, c := range f.cols {
		if c.IsNumeric() {
			numeric = append(numeric, c)
		}
	}
	names := make([]string, len(numeric))
	for i, c := range numeric {
		names[i] = c.Name
	}
	cols := []*Series{NewString("", names)}
	for _, a := range numeric {
		v := make([]float64, len(numeric))
		for i, b := range numeric {
			v[i] = pearson(b.num, a.num)
		}
		cols = append(cols, NewNumeric(a.Name, v))
	}
	return mustNew(cols...)
}

// Correlation is one entry of CorrWith.
type Correlation struct {
	Column string
	Value  float64
}

// CorrWith correlates every numeric column with target and sorts the
// result ascending; target itself (1.0) is included, NaN sorts last.
func (f *Frame) CorrWith(target string) ([]Correlation, error) {
	t, err := f.numericColumn("CorrWith", target)
	if err != nil {
		return nil, err
	}
	var out []Correlation
	for _, c := range f.cols {
		if c.IsNumeric() {
			out = append(out, Correlation{Column: c.Name, Value: pearson(c.num, t)})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		va, vb := out[a].Value, out[b].Value
		if math.IsNaN(vb) {
			return !math.IsNaN(va)
		}
		return va < vb
	})
	return out, nil
}

// Group is the mean of a target column for one group key.
type Group struct {
	Key   string
	Hue   string
	Mean  float64
	Count int
}

type groupKey struct{ key, hue string }

// keyOrder は数値キーを数値順に、文字列キーを辞書順に並べる
func keyOrder(s *Series) func(a, b string) bool {
	if !s.IsNumeric() {
		return func(a, b string) bool { return a < b }
	}
	vals := make(map[string]float64)
	for i, v := range s.num {
		vals[s.Format(i)] = v
	}
	return func(a, b string) bool { return vals[a] < vals[b] }
}

// GroupMean returns the mean of target per distinct value of by (sorted),
// skipping rows where either is null.
func (f *Frame) GroupMean(by, target string) ([]Group, error) {
	return f.groupMean(by, "", target)
}

// GroupMean2 groups by two columns: by, then hue.
func (f *Frame) GroupMean2(by, hue, target string) ([]Group, error) {
	if hue == "" {
		return nil, errors.NewValidationError("hue", "must name a column", hue)
	}
	return f.groupMean(by, hue, target)
}

func (f *Frame) groupMean(by, hue, target string) ([]Group, error) {
	b, err := f.Column(by)
	if err != nil {
		return nil, err
	}
	var h *Series
	if hue != "" {
		if h, err = f.Column(hue); err != nil {
			return nil, err
		}
	}
	t, err := f.numericColumn("GroupMean", target)
	if err != nil {
		return nil, err
	}

	sums := make(map[groupKey]float64)
	counts := make(map[groupKey]int)
	for i := range t {
		if b.IsNull(i) || math.IsNaN(t[i]) || (h != nil && h.IsNull(i)) {
			continue
		}
		k := groupKey{key: b.Format(i)}
		if h != nil {
			k.hue = h.Format(i)
		}
		sums[k] += t[i]
		counts[k]++
	}

	out := make([]Group, 0, len(sums))
	for k, s := range sums {
		out = append(out, Group{Key: k.key, Hue: k.hue, Mean: s / float64(counts[k]), Count: counts[k]})
	}
	less := keyOrder(b)
	hueLess := func(a, c string) bool { return a < c }
	if h != nil {
		hueLess = keyOrder(h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return less(out[i].Key, out[j].Key)
		}
		return hueLess(out[i].Hue, out[j].Hue)
	})
	return out, nil
}

// String renders the frame as an aligned text table with a row index.
func (f *Frame) String() string {
	rows, _ := f.Shape()
	widths := make([]int, len(f.cols)+1)
	widths[0] = len(fmt.Sprint(max(rows-1, 0)))
	cells := make([][]string, rows)
	for i := range cells {
		cells[i] = make([]string, len(f.cols)+1)
		cells[i][0] = fmt.Sprint(i)
	}
	for j, c := range f.cols {
		widths[j+1] = len(c.Name)
		for i := 0; i < rows; i++ {
			cells[i][j+1] = c.Format(i)
			widths[j+1] = max(widths[j+1], len(cells[i][j+1]))
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(" ", widths[0]))
	for j, c := range f.cols {
		fmt.Fprintf(&sb, "  %*s", widths[j+1], c.Name)
	}
	sb.WriteByte('\n')
	for _, row := range cells {
		fmt.Fprintf(&sb, "%-*s", widths[0], row[0])
		for j := 1; j < len(row); j++ {
			fmt.Fprintf(&sb, "  %*s", widths[j], row[j])
		}
		sb.WriteByte('\n')
	}
	fmt.Fprintf(&sb, "\n[%d rows x %d columns]", rows, len(f.cols))
	return sb.String()
}
