// Package dataframe is a small column-oriented table for exploratory data
// analysis: CSV loading, summaries, correlations and group means.
//
// Columns are either numeric (float64, NaN marks a missing value) or string
// (the empty string marks a missing value).
package dataframe

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// Series is one named column.
type Series struct {
	Name string
	num  []float64
	str  []string
}

// NewNumeric creates a numeric column.
func NewNumeric(name string, values []float64) *Series {
	return &Series{Name: name, num: values}
}

// NewString creates a string column.
func NewString(name string, values []string) *Series {
	return &Series{Name: name, str: values}
}

// IsNumeric reports whether the column holds float64 values.
func (s *Series) IsNumeric() bool { return s.str == nil }

// Len returns the number of rows.
func (s *Series) Len() int {
	if s.IsNumeric() {
		return len(s.num)
	}
	return len(s.str)
}

// Floats returns the numeric values; nil for a string column.
func (s *Series) Floats() []float64 { return s.num }

// Strings returns the string values; nil for a numeric column.
func (s *Series) Strings() []string { return s.str }

// IsNull reports whether row i is missing.
func (s *Series) IsNull(i int) bool {
	if s.IsNumeric() {
		return math.IsNaN(s.num[i])
	}
	return s.str[i] == ""
}

// Format renders row i the way String prints it.
func (s *Series) Format(i int) string {
	if !s.IsNumeric() {
		if s.str[i] == "" {
			return "NaN"
		}
		return s.str[i]
	}
	return formatFloat(s.num[i])
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func (s *Series) take(rows []int) *Series {
	if s.IsNumeric() {
		out := make([]float64, len(rows))
		for k, i := range rows {
			out[k] = s.num[i]
		}
		return NewNumeric(s.Name, out)
	}
	out := make([]string, len(rows))
	for k, i := range rows {
		out[k] = s.str[i]
	}
	return NewString(s.Name, out)
}

// Frame is an ordered set of equal-length columns.
type Frame struct {
	cols  []*Series
	index map[string]int
}

// New builds a frame from columns of equal length with distinct names.
func New(cols ...*Series) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols))}
	for _, c := range cols {
		if len(f.cols) > 0 && c.Len() != f.cols[0].Len() {
			return nil, errors.NewDimensionError("dataframe.New", f.cols[0].Len(), c.Len(), 0)
		}
		if _, dup := f.index[c.Name]; dup {
			return nil, errors.NewValidationError("column", "duplicate column name", c.Name)
		}
		f.index[c.Name] = len(f.cols)
		f.cols = append(f.cols, c)
	}
	return f, nil
}

func mustNew(cols ...*Series) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// Shape returns (rows, columns).
func (f *Frame) Shape() (rows, cols int) {
	if len(f.cols) == 0 {
		return 0, 0
	}
	return f.cols[0].Len(), len(f.cols)
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	names := make([]string, len(f.cols))
	for i, c := range f.cols {
		names[i] = c.Name
	}
	return names
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Series, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, errors.NewValidationError("column", "no such column", name)
	}
	return f.cols[i], nil
}

func (f *Frame) numericColumn(op, name string) ([]float64, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if !c.IsNumeric() {
		return nil, errors.NewValueError(op, fmt.Sprintf("column %q is not numeric", name))
	}
	return c.num, nil
}

func (f *Frame) takeRows(rows []int) *Frame {
	cols := make([]*Series, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.take(rows)
	}
	return mustNew(cols...)
}

// Head returns the first n rows.
func (f *Frame) Head(n int) *Frame {
	rows, _ := f.Shape()
	n = max(0, min(n, rows))
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return f.takeRows(idx)
}

// Drop returns a frame without the named columns.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := f.index[n]; !ok {
			return nil, errors.NewValidationError("column", "no such column", n)
		}
		drop[n] = true
	}
	keep := make([]*Series, 0, len(f.cols))
	for _, c := range f.cols {
		if !drop[c.Name] {
			keep = append(keep, c)
		}
	}
	return New(keep...)
}

// WithColumn returns a frame with s added, or replacing the column of the
// same name in place.
func (f *Frame) WithColumn(s *Series) (*Frame, error) {
	cols := append([]*Series(nil), f.cols...)
	if i, ok := f.index[s.Name]; ok {
		cols[i] = s
	} else {
		cols = append(cols, s)
	}
	return New(cols...)
}

// Map translates a string column through mapping. Unmapped values and
// nulls become NaN, as pandas' Series.map does.
func (f *Frame) Map(name string, mapping map[string]float64) (*Series, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.IsNumeric() {
		return nil, errors.NewValueError("Map", fmt.Sprintf("column %q is numeric", name))
	}
	out := make([]float64, len(c.str))
	for i, v := range c.str {
		m, ok := mapping[v]
		if !ok {
			m = math.NaN()
		}
		out[i] = m
	}
	return NewNumeric(name, out), nil
}

// Apply runs fn over a numeric column. NaN stays NaN.
func (f *Frame) Apply(name string, fn func(float64) float64) (*Series, error) {
	col, err := f.numericColumn("Apply", name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(col))
	for i, v := range col {
		if math.IsNaN(v) {
			out[i] = v
			continue
		}
		out[i] = fn(v)
	}
	return NewNumeric(name, out), nil
}

// DropNA returns the rows without any missing value.
func (f *Frame) DropNA() *Frame {
	rows, _ := f.Shape()
	idx := make([]int, 0, rows)
	for i := 0; i < rows; i++ {
		ok := true
		for _, c := range f.cols {
			if c.IsNull(i) {
				ok = false
				break
			}
		}
		if ok {
			idx = append(idx, i)
		}
	}
	return f.takeRows(idx)
}

// NullCount is the number of missing values in one column.
type NullCount struct {
	Column string
	Nulls  int
}

// IsNull counts missing values per column (isnull().sum()).
func (f *Frame) IsNull() []NullCount {
	out := make([]NullCount, len(f.cols))
	for j, c := range f.cols {
		out[j].Column = c.Name
		for i := 0; i < c.Len(); i++ {
			if c.IsNull(i) {
				out[j].Nulls++
			}
		}
	}
	return out
}

// HasNaN reports whether any numeric column holds NaN (np.isnan(df).any()).
func (f *Frame) HasNaN() bool {
	for _, c := range f.cols {
		if !c.IsNumeric() {
			continue
		}
		for _, v := range c.num {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// Unique returns the distinct values of a column in order of appearance.
func (f *Frame) Unique(name string) ([]string, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for i := 0; i < c.Len(); i++ {
		v := c.Format(i)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}

// Matrix copies numeric columns into a rows×len(names) dense matrix.
func (f *Frame) Matrix(names ...string) (*mat.Dense, error) {
	rows, _ := f.Shape()
	if rows == 0 || len(names) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "dataframe.Matrix")
	}
	m := mat.NewDense(rows, len(names), nil)
	for j, n := range names {
		col, err := f.numericColumn("Matrix", n)
		if err != nil {
			return nil, err
		}
		for i, v := range col {
			m.Set(i, j, v)
		}
	}
	return m, nil
}
