// Package sparse implements a compressed sparse row matrix that satisfies
// gonum's mat.Matrix, for bag-of-words features too wide to hold densely.
package sparse

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// CSR is an immutable compressed sparse row matrix.
// Row i holds the entries Data[Indptr[i]:Indptr[i+1]] at columns
// Indices[Indptr[i]:Indptr[i+1]], with column indices strictly increasing.
type CSR struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64
}

var _ mat.Matrix = (*CSR)(nil)

// NewCSR wraps the three CSR arrays without copying them.
// It panics with mat.ErrShape if the arrays are inconsistent with the shape.
func NewCSR(rows, cols int, indptr, indices []int, data []float64) *CSR {
	if len(indptr) != rows+1 || len(indices) != len(data) || indptr[rows] != len(data) {
		panic(mat.ErrShape)
	}
	return &CSR{rows: rows, cols: cols, indptr: indptr, indices: indices, data: data}
}

// Dims returns the number of rows and columns.
func (m *CSR) Dims() (r, c int) { return m.rows, m.cols }

// At returns the element at row i, column j.
func (m *CSR) At(i, j int) float64 {
	if i < 0 || i >= m.rows {
		panic(mat.ErrRowAccess)
	}
	if j < 0 || j >= m.cols {
		panic(mat.ErrColAccess)
	}
	lo, hi := m.indptr[i], m.indptr[i+1]
	k := sort.SearchInts(m.indices[lo:hi], j)
	if k < hi-lo && m.indices[lo+k] == j {
		return m.data[lo+k]
	}
	return 0
}

// T returns the transpose view.
func (m *CSR) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// NNZ returns the number of stored entries.
func (m *CSR) NNZ() int { return len(m.data) }

// Row returns the column indices and values stored for row i.
// The returned slices alias the matrix and must not be modified.
func (m *CSR) Row(i int) (indices []int, values []float64) {
	lo, hi := m.indptr[i], m.indptr[i+1]
	return m.indices[lo:hi], m.data[lo:hi]
}

// SelectRows returns a new CSR holding the given rows in order.
func (m *CSR) SelectRows(rows []int) mat.Matrix {
	b := NewBuilder(m.cols)
	for _, r := range rows {
		idx, val := m.Row(r)
		b.AddRow(idx, val)
	}
	return b.Build()
}

// ToDense materialises the matrix.
func (m *CSR) ToDense() *mat.Dense {
	d := mat.NewDense(m.rows, m.cols, nil)
	for i := 0; i < m.rows; i++ {
		idx, val := m.Row(i)
		for k, j := range idx {
			d.Set(i, j, val[k])
		}
	}
	return d
}

// Builder accumulates rows of a CSR matrix.
type Builder struct {
	cols    int
	indptr  []int
	indices []int
	data    []float64
}

// NewBuilder returns a Builder for matrices with cols columns.
func NewBuilder(cols int) *Builder {
	return &Builder{cols: cols, indptr: []int{0}}
}

// AddRow appends a row. indices must be strictly increasing and within range.
func (b *Builder) AddRow(indices []int, values []float64) {
	for k, j := range indices {
		if j < 0 || j >= b.cols || (k > 0 && j <= indices[k-1]) {
			panic(mat.ErrColAccess)
		}
	}
	b.indices = append(b.indices, indices...)
	b.data = append(b.data, values...)
	b.indptr = append(b.indptr, len(b.data))
}

// Build returns the accumulated matrix.
func (b *Builder) Build() *CSR {
	return NewCSR(len(b.indptr)-1, b.cols, b.indptr, b.indices, b.data)
}
