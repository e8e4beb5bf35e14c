package matutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/supervised-learning/core/sparse"
)

func TestSelectRows(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	got := SelectRows(X, []int{2, 0, 2})
	want := mat.NewDense(3, 2, []float64{5, 6, 1, 2, 5, 6})
	assert.True(t, mat.Equal(got, want))

	// non-Dense input goes through At
	got = SelectRows(X.T(), []int{1})
	assert.True(t, mat.Equal(got, mat.NewDense(1, 3, []float64{2, 4, 6})))

	b := sparse.NewBuilder(2)
	b.AddRow([]int{1}, []float64{7})
	b.AddRow([]int{0}, []float64{8})
	sp := SelectRows(b.Build(), []int{1})
	_, isCSR := sp.(*sparse.CSR)
	assert.True(t, isCSR, "CSR rows should stay sparse")
	assert.Equal(t, 8.0, sp.At(0, 0))
}

func TestMinMaxAndColumn(t *testing.T) {
	X := mat.NewDense(2, 3, []float64{-1, 4, 2, 0, 3, 9})
	lo, hi := MinMax(X)
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 9.0, hi)
	assert.Equal(t, []float64{4, 3}, Column(X, 1))
	assert.True(t, mat.Equal(SelectColumns(X, []int{2, 0}), mat.NewDense(2, 2, []float64{2, -1, 9, 0})))
	assert.Equal(t, 2, ArgMax([]float64{1, 3, 5, 5}))
}
