package dataframe

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passengers = `Survived,Pclass,Name,Sex,Age
0,3,Mr. Owen Harris Braund,male,22
1,1,Mrs. John Bradley Cumings,female,38
1,3,Miss. Laina Heikkinen,female,26
1,1,Mrs. Jacques Heath Futrelle,female,35
0,3,Mr. William Henry Allen,male,
`

func readPassengers(t *testing.T) *Frame {
	t.Helper()
	f, err := ReadCSV(strings.NewReader(passengers))
	require.NoError(t, err)
	return f
}

func TestReadCSV(t *testing.T) {
	f := readPassengers(t)
	rows, cols := f.Shape()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 5, cols)
	assert.Equal(t, []string{"Survived", "Pclass", "Name", "Sex", "Age"}, f.Columns())

	age, err := f.Column("Age")
	require.NoError(t, err)
	assert.True(t, age.IsNumeric())
	assert.True(t, math.IsNaN(age.Floats()[4]))

	sex, err := f.Column("Sex")
	require.NoError(t, err)
	assert.False(t, sex.IsNumeric())

	t.Run("explicit names", func(t *testing.T) {
		g, err := ReadCSV(strings.NewReader("842302,M,17.99\n842517,B,20.57\n"), WithNames("id", "diagnosis", "radius_mean"))
		require.NoError(t, err)
		r, _ := g.Shape()
		assert.Equal(t, 2, r)
		u, err := g.Unique("diagnosis")
		require.NoError(t, err)
		assert.Equal(t, []string{"M", "B"}, u)
	})

	t.Run("ragged record", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("a,b\n1\n"))
		assert.Error(t, err)
	})
}

func TestFrame_IsNullAndDropNA(t *testing.T) {
	f := readPassengers(t)
	nulls := f.IsNull()
	require.Len(t, nulls, 5)
	assert.Equal(t, NullCount{Column: "Age", Nulls: 1}, nulls[4])
	assert.Equal(t, 0, nulls[0].Nulls)
	assert.True(t, f.HasNaN())

	clean := f.DropNA()
	rows, _ := clean.Shape()
	assert.Equal(t, 4, rows)
	assert.False(t, clean.HasNaN())
}

func TestFrame_DropMapApply(t *testing.T) {
	f := readPassengers(t)
	f, err := f.Drop("Name")
	require.NoError(t, err)
	assert.NotContains(t, f.Columns(), "Name")

	_, err = f.Drop("Missing")
	assert.Error(t, err)

	sex, err := f.Map("Sex", map[string]float64{"male": 0, "female": 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1, 1, 0}, sex.Floats())
	f, err = f.WithColumn(sex)
	require.NoError(t, err)
	col, _ := f.Column("Sex")
	assert.True(t, col.IsNumeric())

	block, err := f.Apply("Age", func(a float64) float64 { return math.RoundToEven(a / 10) })
	require.NoError(t, err)
	block.Name = "Age_block"
	assert.Equal(t, 2.0, block.Floats()[0])
	assert.Equal(t, 4.0, block.Floats()[1])
	assert.Equal(t, 4.0, block.Floats()[3]) // 3.5 rounds to even
	assert.True(t, math.IsNaN(block.Floats()[4]))

	_, err = f.Apply("Missing", math.Abs)
	assert.Error(t, err)
}

func TestFrame_Describe(t *testing.T) {
	f, err := New(NewNumeric("x", []float64{1, 2, 3, 4, math.NaN()}), NewString("s", []string{"a", "b", "c", "d", "e"}))
	require.NoError(t, err)
	d := f.Describe()
	assert.Equal(t, []string{"", "x"}, d.Columns())
	x, _ := d.Column("x")
	want := []float64{4, 2.5, math.Sqrt(5.0 / 3.0), 1, 1.75, 2.5, 3.25, 4}
	for i, w := range want {
		assert.InDelta(t, w, x.Floats()[i], 1e-12, describeStats[i])
	}
}

func TestFrame_CorrWith(t *testing.T) {
	f, err := New(
		NewNumeric("target", []float64{0, 0, 1, 1}),
		NewNumeric("pos", []float64{1, 2, 3, 4}),
		NewNumeric("neg", []float64{4, 3, 2, 1}),
		NewString("label", []string{"a", "a", "b", "b"}),
	)
	require.NoError(t, err)
	corr, err := f.CorrWith("target")
	require.NoError(t, err)
	require.Len(t, corr, 3)
	assert.Equal(t, "neg", corr[0].Column)
	assert.Less(t, corr[0].Value, 0.0)
	assert.Equal(t, "target", corr[2].Column)
	assert.InDelta(t, 1.0, corr[2].Value, 1e-12)

	m := f.Corr()
	assert.Equal(t, []string{"", "target", "pos", "neg"}, m.Columns())
	pos, _ := m.Column("pos")
	assert.InDelta(t, -1.0, pos.Floats()[2], 1e-12)

	_, err = f.CorrWith("label")
	assert.Error(t, err)
}

func TestFrame_GroupMean(t *testing.T) {
	f := readPassengers(t)
	groups, err := f.GroupMean("Sex", "Survived")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, Group{Key: "female", Mean: 1, Count: 3}, groups[0])
	assert.Equal(t, Group{Key: "male", Mean: 0, Count: 2}, groups[1])

	byClass, err := f.GroupMean("Pclass", "Survived")
	require.NoError(t, err)
	assert.Equal(t, "1.0", byClass[0].Key)
	assert.InDelta(t, 1.0/3.0, byClass[1].Mean, 1e-12)

	two, err := f.GroupMean2("Pclass", "Sex", "Survived")
	require.NoError(t, err)
	require.Len(t, two, 3)
	assert.Equal(t, Group{Key: "3.0", Hue: "female", Mean: 1, Count: 1}, two[1])
	assert.Equal(t, Group{Key: "3.0", Hue: "male", Mean: 0, Count: 2}, two[2])
}

func TestFrame_MatrixAndString(t *testing.T) {
	f := readPassengers(t)
	m, err := f.Matrix("Pclass", "Survived")
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 3.0, m.At(0, 0))

	_, err = f.Matrix("Sex")
	assert.Error(t, err)

	s := f.Head(2).String()
	assert.Contains(t, s, "Survived")
	assert.Contains(t, s, "female")
	assert.Contains(t, s, "[2 rows x 5 columns]")
}

func TestNew_Errors(t *testing.T) {
	_, err := New(NewNumeric("a", []float64{1}), NewNumeric("b", []float64{1, 2}))
	assert.Error(t, err)
	_, err = New(NewNumeric("a", []float64{1}), NewNumeric("a", []float64{2}))
	assert.Error(t, err)
}
