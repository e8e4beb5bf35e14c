package plotting

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueCounts(t *testing.T) {
	tests := []struct {
		name       string
		labels     []string
		wantKeys   []string
		wantCounts []float64
	}{
		{"strings", []string{"pos", "neg", "pos"}, []string{"neg", "pos"}, []float64{1, 2}},
		{"numeric order", []string{"10", "2", "2"}, []string{"2", "10"}, []float64{2, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, counts := ValueCounts(tt.labels)
			assert.Equal(t, tt.wantKeys, keys)
			assert.Equal(t, tt.wantCounts, counts)
		})
	}
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(b), 8)
	assert.Equal(t, []byte("\x89PNG"), b[:4])
}

func TestPlotter_WritesPNG(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	p := New(dir, true)

	path, err := p.CountPlot("count", []string{"0", "1", "1"}, WithTitle("Survived"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "count.png"), path)
	assertPNG(t, path)

	path, err = p.BarPlot("importances", []string{"a", "b", "c"}, []float64{0.5, math.Inf(1), 0.1}, true)
	require.NoError(t, err)
	assertPNG(t, path)

	path, err = p.GroupedBarPlot("grouped", []string{"1", "2"}, []string{"male", "female"}, [][]float64{{0.1, 0.2}, {0.7, 0.9}})
	require.NoError(t, err)
	assertPNG(t, path)

	path, err = p.ScatterHue("scatter", []float64{1, 2, 3}, []float64{3, 2, 1}, []string{"M", "B", "M"},
		WithXLabel("x"), WithYLabel("y"))
	require.NoError(t, err)
	assertPNG(t, path)
}

func TestPlotter_Disabled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "none")
	p := New(dir, false)
	path, err := p.BarPlot("x", []string{"a"}, []float64{1}, false)
	require.NoError(t, err)
	assert.Empty(t, path)
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestPlotter_Errors(t *testing.T) {
	p := New(t.TempDir(), true)
	_, err := p.BarPlot("x", []string{"a", "b"}, []float64{1}, false)
	assert.Error(t, err)
	_, err = p.CountPlot("x", nil)
	assert.Error(t, err)
	_, err = p.GroupedBarPlot("x", []string{"a"}, []string{"h1", "h2"}, [][]float64{{1}})
	assert.Error(t, err)
	_, err = p.ScatterHue("x", []float64{1}, []float64{1, 2}, []string{"a"})
	assert.Error(t, err)
}
