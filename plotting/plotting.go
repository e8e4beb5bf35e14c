// Package plotting renders the exploratory charts of the walkthroughs
// (count plots, coloured scatter plots, bar charts) to PNG files.
package plotting

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// Option configures one chart.
type Option func(*chart)

type chart struct {
	title, xLabel, yLabel string
	width, height         vg.Length
}

// WithTitle sets the chart title.
func WithTitle(s string) Option { return func(c *chart) { c.title = s } }

// WithXLabel sets the x axis label.
func WithXLabel(s string) Option { return func(c *chart) { c.xLabel = s } }

// WithYLabel sets the y axis label.
func WithYLabel(s string) Option { return func(c *chart) { c.yLabel = s } }

// WithSize sets the image size.
func WithSize(w, h vg.Length) Option {
	return func(c *chart) { c.width, c.height = w, h }
}

// Plotter writes charts into a directory. A disabled Plotter draws nothing.
type Plotter struct {
	dir     string
	enabled bool
}

// New creates a Plotter writing into dir.
func New(dir string, enabled bool) *Plotter {
	return &Plotter{dir: dir, enabled: enabled}
}

func (p *Plotter) newChart(opts []Option) (*plot.Plot, chart) {
	c := chart{width: 6 * vg.Inch, height: 4 * vg.Inch}
	for _, opt := range opts {
		opt(&c)
	}
	pl := plot.New()
	pl.Title.Text = c.title
	pl.X.Label.Text = c.xLabel
	pl.Y.Label.Text = c.yLabel
	return pl, c
}

func (p *Plotter) save(pl *plot.Plot, c chart, name string) (string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create plot dir %s", p.dir)
	}
	path := filepath.Join(p.dir, name+".png")
	if err := pl.Save(c.width, c.height, path); err != nil {
		return "", errors.Wrapf(err, "save plot %s", path)
	}
	log.GetLoggerWithName("plotting").Info("Plot written", "path", path)
	return path, nil
}

// ValueCounts returns the distinct labels in sorted order and how often
// each occurs. Numeric labels sort numerically.
func ValueCounts(labels []string) ([]string, []float64) {
	counts := make(map[string]float64)
	for _, l := range labels {
		counts[l]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		fa, ea := strconv.ParseFloat(keys[a], 64)
		fb, eb := strconv.ParseFloat(keys[b], 64)
		if ea == nil && eb == nil {
			return fa < fb
		}
		return keys[a] < keys[b]
	})
	values := make([]float64, len(keys))
	for i, k := range keys {
		values[i] = counts[k]
	}
	return keys, values
}

// CountPlot draws one bar per distinct label with its frequency.
func (p *Plotter) CountPlot(name string, labels []string, opts ...Option) (string, error) {
	if len(labels) == 0 {
		return "", errors.Wrapf(errors.ErrEmptyData, "CountPlot")
	}
	keys, counts := ValueCounts(labels)
	return p.BarPlot(name, keys, counts, false, append([]Option{WithYLabel("count")}, opts...)...)
}

// BarPlot draws one bar per name. Horizontal bars grow the image height
// with the number of names.
func (p *Plotter) BarPlot(name string, names []string, values []float64, horizontal bool, opts ...Option) (string, error) {
	if !p.enabled {
		return "", nil
	}
	if len(names) != len(values) {
		return "", errors.NewDimensionError("BarPlot", len(names), len(values), 0)
	}
	if len(values) == 0 {
		return "", errors.Wrapf(errors.ErrEmptyData, "BarPlot")
	}
	pl, c := p.newChart(opts)
	bars, err := plotter.NewBarChart(finite(values), vg.Points(12))
	if err != nil {
		return "", errors.Wrap(err, "BarPlot")
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = 0
	if horizontal {
		bars.Horizontal = true
		pl.NominalY(names...)
		c.height = max(c.height, vg.Length(len(names))*vg.Points(14))
	} else {
		pl.NominalX(names...)
	}
	pl.Add(bars)
	return p.save(pl, c, name)
}

// GroupedBarPlot draws, for every group, one bar per hue. values is
// indexed [hue][group].
func (p *Plotter) GroupedBarPlot(name string, groups, hues []string, values [][]float64, opts ...Option) (string, error) {
	if !p.enabled {
		return "", nil
	}
	if len(values) != len(hues) {
		return "", errors.NewDimensionError("GroupedBarPlot", len(hues), len(values), 0)
	}
	pl, c := p.newChart(opts)
	w := vg.Points(10)
	for h, row := range values {
		if len(row) != len(groups) {
			return "", errors.NewDimensionError("GroupedBarPlot", len(groups), len(row), 1)
		}
		bars, err := plotter.NewBarChart(finite(row), w)
		if err != nil {
			return "", errors.Wrap(err, "GroupedBarPlot")
		}
		bars.Color = plotutil.Color(h)
		bars.LineStyle.Width = 0
		bars.Offset = w * vg.Length(float64(h)-float64(len(values)-1)/2)
		pl.Add(bars)
		pl.Legend.Add(hues[h], bars)
	}
	pl.Legend.Top = true
	pl.NominalX(groups...)
	return p.save(pl, c, name)
}

// ScatterHue draws (x[i], y[i]) coloured by hue[i], one legend entry per hue.
func (p *Plotter) ScatterHue(name string, x, y []float64, hue []string, opts ...Option) (string, error) {
	if !p.enabled {
		return "", nil
	}
	if len(x) != len(y) || len(x) != len(hue) {
		return "", errors.NewDimensionError("ScatterHue", len(x), min(len(y), len(hue)), 0)
	}
	pl, c := p.newChart(opts)
	keys, _ := ValueCounts(hue)
	for k, key := range keys {
		var pts plotter.XYs
		for i := range x {
			if hue[i] == key && !math.IsNaN(x[i]) && !math.IsNaN(y[i]) {
				pts = append(pts, plotter.XY{X: x[i], Y: y[i]})
			}
		}
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return "", errors.Wrap(err, "ScatterHue")
		}
		s.Color = plotutil.Color(k)
		s.Shape = plotutil.Shape(k)
		s.Radius = vg.Points(2)
		pl.Add(s)
		pl.Legend.Add(key, s)
	}
	return p.save(pl, c, name)
}

// finite は NaN/Inf を 0 に置き換える
func finite(v []float64) plotter.Values {
	out := make(plotter.Values, len(v))
	for i, x := range v {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out[i] = x
		}
	}
	return out
}
