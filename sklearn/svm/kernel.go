package svm

import (
	"container/list"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
)

// Kernel names accepted by SVC.
const (
	KernelLinear  = "linear"
	KernelRBF     = "rbf"
	KernelPoly    = "poly"
	KernelSigmoid = "sigmoid"
)

// kernel evaluates K(a, b). sqA and sqB are the squared norms of a and b.
type kernel struct {
	kind   string
	gamma  float64
	coef0  float64
	degree int
}

func (k kernel) eval(a, b []float64, sqA, sqB float64) float64 {
	switch k.kind {
	case KernelLinear:
		return floats.Dot(a, b)
	case KernelRBF:
		d := sqA + sqB - 2*floats.Dot(a, b)
		if d < 0 {
			d = 0
		}
		return math.Exp(-k.gamma * d)
	case KernelPoly:
		return math.Pow(k.gamma*floats.Dot(a, b)+k.coef0, float64(k.degree))
	default:
		return math.Tanh(k.gamma*floats.Dot(a, b) + k.coef0)
	}
}

// resolveGamma turns "scale", "auto" or a number into a value.
// "scale" is 1 / (n_features * X.var()) over every element of X.
func resolveGamma(gamma interface{}, X *mat.Dense) (float64, error) {
	_, cols := X.Dims()
	switch g := gamma.(type) {
	case string:
		switch g {
		case "scale":
			v := stat.PopVariance(X.RawMatrix().Data, nil)
			if v == 0 {
				return 1, nil
			}
			return 1 / (float64(cols) * v), nil
		case "auto":
			return 1 / float64(cols), nil
		}
	case float64:
		if g > 0 {
			return g, nil
		}
	case int:
		if g > 0 {
			return float64(g), nil
		}
	}
	return 0, errors.NewValidationError("gamma", "must be 'scale', 'auto' or a positive number", gamma)
}

// rowCache は Q 行列の行を LRU で保持する
type rowCache struct {
	capacity int
	rows     map[int]*list.Element
	order    *list.List
	compute  func(i int, dst []float64)
	size     int
}

type cachedRow struct {
	index int
	data  []float64
}

func newRowCache(n int, cacheBytes int, compute func(i int, dst []float64)) *rowCache {
	capacity := cacheBytes / (8 * max(n, 1))
	if capacity < 2 {
		capacity = 2
	}
	return &rowCache{
		capacity: capacity,
		rows:     make(map[int]*list.Element, min(capacity, n)),
		order:    list.New(),
		compute:  compute,
		size:     n,
	}
}

func (c *rowCache) row(i int) []float64 {
	if e, ok := c.rows[i]; ok {
		c.order.MoveToFront(e)
		return e.Value.(*cachedRow).data
	}
	var data []float64
	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		evicted := oldest.Value.(*cachedRow)
		delete(c.rows, evicted.index)
		c.order.Remove(oldest)
		data = evicted.data
	} else {
		data = make([]float64, c.size)
	}
	c.compute(i, data)
	c.rows[i] = c.order.PushFront(&cachedRow{index: i, data: data})
	return data
}
