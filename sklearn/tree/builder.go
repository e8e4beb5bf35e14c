// Package tree implements CART decision trees for classification.
package tree

import (
	"math"
	"math/rand/v2"
	"sort"
)

// leafMarker は葉ノードの子インデックス
const leafMarker = -1

// node is one entry of the flattened tree. Children are indices into
// Tree.nodes; a leaf has left == right == leafMarker.
type node struct {
	left, right int
	feature     int
	threshold   float64
	impurity    float64
	nSamples    int
	weightedN   float64
	value       []float64 // 重み付きクラス頻度
	depth       int
}

func (n *node) isLeaf() bool { return n.left == leafMarker }

// criterion computes node impurity from weighted class counts.
type criterion func(counts []float64, total float64) float64

func gini(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}

func entropy(counts []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c > 0 {
			p := c / total
			h -= p * math.Log2(p)
		}
	}
	return h
}

// builder grows a tree depth first.
type builder struct {
	X        [][]float64
	y        []int
	weight   []float64
	nClasses int
	crit     criterion

	maxDepth            int // <= 0: 無制限
	minSamplesSplit     int
	minSamplesLeaf      int
	maxFeatures         int
	minImpurityDecrease float64
	rng                 *rand.Rand

	nodes        []node
	importances  []float64
	totalWeighed float64
}

type split struct {
	feature   int
	threshold float64
	pos       int // samples[:pos] go left after sorting by feature
	gain      float64
}

const epsilon = 1e-7

func (b *builder) build(samples []int) {
	for _, i := range samples {
		b.totalWeighed += b.weight[i]
	}
	b.grow(samples, 0)
}

// grow appends the subtree for samples and returns its root index.
func (b *builder) grow(samples []int, depth int) int {
	counts := make([]float64, b.nClasses)
	var wn float64
	for _, i := range samples {
		counts[b.y[i]] += b.weight[i]
		wn += b.weight[i]
	}
	imp := b.crit(counts, wn)
	id := len(b.nodes)
	b.nodes = append(b.nodes, node{
		left:      leafMarker,
		right:     leafMarker,
		feature:   -1,
		impurity:  imp,
		nSamples:  len(samples),
		weightedN: wn,
		value:     counts,
		depth:     depth,
	})

	n := len(samples)
	if (b.maxDepth > 0 && depth >= b.maxDepth) ||
		n < b.minSamplesSplit ||
		n < 2*b.minSamplesLeaf ||
		imp <= epsilon {
		return id
	}

	best, ok := b.bestSplit(samples, counts, wn, imp)
	if !ok {
		return id
	}
	improvement := best.gain * wn / b.totalWeighed
	if improvement+epsilon < b.minImpurityDecrease {
		return id
	}

	f := best.feature
	sort.SliceStable(samples, func(a, c int) bool { return b.X[samples[a]][f] < b.X[samples[c]][f] })
	left := append([]int(nil), samples[:best.pos]...)
	right := append([]int(nil), samples[best.pos:]...)

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)

	nd := &b.nodes[id]
	nd.left, nd.right = l, r
	nd.feature = f
	nd.threshold = best.threshold

	lw, rw := b.nodes[l].weightedN, b.nodes[r].weightedN
	b.importances[f] += wn*imp - lw*b.nodes[l].impurity - rw*b.nodes[r].impurity
	return id
}

// bestSplit scans midpoints between consecutive distinct values of each
// candidate feature and keeps the largest impurity decrease.
func (b *builder) bestSplit(samples []int, counts []float64, wn, imp float64) (split, bool) {
	p := len(b.X[0])
	features := make([]int, p)
	for j := range features {
		features[j] = j
	}
	if b.maxFeatures > 0 && b.maxFeatures < p {
		b.rng.Shuffle(p, func(i, j int) { features[i], features[j] = features[j], features[i] })
		features = features[:b.maxFeatures]
	}

	best := split{feature: -1, gain: math.Inf(-1)}
	order := make([]int, len(samples))
	left := make([]float64, b.nClasses)
	right := make([]float64, b.nClasses)

	for _, f := range features {
		copy(order, samples)
		sort.Slice(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })
		if b.X[order[0]][f] == b.X[order[len(order)-1]][f] {
			continue // 定数特徴量
		}
		for k := range left {
			left[k] = 0
			right[k] = counts[k]
		}
		var lw float64
		for pos := 1; pos < len(order); pos++ {
			prev := order[pos-1]
			w := b.weight[prev]
			left[b.y[prev]] += w
			right[b.y[prev]] -= w
			lw += w

			lo, hi := b.X[prev][f], b.X[order[pos]][f]
			if lo == hi {
				continue
			}
			if pos < b.minSamplesLeaf || len(order)-pos < b.minSamplesLeaf {
				continue
			}
			rw := wn - lw
			gain := imp - (lw/wn)*b.crit(left, lw) - (rw/wn)*b.crit(right, rw)
			if gain > best.gain {
				thr := lo/2 + hi/2
				if thr == hi || math.IsInf(thr, 0) {
					thr = lo
				}
				best = split{feature: f, threshold: thr, pos: pos, gain: gain}
			}
		}
	}
	return best, best.feature >= 0
}
