package model_selection

import (
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/supervised-learning/core/random"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// Distribution is a continuous or discrete distribution to sample a
// hyperparameter from.
type Distribution interface {
	Rvs(rng *rand.Rand) interface{}
}

// Uniform samples floats from [Loc, Loc+Scale).
type Uniform struct{ Loc, Scale float64 }

func (u Uniform) Rvs(rng *rand.Rand) interface{} { return u.Loc + u.Scale*rng.Float64() }

// LogUniform samples floats whose logarithm is uniform on [log Low, log High).
type LogUniform struct{ Low, High float64 }

func (l LogUniform) Rvs(rng *rand.Rand) interface{} {
	lo, hi := math.Log(l.Low), math.Log(l.High)
	return math.Exp(lo + (hi-lo)*rng.Float64())
}

// IntUniform samples ints from [Low, High).
type IntUniform struct{ Low, High int }

func (u IntUniform) Rvs(rng *rand.Rand) interface{} { return u.Low + rng.IntN(u.High-u.Low) }

// ParameterGrid enumerates every combination of grid values. Keys are
// visited in sorted order and the last key varies fastest.
func ParameterGrid(grid map[string][]interface{}) []map[string]interface{} {
	keys := sortedKeys(grid)
	out := []map[string]interface{}{{}}
	for _, k := range keys {
		values := grid[k]
		next := make([]map[string]interface{}, 0, len(out)*len(values))
		for _, base := range out {
			for _, v := range values {
				p := make(map[string]interface{}, len(base)+1)
				for bk, bv := range base {
					p[bk] = bv
				}
				p[k] = v
				next = append(next, p)
			}
		}
		out = next
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParameterSampler draws nIter parameter settings from distributions.
//
// Each value is either a []interface{} of candidates or a Distribution.
// When every value is a list, settings are sampled from the grid without
// replacement and nIter is capped at the grid size.
func ParameterSampler(distributions map[string]interface{}, nIter int, randomState int64) ([]map[string]interface{}, error) {
	if nIter < 1 {
		return nil, errors.NewValidationError("n_iter", "must be at least 1", nIter)
	}
	allLists := true
	grid := make(map[string][]interface{}, len(distributions))
	for k, v := range distributions {
		switch d := v.(type) {
		case []interface{}:
			if len(d) == 0 {
				return nil, errors.NewValidationError(k, "candidate list must not be empty", v)
			}
			grid[k] = d
		case Distribution:
			allLists = false
		default:
			return nil, errors.NewValidationError(k, "must be a []interface{} or a Distribution", v)
		}
	}

	rng := random.New(randomState)
	if allLists {
		all := ParameterGrid(grid)
		if nIter > len(all) {
			log.GetLoggerWithName("model_selection.ParameterSampler").Warn(
				"The total space of parameters is smaller than n_iter, running all candidates",
				"grid_size", len(all), "n_iter", nIter)
			nIter = len(all)
		}
		idx := rng.Perm(len(all))[:nIter]
		out := make([]map[string]interface{}, nIter)
		for i, j := range idx {
			out[i] = all[j]
		}
		return out, nil
	}

	keys := sortedKeys(distributions)
	out := make([]map[string]interface{}, nIter)
	for i := range out {
		p := make(map[string]interface{}, len(keys))
		for _, k := range keys {
			switch d := distributions[k].(type) {
			case Distribution:
				p[k] = d.Rvs(rng)
			case []interface{}:
				p[k] = d[rng.IntN(len(d))]
			}
		}
		out[i] = p
	}
	return out, nil
}
