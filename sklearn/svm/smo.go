package svm

import (
	"math"
)

// tau guards the step size when the kernel is not positive definite.
const tau = 1e-12

// smoProblem is the C-SVC dual
//
//	min ½ αᵀQα - eᵀα  s.t. yᵀα = 0, 0 <= α <= C
//
// with Q_ij = y_i y_j K(x_i, x_j).
type smoProblem struct {
	y       []float64
	qd      []float64 // Q_ii
	q       *rowCache
	C       float64
	eps     float64
	maxIter int
}

type smoSolution struct {
	alpha      []float64
	rho        float64
	iterations int
	converged  bool
}

// solve runs SMO with second order working set selection (Fan, Chen and Lin 2005).
func (p *smoProblem) solve() smoSolution {
	l := len(p.y)
	alpha := make([]float64, l)
	grad := make([]float64, l)
	for i := range grad {
		grad[i] = -1
	}

	maxIter := p.maxIter
	if maxIter <= 0 {
		maxIter = max(10_000_000, 100*l)
	}

	iter := 0
	converged := false
	for iter < maxIter {
		i, j, optimal := p.selectWorkingSet(alpha, grad)
		if optimal {
			converged = true
			break
		}
		iter++

		qi := p.q.row(i)
		qj := p.q.row(j)
		oldAi, oldAj := alpha[i], alpha[j]
		C := p.C

		if p.y[i] != p.y[j] {
			quad := p.qd[i] + p.qd[j] + 2*qi[j]
			if quad <= 0 {
				quad = tau
			}
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = diff
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = -diff
			}
			if diff > 0 {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = C - diff
				}
			} else if alpha[j] > C {
				alpha[j] = C
				alpha[i] = C + diff
			}
		} else {
			quad := p.qd[i] + p.qd[j] - 2*qi[j]
			if quad <= 0 {
				quad = tau
			}
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > C {
				if alpha[i] > C {
					alpha[i] = C
					alpha[j] = sum - C
				}
			} else if alpha[j] < 0 {
				alpha[j] = 0
				alpha[i] = sum
			}
			if sum > C {
				if alpha[j] > C {
					alpha[j] = C
					alpha[i] = sum - C
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = sum
			}
		}

		dAi, dAj := alpha[i]-oldAi, alpha[j]-oldAj
		for k := 0; k < l; k++ {
			grad[k] += qi[k]*dAi + qj[k]*dAj
		}
	}

	return smoSolution{
		alpha:      alpha,
		rho:        p.rho(alpha, grad),
		iterations: iter,
		converged:  converged,
	}
}

func (p *smoProblem) upper(alpha []float64, t int) bool { return alpha[t] >= p.C }
func (p *smoProblem) lower(alpha []float64, t int) bool { return alpha[t] <= 0 }

// selectWorkingSet returns the maximal violating pair under the second
// order approximation, or optimal when the KKT gap is below eps.
func (p *smoProblem) selectWorkingSet(alpha, grad []float64) (int, int, bool) {
	gmax, gmax2 := math.Inf(-1), math.Inf(-1)
	gmaxIdx, gminIdx := -1, -1
	objDiffMin := math.Inf(1)

	for t := range p.y {
		if p.y[t] > 0 {
			if !p.upper(alpha, t) && -grad[t] >= gmax {
				gmax = -grad[t]
				gmaxIdx = t
			}
		} else if !p.lower(alpha, t) && grad[t] >= gmax {
			gmax = grad[t]
			gmaxIdx = t
		}
	}
	if gmaxIdx == -1 {
		return 0, 0, true
	}
	i := gmaxIdx
	qi := p.q.row(i)

	for j := range p.y {
		var gradDiff, quad float64
		if p.y[j] > 0 {
			if p.lower(alpha, j) {
				continue
			}
			gradDiff = gmax + grad[j]
			gmax2 = math.Max(gmax2, grad[j])
			quad = p.qd[i] + p.qd[j] - 2*p.y[i]*qi[j]
		} else {
			if p.upper(alpha, j) {
				continue
			}
			gradDiff = gmax - grad[j]
			gmax2 = math.Max(gmax2, -grad[j])
			quad = p.qd[i] + p.qd[j] + 2*p.y[i]*qi[j]
		}
		if gradDiff <= 0 {
			continue
		}
		if quad <= 0 {
			quad = tau
		}
		if objDiff := -(gradDiff * gradDiff) / quad; objDiff <= objDiffMin {
			gminIdx = j
			objDiffMin = objDiff
		}
	}

	if gmax+gmax2 < p.eps || gminIdx == -1 {
		return 0, 0, true
	}
	return i, gminIdx, false
}

// rho is the offset b of the decision function Σ α_i y_i K(x_i, x) - rho.
func (p *smoProblem) rho(alpha, grad []float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	nFree := 0
	var sumFree float64
	for i := range p.y {
		yG := p.y[i] * grad[i]
		switch {
		case p.upper(alpha, i):
			if p.y[i] < 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		case p.lower(alpha, i):
			if p.y[i] > 0 {
				ub = math.Min(ub, yG)
			} else {
				lb = math.Max(lb, yG)
			}
		default:
			nFree++
			sumFree += yG
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}
