package optimize

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"pfolio-api/pkg/fault"
)

// penaltyWeight is the quadratic penalty applied to violated equality
// constraints in the solver objective.
const penaltyWeight = 1000.0

// projectToBounds clamps candidate weights into [0, maxWeight].
func projectToBounds(x []float64, maxWeight float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Min(math.Max(v, 0), maxWeight)
	}
	return out
}

// solve minimizes the penalized objective with Nelder-Mead starting from the
// equal-weight portfolio, restarting once when the first attempt stalls.
func solve(method Method, objective func([]float64) float64, n int) ([]float64, error) {
	problem := optimize.Problem{Func: objective}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	accepted := func(status optimize.Status) bool {
		switch status {
		case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence, optimize.FunctionThreshold:
			return true
		}
		return false
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
	if err != nil || !accepted(result.Status) {
		// Restart the simplex from wherever the first attempt stalled.
		restart := initial
		if result != nil && len(result.X) == n {
			restart = result.X
		}
		result, err = optimize.Minimize(problem, restart, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			return nil, &fault.OptimizationFailedError{Method: string(method), Diagnostic: err.Error()}
		}
		if !accepted(result.Status) {
			return nil, &fault.OptimizationFailedError{
				Method:     string(method),
				Diagnostic: fmt.Sprintf("solver did not converge: status=%v", result.Status),
			}
		}
	}
	return result.X, nil
}

// finish projects the solver output to bounds and renormalizes to full
// investment.
func finish(x []float64, maxWeight float64) []float64 {
	w := projectToBounds(x, maxWeight)
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		return w
	}
	for i := range w {
		w[i] /= sum
	}
	// Renormalization can push a weight back over the cap; clip and spread
	// until stable.
	for iter := 0; iter < 10; iter++ {
		over := false
		excess := 0.0
		free := 0.0
		for _, v := range w {
			if v > maxWeight+1e-12 {
				over = true
				excess += v - maxWeight
			} else if v < maxWeight-1e-12 {
				free += v
			}
		}
		if !over {
			break
		}
		for i, v := range w {
			if v > maxWeight+1e-12 {
				w[i] = maxWeight
			} else if free > 0 {
				w[i] = v + excess*(v/free)
			}
		}
	}
	return w
}

// maxSharpe maximizes (mu'w - rf) / sqrt(w'Sigma w) under the bound and
// full-investment constraints, via a penalized objective.
func (e *Engine) maxSharpe(mom *momentSet, mu []float64) ([]float64, error) {
	n := len(mu)
	objective := func(x []float64) float64 {
		w := projectToBounds(x, mom.maxWeight)

		ret := portfolioReturn(mu, w)
		variance := portfolioVariance(mom.sigma, w)

		obj := 0.0
		if variance > 1e-12 {
			obj = -(ret - e.cfg.RiskFreeRate) / math.Sqrt(variance)
		}

		sum := 0.0
		for _, v := range w {
			sum += v
		}
		obj += penaltyWeight * (sum - 1) * (sum - 1)
		return obj
	}

	x, err := solve(Markowitz, objective, n)
	if err != nil {
		return nil, err
	}
	return finish(x, mom.maxWeight), nil
}

// minVolatility minimizes w'Sigma w under the same constraints.
func (e *Engine) minVolatility(mom *momentSet) ([]float64, error) {
	objective := func(x []float64) float64 {
		w := projectToBounds(x, mom.maxWeight)

		obj := portfolioVariance(mom.sigma, w)
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		obj += penaltyWeight * (sum - 1) * (sum - 1)
		return obj
	}

	x, err := solve(Markowitz, objective, len(mom.mu))
	if err != nil {
		return nil, err
	}
	return finish(x, mom.maxWeight), nil
}

// targetReturn minimizes variance subject to the portfolio return hitting the
// target. Targets outside the attainable range fail fast as infeasible
// instead of being pushed to the nearest bound by the penalty.
func (e *Engine) targetReturn(mom *momentSet, target float64) ([]float64, error) {
	low, high := feasibleReturnRange(mom.mu, mom.maxWeight)
	if target < low-1e-9 || target > high+1e-9 {
		return nil, &fault.InfeasibleError{Target: target, Low: low, High: high}
	}

	objective := func(x []float64) float64 {
		w := projectToBounds(x, mom.maxWeight)

		obj := portfolioVariance(mom.sigma, w)

		sum := 0.0
		for _, v := range w {
			sum += v
		}
		obj += penaltyWeight * (sum - 1) * (sum - 1)

		ret := portfolioReturn(mom.mu, w)
		obj += penaltyWeight * (ret - target) * (ret - target)
		return obj
	}

	x, err := solve(TargetReturn, objective, len(mom.mu))
	if err != nil {
		return nil, err
	}
	return finish(x, mom.maxWeight), nil
}
