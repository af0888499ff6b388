package optimize

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zeromicro/go-zero/core/logx"

	"pfolio-api/pkg/fault"
	"pfolio-api/pkg/market"
)

// frontierSpanFactor extends the target sweep past the max-Sharpe return, so
// the frontier shows the aggressive tail beyond the tangency portfolio.
const frontierSpanFactor = 1.2

// FrontierPoint is one sweep target. Infeasible or failed targets stay in the
// output as skipped markers so the sweep is auditable.
type FrontierPoint struct {
	TargetReturn   float64            `json:"target_return"`
	ExpectedReturn float64            `json:"expected_return,omitempty"`
	Volatility     float64            `json:"volatility,omitempty"`
	SharpeRatio    float64            `json:"sharpe_ratio,omitempty"`
	Weights        map[string]float64 `json:"weights,omitempty"`
	Skipped        bool               `json:"skipped,omitempty"`
	SkipReason     string             `json:"skip_reason,omitempty"`
}

// Frontier is the efficient frontier with its two anchor portfolios.
type Frontier struct {
	Points    []FrontierPoint `json:"points"`
	MinVol    *Result         `json:"min_volatility"`
	MaxSharpe *Result         `json:"max_sharpe"`
}

// BuildFrontier sweeps target returns from the minimum-volatility portfolio
// outward and solves a minimum-variance portfolio at each. Solved points come
// back sorted by ascending risk, skipped markers after them. expectedReturns
// optionally overrides the historical mean estimates per ticker, annualized.
func (e *Engine) BuildFrontier(rm *market.ReturnMatrix, numPortfolios int, maxWeight float64, expectedReturns map[string]float64) (*Frontier, error) {
	if numPortfolios < 2 {
		return nil, &fault.InvalidParameterError{Param: "numPortfolios", Reason: fmt.Sprintf("need at least 2 points, got %d", numPortfolios)}
	}
	mom, err := e.moments(rm, maxWeight, expectedReturns)
	if err != nil {
		return nil, err
	}

	minVolWeights, err := e.minVolatility(mom)
	if err != nil {
		return nil, err
	}
	if err := checkWeights(Markowitz, minVolWeights); err != nil {
		return nil, err
	}
	minVol := e.describe(Markowitz, mom, minVolWeights)

	maxSharpeWeights, err := e.maxSharpe(mom, mom.mu)
	if err != nil {
		return nil, err
	}
	if err := checkWeights(Markowitz, maxSharpeWeights); err != nil {
		return nil, err
	}
	maxSharpe := e.describe(Markowitz, mom, maxSharpeWeights)

	span := maxSharpe.ExpectedReturn - minVol.ExpectedReturn
	if span < 0 {
		span = 0
	}
	lowTarget := minVol.ExpectedReturn
	highTarget := minVol.ExpectedReturn + frontierSpanFactor*span
	step := (highTarget - lowTarget) / float64(numPortfolios-1)

	frontier := &Frontier{MinVol: minVol, MaxSharpe: maxSharpe}
	var solved []FrontierPoint
	for i := 0; i < numPortfolios; i++ {
		target := lowTarget + float64(i)*step
		point := FrontierPoint{TargetReturn: target}

		weights, err := e.targetReturn(mom, target)
		if err == nil {
			err = checkWeights(TargetReturn, weights)
		}
		if err != nil {
			point.Skipped = true
			point.SkipReason = skipReason(err)
			logx.Infof("frontier: target %.4f skipped: %s", target, point.SkipReason)
			frontier.Points = append(frontier.Points, point)
			continue
		}

		res := e.describe(TargetReturn, mom, weights)
		point.ExpectedReturn = res.ExpectedReturn
		point.Volatility = res.Volatility
		point.SharpeRatio = res.SharpeRatio
		point.Weights = res.Weights
		solved = append(solved, point)
	}

	sort.Slice(solved, func(i, j int) bool { return solved[i].Volatility < solved[j].Volatility })
	frontier.Points = append(solved, frontier.Points...)

	// The tangency anchor comes from a restarted direct search; when a sweep
	// point lands on a better Sharpe ratio, promote it so the anchor
	// dominates every reported point.
	for _, p := range solved {
		if p.SharpeRatio > frontier.MaxSharpe.SharpeRatio {
			frontier.MaxSharpe = &Result{
				Method:         Markowitz,
				Weights:        p.Weights,
				ExpectedReturn: p.ExpectedReturn,
				Volatility:     p.Volatility,
				SharpeRatio:    p.SharpeRatio,
			}
		}
	}
	return frontier, nil
}

func skipReason(err error) string {
	var infeasible *fault.InfeasibleError
	if errors.As(err, &infeasible) {
		return fmt.Sprintf("target %.4f outside attainable range [%.4f, %.4f]", infeasible.Target, infeasible.Low, infeasible.High)
	}
	return err.Error()
}
