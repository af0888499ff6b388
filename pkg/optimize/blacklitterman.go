package optimize

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"pfolio-api/pkg/fault"
)

// Black-Litterman model constants. Views use the identity pick matrix with
// uncertainty Omega = tau * diag(Sigma); the market prior assumes equal
// capitalization weights.
const blTau = 0.05

// blackLitterman blends equilibrium returns with the historical means as
// views, then hands the posterior to the max-Sharpe solver.
//
// Posterior: mu_BL = [(tau*Sigma)^-1 + P' Omega^-1 P]^-1
//                    [(tau*Sigma)^-1 pi + P' Omega^-1 q]
// with P = I, q = historical annualized means, delta = risk aversion.
func (e *Engine) blackLitterman(mom *momentSet) ([]float64, error) {
	n := len(mom.mu)

	// Equilibrium returns pi = delta * Sigma * w_mkt with equal market weights.
	wMkt := make([]float64, n)
	for i := range wMkt {
		wMkt[i] = 1 / float64(n)
	}
	pi := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			pi[i] += e.cfg.RiskAversion * mom.sigma.At(i, j) * wMkt[j]
		}
	}

	// With P = I and Omega = tau*diag(Sigma), the posterior reduces to
	// solving (A + B) mu = A pi + B q with A = (tau*Sigma)^-1 and
	// B = Omega^-1 diagonal.
	tauSigma := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			tauSigma.Set(i, j, blTau*mom.sigma.At(i, j))
		}
	}
	var a mat.Dense
	if err := a.Inverse(tauSigma); err != nil {
		return nil, &fault.OptimizationFailedError{
			Method:     string(BlackLitterman),
			Diagnostic: fmt.Sprintf("tau*Sigma is singular: %v", err),
		}
	}

	lhs := mat.NewDense(n, n, nil)
	rhs := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		omegaInv := 1 / (blTau * mom.sigma.At(i, i))
		for j := 0; j < n; j++ {
			v := a.At(i, j)
			if i == j {
				v += omegaInv
			}
			lhs.Set(i, j, v)
		}
		var aPi float64
		for j := 0; j < n; j++ {
			aPi += a.At(i, j) * pi[j]
		}
		rhs.SetVec(i, aPi+omegaInv*mom.mu[i])
	}

	var posterior mat.VecDense
	if err := posterior.SolveVec(lhs, rhs); err != nil {
		return nil, &fault.OptimizationFailedError{
			Method:     string(BlackLitterman),
			Diagnostic: fmt.Sprintf("posterior system is singular: %v", err),
		}
	}

	muBL := make([]float64, n)
	for i := range muBL {
		muBL[i] = posterior.AtVec(i)
	}
	weights, err := e.maxSharpe(mom, muBL)
	if err != nil {
		var failed *fault.OptimizationFailedError
		if errors.As(err, &failed) {
			failed.Method = string(BlackLitterman)
		}
		return nil, err
	}
	return weights, nil
}
