// Package fault defines the error taxonomy shared by the analytics engines.
// Every engine returns one of these typed errors for caller-correctable
// conditions; the tool registry maps them onto structured error payloads.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies an error category in the taxonomy.
type Code string

const (
	CodeUnsupportedTicker  Code = "unsupported_ticker"
	CodeUnknownTicker      Code = "unknown_ticker"
	CodeInvalidParameter   Code = "invalid_parameter"
	CodeInsufficientData   Code = "insufficient_data"
	CodeInfeasible         Code = "infeasible"
	CodeOptimizationFailed Code = "optimization_failed"
	CodeNotFound           Code = "not_found"
	CodeProviderTimeout    Code = "provider_timeout"
)

// UnsupportedTickerError reports tickers that lack a trained model, together
// with the full supported set so the caller can self-correct.
type UnsupportedTickerError struct {
	Tickers   []string
	Available []string
}

func (e *UnsupportedTickerError) Error() string {
	return fmt.Sprintf("unsupported tickers: %s (supported: %d)", strings.Join(e.Tickers, ", "), len(e.Available))
}

// UnknownTickerError reports tickers referenced outside a snapshot's universe.
type UnknownTickerError struct {
	Tickers  []string
	Universe []string
}

func (e *UnknownTickerError) Error() string {
	return fmt.Sprintf("unknown tickers: %s", strings.Join(e.Tickers, ", "))
}

// InvalidParameterError reports a parameter that failed validation.
type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Param, e.Reason)
}

// InsufficientDataError reports too little history for a computation.
type InsufficientDataError struct {
	Need int
	Got  int
	What string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: need %d observations, got %d", e.What, e.Need, e.Got)
}

// InfeasibleError reports an optimization target no weight vector can reach.
type InfeasibleError struct {
	Target float64
	Low    float64
	High   float64
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("target %.6f outside feasible range [%.6f, %.6f]", e.Target, e.Low, e.High)
}

// OptimizationFailedError carries the solver diagnostic for a failed run.
type OptimizationFailedError struct {
	Method     string
	Diagnostic string
}

func (e *OptimizationFailedError) Error() string {
	return fmt.Sprintf("%s optimization failed: %s", e.Method, e.Diagnostic)
}

// NotFoundError reports a missing snapshot or model artifact.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ProviderTimeoutError reports an external provider that did not answer in
// time after bounded retries.
type ProviderTimeoutError struct {
	Provider string
	Attempts int
	Cause    error
}

func (e *ProviderTimeoutError) Error() string {
	return fmt.Sprintf("provider %s timed out after %d attempts: %v", e.Provider, e.Attempts, e.Cause)
}

func (e *ProviderTimeoutError) Unwrap() error { return e.Cause }

// CodeOf maps a taxonomy error to its code, unwrapping as needed.
// Returns empty for errors outside the taxonomy.
func CodeOf(err error) Code {
	var (
		unsupported  *UnsupportedTickerError
		unknown      *UnknownTickerError
		invalid      *InvalidParameterError
		insufficient *InsufficientDataError
		infeasible   *InfeasibleError
		failed       *OptimizationFailedError
		notFound     *NotFoundError
		timeout      *ProviderTimeoutError
	)
	switch {
	case errors.As(err, &unsupported):
		return CodeUnsupportedTicker
	case errors.As(err, &unknown):
		return CodeUnknownTicker
	case errors.As(err, &invalid):
		return CodeInvalidParameter
	case errors.As(err, &insufficient):
		return CodeInsufficientData
	case errors.As(err, &infeasible):
		return CodeInfeasible
	case errors.As(err, &failed):
		return CodeOptimizationFailed
	case errors.As(err, &notFound):
		return CodeNotFound
	case errors.As(err, &timeout):
		return CodeProviderTimeout
	}
	return ""
}
