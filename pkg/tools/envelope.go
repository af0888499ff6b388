package tools

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"pfolio-api/pkg/fault"
)

// Violation is one failed input constraint.
type Violation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

// ErrorBody is the uniform error payload. Code carries the fault taxonomy
// value; contextual fields such as the available ticker set ride alongside so
// callers can self-correct.
type ErrorBody struct {
	Error      string         `json:"error"`
	Code       string         `json:"code"`
	Fields     map[string]any `json:"fields,omitempty"`
	Violations []Violation    `json:"violations,omitempty"`
}

// Envelope is the single result shape every tool call returns. Exactly one
// of Result and Err is set.
type Envelope struct {
	OK     bool       `json:"ok"`
	Tool   string     `json:"tool"`
	Result any        `json:"result,omitempty"`
	Err    *ErrorBody `json:"error,omitempty"`
}

func success(tool string, result any) *Envelope {
	return &Envelope{OK: true, Tool: tool, Result: result}
}

func failure(tool string, body *ErrorBody) *Envelope {
	return &Envelope{OK: false, Tool: tool, Err: body}
}

// errorBody maps an engine error onto the envelope payload, pulling the
// typed fault fields into the contextual map.
func errorBody(err error) *ErrorBody {
	body := &ErrorBody{Error: err.Error(), Code: string(fault.CodeOf(err))}

	var unsupported *fault.UnsupportedTickerError
	var unknown *fault.UnknownTickerError
	var invalid *fault.InvalidParameterError
	var insufficient *fault.InsufficientDataError
	var infeasible *fault.InfeasibleError
	var optFailed *fault.OptimizationFailedError
	var notFound *fault.NotFoundError
	var timeout *fault.ProviderTimeoutError

	switch {
	case errors.As(err, &unsupported):
		body.Fields = map[string]any{
			"unsupported_tickers": unsupported.Tickers,
			"available_tickers":   unsupported.Available,
		}
	case errors.As(err, &unknown):
		body.Fields = map[string]any{
			"unknown_tickers": unknown.Tickers,
			"universe":        unknown.Universe,
		}
	case errors.As(err, &invalid):
		body.Fields = map[string]any{"param": invalid.Param, "reason": invalid.Reason}
	case errors.As(err, &insufficient):
		body.Fields = map[string]any{"need": insufficient.Need, "got": insufficient.Got, "what": insufficient.What}
	case errors.As(err, &infeasible):
		body.Fields = map[string]any{"target": infeasible.Target, "low": infeasible.Low, "high": infeasible.High}
	case errors.As(err, &optFailed):
		body.Fields = map[string]any{"method": optFailed.Method, "diagnostic": optFailed.Diagnostic}
	case errors.As(err, &notFound):
		body.Fields = map[string]any{"kind": notFound.Kind, "id": notFound.ID}
	case errors.As(err, &timeout):
		body.Fields = map[string]any{"provider": timeout.Provider, "attempts": timeout.Attempts}
	}
	return body
}

// validationBody renders validator output as a structured violation report.
func validationBody(err error) *ErrorBody {
	body := &ErrorBody{Error: "invalid parameters", Code: string(fault.CodeInvalidParameter)}

	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		for _, fe := range fieldErrors {
			body.Violations = append(body.Violations, Violation{
				Field:      fe.Field(),
				Constraint: fe.Tag(),
				Message:    fe.Error(),
			})
		}
	} else {
		body.Error = err.Error()
	}
	return body
}
