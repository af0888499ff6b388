package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/zeromicro/go-zero/core/logx"

	"pfolio-api/pkg/fault"
)

// Handler executes a tool. The params value is the tool's parameter struct,
// already decoded and validated.
type Handler func(ctx context.Context, params any) (any, error)

// Tool is one registered analytic entry point.
type Tool struct {
	Name        string
	Description string
	Params      []ParamSpec
	newParams   func() any
	handler     Handler
}

// Spec is the discovery view of a tool.
type Spec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
}

// Registry validates caller input against each tool's schema and dispatches
// to the engines.
type Registry struct {
	validate *validator.Validate
	tools    map[string]*Tool
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tools:    make(map[string]*Tool),
	}
}

// Register adds a tool. newParams must return a pointer to a fresh parameter
// struct for each call. Registering a duplicate name is a programming error.
func (r *Registry) Register(name, description string, params []ParamSpec, newParams func() any, handler Handler) {
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("tools: duplicate tool %q", name))
	}
	r.tools[name] = &Tool{
		Name:        name,
		Description: description,
		Params:      params,
		newParams:   newParams,
		handler:     handler,
	}
}

// List returns the tool catalog sorted by name.
func (r *Registry) List() []Spec {
	out := make([]Spec, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Spec{Name: t.Name, Description: t.Description, Params: t.Params})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch decodes and validates raw JSON input for the named tool and runs
// it. Every outcome is an envelope; engine errors are mapped, never
// propagated as Go errors, so one failed call cannot take the caller down.
func (r *Registry) Dispatch(ctx context.Context, name string, raw json.RawMessage) *Envelope {
	tool, ok := r.tools[name]
	if !ok {
		return failure(name, errorBody(&fault.NotFoundError{Kind: "tool", ID: name}))
	}

	params := tool.newParams()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, params); err != nil {
			return failure(name, &ErrorBody{
				Error: fmt.Sprintf("malformed parameters: %v", err),
				Code:  string(fault.CodeInvalidParameter),
			})
		}
	}
	if err := r.validate.StructCtx(ctx, params); err != nil {
		return failure(name, validationBody(err))
	}

	result, err := tool.handler(ctx, params)
	if err != nil {
		logx.Errorf("tools: %s failed: %v", name, err)
		return failure(name, errorBody(err))
	}
	return success(name, result)
}
