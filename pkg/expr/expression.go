package expr

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

// Expression is a compiled node: a function and its parameters. Parameters
// are values, including nested expressions. An Expression is not modified
// after construction.
type Expression struct {
	fn     Function
	params []types.Value
}

// NewExpression builds an Expression programmatically. fn may be nil.
func NewExpression(fn Function, params ...types.Value) *Expression {
	return &Expression{fn: fn, params: append([]types.Value(nil), params...)}
}

// NewMemberExpression builds an Expression that calls the member name on
// target with args.
func NewMemberExpression(target types.Value, name string, args ...types.Value) *Expression {
	params := append([]types.Value{target}, args...)
	return &Expression{fn: memberFunction(name), params: params}
}

// Function returns the node's function, nil for a simplifying node.
func (e *Expression) Function() Function {
	return e.fn
}

// Params returns a copy of the parameters.
func (e *Expression) Params() []types.Value {
	return append([]types.Value(nil), e.params...)
}

// Value wraps the Expression as a value.
func (e *Expression) Value() types.Value {
	return types.NewExpression(e)
}

// Execute evaluates the node. Without a function it simplifies: no
// parameters give null, one gives that parameter unchanged and more give
// the list of their evaluated values. With a function, parameters are
// checked against its minimum arity, then passed raw to Bloc and Logic
// functions and to Builtins made WithRawArgs, and with nested expressions
// evaluated to every other function.
func (e *Expression) Execute(env *Env) (types.Value, error) {
	if err := env.Context().Err(); err != nil {
		return types.Null, err
	}
	if e.fn == nil {
		switch len(e.params) {
		case 0:
			return types.Null, nil
		case 1:
			return e.params[0], nil
		}
		items := make([]types.Value, len(e.params))
		for i, p := range e.params {
			v, err := env.Execute(p)
			if err != nil {
				return types.Null, err
			}
			items[i] = v
		}
		return types.NewList(items), nil
	}

	if need := Required(e.fn); len(e.params) < need {
		return types.Null, types.NewDispatchError(e.fn.Name(),
			fmt.Sprintf("%s %s needs %d arguments, got %d", e.fn.Category(), e.fn.Name(), need, len(e.params)))
	}
	if TakesRawArgs(e.fn) {
		return e.fn.Execute(env, e.Params())
	}
	args := make([]types.Value, len(e.params))
	for i, p := range e.params {
		v, err := env.Evaluate(p)
		if err != nil {
			return types.Null, err
		}
		args[i] = v
	}
	return e.fn.Execute(env, args)
}

// String renders the node back to source form.
func (e *Expression) String() string {
	parts := make([]string, 0, len(e.params)+1)
	if e.fn != nil {
		parts = append(parts, e.fn.Name())
	}
	for _, p := range e.params {
		parts = append(parts, renderParam(p))
	}
	return strings.Join(parts, " ")
}

func renderParam(v types.Value) string {
	switch v.Type() {
	case types.TypeString:
		b, _ := json.Marshal(v.AsString())
		return string(b)
	case types.TypeFunction:
		return v.AsFunction().Name()
	case types.TypeNull:
		return "null"
	case types.TypeDateTime:
		return v.AsDateTime().Format("2006-01-02T15:04:05Z07:00")
	}
	return v.String()
}
