package stdlib

import (
	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/resource"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// registerBlocs registers each, while and end.
func registerBlocs(r *expr.Registry) {
	register(r, expr.NewBuiltin("each", expr.Bloc, types.Variadic, blocEach))
	register(r, expr.NewBuiltin("while", expr.Bloc, types.Variadic, blocWhile))
	register(r, expr.NewBuiltin(expr.EndName, expr.Bloc, types.Variadic, blocEnd))
}

// splitBloc separates the tokens written on a bloc's own line from the
// compiled lines of its body.
func splitBloc(params []types.Value) (header, body []types.Value) {
	i := 0
	for i < len(params) {
		if _, ok := expr.AsExpression(params[i]); ok {
			break
		}
		i++
	}
	return params[:i], params[i:]
}

// runBody evaluates one pass of a bloc body. A cancelled execution stops
// the bloc before the pass starts.
func runBody(env *expr.Env, body []types.Value) error {
	if err := env.Context().Err(); err != nil {
		return err
	}
	for _, b := range body {
		if _, err := env.Evaluate(b); err != nil {
			return err
		}
	}
	return nil
}

// blocEach runs its body once per item of a source, binding the item to a
// name in the Context:
//
//	each 1,2,3 x
//	  print x
//	end each
//
// The last token of the header is the name and the tokens before it compute
// the source. On a single line the body starts at the first function after
// the name: each 1,2,3 x print x.
func blocEach(env *expr.Env, params []types.Value) (types.Value, error) {
	header, body := splitBloc(params)
	if len(body) == 0 {
		for i := 2; i < len(header); i++ {
			if _, ok := expr.AsFunction(header[i]); ok {
				body = []types.Value{expr.CompileValues(header[i:]).Value()}
				header = header[:i]
				break
			}
		}
	}
	if len(header) < 2 {
		return types.Null, types.NewDispatchError("each", "each needs a source and a name")
	}
	key, err := keyName(env, header[len(header)-1])
	if err != nil {
		return types.Null, err
	}
	src, err := env.Execute(expr.CompileValues(header[:len(header)-1]).Value())
	if err != nil {
		return types.Null, err
	}
	target := resource.New(key)
	for _, item := range convert.ToList(src) {
		if target.Valid() && target.Scheme() == resource.SchemeNone {
			if _, err := target.Put(env, item); err != nil {
				return types.Null, err
			}
		} else {
			env.Scope().Put(key, item)
		}
		if err := runBody(env, body); err != nil {
			return types.Null, err
		}
	}
	return types.Null, nil
}

// blocWhile runs its body as long as its condition holds. On a single line
// the first expression is the condition and the following ones the body.
func blocWhile(env *expr.Env, params []types.Value) (types.Value, error) {
	header, body := splitBloc(params)
	if len(header) == 0 {
		return types.Null, types.NewDispatchError("while", "while needs a condition")
	}
	cond := expr.CompileValues(header)
	if len(body) == 0 && cond.Function() == nil && len(cond.Params()) > 1 {
		parts := cond.Params()
		cond = expr.NewExpression(nil, parts[0])
		body = parts[1:]
	}
	for {
		v, err := env.Execute(cond.Value())
		if err != nil {
			return types.Null, err
		}
		if !convert.ToBool(v) {
			return types.Null, nil
		}
		if err := runBody(env, body); err != nil {
			return types.Null, err
		}
	}
}

func blocEnd(env *expr.Env, params []types.Value) (types.Value, error) {
	return types.Null, types.NewStateError("end executed outside of a bloc")
}
