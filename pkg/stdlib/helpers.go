package stdlib

import (
	"fmt"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/resource"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// pureFunc is a builtin that only needs its arguments' values.
type pureFunc func(args []types.Value) (types.Value, error)

func register(r *expr.Registry, fn expr.Function, aliases ...string) {
	r.Register(fn)
	for _, a := range aliases {
		r.Alias(a, fn)
	}
}

func command(name string, arity int, fn expr.ExecFunc, opts ...expr.BuiltinOption) *expr.Builtin {
	return expr.NewBuiltin(name, expr.Command, arity, fn, opts...)
}

// pure wraps fn as a Command whose arguments are executed first, so that
// resources arrive as their data. A fixed arity is also the minimum unless
// opts say otherwise.
func pure(name string, arity int, fn pureFunc, opts ...expr.BuiltinOption) *expr.Builtin {
	if arity > 0 {
		opts = append([]expr.BuiltinOption{expr.WithMin(arity)}, opts...)
	}
	return command(name, arity, func(env *expr.Env, args []types.Value) (types.Value, error) {
		vals, err := env.ExecuteAll(args)
		if err != nil {
			return types.Null, err
		}
		return fn(vals)
	}, opts...)
}

// requireArgs checks that the number of args is in range. A negative max
// means no upper bound.
func requireArgs(name string, args []types.Value, min, max int) error {
	if len(args) >= min && (max < 0 || len(args) <= max) {
		return nil
	}
	switch {
	case min == max:
		return types.NewDispatchError(name, fmt.Sprintf("%s expects %d argument(s), got %d", name, min, len(args)))
	case max < 0:
		return types.NewDispatchError(name, fmt.Sprintf("%s expects at least %d argument(s), got %d", name, min, len(args)))
	}
	return types.NewDispatchError(name, fmt.Sprintf("%s expects %d to %d arguments, got %d", name, min, max, len(args)))
}

func arg(args []types.Value, i int) types.Value {
	if i < len(args) {
		return args[i]
	}
	return types.Null
}

// keyName reads a name written as a bareword. A variable path names
// itself; any other value names its executed text.
func keyName(env *expr.Env, v types.Value) (string, error) {
	if v.Type() == types.TypeResource {
		if r, ok := v.AsResource().(*resource.Resource); ok && r.Scheme() == resource.SchemeNone {
			return r.String(), nil
		}
	}
	if fn, ok := expr.AsFunction(v); ok {
		return fn.Name(), nil
	}
	x, err := env.Execute(v)
	if err != nil {
		return "", err
	}
	if x.IsNull() {
		return "", nil
	}
	return convert.ToString(x), nil
}
