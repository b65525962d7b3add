package stdlib

import (
	"time"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// registerConstructors registers the value constructors.
func registerConstructors(r *expr.Registry) {
	register(r, pure("string", 1, newString, expr.WithMin(0)), "text")
	register(r, pure("number", 1, newNumber, expr.WithMin(0)))
	register(r, pure("real", 1, newReal, expr.WithMin(0)))
	register(r, pure("integer", 1, newInteger, expr.WithMin(0)))
	register(r, pure("boolean", 1, newBoolean, expr.WithMin(0)))
	register(r, pure("date", types.Variadic, newDate))
	register(r, pure("list", types.Variadic, newList))
	register(r, pure("set", types.Variadic, newSet))
	register(r, command("map", types.Variadic, newMap))
}

func newString(args []types.Value) (types.Value, error) {
	if len(args) == 0 {
		return types.NewString(""), nil
	}
	return types.NewString(convert.ToString(args[0])), nil
}

func newNumber(args []types.Value) (types.Value, error) {
	return convert.ToNumber(arg(args, 0)), nil
}

func newReal(args []types.Value) (types.Value, error) {
	return types.NewReal(convert.ToReal(arg(args, 0))), nil
}

func newInteger(args []types.Value) (types.Value, error) {
	return types.NewInt(convert.ToInt(arg(args, 0))), nil
}

func newBoolean(args []types.Value) (types.Value, error) {
	return types.NewBool(convert.ToBool(arg(args, 0))), nil
}

// newDate answers the current time without arguments, the date of its one
// argument, or the date of its arguments read as year, month, day, hour,
// minute and second.
func newDate(args []types.Value) (types.Value, error) {
	var (
		t   time.Time
		err error
	)
	switch len(args) {
	case 0:
		t = time.Now().UTC()
	case 1:
		t, err = convert.ToDate(args[0])
	default:
		t, err = convert.ToDate(types.NewList(args))
	}
	if err != nil {
		return types.Null, err
	}
	return types.NewDateTime(t), nil
}

func newList(args []types.Value) (types.Value, error) {
	return types.NewList(append([]types.Value{}, args...)), nil
}

func newSet(args []types.Value) (types.Value, error) {
	return types.NewSet(append([]types.Value{}, args...)), nil
}

// newMap copies a single map argument and reads the fields of a host
// object. Otherwise arguments are key value pairs, keys written as
// barewords or texts.
func newMap(env *expr.Env, args []types.Value) (types.Value, error) {
	if len(args) == 1 {
		v, err := env.Execute(args[0])
		if err != nil {
			return types.Null, err
		}
		switch v.Type() {
		case types.TypeMap:
			return types.NewMap(v.AsMap().Clone()), nil
		case types.TypeOpaque:
			return types.NewMap(convert.ToMap(v)), nil
		}
	}
	m := types.NewOrderedMap()
	for i := 0; i < len(args); i += 2 {
		key, err := keyName(env, args[i])
		if err != nil {
			return types.Null, err
		}
		v, err := env.Execute(arg(args, i+1))
		if err != nil {
			return types.Null, err
		}
		m.Set(key, v)
	}
	return types.NewMap(m), nil
}
