package stdlib

import (
	"math"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// registerMath registers math.* functions.
func registerMath(r *expr.Registry) {
	register(r, pure("math.abs", 1, mathAbs))
	register(r, pure("math.floor", 1, mathFloor))
	register(r, pure("math.max", types.Variadic, mathMax, expr.WithMin(1)))
	register(r, pure("math.min", types.Variadic, mathMin, expr.WithMin(1)))
}

func mathAbs(args []types.Value) (types.Value, error) {
	v := convert.ToNumber(args[0])
	if v.Type() == types.TypeInt {
		if i := v.AsInt(); i < 0 {
			return types.NewInt(-i), nil
		}
		return v, nil
	}
	return types.NewReal(math.Abs(v.AsReal())), nil
}

func mathFloor(args []types.Value) (types.Value, error) {
	v := convert.ToNumber(args[0])
	if v.Type() == types.TypeInt {
		return v, nil
	}
	return types.NewInt(int64(math.Floor(v.AsReal()))), nil
}

// mathMax answers the largest argument as ordered by the comparison law.
// A single collection argument is searched item by item.
func mathMax(args []types.Value) (types.Value, error) {
	return extreme(args, 1), nil
}

func mathMin(args []types.Value) (types.Value, error) {
	return extreme(args, -1), nil
}

func extreme(args []types.Value, sign int) types.Value {
	if len(args) == 1 && args[0].IsCollection() {
		args = args[0].AsList()
	}
	if len(args) == 0 {
		return types.Null
	}
	best := args[0]
	for _, v := range args[1:] {
		if convert.Compare(v, best)*sign > 0 {
			best = v
		}
	}
	return best
}
