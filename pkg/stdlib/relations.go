package stdlib

import (
	"strings"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/resource"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// ItName is the variable a has condition reads the current item from.
const ItName = "it"

// registerRelations registers the comparisons, of, is, has and not.
func registerRelations(r *expr.Registry) {
	register(r, relation("equal", func(c int) bool { return c == 0 }), "=")
	register(r, relation("less", func(c int) bool { return c < 0 }), "<", "lesser")
	register(r, relation("more", func(c int) bool { return c > 0 }), ">", "greater")
	register(r, expr.NewBuiltin("of", expr.Relation, 2, relOf))
	register(r, expr.NewBuiltin("is", expr.State, 2, stateIs))
	register(r, expr.NewBuiltin("has", expr.State, 2, stateHas, expr.WithRawArgs()), "that", "with")
	register(r, expr.NewBuiltin("not", expr.Qualifier, 1, qualNot))
}

func relation(name string, test func(int) bool) *expr.Builtin {
	return expr.NewBuiltin(name, expr.Relation, 2, func(env *expr.Env, args []types.Value) (types.Value, error) {
		vals, err := env.ExecuteAll(args)
		if err != nil {
			return types.Null, err
		}
		return types.NewBool(test(convert.Compare(vals[0], vals[1]))), nil
	})
}

// relOf reads a key of a value: "of size list" answers the size of list.
// Parameters are walked from the last one, each earlier one naming a key
// of the value reached so far.
func relOf(env *expr.Env, args []types.Value) (types.Value, error) {
	value := types.Null
	for i := len(args) - 1; i >= 0; i-- {
		if i == len(args)-1 {
			v, err := env.Execute(args[i])
			if err != nil {
				return types.Null, err
			}
			value = v
		} else {
			key, err := keyName(env, args[i])
			if err != nil {
				return types.Null, err
			}
			value = resource.GetValue(value, key)
		}
		if value.IsNull() {
			break
		}
	}
	return value, nil
}

// stateIs checks the kind of a value when the second argument names one,
// such as "list" or "number". Otherwise both sides compare as booleans.
func stateIs(env *expr.Env, args []types.Value) (types.Value, error) {
	vals, err := env.ExecuteAll(args)
	if err != nil {
		return types.Null, err
	}
	v, want := vals[0], vals[1]
	if want.Type() == types.TypeString {
		name := strings.ToLower(strings.TrimSpace(want.AsString()))
		if name == "number" {
			return types.NewBool(v.IsNumber()), nil
		}
		if kind, ok := types.ParseValueType(name); ok {
			return types.NewBool(v.Type() == kind), nil
		}
		if v.Type() == types.TypeOpaque && v.AsOpaque().TypeName() == want.AsString() {
			return types.NewBool(true), nil
		}
	}
	return types.NewBool(convert.ToBool(v) == convert.ToBool(want)), nil
}

// stateHas keeps the items of a collection for which a condition holds:
//
//	has people more age 30
//
// The condition runs once per item in a child Context where "it" is the
// item and, when the item is a map, each of its keys is a constant too.
// The result is always a list.
func stateHas(env *expr.Env, args []types.Value) (types.Value, error) {
	src, err := env.Execute(args[0])
	if err != nil {
		return types.Null, err
	}
	keep := []types.Value{}
	for _, item := range convert.ToList(src) {
		if err := env.Context().Err(); err != nil {
			return types.Null, err
		}
		consts := map[string]types.Value{}
		if item.Type() == types.TypeMap {
			m := item.AsMap()
			for _, k := range m.Keys() {
				consts[k], _ = m.Get(k)
			}
		}
		consts[ItName] = item

		child, err := env.Scope().Child(consts)
		if err != nil {
			return types.Null, err
		}
		v, err := env.In(child).Execute(args[1])
		if cerr := child.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			return types.Null, err
		}
		if convert.ToBool(v) {
			keep = append(keep, item)
		}
	}
	return types.NewList(keep), nil
}

func qualNot(env *expr.Env, args []types.Value) (types.Value, error) {
	v, err := env.Execute(args[0])
	if err != nil {
		return types.Null, err
	}
	return types.NewBool(!convert.ToBool(v)), nil
}

// registerLogic registers and and or.
func registerLogic(r *expr.Registry) {
	register(r, expr.NewBuiltin("and", expr.Logic, 2, logicAnd))
	register(r, expr.NewBuiltin("or", expr.Logic, 2, logicOr))
}

func logicAnd(env *expr.Env, args []types.Value) (types.Value, error) {
	for _, a := range args {
		v, err := env.Execute(a)
		if err != nil {
			return types.Null, err
		}
		if !convert.ToBool(v) {
			return types.NewBool(false), nil
		}
	}
	return types.NewBool(true), nil
}

func logicOr(env *expr.Env, args []types.Value) (types.Value, error) {
	for _, a := range args {
		v, err := env.Execute(a)
		if err != nil {
			return types.Null, err
		}
		if convert.ToBool(v) {
			return types.NewBool(true), nil
		}
	}
	return types.NewBool(false), nil
}
