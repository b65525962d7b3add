package stdlib

import (
	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// registerMap registers map.* functions.
func registerMap(r *expr.Registry) {
	register(r, pure("map.keys", 1, mapKeys))
	register(r, pure("map.delete", 2, mapDelete))
	register(r, pure("map.merge", types.Variadic, mapMerge))
	register(r, pure("map.merge_nested", types.Variadic, mapMergeNested))
}

func mapKeys(args []types.Value) (types.Value, error) {
	keys := convert.ToMap(args[0]).Keys()
	result := make([]types.Value, len(keys))
	for i, k := range keys {
		result[i] = types.NewString(k)
	}
	return types.NewList(result), nil
}

// mapDelete answers a copy of the map without key.
func mapDelete(args []types.Value) (types.Value, error) {
	m := convert.ToMap(args[0]).Clone()
	m.Delete(convert.ToString(args[1]))
	return types.NewMap(m), nil
}

// mapMerge merges maps left to right; later keys win.
func mapMerge(args []types.Value) (types.Value, error) {
	result := types.NewOrderedMap()
	for _, a := range args {
		m := convert.ToMap(a)
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			result.Set(k, v)
		}
	}
	return types.NewMap(result), nil
}

func mapMergeNested(args []types.Value) (types.Value, error) {
	if len(args) == 0 {
		return types.NewMap(types.NewOrderedMap()), nil
	}
	result := args[0].Clone()
	for _, a := range args[1:] {
		result = deepMerge(result, a)
	}
	return result, nil
}

// deepMerge recursively merges two maps.
func deepMerge(base, overlay types.Value) types.Value {
	if base.Type() != types.TypeMap || overlay.Type() != types.TypeMap {
		return overlay
	}
	result := base.AsMap().Clone()
	for _, k := range overlay.AsMap().Keys() {
		ov, _ := overlay.AsMap().Get(k)
		if existing, ok := result.Get(k); ok {
			result.Set(k, deepMerge(existing, ov))
		} else {
			result.Set(k, ov)
		}
	}
	return types.NewMap(result)
}
