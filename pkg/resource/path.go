package resource

import (
	"strconv"

	"github.com/lemonberrylabs/uriel/pkg/scope"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

var sizeKeys = map[string]bool{"size": true, "length": true, "count": true}

// GetValue reads one path segment of a value. Maps answer their entries
// first, then size, keys, first and last. Lists, sets and text take a
// numeric index, first, last or size. Host objects answer their fields and
// every value answers type with its kind name. Anything else is null.
func GetValue(parent types.Value, key string) types.Value {
	switch parent.Type() {
	case types.TypeMap:
		m := parent.AsMap()
		if v, ok := m.Get(key); ok {
			return v
		}
		switch {
		case sizeKeys[key]:
			return types.NewInt(int64(m.Len()))
		case key == "keys":
			keys := make([]types.Value, 0, m.Len())
			for _, k := range m.Keys() {
				keys = append(keys, types.NewString(k))
			}
			return types.NewList(keys)
		case key == "first" || key == "last":
			return GetValue(types.NewList(m.Values()), key)
		}
	case types.TypeList, types.TypeSet:
		items := parent.AsList()
		if sizeKeys[key] {
			return types.NewInt(int64(len(items)))
		}
		if i, ok := index(key, len(items)); ok && i < len(items) {
			return items[i]
		}
	case types.TypeString:
		runes := []rune(parent.AsString())
		if sizeKeys[key] {
			return types.NewInt(int64(len(runes)))
		}
		if i, ok := index(key, len(runes)); ok && i < len(runes) {
			return types.NewString(string(runes[i]))
		}
	case types.TypeBytes:
		if sizeKeys[key] {
			return types.NewInt(int64(len(parent.AsBytes())))
		}
	case types.TypeOpaque:
		if obj, ok := parent.AsOpaque().(types.Introspectable); ok {
			if v, ok := obj.Field(key); ok {
				return v
			}
		}
	}
	if key == "type" {
		return types.NewString(parent.Type().String())
	}
	return types.Null
}

// PutValue writes one path segment and returns the updated parent. Maps
// and lists are copied, never changed in place. Lists grow with nulls to
// reach an index past their end. It reports false when the parent cannot
// hold key.
func PutValue(parent types.Value, key string, v types.Value) (types.Value, bool) {
	switch parent.Type() {
	case types.TypeMap:
		m := copyMap(parent.AsMap())
		m.Set(key, v)
		return types.NewMap(m), true
	case types.TypeList:
		i, ok := index(key, len(parent.AsList()))
		if !ok {
			return parent, false
		}
		items := copyList(parent.AsList(), 0)
		for i >= len(items) {
			items = append(items, types.Null)
		}
		items[i] = v
		return types.NewList(items), true
	case types.TypeOpaque:
		if obj, ok := parent.AsOpaque().(types.Introspectable); ok {
			return parent, obj.SetField(key, v)
		}
	}
	return parent, false
}

// PostValue appends v to a list or set and returns the updated parent.
func PostValue(parent types.Value, v types.Value) (types.Value, bool) {
	switch parent.Type() {
	case types.TypeList:
		return types.NewList(append(copyList(parent.AsList(), 1), v)), true
	case types.TypeSet:
		return types.NewSet(append(copyList(parent.AsList(), 1), v)), true
	}
	return parent, false
}

// DeleteValue removes one path segment and returns the updated parent.
func DeleteValue(parent types.Value, key string) (types.Value, bool) {
	switch parent.Type() {
	case types.TypeMap:
		m := copyMap(parent.AsMap())
		m.Delete(key)
		return types.NewMap(m), true
	case types.TypeList:
		items := parent.AsList()
		i, ok := index(key, len(items))
		if !ok || i >= len(items) {
			return parent, false
		}
		out := make([]types.Value, 0, len(items)-1)
		out = append(out, items[:i]...)
		return types.NewList(append(out, items[i+1:]...)), true
	}
	return parent, false
}

func copyMap(m *types.OrderedMap) *types.OrderedMap {
	out := types.NewOrderedMap()
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		out.Set(k, v)
	}
	return out
}

// copyList copies items, leaving capacity for extra more values.
func copyList(items []types.Value, extra int) []types.Value {
	out := make([]types.Value, len(items), len(items)+extra)
	copy(out, items)
	return out
}

// index resolves first, last or a non-negative integer against a length.
func index(key string, n int) (int, bool) {
	switch key {
	case "first":
		return 0, n > 0
	case "last":
		return n - 1, n > 0
	}
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// walk resolves segs against the Context, returning every intermediate
// value. The result has one entry per segment; missing values are null.
func walk(cx *scope.Context, segs []string) []types.Value {
	vals := make([]types.Value, len(segs))
	vals[0], _ = cx.Get(segs[0])
	for i := 1; i < len(segs); i++ {
		vals[i] = GetValue(vals[i-1], segs[i])
	}
	return vals
}

// writeBack stores updated as the value at segs[n], then propagates the
// new containers up to the Context root.
func writeBack(cx *scope.Context, segs []string, vals []types.Value, n int, updated types.Value) bool {
	for i := n; i > 0; i-- {
		parent, ok := PutValue(vals[i-1], segs[i], updated)
		if !ok {
			return false
		}
		updated = parent
	}
	cx.Put(segs[0], updated)
	return true
}

func getPath(cx *scope.Context, segs []string) types.Value {
	if len(segs) == 0 {
		return types.NewMap(cx.ToMap())
	}
	vals := walk(cx, segs)
	return vals[len(vals)-1]
}

// underConstant reports whether segs reaches inside a constant, which no
// path write may change.
func underConstant(cx *scope.Context, segs []string) bool {
	return len(segs) > 1 && cx.IsConstant(segs[0])
}

// putPath sets the value at segs. Every segment but the last must already
// resolve to a container.
func putPath(cx *scope.Context, segs []string, v types.Value) bool {
	if len(segs) == 0 || underConstant(cx, segs) {
		return false
	}
	if len(segs) == 1 {
		cx.Put(segs[0], v)
		return true
	}
	vals := walk(cx, segs[:len(segs)-1])
	last := len(vals) - 1
	updated, ok := PutValue(vals[last], segs[last+1], v)
	if !ok {
		return false
	}
	return writeBack(cx, segs, vals, last, updated)
}

// postPath appends v to the list at segs and returns it as the new last
// element. A missing target becomes a one-element list. A constant is left
// unchanged and null is answered.
func postPath(cx *scope.Context, segs []string, v types.Value) types.Value {
	if len(segs) == 0 || cx.IsConstant(segs[0]) {
		return types.Null
	}
	vals := walk(cx, segs)
	last := len(vals) - 1
	target := vals[last]
	if target.IsNull() {
		target = types.NewList(nil)
	}
	updated, ok := PostValue(target, v)
	if !ok {
		return types.Null
	}
	if !writeBack(cx, segs, vals, last, updated) {
		return types.Null
	}
	return GetValue(updated, "last")
}

func deletePath(cx *scope.Context, segs []string) bool {
	if len(segs) == 0 || underConstant(cx, segs) {
		return false
	}
	if len(segs) == 1 {
		_, ok := cx.Remove(segs[0])
		return ok
	}
	vals := walk(cx, segs[:len(segs)-1])
	last := len(vals) - 1
	updated, ok := DeleteValue(vals[last], segs[last+1])
	if !ok {
		return false
	}
	return writeBack(cx, segs, vals, last, updated)
}
