package convert

import (
	"strconv"
	"strings"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

// ToList converts v to list items. Text splits on newlines when it has
// any, else on commas; bytes become their integer values; null is empty and
// any other value becomes a singleton.
func ToList(v types.Value) []types.Value {
	switch v.Type() {
	case types.TypeNull:
		return []types.Value{}
	case types.TypeList, types.TypeSet:
		return v.AsList()
	case types.TypeMap:
		return v.AsMap().Values()
	case types.TypeBytes:
		b := v.AsBytes()
		items := make([]types.Value, len(b))
		for i, c := range b {
			items[i] = types.NewInt(int64(c))
		}
		return items
	case types.TypeString:
		s := strings.TrimSpace(v.AsString())
		if s == "" {
			return []types.Value{}
		}
		sep := ","
		if strings.Contains(s, "\n") {
			sep = "\n"
		}
		fields := strings.Split(s, sep)
		items := make([]types.Value, len(fields))
		for i, f := range fields {
			items[i] = types.NewString(strings.TrimSpace(f))
		}
		return items
	}
	return []types.Value{v}
}

// ToMap converts v to a map. Lists are keyed by index, introspectable host
// objects by field name, and any other non-null value is stored under "value".
func ToMap(v types.Value) *types.OrderedMap {
	switch v.Type() {
	case types.TypeNull:
		return types.NewOrderedMap()
	case types.TypeMap:
		return v.AsMap()
	case types.TypeList, types.TypeSet:
		m := types.NewOrderedMap()
		for i, item := range v.AsList() {
			m.Set(strconv.Itoa(i), item)
		}
		return m
	case types.TypeOpaque:
		if obj, ok := v.AsOpaque().(types.Introspectable); ok {
			m := types.NewOrderedMap()
			for _, name := range obj.Fields() {
				if fv, ok := obj.Field(name); ok {
					m.Set(name, fv)
				}
			}
			return m
		}
	}
	m := types.NewOrderedMap()
	m.Set("value", v)
	return m
}
