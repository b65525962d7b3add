package stdlib

import (
	"sort"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// registerList registers list.* functions.
func registerList(r *expr.Registry) {
	register(r, pure("list.concat", 2, listConcat))
	register(r, pure("list.prepend", 2, listPrepend))
	register(r, pure("list.sort", 1, listSort))
}

// listConcat appends the items of its second argument to the first. A
// second argument that is not a collection is appended as one element.
func listConcat(args []types.Value) (types.Value, error) {
	first := convert.ToList(args[0])
	result := make([]types.Value, 0, len(first)+1)
	result = append(result, first...)
	if args[1].IsCollection() {
		result = append(result, args[1].AsList()...)
	} else {
		result = append(result, args[1])
	}
	return types.NewList(result), nil
}

func listPrepend(args []types.Value) (types.Value, error) {
	items := convert.ToList(args[0])
	result := make([]types.Value, 0, len(items)+1)
	result = append(result, args[1])
	result = append(result, items...)
	return types.NewList(result), nil
}

// listSort answers the items sorted by the comparison law.
func listSort(args []types.Value) (types.Value, error) {
	items := append([]types.Value{}, convert.ToList(args[0])...)
	sort.SliceStable(items, func(i, j int) bool {
		return convert.Compare(items[i], items[j]) < 0
	})
	return types.NewList(items), nil
}
