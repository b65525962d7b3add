// Package convert turns any Value into a requested kind.
//
// Native kinds go through a per-kind converter table; host types fall back to
// their single-argument constructors. Packages that own a kind (the resource
// layer for TypeResource) register their converter at init time.
package convert

import (
	"fmt"
	"strings"
	"sync"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

// Converter converts a value to one target kind.
type Converter func(v types.Value) (types.Value, error)

var (
	mu         sync.RWMutex
	converters = map[types.ValueType]Converter{}
)

func init() {
	converters[types.TypeNull] = func(types.Value) (types.Value, error) { return types.Null, nil }
	converters[types.TypeBool] = func(v types.Value) (types.Value, error) { return types.NewBool(ToBool(v)), nil }
	converters[types.TypeInt] = func(v types.Value) (types.Value, error) { return types.NewInt(ToInt(v)), nil }
	converters[types.TypeReal] = func(v types.Value) (types.Value, error) { return types.NewReal(ToReal(v)), nil }
	converters[types.TypeString] = func(v types.Value) (types.Value, error) { return types.NewString(ToString(v)), nil }
	converters[types.TypeBytes] = func(v types.Value) (types.Value, error) { return types.NewBytes(ToBytes(v)), nil }
	converters[types.TypeList] = func(v types.Value) (types.Value, error) { return types.NewList(ToList(v)), nil }
	converters[types.TypeSet] = func(v types.Value) (types.Value, error) { return types.NewSet(ToList(v)), nil }
	converters[types.TypeMap] = func(v types.Value) (types.Value, error) { return types.NewMap(ToMap(v)), nil }
	converters[types.TypeDateTime] = func(v types.Value) (types.Value, error) {
		t, err := ToDate(v)
		if err != nil {
			return types.Null, err
		}
		return types.NewDateTime(t), nil
	}
}

// Register installs the converter for kind, replacing any previous one.
func Register(kind types.ValueType, c Converter) {
	mu.Lock()
	defer mu.Unlock()
	converters[kind] = c
}

// Convert converts v to kind. A value already of that kind is returned as is.
func Convert(v types.Value, kind types.ValueType) (types.Value, error) {
	if v.Type() == kind {
		return v, nil
	}
	mu.RLock()
	c, ok := converters[kind]
	mu.RUnlock()
	if !ok {
		return types.Null, types.NewConversionError(kind.String(),
			fmt.Sprintf("no converter from %s to %s", v.Type(), kind))
	}
	return c(v)
}

// ConvertHost converts v to a host type through one of its single-argument
// constructors. An opaque value already of that type is returned as is.
func ConvertHost(v types.Value, t types.HostType) (types.Value, error) {
	if v.Type() == types.TypeOpaque && v.AsOpaque().TypeName() == t.TypeName() {
		return v, nil
	}
	args := []types.Value{v}
	for _, c := range t.Constructors() {
		if c.Arity == 1 && c.Matches(args) {
			return c.New(args)
		}
	}
	return types.Null, types.NewConversionError(t.TypeName(),
		fmt.Sprintf("no single-argument constructor of %s accepts %s", t.TypeName(), v.Type()))
}

// FalseWords are the texts that convert to false, compared case-insensitively
// after trimming.
var FalseWords = []string{"false", "no", "0", "none", "empty"}

// ToBool converts v to a boolean: numbers are true when non-zero,
// collections and maps when non-empty, text unless blank or a false word.
func ToBool(v types.Value) bool {
	switch v.Type() {
	case types.TypeNull:
		return false
	case types.TypeBool:
		return v.AsBool()
	case types.TypeInt:
		return v.AsInt() != 0
	case types.TypeReal:
		return v.AsReal() != 0
	case types.TypeList, types.TypeSet:
		return len(v.AsList()) > 0
	case types.TypeMap:
		return v.AsMap().Len() > 0
	case types.TypeBytes:
		return len(v.AsBytes()) > 0
	case types.TypeDateTime:
		return true
	}
	txt := strings.ToLower(strings.TrimSpace(ToString(v)))
	if txt == "" {
		return false
	}
	for _, w := range FalseWords {
		if txt == w {
			return false
		}
	}
	return true
}

// ToString converts v to text. Null becomes "null", collections join their
// items with a space, bytes are read as UTF-8.
func ToString(v types.Value) string {
	switch v.Type() {
	case types.TypeString:
		return v.AsString()
	case types.TypeBytes:
		return string(v.AsBytes())
	case types.TypeList, types.TypeSet:
		items := v.AsList()
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = ToString(item)
		}
		return strings.Join(parts, " ")
	}
	return v.String()
}

// ToBytes converts v to bytes through its text form; null is empty.
func ToBytes(v types.Value) []byte {
	switch v.Type() {
	case types.TypeBytes:
		return v.AsBytes()
	case types.TypeNull:
		return []byte{}
	}
	return []byte(ToString(v))
}
