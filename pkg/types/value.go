// Package types defines the runtime value model shared by the compiler, the
// conversion engine, the codecs and the resource layer.
//
// A Value is a tagged union over null, bool, int, real, string, bytes,
// datetime, list, set, map and four reference kinds: function, resource,
// expression and opaque host object.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ValueType represents the kind of a Value.
type ValueType int

const (
	TypeNull       ValueType = iota
	TypeBool                 // bool
	TypeInt                  // int64
	TypeReal                 // float64
	TypeString               // string
	TypeBytes                // []byte
	TypeDateTime             // time.Time
	TypeList                 // []Value
	TypeSet                  // []Value, unique by Equal
	TypeMap                  // ordered map of string -> Value
	TypeFunction             // Callable
	TypeResource             // Endpoint
	TypeExpression           // Deferred
	TypeOpaque               // Object
)

// String returns the kind name used by the is builtin and the type path key.
func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "boolean"
	case TypeInt:
		return "integer"
	case TypeReal:
		return "real"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	case TypeDateTime:
		return "date"
	case TypeList:
		return "list"
	case TypeSet:
		return "set"
	case TypeMap:
		return "map"
	case TypeFunction:
		return "function"
	case TypeResource:
		return "resource"
	case TypeExpression:
		return "expression"
	case TypeOpaque:
		return "object"
	default:
		return "unknown"
	}
}

// ParseValueType maps a kind name (or a common alias) back to its ValueType.
func ParseValueType(name string) (ValueType, bool) {
	switch strings.ToLower(name) {
	case "null", "none":
		return TypeNull, true
	case "boolean", "bool":
		return TypeBool, true
	case "integer", "int":
		return TypeInt, true
	case "real", "double", "float":
		return TypeReal, true
	case "string", "text":
		return TypeString, true
	case "bytes":
		return TypeBytes, true
	case "date", "datetime":
		return TypeDateTime, true
	case "list":
		return TypeList, true
	case "set":
		return TypeSet, true
	case "map":
		return TypeMap, true
	case "function":
		return TypeFunction, true
	case "resource", "uri":
		return TypeResource, true
	case "expression":
		return TypeExpression, true
	case "object":
		return TypeOpaque, true
	}
	return TypeNull, false
}

// Value represents a runtime value. It uses a tagged union approach.
type Value struct {
	typ       ValueType
	boolVal   bool
	intVal    int64
	realVal   float64
	stringVal string
	bytesVal  []byte
	timeVal   time.Time
	listVal   []Value
	mapVal    *OrderedMap
	fnVal     Callable
	resVal    Endpoint
	exprVal   Deferred
	objVal    Object
}

// OrderedMap maintains insertion order for map keys.
type OrderedMap struct {
	keys   []string
	values map[string]Value
}

// NewOrderedMap returns an empty map that remembers insertion order.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{
		keys:   make([]string, 0),
		values: make(map[string]Value),
	}
}

// Get looks up key.
func (m *OrderedMap) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Set binds key to val. A new key goes last; an existing one keeps its place.
func (m *OrderedMap) Set(key string, val Value) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = val
}

// Delete removes a key from the map and reports whether it was present.
func (m *OrderedMap) Delete(key string) bool {
	if _, exists := m.values[key]; !exists {
		return false
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys answers a copy of the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	result := make([]string, len(m.keys))
	copy(result, m.keys)
	return result
}

// Values returns the values in key insertion order.
func (m *OrderedMap) Values() []Value {
	result := make([]Value, len(m.keys))
	for i, k := range m.keys {
		result[i] = m.values[k]
	}
	return result
}

// Len is the number of keys.
func (m *OrderedMap) Len() int {
	return len(m.keys)
}

// Clone copies m and every value in it.
func (m *OrderedMap) Clone() *OrderedMap {
	c := NewOrderedMap()
	for _, k := range m.keys {
		c.Set(k, m.values[k].Clone())
	}
	return c
}

// Null is the value of missing things.
var Null = Value{typ: TypeNull}

// NewBool wraps a boolean.
func NewBool(v bool) Value {
	return Value{typ: TypeBool, boolVal: v}
}

// NewInt wraps an integer.
func NewInt(v int64) Value {
	return Value{typ: TypeInt, intVal: v}
}

// NewReal creates a real value (64-bit float).
func NewReal(v float64) Value {
	return Value{typ: TypeReal, realVal: v}
}

// NewString wraps a text.
func NewString(v string) Value {
	return Value{typ: TypeString, stringVal: v}
}

// NewBytes wraps raw content.
func NewBytes(v []byte) Value {
	return Value{typ: TypeBytes, bytesVal: v}
}

// NewDateTime creates a datetime value.
func NewDateTime(v time.Time) Value {
	return Value{typ: TypeDateTime, timeVal: v}
}

// NewList wraps a slice of values. The slice is not copied.
func NewList(v []Value) Value {
	if v == nil {
		v = []Value{}
	}
	return Value{typ: TypeList, listVal: v}
}

// NewSet creates a set value, dropping later duplicates of earlier items.
func NewSet(v []Value) Value {
	items := make([]Value, 0, len(v))
	for _, candidate := range v {
		dup := false
		for _, existing := range items {
			if existing.Equal(candidate) {
				dup = true
				break
			}
		}
		if !dup {
			items = append(items, candidate)
		}
	}
	return Value{typ: TypeSet, listVal: items}
}

// NewMap wraps an ordered map.
func NewMap(v *OrderedMap) Value {
	if v == nil {
		v = NewOrderedMap()
	}
	return Value{typ: TypeMap, mapVal: v}
}

// NewMapFromGoMap builds a map value from m with its keys in sorted order.
func NewMapFromGoMap(m map[string]Value) Value {
	om := NewOrderedMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		om.Set(k, m[k])
	}
	return Value{typ: TypeMap, mapVal: om}
}

// NewFunction wraps a callable.
func NewFunction(f Callable) Value {
	return Value{typ: TypeFunction, fnVal: f}
}

// NewResource wraps a resource endpoint.
func NewResource(r Endpoint) Value {
	return Value{typ: TypeResource, resVal: r}
}

// NewExpression wraps a compiled, not yet evaluated expression.
func NewExpression(e Deferred) Value {
	return Value{typ: TypeExpression, exprVal: e}
}

// NewOpaque wraps a host object.
func NewOpaque(o Object) Value {
	return Value{typ: TypeOpaque, objVal: o}
}

// Type answers the kind of v.
func (v Value) Type() ValueType {
	return v.typ
}

// IsNull reports whether v is Null.
func (v Value) IsNull() bool {
	return v.typ == TypeNull
}

// IsCollection reports whether the value is a list or a set.
func (v Value) IsCollection() bool {
	return v.typ == TypeList || v.typ == TypeSet
}

// IsNumber reports whether the value is an int or a real.
func (v Value) IsNumber() bool {
	return v.typ == TypeInt || v.typ == TypeReal
}

// The As accessors answer the payload of one kind and panic on any other.
// Check Type first, or go through the convert package.

func (v Value) AsBool() bool {
	if v.typ != TypeBool {
		panic(fmt.Sprintf("AsBool called on %s value", v.typ))
	}
	return v.boolVal
}

func (v Value) AsInt() int64 {
	if v.typ != TypeInt {
		panic(fmt.Sprintf("AsInt called on %s value", v.typ))
	}
	return v.intVal
}

func (v Value) AsReal() float64 {
	if v.typ != TypeReal {
		panic(fmt.Sprintf("AsReal called on %s value", v.typ))
	}
	return v.realVal
}

func (v Value) AsString() string {
	if v.typ != TypeString {
		panic(fmt.Sprintf("AsString called on %s value", v.typ))
	}
	return v.stringVal
}

func (v Value) AsBytes() []byte {
	if v.typ != TypeBytes {
		panic(fmt.Sprintf("AsBytes called on %s value", v.typ))
	}
	return v.bytesVal
}

func (v Value) AsDateTime() time.Time {
	if v.typ != TypeDateTime {
		panic(fmt.Sprintf("AsDateTime called on %s value", v.typ))
	}
	return v.timeVal
}

// AsList returns the items of a list or a set. Panics otherwise.
func (v Value) AsList() []Value {
	if v.typ != TypeList && v.typ != TypeSet {
		panic(fmt.Sprintf("AsList called on %s value", v.typ))
	}
	return v.listVal
}

func (v Value) AsMap() *OrderedMap {
	if v.typ != TypeMap {
		panic(fmt.Sprintf("AsMap called on %s value", v.typ))
	}
	return v.mapVal
}

// AsFunction returns the callable payload. Panics if not a function.
func (v Value) AsFunction() Callable {
	if v.typ != TypeFunction {
		panic(fmt.Sprintf("AsFunction called on %s value", v.typ))
	}
	return v.fnVal
}

// AsResource returns the endpoint payload. Panics if not a resource.
func (v Value) AsResource() Endpoint {
	if v.typ != TypeResource {
		panic(fmt.Sprintf("AsResource called on %s value", v.typ))
	}
	return v.resVal
}

// AsExpression returns the deferred payload. Panics if not an expression.
func (v Value) AsExpression() Deferred {
	if v.typ != TypeExpression {
		panic(fmt.Sprintf("AsExpression called on %s value", v.typ))
	}
	return v.exprVal
}

// AsOpaque returns the host object payload. Panics if not opaque.
func (v Value) AsOpaque() Object {
	if v.typ != TypeOpaque {
		panic(fmt.Sprintf("AsOpaque called on %s value", v.typ))
	}
	return v.objVal
}

// AsNumber returns the numeric value as float64. Works for int and real types.
func (v Value) AsNumber() (float64, bool) {
	switch v.typ {
	case TypeInt:
		return float64(v.intVal), true
	case TypeReal:
		return v.realVal, true
	default:
		return 0, false
	}
}

// Clone creates a deep copy of the value. Reference kinds are shared.
func (v Value) Clone() Value {
	switch v.typ {
	case TypeList, TypeSet:
		items := make([]Value, len(v.listVal))
		for i, item := range v.listVal {
			items[i] = item.Clone()
		}
		return Value{typ: v.typ, listVal: items}
	case TypeMap:
		return NewMap(v.mapVal.Clone())
	case TypeBytes:
		b := make([]byte, len(v.bytesVal))
		copy(b, v.bytesVal)
		return NewBytes(b)
	default:
		return v
	}
}

// Equal tests deep structural equality between two values. Int and real
// compare numerically; no other cross-kind coercion happens here.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		if v.IsNumber() && other.IsNumber() {
			a, _ := v.AsNumber()
			b, _ := other.AsNumber()
			return a == b
		}
		return false
	}
	switch v.typ {
	case TypeNull:
		return true
	case TypeBool:
		return v.boolVal == other.boolVal
	case TypeInt:
		return v.intVal == other.intVal
	case TypeReal:
		return v.realVal == other.realVal
	case TypeString:
		return v.stringVal == other.stringVal
	case TypeBytes:
		return bytes.Equal(v.bytesVal, other.bytesVal)
	case TypeDateTime:
		return v.timeVal.Equal(other.timeVal)
	case TypeList, TypeSet:
		if len(v.listVal) != len(other.listVal) {
			return false
		}
		for i := range v.listVal {
			if !v.listVal[i].Equal(other.listVal[i]) {
				return false
			}
		}
		return true
	case TypeMap:
		if v.mapVal.Len() != other.mapVal.Len() {
			return false
		}
		for _, k := range v.mapVal.Keys() {
			ov, ok := other.mapVal.Get(k)
			if !ok {
				return false
			}
			mv, _ := v.mapVal.Get(k)
			if !mv.Equal(ov) {
				return false
			}
		}
		return true
	case TypeFunction:
		return v.fnVal == other.fnVal
	case TypeResource:
		return v.resVal.String() == other.resVal.String()
	case TypeExpression:
		return v.exprVal == other.exprVal
	case TypeOpaque:
		return v.objVal == other.objVal
	}
	return false
}

// DateLayout is the layout used when a datetime is rendered as text.
const DateLayout = "2006-01-02 15:04:05"

// String returns a human-readable representation of the value.
func (v Value) String() string {
	switch v.typ {
	case TypeNull:
		return "null"
	case TypeBool:
		if v.boolVal {
			return "true"
		}
		return "false"
	case TypeInt:
		return fmt.Sprintf("%d", v.intVal)
	case TypeReal:
		if v.realVal == math.Trunc(v.realVal) && !math.IsInf(v.realVal, 0) {
			return fmt.Sprintf("%.1f", v.realVal)
		}
		return fmt.Sprintf("%g", v.realVal)
	case TypeString:
		return v.stringVal
	case TypeBytes:
		return fmt.Sprintf("<bytes len=%d>", len(v.bytesVal))
	case TypeDateTime:
		return v.timeVal.Format(DateLayout)
	case TypeList, TypeSet:
		parts := make([]string, len(v.listVal))
		for i, item := range v.listVal {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TypeMap:
		parts := make([]string, 0, v.mapVal.Len())
		for _, k := range v.mapVal.Keys() {
			val, _ := v.mapVal.Get(k)
			parts = append(parts, fmt.Sprintf("%s: %s", k, val.String()))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case TypeFunction:
		return v.fnVal.Name()
	case TypeResource:
		return v.resVal.String()
	case TypeExpression:
		return v.exprVal.String()
	case TypeOpaque:
		if s, ok := v.objVal.(fmt.Stringer); ok {
			return s.String()
		}
		return "<" + v.objVal.TypeName() + ">"
	}
	return "<unknown>"
}

// MarshalJSON converts a Value to JSON with map keys in insertion order.
// Datetimes become RFC 3339 strings; reference kinds become their text form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.typ {
	case TypeNull:
		return []byte("null"), nil
	case TypeBool:
		if v.boolVal {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case TypeInt:
		return json.Marshal(v.intVal)
	case TypeReal:
		if math.IsNaN(v.realVal) || math.IsInf(v.realVal, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.realVal)
	case TypeString:
		return json.Marshal(v.stringVal)
	case TypeBytes:
		return json.Marshal(string(v.bytesVal))
	case TypeDateTime:
		return json.Marshal(v.timeVal.Format(time.RFC3339))
	case TypeList, TypeSet:
		items := make([]json.RawMessage, len(v.listVal))
		for i, item := range v.listVal {
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			items[i] = b
		}
		return json.Marshal(items)
	case TypeMap:
		buf := []byte{'{'}
		for i, k := range v.mapVal.Keys() {
			if i > 0 {
				buf = append(buf, ',')
			}
			keyBytes, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, keyBytes...)
			buf = append(buf, ':')
			val, _ := v.mapVal.Get(k)
			valBytes, err := val.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf = append(buf, valBytes...)
		}
		buf = append(buf, '}')
		return buf, nil
	case TypeFunction, TypeResource, TypeExpression, TypeOpaque:
		return json.Marshal(v.String())
	}
	return nil, fmt.Errorf("cannot marshal unknown type %d", v.typ)
}

// ValueFromGo converts a plain Go value into a Value. Go maps are sorted by
// key since they carry no order.
func ValueFromGo(v any) Value {
	if v == nil {
		return Null
	}
	switch val := v.(type) {
	case Value:
		return val
	case bool:
		return NewBool(val)
	case int:
		return NewInt(int64(val))
	case int64:
		return NewInt(val)
	case int32:
		return NewInt(int64(val))
	case uint64:
		if val > math.MaxInt64 {
			return NewReal(float64(val))
		}
		return NewInt(int64(val))
	case float32:
		return NewReal(float64(val))
	case float64:
		return NewReal(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return NewInt(i)
		}
		if f, err := val.Float64(); err == nil {
			return NewReal(f)
		}
		return NewString(val.String())
	case string:
		return NewString(val)
	case []byte:
		return NewBytes(val)
	case time.Time:
		return NewDateTime(val)
	case []any:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = ValueFromGo(item)
		}
		return NewList(items)
	case []string:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = NewString(item)
		}
		return NewList(items)
	case map[string]any:
		m := NewOrderedMap()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.Set(k, ValueFromGo(val[k]))
		}
		return NewMap(m)
	case Object:
		return NewOpaque(val)
	default:
		return NewString(fmt.Sprintf("%v", val))
	}
}

// ToGoValue converts a Value to a plain Go value. Reference kinds become text.
func (v Value) ToGoValue() any {
	switch v.typ {
	case TypeNull:
		return nil
	case TypeBool:
		return v.boolVal
	case TypeInt:
		return v.intVal
	case TypeReal:
		return v.realVal
	case TypeString:
		return v.stringVal
	case TypeBytes:
		return v.bytesVal
	case TypeDateTime:
		return v.timeVal
	case TypeList, TypeSet:
		result := make([]any, len(v.listVal))
		for i, item := range v.listVal {
			result[i] = item.ToGoValue()
		}
		return result
	case TypeMap:
		result := make(map[string]any, v.mapVal.Len())
		for _, k := range v.mapVal.Keys() {
			val, _ := v.mapVal.Get(k)
			result[k] = val.ToGoValue()
		}
		return result
	}
	return v.String()
}
