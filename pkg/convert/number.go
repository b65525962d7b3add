package convert

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

// ParseNumber parses decimal text as an int, or as a real when it is not
// integral. Hex, infinities and NaN are not numbers here.
func ParseNumber(s string) (types.Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "xXnNiI_") {
		return types.Null, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return types.NewInt(i), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return types.NewReal(f), true
	}
	return types.Null, false
}

// ToNumber converts v to an int or real value. Booleans are 0 or 1, empty
// collections and strings 0, singleton collections the number of their
// element, other collections their size, non-numeric text its length and
// datetimes their Unix time in milliseconds.
func ToNumber(v types.Value) types.Value {
	switch v.Type() {
	case types.TypeNull:
		return types.NewInt(0)
	case types.TypeBool:
		if v.AsBool() {
			return types.NewInt(1)
		}
		return types.NewInt(0)
	case types.TypeInt, types.TypeReal:
		return v
	case types.TypeDateTime:
		return types.NewInt(v.AsDateTime().UnixMilli())
	case types.TypeList, types.TypeSet:
		items := v.AsList()
		if len(items) == 1 {
			return ToNumber(items[0])
		}
		return types.NewInt(int64(len(items)))
	case types.TypeMap:
		m := v.AsMap()
		if m.Len() == 1 {
			return ToNumber(m.Values()[0])
		}
		return types.NewInt(int64(m.Len()))
	}
	s := ToString(v)
	if n, ok := ParseNumber(s); ok {
		return n
	}
	return types.NewInt(int64(utf8.RuneCountInString(strings.TrimSpace(s))))
}

// ToReal converts v to a float64 following ToNumber.
func ToReal(v types.Value) float64 {
	f, _ := ToNumber(v).AsNumber()
	return f
}

// ToInt converts v to an int64 following ToNumber; reals are truncated.
func ToInt(v types.Value) int64 {
	n := ToNumber(v)
	if n.Type() == types.TypeInt {
		return n.AsInt()
	}
	f := n.AsReal()
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}
