package convert

import (
	"cmp"
	"strings"
	"time"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

// Compare totally orders any two values and returns -1, 0 or 1.
//
// Null sorts before everything. If either side is a list or a set both are
// compared element-wise, then by length. Otherwise, if either side is a
// number or a boolean both compare numerically. If either side is a date and
// the other converts to one, both compare as instants. Everything else
// compares as text.
func Compare(a, b types.Value) int {
	switch {
	case a.IsNull() && b.IsNull():
		return 0
	case a.IsNull():
		return -1
	case b.IsNull():
		return 1
	}
	if a.IsCollection() || b.IsCollection() {
		la, lb := ToList(a), ToList(b)
		for i := 0; i < len(la) && i < len(lb); i++ {
			if c := Compare(la[i], lb[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(la), len(lb))
	}
	if numeric(a) || numeric(b) {
		if a.Type() == types.TypeInt && b.Type() == types.TypeInt {
			return cmp.Compare(a.AsInt(), b.AsInt())
		}
		return cmp.Compare(ToReal(a), ToReal(b))
	}
	if a.Type() == types.TypeDateTime || b.Type() == types.TypeDateTime {
		ta, oka := asInstant(a)
		tb, okb := asInstant(b)
		if oka && okb {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(ToString(a), ToString(b))
}

// Equals reports whether Compare orders a and b together.
func Equals(a, b types.Value) bool {
	return Compare(a, b) == 0
}

func numeric(v types.Value) bool {
	return v.IsNumber() || v.Type() == types.TypeBool
}

func asInstant(v types.Value) (time.Time, bool) {
	switch v.Type() {
	case types.TypeDateTime:
		return v.AsDateTime(), true
	case types.TypeString:
		if strings.TrimSpace(v.AsString()) == "" {
			return time.Time{}, false
		}
		t, err := ParseDate(v.AsString())
		return t, err == nil
	}
	return time.Time{}, false
}
