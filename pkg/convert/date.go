package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

// dayMillis scales the fractional part of a numeric date.
const dayMillis = 86_400_000

// dateSeparators split a text date from its time of day.
const dateSeparators = " \t,_T"

// ToDate converts v to a time. It accepts datetimes, lists of one to six
// unsigned integers (year, month, day, hour, minute, second), date texts and
// numbers whose integral part is a year and whose fractional part scales
// 86,400,000 milliseconds. All dates are UTC.
func ToDate(v types.Value) (time.Time, error) {
	switch v.Type() {
	case types.TypeDateTime:
		return v.AsDateTime(), nil
	case types.TypeInt:
		return fromParts([]int{int(v.AsInt())})
	case types.TypeReal:
		f := v.AsReal()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return time.Time{}, dateError(v, "not a finite number")
		}
		year, frac := math.Modf(f)
		t, err := fromParts([]int{int(year)})
		if err != nil {
			return t, err
		}
		return t.Add(time.Duration(frac*dayMillis) * time.Millisecond), nil
	case types.TypeList, types.TypeSet:
		items := v.AsList()
		parts := make([]int, len(items))
		for i, item := range items {
			n, err := unsignedInt(item)
			if err != nil {
				return time.Time{}, dateError(v, err.Error())
			}
			parts[i] = n
		}
		return fromParts(parts)
	case types.TypeString, types.TypeBytes:
		return ParseDate(ToString(v))
	}
	return time.Time{}, dateError(v, "no date form for "+v.Type().String())
}

// ParseDate parses a text date. A blank text is the current time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	fail := func(msg string) (time.Time, error) {
		return time.Time{}, dateError(types.NewString(s), msg)
	}
	if i := strings.IndexAny(s, dateSeparators); i > 0 {
		date, err := splitInts(s[:i], "-")
		if err != nil {
			return fail(err.Error())
		}
		if len(date) != 3 {
			return fail("date part needs year, month and day")
		}
		clock, err := splitInts(strings.TrimSpace(s[i+1:]), ":")
		if err != nil {
			return fail(err.Error())
		}
		if len(clock) > 3 {
			return fail("too many time fields")
		}
		return fromParts(append(date, clock...))
	}
	if strings.Contains(s, ":") {
		clock, err := splitInts(s, ":")
		if err != nil {
			return fail(err.Error())
		}
		if len(clock) < 2 || len(clock) > 3 {
			return fail("time of day needs hours and minutes")
		}
		return fromParts(append([]int{1970, 1, 1}, clock...))
	}
	date, err := splitInts(s, "-")
	if err != nil {
		return fail(err.Error())
	}
	return fromParts(date)
}

// fromParts builds a date from up to six positional fields. With three or
// fewer fields the month must be 1..12 and the day 1..31.
func fromParts(parts []int) (time.Time, error) {
	if len(parts) == 0 || len(parts) > 6 {
		return time.Time{}, types.NewConversionError("date",
			fmt.Sprintf("expected 1 to 6 date fields, got %d", len(parts)))
	}
	f := [6]int{0, 1, 1, 0, 0, 0}
	copy(f[:], parts)
	if f[1] < 1 || f[1] > 12 {
		return time.Time{}, types.NewConversionError("date", fmt.Sprintf("month %d out of range", f[1]))
	}
	if f[2] < 1 || f[2] > 31 {
		return time.Time{}, types.NewConversionError("date", fmt.Sprintf("day %d out of range", f[2]))
	}
	return time.Date(f[0], time.Month(f[1]), f[2], f[3], f[4], f[5], 0, time.UTC), nil
}

func splitInts(s, sep string) ([]int, error) {
	fields := strings.Split(s, sep)
	out := make([]int, len(fields))
	for i, field := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%q is not an unsigned integer", field)
		}
		out[i] = n
	}
	return out, nil
}

func unsignedInt(v types.Value) (int, error) {
	var n types.Value
	switch v.Type() {
	case types.TypeInt, types.TypeReal:
		n = v
	case types.TypeString:
		parsed, ok := ParseNumber(v.AsString())
		if !ok {
			return 0, fmt.Errorf("%q is not an unsigned integer", v.AsString())
		}
		n = parsed
	default:
		return 0, fmt.Errorf("%s is not an unsigned integer", v.Type())
	}
	f, _ := n.AsNumber()
	if f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("%s is not an unsigned integer", v)
	}
	return int(f), nil
}

func dateError(v types.Value, msg string) error {
	return types.NewConversionError("date", fmt.Sprintf("cannot convert %q to a date: %s", v.String(), msg))
}
