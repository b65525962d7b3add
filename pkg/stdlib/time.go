package stdlib

import (
	"time"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// registerTime registers time.* functions.
func registerTime(r *expr.Registry) {
	register(r, pure("time.format", 2, timeFormat, expr.WithMin(1)))
	register(r, pure("time.parse", 1, timeParse))
}

// timeFormat renders a date as RFC 3339 text in the named time zone, UTC
// by default.
func timeFormat(args []types.Value) (types.Value, error) {
	t, err := convert.ToDate(args[0])
	if err != nil {
		return types.Null, err
	}
	tz := "UTC"
	if len(args) > 1 && !args[1].IsNull() {
		tz = convert.ToString(args[1])
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return types.Null, types.NewConversionError("date", "time.format: invalid timezone "+tz+": "+err.Error())
	}
	return types.NewString(t.In(loc).Format(time.RFC3339Nano)), nil
}

func timeParse(args []types.Value) (types.Value, error) {
	t, err := convert.ParseDate(convert.ToString(args[0]))
	if err != nil {
		return types.Null, err
	}
	return types.NewDateTime(t), nil
}
