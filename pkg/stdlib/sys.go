package stdlib

import (
	"log/slog"
	"os"
	"time"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// registerSys registers sys.* functions.
func registerSys(r *expr.Registry) {
	register(r, pure("sys.env", 1, sysEnv))
	register(r, command("sys.log", types.Variadic, sysLog, expr.WithMin(1)))
	register(r, pure("sys.now", 0, sysNow))
	register(r, command("sys.sleep", 1, sysSleep, expr.WithMin(1)))
}

// sysEnv answers an environment variable, null when it is not set.
func sysEnv(args []types.Value) (types.Value, error) {
	val, ok := os.LookupEnv(convert.ToString(args[0]))
	if !ok {
		return types.Null, nil
	}
	return types.NewString(val), nil
}

// sysLog logs its first argument at the severity named by the second,
// INFO by default.
func sysLog(env *expr.Env, args []types.Value) (types.Value, error) {
	vals, err := env.ExecuteAll(args)
	if err != nil {
		return types.Null, err
	}
	level := slog.LevelInfo
	if len(vals) > 1 {
		if err := level.UnmarshalText([]byte(convert.ToString(vals[1]))); err != nil {
			level = slog.LevelInfo
		}
	}
	msg := convert.ToString(vals[0])
	logger := env.Logger()
	switch {
	case level >= slog.LevelError:
		logger.Error(msg)
	case level >= slog.LevelWarn:
		logger.Warn(msg)
	case level >= slog.LevelInfo:
		logger.Info(msg)
	default:
		logger.Debug(msg)
	}
	return types.Null, nil
}

func sysNow(args []types.Value) (types.Value, error) {
	return types.NewDateTime(time.Now().UTC()), nil
}

// sysSleep waits for a number of seconds, or until execution is cancelled.
func sysSleep(env *expr.Env, args []types.Value) (types.Value, error) {
	v, err := env.Execute(args[0])
	if err != nil {
		return types.Null, err
	}
	d := time.Duration(convert.ToReal(v) * float64(time.Second))
	if d <= 0 {
		return types.Null, nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return types.Null, nil
	case <-env.Context().Done():
		return types.Null, env.Context().Err()
	}
}
