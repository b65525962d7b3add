package stdlib

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// registerCommands registers add, print, eval, do, shell and exit.
func registerCommands(r *expr.Registry) {
	register(r, pure("add", types.Variadic, add), "sum")
	register(r, command("print", types.Variadic, printLine))
	register(r, command("eval", 1, evalText))
	register(r, command("do", types.Variadic, doMember, expr.WithMin(2)))
	register(r, command("shell", types.Variadic, runShell, expr.WithMin(1)))
	register(r, command("exit", 1, exitStatus))
}

// add folds its arguments on the kind of the first one: numbers are summed,
// staying integers while every term is one, texts are concatenated,
// booleans are and-ed and anything else is concatenated as lists.
func add(args []types.Value) (types.Value, error) {
	if len(args) == 0 {
		return types.Null, nil
	}
	result := args[0]
	for _, v := range args[1:] {
		switch result.Type() {
		case types.TypeNull:
			result = v
		case types.TypeInt, types.TypeReal:
			n := convert.ToNumber(v)
			if result.Type() == types.TypeInt && n.Type() == types.TypeInt {
				result = types.NewInt(result.AsInt() + n.AsInt())
			} else {
				result = types.NewReal(convert.ToReal(result) + convert.ToReal(n))
			}
		case types.TypeString:
			if !v.IsNull() {
				result = types.NewString(result.AsString() + convert.ToString(v))
			}
		case types.TypeBool:
			result = types.NewBool(result.AsBool() && convert.ToBool(v))
		default:
			items := append([]types.Value{}, convert.ToList(result)...)
			result = types.NewList(append(items, convert.ToList(v)...))
		}
	}
	return result, nil
}

func printLine(env *expr.Env, args []types.Value) (types.Value, error) {
	var b strings.Builder
	for _, a := range args {
		v, err := env.Execute(a)
		if err != nil {
			return types.Null, err
		}
		b.WriteString(convert.ToString(v))
	}
	b.WriteByte('\n')
	if _, err := fmt.Fprint(env.Out(), b.String()); err != nil {
		return types.Null, types.NewStateError("print failed: " + err.Error())
	}
	return types.Null, nil
}

// evalText compiles text and runs it. Other values are executed as they are.
func evalText(env *expr.Env, args []types.Value) (types.Value, error) {
	v, err := env.Execute(arg(args, 0))
	if err != nil {
		return types.Null, err
	}
	if v.Type() != types.TypeString {
		return v, nil
	}
	e, err := env.Compile(v.AsString())
	if err != nil {
		return types.Null, err
	}
	return env.Execute(e.Value())
}

// doMember calls a member of a target: "do page text" reads the text member of
// page, further arguments are passed to the member.
func doMember(env *expr.Env, args []types.Value) (types.Value, error) {
	target, err := env.Execute(args[0])
	if err != nil {
		return types.Null, err
	}
	if target.IsNull() {
		return types.Null, nil
	}
	name, err := keyName(env, args[1])
	if err != nil {
		return types.Null, err
	}
	return env.CallMember(target, name, args[2:])
}

// runShell runs a command line, writing its output to the Env's output, and
// answers its exit status. A command that cannot start is logged and
// answers null.
func runShell(env *expr.Env, args []types.Value) (types.Value, error) {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		v, err := env.Execute(a)
		if err != nil {
			return types.Null, err
		}
		parts = append(parts, convert.ToString(v))
	}
	fields := strings.Fields(strings.Join(parts, " "))
	if len(fields) == 0 {
		return types.Null, nil
	}
	cmd := exec.CommandContext(env.Context(), fields[0], fields[1:]...)
	cmd.Stdout = env.Out()
	cmd.Stderr = env.Out()
	err := cmd.Run()
	if ctxErr := env.Context().Err(); ctxErr != nil {
		return types.Null, ctxErr
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return types.NewInt(0), nil
	case errors.As(err, &exitErr):
		return types.NewInt(int64(exitErr.ExitCode())), nil
	}
	env.Logger().Warn("shell command failed",
		slog.String("command", fields[0]),
		slog.Any("error", err))
	return types.Null, nil
}

func exitStatus(env *expr.Env, args []types.Value) (types.Value, error) {
	v, err := env.Execute(arg(args, 0))
	if err != nil {
		return types.Null, err
	}
	return types.Null, &types.ExitError{Code: int(convert.ToInt(v))}
}
