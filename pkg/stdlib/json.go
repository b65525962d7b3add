package stdlib

import (
	"github.com/lemonberrylabs/uriel/pkg/codec"
	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// registerJSON registers json.* functions, which read and print values
// through the Env's codec table.
func registerJSON(r *expr.Registry) {
	register(r, command("json.decode", 1, jsonDecode, expr.WithMin(1)))
	register(r, command("json.encode", 1, jsonEncode, expr.WithMin(1)))
}

func jsonDecode(env *expr.Env, args []types.Value) (types.Value, error) {
	v, err := env.Execute(args[0])
	if err != nil {
		return types.Null, err
	}
	return env.Codecs().Read(convert.ToBytes(v), codec.JSON)
}

func jsonEncode(env *expr.Env, args []types.Value) (types.Value, error) {
	v, err := env.Execute(args[0])
	if err != nil {
		return types.Null, err
	}
	b, err := env.Codecs().Print(v, codec.JSON)
	if err != nil {
		return types.Null, err
	}
	return types.NewString(string(b)), nil
}
