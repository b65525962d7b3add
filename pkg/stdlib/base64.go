package stdlib

import (
	"encoding/base64"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// registerBase64 registers base64.* functions.
func registerBase64(r *expr.Registry) {
	register(r, pure("base64.decode", 1, base64Decode))
	register(r, pure("base64.encode", 1, base64Encode))
}

func base64Decode(args []types.Value) (types.Value, error) {
	input := convert.ToString(args[0])
	decoded, err := base64.StdEncoding.DecodeString(input)
	if err != nil {
		// Try URL-safe encoding
		decoded, err = base64.URLEncoding.DecodeString(input)
		if err != nil {
			return types.Null, types.NewConversionError("bytes", "base64.decode: invalid base64: "+err.Error())
		}
	}
	return types.NewBytes(decoded), nil
}

func base64Encode(args []types.Value) (types.Value, error) {
	return types.NewString(base64.StdEncoding.EncodeToString(convert.ToBytes(args[0]))), nil
}
