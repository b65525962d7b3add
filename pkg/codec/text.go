package codec

import (
	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

type textCodec struct{}

func (textCodec) Decode(data []byte) (types.Value, error) {
	return types.NewString(string(data)), nil
}

// Encode writes the value's text; null is empty.
func (textCodec) Encode(v types.Value) ([]byte, error) {
	return []byte(Stringify(v)), nil
}

// Stringify renders v as text for the text mimetypes: null is empty and
// everything else follows convert.ToString.
func Stringify(v types.Value) string {
	if v.IsNull() {
		return ""
	}
	return convert.ToString(v)
}
