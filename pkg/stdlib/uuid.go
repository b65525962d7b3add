package stdlib

import (
	"github.com/google/uuid"

	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// registerUUID registers uuid.* functions.
func registerUUID(r *expr.Registry) {
	register(r, pure("uuid.generate", 0, uuidGenerate))
}

func uuidGenerate(args []types.Value) (types.Value, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return types.Null, types.NewStateError("uuid.generate: " + err.Error())
	}
	return types.NewString(id.String()), nil
}
