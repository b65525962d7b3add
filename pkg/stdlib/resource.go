package stdlib

import (
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/resource"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// registerResources registers get, put, post, delete and uri.
func registerResources(r *expr.Registry) {
	register(r, command("get", 1, resGet))
	register(r, command("put", 2, resPut))
	register(r, command("post", types.Variadic, resPost, expr.WithMin(1)))
	register(r, command("delete", 1, resDelete))
	register(r, command("uri", 1, resURI))
}

// target turns a value into the Resource it addresses. Resources are kept
// and text is parsed; anything else is not a target.
func target(v types.Value) (*resource.Resource, bool) {
	switch v.Type() {
	case types.TypeResource:
		return resource.FromValue(v), true
	case types.TypeString:
		return resource.Parse(v.AsString())
	}
	return nil, false
}

func resGet(env *expr.Env, args []types.Value) (types.Value, error) {
	v := arg(args, 0)
	if r, ok := target(v); ok {
		return types.NewResource(r), nil
	}
	return v, nil
}

func resPut(env *expr.Env, args []types.Value) (types.Value, error) {
	v, err := env.Execute(arg(args, 1))
	if err != nil {
		return types.Null, err
	}
	r, ok := target(arg(args, 0))
	if !ok {
		return arg(args, 0), nil
	}
	if _, err := r.Put(env, v); err != nil {
		return types.Null, err
	}
	return types.NewResource(r), nil
}

func resPost(env *expr.Env, args []types.Value) (types.Value, error) {
	values := args[1:]
	if len(values) == 0 {
		values = []types.Value{types.Null}
	}
	r, isResource := target(args[0])
	var parent types.Value
	if !isResource {
		var err error
		if parent, err = env.Execute(args[0]); err != nil {
			return types.Null, err
		}
	}
	result := types.Null
	for _, p := range values {
		v, err := env.Execute(p)
		if err != nil {
			return types.Null, err
		}
		if isResource {
			if result, err = r.Post(env, v); err != nil {
				return types.Null, err
			}
			continue
		}
		if updated, ok := resource.PostValue(parent, v); ok {
			parent = updated
			result = resource.GetValue(parent, "last")
		}
	}
	return result, nil
}

func resDelete(env *expr.Env, args []types.Value) (types.Value, error) {
	r, ok := target(arg(args, 0))
	if !ok {
		return types.NewBool(false), nil
	}
	deleted, err := r.Delete(env)
	if err != nil {
		return types.Null, err
	}
	return types.NewBool(deleted), nil
}

func resURI(env *expr.Env, args []types.Value) (types.Value, error) {
	return types.NewResource(resource.FromValue(arg(args, 0))), nil
}
