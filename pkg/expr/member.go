package expr

import (
	"fmt"
	"strings"

	"github.com/lemonberrylabs/uriel/pkg/resource"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// memberFunction calls the member it is named after on its first argument.
type memberFunction string

func (m memberFunction) Name() string       { return string(m) }
func (m memberFunction) Category() Category { return Command }
func (m memberFunction) Arity() int         { return types.Variadic }

func (m memberFunction) Execute(env *Env, args []types.Value) (types.Value, error) {
	if len(args) == 0 {
		return types.Null, types.NewDispatchError(string(m), "missing receiver")
	}
	return env.CallMember(args[0], string(m), args[1:])
}

// CallMember dispatches the member name on target. Members of a host object
// are filtered by name and receiver; among several candidates the one whose
// arity equals the argument count wins, then a variadic one, then the first.
// A name that is not a member of target reads it as a value path key when
// there are no arguments.
func (e *Env) CallMember(target types.Value, name string, args []types.Value) (types.Value, error) {
	recv, err := e.Execute(target)
	if err != nil {
		return types.Null, err
	}
	vals, err := e.ExecuteAll(args)
	if err != nil {
		return types.Null, err
	}
	var members []types.Member
	if obj, ok := hostObject(recv); ok {
		for _, m := range obj.Members() {
			if m.Name == name {
				members = append(members, m)
			}
		}
		if m, ok := pickMember(members, recv, len(vals)); ok {
			return m.Call(recv, vals)
		}
	}
	if len(vals) == 0 {
		return resource.GetValue(recv, name), nil
	}
	msg := fmt.Sprintf("%s has no member %q", typeName(recv), name)
	if obj, ok := hostObject(recv); ok && len(members) == 0 {
		names := make([]string, 0, len(obj.Members()))
		for _, m := range obj.Members() {
			names = append(names, m.Name)
		}
		if s := suggest(name, names); len(s) > 0 {
			msg += fmt.Sprintf(", did you mean %s?", strings.Join(s, ", "))
		}
	}
	return types.Null, types.NewDispatchError(name, msg)
}

func hostObject(v types.Value) (types.Introspectable, bool) {
	if v.Type() != types.TypeOpaque {
		return nil, false
	}
	obj, ok := v.AsOpaque().(types.Introspectable)
	return obj, ok
}

func pickMember(members []types.Member, recv types.Value, argc int) (types.Member, bool) {
	var variadic, first *types.Member
	for i := range members {
		m := &members[i]
		if !m.Accepts(recv) {
			continue
		}
		if m.Arity == argc {
			return *m, true
		}
		if m.Arity == types.Variadic && variadic == nil {
			variadic = m
		}
		if first == nil {
			first = m
		}
	}
	switch {
	case variadic != nil:
		return *variadic, true
	case first != nil:
		return *first, true
	}
	return types.Member{}, false
}

func typeName(v types.Value) string {
	if v.Type() == types.TypeOpaque {
		return v.AsOpaque().TypeName()
	}
	return v.Type().String()
}
