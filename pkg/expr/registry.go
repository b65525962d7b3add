package expr

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// maxSuggestions caps the "did you mean" list of a dispatch error.
const maxSuggestions = 3

// Registry maps names to Functions. A name is bound once: the first
// registration wins. Host types declared with Declare are turned into
// constructor functions the first time their name is looked up, and
// "Type#member" names resolve to a member of a declared type.
type Registry struct {
	mu        sync.RWMutex
	funcs     map[string]Function
	hostTypes map[string]types.HostType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs:     make(map[string]Function),
		hostTypes: make(map[string]types.HostType),
	}
}

// Register binds fn under its own name. It reports false, leaving the
// registry unchanged, when the name is taken.
func (r *Registry) Register(fn Function) bool {
	return r.Alias(fn.Name(), fn)
}

// Alias binds fn under another name.
func (r *Registry) Alias(name string, fn Function) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		return false
	}
	r.funcs[name] = fn
	return true
}

// Declare makes a host type known so that its name and its members can be
// resolved lazily. Declaring does not bind any name.
func (r *Registry) Declare(t types.HostType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hostTypes[t.TypeName()]; !exists {
		r.hostTypes[t.TypeName()] = t
	}
}

// RegisterType derives a constructor Command from t and binds it under
// name, or under t.TypeName() when name is empty. It returns nil when the
// name is taken or t has no constructor.
func (r *Registry) RegisterType(t types.HostType, name string) Function {
	if name == "" {
		name = t.TypeName()
	}
	r.Declare(t)
	fn := constructorFunction(t, name)
	if fn == nil || !r.Alias(name, fn) {
		return nil
	}
	return fn
}

// Lookup finds the function bound to name, falling back on declared host
// types. A resolved host-type function is cached under name.
func (r *Registry) Lookup(name string) (Function, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if ok {
		return fn, true
	}
	if fn = r.hostFunction(name); fn == nil {
		return nil, false
	}
	r.Alias(name, fn)
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.funcs[name], true
}

// Get is Lookup that reports an unknown name as a dispatch error with
// suggestions.
func (r *Registry) Get(name string) (Function, error) {
	if fn, ok := r.Lookup(name); ok {
		return fn, nil
	}
	return nil, r.unknown(name, r.Names())
}

// Names returns every bound name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Suggest returns the names closest to name.
func (r *Registry) Suggest(name string) []string {
	return suggest(name, r.Names())
}

func (r *Registry) unknown(name string, candidates []string) error {
	msg := fmt.Sprintf("unknown function %q", name)
	if s := suggest(name, candidates); len(s) > 0 {
		msg += fmt.Sprintf(", did you mean %s?", strings.Join(s, ", "))
	}
	return types.NewDispatchError(name, msg)
}

func suggest(name string, candidates []string) []string {
	var out []string
	for _, m := range fuzzy.Find(name, candidates) {
		out = append(out, m.Str)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func (r *Registry) hostFunction(name string) Function {
	typeName, member, hasMember := strings.Cut(name, "#")
	if hasMember && strings.Contains(member, "#") {
		return nil
	}
	r.mu.RLock()
	t, ok := r.hostTypes[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	if !hasMember {
		return constructorFunction(t, name)
	}
	mt, ok := t.(interface{ Members() []types.Member })
	if !ok {
		return nil
	}
	var members []types.Member
	for _, m := range mt.Members() {
		if m.Name == member {
			members = append(members, m)
		}
	}
	if len(members) == 0 {
		return nil
	}
	return &boundMember{name: name, members: members}
}

// constructorFunction wraps the constructors of t as a Command. Its arity
// is the largest constructor arity, or variadic when any constructor is.
func constructorFunction(t types.HostType, name string) Function {
	ctors := t.Constructors()
	if len(ctors) == 0 {
		return nil
	}
	arity := 0
	for _, c := range ctors {
		if c.Arity == types.Variadic {
			arity = types.Variadic
			break
		}
		if c.Arity > arity {
			arity = c.Arity
		}
	}
	return NewBuiltin(name, Command, arity, func(env *Env, args []types.Value) (types.Value, error) {
		vals, err := env.ExecuteAll(args)
		if err != nil {
			return types.Null, err
		}
		var selected *types.Constructor
		for i := range ctors {
			if ctors[i].Arity == len(vals) && ctors[i].Matches(vals) {
				selected = &ctors[i]
				break
			}
			if ctors[i].Arity == types.Variadic && selected == nil && ctors[i].Matches(vals) {
				selected = &ctors[i]
			}
		}
		if selected == nil {
			if len(vals) == 1 {
				return convert.ConvertHost(vals[0], t)
			}
			return types.Null, types.NewDispatchError(name,
				fmt.Sprintf("no constructor of %s takes %d arguments", t.TypeName(), len(vals)))
		}
		return selected.New(vals)
	})
}

// boundMember calls a member of a declared host type, taking the receiver
// as first argument.
type boundMember struct {
	name    string
	members []types.Member
}

func (b *boundMember) Name() string       { return b.name }
func (b *boundMember) Category() Category { return Command }
func (b *boundMember) Arity() int         { return types.Variadic }

func (b *boundMember) Execute(env *Env, args []types.Value) (types.Value, error) {
	vals, err := env.ExecuteAll(args)
	if err != nil {
		return types.Null, err
	}
	if len(vals) == 0 {
		return types.Null, types.NewDispatchError(b.name, "missing receiver")
	}
	m, ok := pickMember(b.members, vals[0], len(vals)-1)
	if !ok {
		return types.Null, types.NewDispatchError(b.name,
			fmt.Sprintf("no member %s accepts a %s receiver", b.name, typeName(vals[0])))
	}
	return m.Call(vals[0], vals[1:])
}
