package types

// Callable is the payload of a TypeFunction value.
type Callable interface {
	Name() string
}

// Endpoint is the payload of a TypeResource value.
type Endpoint interface {
	String() string
	Scheme() string
}

// Deferred is the payload of a TypeExpression value: a compiled tree that has
// not been evaluated yet.
type Deferred interface {
	String() string
}

// Object is the payload of a TypeOpaque value.
type Object interface {
	TypeName() string
}

// Variadic marks a member or constructor that accepts any number of arguments.
const Variadic = -1

// Introspectable is implemented by host objects that expose named fields and
// callable members to scripts. Value paths read and write fields; the do
// builtin dispatches members.
type Introspectable interface {
	Object
	Fields() []string
	Field(name string) (Value, bool)
	SetField(name string, v Value) bool
	Members() []Member
}

// Member is a callable operation of a host object.
type Member struct {
	Name string
	// Arity is the number of arguments after the receiver, or Variadic.
	Arity int
	// Receiver is the type name the member is declared on. Empty means any
	// receiver is assignable.
	Receiver string
	Call     func(recv Value, args []Value) (Value, error)
}

// Accepts reports whether the member can be invoked on recv.
func (m Member) Accepts(recv Value) bool {
	if m.Receiver == "" {
		return true
	}
	return recv.Type() == TypeOpaque && recv.AsOpaque().TypeName() == m.Receiver
}

// Constructor builds a host object from arguments.
type Constructor struct {
	// Arity is the parameter count, or Variadic.
	Arity int
	// Accepts optionally restricts which argument values the constructor
	// takes; nil accepts anything of the right count.
	Accepts func(args []Value) bool
	New     func(args []Value) (Value, error)
}

// Matches reports whether the constructor takes args.
func (c Constructor) Matches(args []Value) bool {
	if c.Arity != Variadic && c.Arity != len(args) {
		return false
	}
	return c.Accepts == nil || c.Accepts(args)
}

// HostType describes a host type whose constructors scripts may call.
type HostType interface {
	TypeName() string
	Constructors() []Constructor
}
