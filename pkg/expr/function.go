package expr

import (
	"fmt"

	"github.com/lemonberrylabs/uriel/pkg/types"
)

// Category decides how a Function's arguments are compiled and evaluated.
type Category int

const (
	// Command functions get their arguments evaluated left to right.
	Command Category = iota
	// Bloc functions get raw tokens and unevaluated sub-expressions and run
	// them when and as often as they like.
	Bloc
	// Relation functions take exactly two evaluated arguments.
	Relation
	// Logic functions take two unevaluated arguments and short-circuit.
	Logic
	// Qualifier functions take exactly one evaluated argument.
	Qualifier
	// State functions take exactly two evaluated arguments.
	State
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case Command:
		return "command"
	case Bloc:
		return "bloc"
	case Relation:
		return "relation"
	case Logic:
		return "logic"
	case Qualifier:
		return "qualifier"
	case State:
		return "state"
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// Lazy reports whether arguments reach the function unevaluated.
func (c Category) Lazy() bool {
	return c == Bloc || c == Logic
}

// Function is a named, callable operation. Arity is the number of
// parameters the compiler gives it, or types.Variadic to consume tokens up
// to the end of the line or a token naming the same function.
type Function interface {
	Name() string
	Category() Category
	Arity() int
	Execute(env *Env, args []types.Value) (types.Value, error)
}

// Required returns how many arguments fn must receive to execute. Relation,
// Logic, Qualifier and State functions need their full arity. Commands and
// blocs accept fewer unless they declare a minimum.
func Required(fn Function) int {
	if m, ok := fn.(interface{ Min() int }); ok {
		return m.Min()
	}
	switch fn.Category() {
	case Relation, Logic, Qualifier, State:
		if fn.Arity() > 0 {
			return fn.Arity()
		}
	}
	return 0
}

// TakesRawArgs reports whether fn receives its arguments unevaluated.
func TakesRawArgs(fn Function) bool {
	if r, ok := fn.(interface{ RawArgs() bool }); ok {
		return r.RawArgs()
	}
	return fn.Category().Lazy()
}

// ExecFunc implements a Builtin.
type ExecFunc func(env *Env, args []types.Value) (types.Value, error)

// Builtin is a Function backed by a Go func.
type Builtin struct {
	name     string
	category Category
	arity    int
	min      int
	raw      bool
	exec     ExecFunc
}

// BuiltinOption configures a Builtin.
type BuiltinOption func(*Builtin)

// WithMin sets the minimum argument count.
func WithMin(n int) BuiltinOption {
	return func(b *Builtin) { b.min = n }
}

// WithRawArgs makes a Builtin of an eager category receive its arguments
// unevaluated, as Bloc and Logic functions do.
func WithRawArgs() BuiltinOption {
	return func(b *Builtin) { b.raw = true }
}

// NewBuiltin creates a Builtin. Relation, State and Logic functions always
// have arity 2 and Qualifiers arity 1.
func NewBuiltin(name string, category Category, arity int, exec ExecFunc, opts ...BuiltinOption) *Builtin {
	switch category {
	case Relation, State, Logic:
		arity = 2
	case Qualifier:
		arity = 1
	case Bloc:
		arity = types.Variadic
	}
	b := &Builtin{name: name, category: category, arity: arity, min: -1, exec: exec}
	for _, opt := range opts {
		opt(b)
	}
	if b.min < 0 {
		b.min = 0
		if category != Command && category != Bloc {
			b.min = arity
		}
	}
	return b
}

// Name returns the function name.
func (b *Builtin) Name() string { return b.name }

// Category returns the function category.
func (b *Builtin) Category() Category { return b.category }

// Arity returns the parameter count or types.Variadic.
func (b *Builtin) Arity() int { return b.arity }

// Min returns the minimum argument count.
func (b *Builtin) Min() int { return b.min }

// RawArgs reports whether arguments reach the Builtin unevaluated.
func (b *Builtin) RawArgs() bool { return b.raw || b.category.Lazy() }

// Execute runs the function.
func (b *Builtin) Execute(env *Env, args []types.Value) (types.Value, error) {
	return b.exec(env, args)
}

// String returns the function name.
func (b *Builtin) String() string { return b.name }
