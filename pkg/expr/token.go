// Package expr implements the uriel expression language: the tokenizer, the
// single-line and multi-line compilers, the Expression tree, Function
// categories and the Registry they are dispatched from.
package expr

import (
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// TokenKind tells how a token was written.
type TokenKind int

const (
	TokenWord   TokenKind = iota // bareword, resolved by Registry.Resolve
	TokenString                  // double-quoted JSON string literal
)

// String returns a debug-friendly representation of the token kind.
func (k TokenKind) String() string {
	if k == TokenString {
		return "STRING"
	}
	return "WORD"
}

// Token is one lexical unit of a line.
type Token struct {
	Kind  TokenKind
	Text  string      // raw source text
	Value types.Value // resolved value
	Pos   int         // byte offset in the line
}

// Function returns the token's Function if it resolved to one.
func (t Token) Function() (Function, bool) {
	return AsFunction(t.Value)
}

// AsFunction returns the Function held by v, if any.
func AsFunction(v types.Value) (Function, bool) {
	if v.Type() != types.TypeFunction {
		return nil, false
	}
	fn, ok := v.AsFunction().(Function)
	return fn, ok
}

// AsExpression returns the Expression held by v, if any.
func AsExpression(v types.Value) (*Expression, bool) {
	if v.Type() != types.TypeExpression {
		return nil, false
	}
	e, ok := v.AsExpression().(*Expression)
	return e, ok
}
