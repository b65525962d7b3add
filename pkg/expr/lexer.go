package expr

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/resource"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// Lexer tokenizes one line of source text.
type Lexer struct {
	input  string
	pos    int
	reg    *Registry
	tokens []Token
}

// NewLexer creates a lexer that resolves barewords against reg.
func NewLexer(reg *Registry, input string) *Lexer {
	return &Lexer{input: input, reg: reg}
}

// Tokenize scans the line and returns its tokens. Whitespace separates
// tokens, # at the start of a token ends the line and a double quote at the
// start of a token opens a JSON string literal.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.input) || l.input[l.pos] == '#' {
			return l.tokens, nil
		}
		var tok Token
		var err error
		if l.input[l.pos] == '"' {
			tok, err = l.readString()
		} else {
			tok = l.readWord()
		}
		if err != nil {
			return nil, err
		}
		l.tokens = append(l.tokens, tok)
	}
}

// Tokenize is a shortcut for NewLexer(reg, line).Tokenize().
func Tokenize(reg *Registry, line string) ([]Token, error) {
	return NewLexer(reg, line).Tokenize()
}

// readString reads a quoted literal up to its unescaped closing quote and
// decodes it as JSON.
func (l *Lexer) readString() (Token, error) {
	start := l.pos
	l.pos++ // skip opening quote

	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case '"':
			l.pos++
			raw := l.input[start:l.pos]
			var s string
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				return Token{}, types.NewParseError(l.input, fmt.Sprintf("invalid string literal at position %d: %v", start, err))
			}
			return Token{Kind: TokenString, Text: raw, Value: types.NewString(s), Pos: start}, nil
		}
		l.pos++
	}

	return Token{}, types.NewParseError(l.input, fmt.Sprintf("missing closing quote for string literal at position %d", start))
}

// readWord reads a bareword and resolves it.
func (l *Lexer) readWord() Token {
	start := l.pos
	for l.pos < len(l.input) {
		c, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if isBlank(c) {
			break
		}
		l.pos += size
	}
	word := l.input[start:l.pos]
	return Token{Kind: TokenWord, Text: word, Value: l.reg.Resolve(word), Pos: start}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		c, size := utf8.DecodeRuneInString(l.input[l.pos:])
		if !isBlank(c) {
			return
		}
		l.pos += size
	}
}

// isBlank reports whether c separates tokens: the ASCII control range, the
// space and the high blanks U+007F to U+00A0.
func isBlank(c rune) bool {
	return c <= ' ' || (c >= 0x7F && c <= 0xA0)
}

var keywords = map[string]types.Value{
	"true":  types.NewBool(true),
	"false": types.NewBool(false),
	"null":  types.Null,
}

// Resolve turns a bareword into a value, trying in order the keywords, the
// registered functions, integer and real literals, date literals and
// resources. A word matching none of them is text.
func (r *Registry) Resolve(word string) types.Value {
	if v, ok := keywords[word]; ok {
		return v
	}
	if fn, ok := r.Lookup(word); ok {
		return types.NewFunction(fn)
	}
	if n, ok := convert.ParseNumber(word); ok {
		return n
	}
	if t, err := convert.ParseDate(word); err == nil {
		return types.NewDateTime(t)
	}
	if res, ok := resource.Parse(word); ok {
		return types.NewResource(res)
	}
	return types.NewString(word)
}
