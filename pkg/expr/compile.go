package expr

import (
	"fmt"
	"strings"

	"github.com/lemonberrylabs/uriel/pkg/convert"
	"github.com/lemonberrylabs/uriel/pkg/resource"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// EndName is the bloc function that closes an open bloc in multi-line
// source.
const EndName = "end"

// Compile compiles source text. A single line compiles with CompileLine;
// several lines compile with CompileLines.
func Compile(reg *Registry, src string) (*Expression, error) {
	src = strings.TrimSpace(src)
	if !strings.Contains(src, "\n") {
		return CompileLine(reg, src)
	}
	return CompileLines(reg, strings.Split(src, "\n"))
}

// CompileLine compiles one line. When the tokens form more than one
// expression, the result is a function-less node holding all of them.
func CompileLine(reg *Registry, line string) (*Expression, error) {
	toks, err := Tokenize(reg, line)
	if err != nil {
		return nil, err
	}
	return CompileTokens(toks), nil
}

// CompileTokens compiles a token list. No token is dropped: tokens left
// once the first expression is complete form sibling expressions.
func CompileTokens(toks []Token) *Expression {
	c := &compiler{toks: toks}
	var exprs []*Expression
	for c.pos < len(c.toks) {
		exprs = append(exprs, c.compile())
	}
	switch len(exprs) {
	case 0:
		return &Expression{}
	case 1:
		return exprs[0]
	}
	root := &Expression{params: make([]types.Value, len(exprs))}
	for i, x := range exprs {
		root.params[i] = x.Value()
	}
	return root
}

// CompileValues compiles already resolved values, such as the raw
// parameters a bloc receives, as if they were the tokens of one line.
// Expressions among them are kept as parameters.
func CompileValues(vals []types.Value) *Expression {
	toks := make([]Token, len(vals))
	for i, v := range vals {
		toks[i] = Token{Value: v}
	}
	return CompileTokens(toks)
}

type compiler struct {
	toks []Token
	pos  int
}

// compile builds one expression from the current token. The first function
// token met before any parameter becomes the node's function. A bloc takes
// every following token raw. Otherwise a function token starts a nested
// expression, except the very function of a variadic node, which closes it.
// The node is complete once its arity is met.
func (c *compiler) compile() *Expression {
	e := &Expression{}
	for c.pos < len(c.toks) {
		if e.fn != nil && e.fn.Arity() != types.Variadic && len(e.params) >= e.fn.Arity() {
			break
		}
		tok := c.toks[c.pos]
		if e.fn != nil && e.fn.Category() == Bloc {
			e.params = append(e.params, tok.Value)
			c.pos++
			continue
		}
		if fn, ok := tok.Function(); ok {
			if e.fn == nil && len(e.params) == 0 {
				e.fn = fn
				c.pos++
				continue
			}
			if e.fn == fn && fn.Arity() == types.Variadic {
				c.pos++
				break
			}
			e.params = append(e.params, c.compile().Value())
			continue
		}
		e.params = append(e.params, tok.Value)
		c.pos++
	}
	return e
}

type blocFrame struct {
	fn     Function
	params []types.Value
}

// CompileLines compiles a multi-line script. Blank lines and lines starting
// with # are skipped. A line whose function is a bloc opens a nesting level
// that collects the following lines; an end line closes the innermost open
// bloc, or the innermost one with the name it gives. Blocs still open at
// the end of input are closed innermost first. The result runs its lines in
// order and answers the last result.
func CompileLines(reg *Registry, lines []string) (*Expression, error) {
	root := &blocFrame{fn: sequence}
	stack := []*blocFrame{root}
	closeTop := func() {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		parent := stack[len(stack)-1]
		parent.params = append(parent.params, (&Expression{fn: top.fn, params: top.params}).Value())
	}

	for n, line := range lines {
		txt := strings.TrimSpace(line)
		if txt == "" || txt[0] == '#' {
			continue
		}
		e, err := CompileLine(reg, txt)
		if err != nil {
			if pe, ok := err.(*types.Error); ok {
				pe.Message = fmt.Sprintf("line %d: %s", n+1, pe.Message)
			}
			return nil, err
		}
		if e.fn == nil || e.fn.Category() != Bloc {
			top := stack[len(stack)-1]
			top.params = append(top.params, e.Value())
			continue
		}
		if e.fn.Name() != EndName {
			stack = append(stack, &blocFrame{fn: e.fn, params: e.params})
			continue
		}
		if len(stack) == 1 {
			return nil, types.NewParseError(txt, fmt.Sprintf("line %d: %s without an open bloc", n+1, EndName))
		}
		name := blocName(e.params)
		target := len(stack) - 1
		if name != "" {
			for target > 0 && stack[target].fn.Name() != name {
				target--
			}
			if target == 0 {
				return nil, types.NewParseError(txt, fmt.Sprintf("line %d: no open bloc named %q", n+1, name))
			}
		}
		for len(stack) > target {
			closeTop()
		}
	}
	for len(stack) > 1 {
		closeTop()
	}
	return &Expression{fn: sequence, params: root.params}, nil
}

// blocName reads the bloc name an end line gives.
func blocName(params []types.Value) string {
	if len(params) == 0 {
		return ""
	}
	p := params[0]
	if fn, ok := AsFunction(p); ok {
		return fn.Name()
	}
	if x, ok := AsExpression(p); ok {
		if x.fn != nil {
			return x.fn.Name()
		}
		return ""
	}
	if p.Type() == types.TypeResource {
		if r, ok := p.AsResource().(*resource.Resource); ok && r.Scheme() == resource.SchemeNone {
			if segs := resource.Segments(r.String()); len(segs) > 0 {
				return segs[0]
			}
		}
	}
	return convert.ToString(p)
}

// sequence is the root of a multi-line script. It runs its parameters in
// order and answers the last result.
var sequence = NewBuiltin("sequence", Bloc, types.Variadic, func(env *Env, args []types.Value) (types.Value, error) {
	result := types.Null
	for _, a := range args {
		v, err := env.Evaluate(a)
		if err != nil {
			return types.Null, err
		}
		result = v
	}
	return result, nil
})
