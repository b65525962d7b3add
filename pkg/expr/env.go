package expr

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/lemonberrylabs/uriel/pkg/codec"
	"github.com/lemonberrylabs/uriel/pkg/log"
	"github.com/lemonberrylabs/uriel/pkg/resource"
	"github.com/lemonberrylabs/uriel/pkg/scope"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// maxUnwrap bounds how many Expression and Resource layers Execute peels
// off a value before giving up on a cycle.
const maxUnwrap = 256

// Env is what an Expression executes against: the Context for variables,
// the Registry for functions and the collaborators resources need.
type Env struct {
	ctx    context.Context
	scope  *scope.Context
	reg    *Registry
	codecs *codec.Table
	client *http.Client
	logger log.Logger
	out    io.Writer
}

var _ resource.Host = (*Env)(nil)

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithScope sets the Context. The default is a fresh root Context.
func WithScope(cx *scope.Context) EnvOption {
	return func(e *Env) { e.scope = cx }
}

// WithCodecs sets the codec table. The default is codec.Default.
func WithCodecs(t *codec.Table) EnvOption {
	return func(e *Env) { e.codecs = t }
}

// WithHTTPClient sets the client used by http(s) resources.
func WithHTTPClient(c *http.Client) EnvOption {
	return func(e *Env) { e.client = c }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) EnvOption {
	return func(e *Env) { e.logger = l }
}

// WithOutput sets where print and shell write. The default discards.
func WithOutput(w io.Writer) EnvOption {
	return func(e *Env) { e.out = w }
}

// NewEnv creates an Env dispatching from reg.
func NewEnv(ctx context.Context, reg *Registry, opts ...EnvOption) *Env {
	if ctx == nil {
		ctx = context.Background()
	}
	e := &Env{ctx: ctx, reg: reg}
	for _, opt := range opts {
		opt(e)
	}
	if e.scope == nil {
		e.scope = scope.New(nil)
	}
	if e.codecs == nil {
		e.codecs = codec.Default
	}
	if e.client == nil {
		e.client = resource.NewHTTPClient(0)
	}
	if e.out == nil {
		e.out = io.Discard
	}
	return e
}

// Context returns the cancellation context.
func (e *Env) Context() context.Context { return e.ctx }

// Scope returns the variable Context.
func (e *Env) Scope() *scope.Context { return e.scope }

// Codecs returns the codec table.
func (e *Env) Codecs() *codec.Table { return e.codecs }

// Client returns the HTTP client.
func (e *Env) Client() *http.Client { return e.client }

// Logger returns the logger.
func (e *Env) Logger() log.Logger { return e.logger }

// Registry returns the function registry.
func (e *Env) Registry() *Registry { return e.reg }

// Out returns the output writer.
func (e *Env) Out() io.Writer { return e.out }

// In returns a copy of the Env executing against cx.
func (e *Env) In(cx *scope.Context) *Env {
	c := *e
	c.scope = cx
	return &c
}

// WithContext returns a copy of the Env bound to ctx.
func (e *Env) WithContext(ctx context.Context) *Env {
	c := *e
	c.ctx = ctx
	return &c
}

// Compile compiles source text against the Env's registry.
func (e *Env) Compile(src string) (*Expression, error) {
	return Compile(e.reg, src)
}

// Evaluate runs v while it is an Expression. Resources are left alone.
func (e *Env) Evaluate(v types.Value) (types.Value, error) {
	for i := 0; i < maxUnwrap; i++ {
		x, ok := AsExpression(v)
		if !ok {
			return v, nil
		}
		var err error
		if v, err = x.Execute(e); err != nil {
			return types.Null, err
		}
	}
	return types.Null, types.NewStateError(fmt.Sprintf("expression nests deeper than %d levels", maxUnwrap))
}

// Execute is the single normalization point: it runs Expressions and
// fetches Resources until v is neither.
func (e *Env) Execute(v types.Value) (types.Value, error) {
	for i := 0; i < maxUnwrap; i++ {
		switch v.Type() {
		case types.TypeExpression:
			x, ok := AsExpression(v)
			if !ok {
				return v, nil
			}
			var err error
			if v, err = x.Execute(e); err != nil {
				return types.Null, err
			}
		case types.TypeResource:
			var err error
			if v, err = resource.FromValue(v).Get(e); err != nil {
				return types.Null, err
			}
		default:
			return v, nil
		}
	}
	return types.Null, types.NewStateError(fmt.Sprintf("value still unresolved after %d steps", maxUnwrap))
}

// ExecuteAll executes every value of vs.
func (e *Env) ExecuteAll(vs []types.Value) ([]types.Value, error) {
	out := make([]types.Value, len(vs))
	for i, v := range vs {
		x, err := e.Execute(v)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}
